package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// objectAPI is the part of the s3 client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Store struct {
	api     objectAPI
	bucket  string
	baseURL string
}

// NewS3Store loads the default AWS chain. A non-empty endpoint switches to
// path-style addressing for S3 compatible servers such as MinIO.
func NewS3Store(ctx context.Context, region, bucket, endpoint string) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("media: S3 bucket not configured")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("media: load AWS config: %w", err)
	}
	endpoint = strings.TrimRight(endpoint, "/")
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, region, bucket, endpoint), nil
}

func newS3Store(api objectAPI, region, bucket, endpoint string) *S3Store {
	base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	if endpoint != "" {
		base = strings.TrimRight(endpoint, "/") + "/" + bucket
	}
	return &S3Store{api: api, bucket: bucket, baseURL: base}
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("media: put %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return ErrNotFound
		}
		return fmt.Errorf("media: delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) KeyFromURL(raw string) (string, bool) {
	if !strings.HasPrefix(raw, s.baseURL+"/") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(raw, s.baseURL+"/"))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}
