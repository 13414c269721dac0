package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/suPer8Hu/postcraft/internal/common"
)

var (
	ErrNotFound        = errors.New("media object not found")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("media file too large")
)

// Store keeps uploaded blobs and hands back a public URL for each.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a URL returned by Put back to its key. ok is false for
	// URLs this store did not produce.
	KeyFromURL(url string) (key string, ok bool)
}

var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
}

// ContentType returns the content type for filename's extension, or
// ErrUnsupportedType.
func ContentType(filename string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	ct, ok := contentTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return ct, nil
}

// ObjectKey builds "<prefix>/<user>/<ulid><ext>". The original name only
// contributes its lowercased extension.
func ObjectKey(prefix string, userID uint64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(prefix, fmt.Sprint(userID), common.NewULID()+ext)
}

// Upload checks type and size, then stores body under a fresh key.
func Upload(ctx context.Context, s Store, prefix string, userID uint64, filename string, body io.Reader, size, maxBytes int64) (string, error) {
	ct, err := ContentType(filename)
	if err != nil {
		return "", err
	}
	if maxBytes > 0 && size > maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, size, maxBytes)
	}
	return s.Put(ctx, ObjectKey(prefix, userID, filename), ct, body, size)
}
