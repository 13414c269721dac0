package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 90 * time.Second
	errorBodyLimit     = 4 * 1024
	downloadLimit      = 32 << 20
)

var errDownloadTooLarge = errors.New("download exceeds size limit")

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// statusError is returned for non-2xx vendor replies.
type statusError struct {
	vendor string
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s: status %d", e.vendor, e.status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.vendor, e.status, e.body)
}

func statusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

// doJSON sends body (when non-nil) as JSON and decodes a 2xx reply into out.
func doJSON(ctx context.Context, client *http.Client, vendor, method, url string, headers map[string]string, body, out any) error {
	if client == nil {
		return fmt.Errorf("%s: http client is nil", vendor)
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &statusError{vendor: vendor, status: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", vendor, err)
	}
	return nil
}

func download(ctx context.Context, client *http.Client, vendor, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{vendor: vendor, status: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, downloadLimit+1))
	if err != nil {
		return nil, err
	}
	if len(b) > downloadLimit {
		return nil, fmt.Errorf("%s: %w", vendor, errDownloadTooLarge)
	}
	return b, nil
}

func trimBase(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
