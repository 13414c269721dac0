package media

import (
	"context"
	"io"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in process. The server falls back to it when no
// bucket is configured.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return m.baseURL + "/" + key, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, m.baseURL+"/")
	return key, ok && key != ""
}

// Object returns a stored blob; tests use it.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}
