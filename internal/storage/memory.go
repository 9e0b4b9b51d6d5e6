package storage

import (
	"context"
	"fmt"
	"sync"
)

const memoryBase = "mem://files"

// MemoryStorage keeps objects in a map. Used by tests and when MinIO is not
// configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *MemoryStorage) UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), data...)
	m.objects[key] = cp
	m.types[key] = contentType
	return memoryBase + "/documents/" + key, nil
}

func (m *MemoryStorage) DownloadFileAsBuffer(ctx context.Context, fileURL string) ([]byte, error) {
	key, err := KeyFromURL(memoryBase, "documents", fileURL)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// ContentType returns the stored MIME type of key.
func (m *MemoryStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[key]
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
