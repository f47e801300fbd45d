package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"sync"
)

// MockStorage is an in-memory StorageInterface for tests
type MockStorage struct {
	files map[string][]byte
	mu    sync.RWMutex

	// FailUploads makes every UploadFile call fail.
	FailUploads bool
}

// NewMockStorage creates an empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{files: make(map[string][]byte)}
}

// SetAsMockForTesting installs this mock as the global storage backend
func (m *MockStorage) SetAsMockForTesting() {
	SetStorage(m)
}

func (m *MockStorage) UploadFile(ctx context.Context, key string, fileHeader *multipart.FileHeader) error {
	if m.FailUploads {
		return fmt.Errorf("mock storage: upload failed for %s", key)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	m.Put(key, content)
	return nil
}

func (m *MockStorage) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	content, exists := m.files[key]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *MockStorage) DeleteFile(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()
	return nil
}

// Put stores content under key directly
func (m *MockStorage) Put(key string, content []byte) {
	m.mu.Lock()
	m.files[key] = content
	m.mu.Unlock()
}

// FileExists checks if a file exists in mock storage
func (m *MockStorage) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[key]
	return exists
}

// Keys returns every stored key
func (m *MockStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	return keys
}
