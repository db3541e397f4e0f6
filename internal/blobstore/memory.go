package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/drivesync/internal/common"
)

const memoryBase = "mem://blobs"

type blob struct {
	data        []byte
	contentType string
}

// Memory keeps payloads in process.
type Memory struct {
	mu    sync.Mutex
	blobs map[string]blob
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]blob)}
}

func (m *Memory) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", common.ErrBlobStore)
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.blobs[path] = blob{data: cp, contentType: contentType}
	m.mu.Unlock()

	return objectURL(memoryBase, "default", path), nil
}

// Delete removes a payload; an absent path is not an error.
func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	delete(m.blobs, path)
	m.mu.Unlock()
	return nil
}

func (m *Memory) PathFromURL(rawURL string) (string, error) {
	return objectPath(memoryBase, "default", rawURL)
}

// Get returns a stored payload.
func (m *Memory) Get(path string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[path]
	if !ok {
		return nil, "", false
	}
	return b.data, b.contentType, true
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
