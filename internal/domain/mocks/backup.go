package mocks

import (
	"context"
	"sync"
)

// BackupTarget is a mock implementation of ports.BackupTarget.
type BackupTarget struct {
	UploadErr error
	Uploads   map[string][]byte

	// Call tracking
	UploadCallCount int

	mu sync.Mutex
}

// Upload records the payload and returns a mem:// location.
func (m *BackupTarget) Upload(_ context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UploadCallCount++
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	if m.Uploads == nil {
		m.Uploads = make(map[string][]byte)
	}
	m.Uploads[name] = append([]byte(nil), data...)
	return "mem://" + name, nil
}
