package history

import (
	"context"
	"slices"
	"sync"

	"github.com/i2y/parley/provider"
)

// Memory is an in-process Store. Contents are lost on exit.
type Memory struct {
	mu     sync.RWMutex
	convs  map[string][]provider.Message
	closed bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{convs: make(map[string][]provider.Message)}
}

func (m *Memory) Load(_ context.Context, conversation string, limit int) ([]provider.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return slices.Clone(window(m.convs[conversation], limit)), nil
}

func (m *Memory) Append(_ context.Context, conversation string, msgs ...provider.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.convs[conversation] = append(m.convs[conversation], msgs...)
	return nil
}

func (m *Memory) Clear(_ context.Context, conversation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.convs, conversation)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
