package store

import (
	"context"
	"sync"

	"github.com/artpar/chainforge/internal/core/domain"
)

// MemoryBackend keeps the document in process and counts successful writes
// so tests can assert write-through behavior.
type MemoryBackend struct {
	mu     sync.Mutex
	state  *domain.DeploymentState
	writes int
	// FailWrites makes every Write return this error.
	FailWrites error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Name() string { return BackendMemory }

func (b *MemoryBackend) Read(ctx context.Context) (*domain.DeploymentState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return nil, NewStoreError("Read", BackendMemory, "no document", ErrNotFound)
	}
	return b.state.Clone(), nil
}

func (b *MemoryBackend) Write(ctx context.Context, state *domain.DeploymentState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWrites != nil {
		return NewStoreError("Write", BackendMemory, b.FailWrites.Error(), b.FailWrites)
	}
	b.state = state.Clone()
	b.writes++
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

// WriteCount returns the number of successful writes.
func (b *MemoryBackend) WriteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Seed stores a document directly, bypassing the write counter.
func (b *MemoryBackend) Seed(state *domain.DeploymentState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state.Clone()
}
