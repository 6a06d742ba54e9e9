package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/moby/sys/atomicwriter"
)

// =============================================================================
// FileBackend
// =============================================================================

// FileBackend keeps the state document as indented JSON in one file.
// Writes go to a temporary file that is renamed over the target, so a
// crash mid-write leaves the previous document intact.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend for the document at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the document location.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Name() string { return BackendFile }

func (b *FileBackend) Read(ctx context.Context) (*domain.DeploymentState, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewStoreError("Read", BackendFile, b.path+" does not exist", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("Read", BackendFile, err.Error(), ErrConnectionFailed)
	}

	var state domain.DeploymentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, NewStoreError("Read", BackendFile, "decode "+b.path+": "+err.Error(), ErrInvalidData)
	}
	state.Normalize()
	return &state, nil
}

func (b *FileBackend) Write(ctx context.Context, state *domain.DeploymentState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return NewStoreError("Write", BackendFile, err.Error(), ErrInvalidData)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return NewStoreError("Write", BackendFile, err.Error(), ErrWriteFailed)
		}
	}
	if err := atomicwriter.WriteFile(b.path, data, 0o644); err != nil {
		return NewStoreError("Write", BackendFile, err.Error(), ErrWriteFailed)
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }
