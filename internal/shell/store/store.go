package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/artpar/chainforge/internal/core/domain"
)

// =============================================================================
// Backend Interface
// =============================================================================

// Backend reads and writes the whole state document of one network.
// Write replaces the previous document entirely.
type Backend interface {
	// Read returns ErrNotFound when nothing was written yet.
	Read(ctx context.Context) (*domain.DeploymentState, error)
	Write(ctx context.Context, state *domain.DeploymentState) error
	Name() string
	Close() error
}

// =============================================================================
// Backend Selection
// =============================================================================

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend string // file (default), sqlite, postgres, memory
	Path    string // file backend; defaults to DefaultPath(Network)
	DSN     string // sqlite path or postgres URL
	Network string
}

// DefaultPath is where the file backend keeps a network's document.
func DefaultPath(network string) string {
	return filepath.Join("deployments", domain.NetworkFileKey(network)+".json")
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", BackendFile:
		path := cfg.Path
		if path == "" {
			path = DefaultPath(cfg.Network)
		}
		return NewFileBackend(path), nil
	case BackendSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join("deployments", "state.db")
		}
		return NewSQLiteBackend(dsn, cfg.Network)
	case BackendPostgres:
		return NewPostgresBackend(ctx, cfg.DSN, cfg.Network)
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, NewStoreError("Open", cfg.Backend, fmt.Sprintf("unsupported backend %q", cfg.Backend), ErrUnknownBackend)
	}
}
