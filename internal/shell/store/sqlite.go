package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrationsFS embed.FS

// =============================================================================
// Row Types
// =============================================================================

// stateRow is the scalar part of a document.
type stateRow struct {
	Network   string `db:"network"`
	Deployer  string `db:"deployer"`
	Phase     string `db:"phase"`
	UpdatedAt string `db:"updated_at"`
}

type addressRow struct {
	Network  string `db:"network"`
	Category string `db:"category"`
	Name     string `db:"name"`
	Address  string `db:"address"`
}

type phaseRow struct {
	Network string `db:"network"`
	Phase   string `db:"phase"`
	Status  string `db:"status"`
}

// =============================================================================
// SQLiteBackend
// =============================================================================

// SQLiteBackend stores documents in SQLite, one row set per network.
type SQLiteBackend struct {
	db      *sqlx.DB
	network string
}

// NewSQLiteBackend opens the database and runs migrations.
func NewSQLiteBackend(dsn, network string) (*SQLiteBackend, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, NewStoreError("NewSQLiteBackend", BackendSQLite, err.Error(), ErrConnectionFailed)
			}
		}
	}

	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteBackend", BackendSQLite, "failed to open database", ErrConnectionFailed)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteBackend", BackendSQLite, "failed to ping database", ErrConnectionFailed)
	}

	if err := runSQLiteMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteBackend", BackendSQLite, err.Error(), ErrMigrationFailed)
	}

	return &SQLiteBackend{db: db, network: network}, nil
}

// runSQLiteMigrations runs database migrations using embedded SQL files.
func runSQLiteMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(sqliteMigrationsFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Name() string { return BackendSQLite }

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) Read(ctx context.Context) (*domain.DeploymentState, error) {
	var row stateRow
	err := s.db.GetContext(ctx, &row,
		`SELECT network, deployer, phase, updated_at FROM deployment_state WHERE network = ?`, s.network)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("Read", BackendSQLite, "no document for "+s.network, ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("Read", BackendSQLite, err.Error(), ErrConnectionFailed)
	}

	state := domain.NewDeploymentState(row.Network, row.Deployer)
	state.Phase = row.Phase
	if row.UpdatedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, row.UpdatedAt)
		if err != nil {
			return nil, NewStoreError("Read", BackendSQLite, "bad updated_at: "+err.Error(), ErrInvalidData)
		}
		state.Timestamp = ts
	}

	var addrs []addressRow
	if err := s.db.SelectContext(ctx, &addrs,
		`SELECT network, category, name, address FROM deployment_addresses WHERE network = ?`, s.network); err != nil {
		return nil, NewStoreError("Read", BackendSQLite, err.Error(), ErrConnectionFailed)
	}
	for _, a := range addrs {
		if err := state.SetAddress(domain.Category(a.Category), a.Name, a.Address); err != nil {
			return nil, NewStoreError("Read", BackendSQLite, err.Error(), ErrInvalidData)
		}
	}

	var phases []phaseRow
	if err := s.db.SelectContext(ctx, &phases,
		`SELECT network, phase, status FROM deployment_phases WHERE network = ?`, s.network); err != nil {
		return nil, NewStoreError("Read", BackendSQLite, err.Error(), ErrConnectionFailed)
	}
	for _, p := range phases {
		state.Phases[p.Phase] = domain.PhaseStatus(p.Status)
	}
	return state, nil
}

// Write replaces the network's rows in one transaction.
func (s *SQLiteBackend) Write(ctx context.Context, state *domain.DeploymentState) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("Write", BackendSQLite, "failed to begin transaction", ErrTxFailed)
	}

	if err := writeSQLite(ctx, tx, s.network, state); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("Write", BackendSQLite, fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return NewStoreError("Write", BackendSQLite, err.Error(), ErrWriteFailed)
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("Write", BackendSQLite, "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

func writeSQLite(ctx context.Context, tx *sqlx.Tx, network string, state *domain.DeploymentState) error {
	row := stateRow{
		Network:   network,
		Deployer:  state.Deployer,
		Phase:     state.Phase,
		UpdatedAt: state.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO deployment_state (network, deployer, phase, updated_at)
		VALUES (:network, :deployer, :phase, :updated_at)
		ON CONFLICT(network) DO UPDATE SET
			deployer = excluded.deployer,
			phase = excluded.phase,
			updated_at = excluded.updated_at`, row); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM deployment_addresses WHERE network = ?`, network); err != nil {
		return fmt.Errorf("clear addresses: %w", err)
	}
	for _, cat := range domain.Categories() {
		for name, addr := range state.Addresses(cat) {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO deployment_addresses (network, category, name, address)
				VALUES (:network, :category, :name, :address)`,
				addressRow{Network: network, Category: string(cat), Name: name, Address: addr}); err != nil {
				return fmt.Errorf("insert %s.%s: %w", cat, name, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM deployment_phases WHERE network = ?`, network); err != nil {
		return fmt.Errorf("clear phases: %w", err)
	}
	for phase, status := range state.Phases {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO deployment_phases (network, phase, status)
			VALUES (:network, :phase, :status)`,
			phaseRow{Network: network, Phase: phase, Status: string(status)}); err != nil {
			return fmt.Errorf("insert phase %s: %w", phase, err)
		}
	}
	return nil
}
