package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS deployment_state (
    network    TEXT PRIMARY KEY,
    deployer   TEXT NOT NULL DEFAULT '',
    phase      TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deployment_addresses (
    network  TEXT NOT NULL REFERENCES deployment_state(network) ON DELETE CASCADE,
    category TEXT NOT NULL,
    name     TEXT NOT NULL,
    address  TEXT NOT NULL,
    PRIMARY KEY (network, category, name)
);

CREATE TABLE IF NOT EXISTS deployment_phases (
    network TEXT NOT NULL REFERENCES deployment_state(network) ON DELETE CASCADE,
    phase   TEXT NOT NULL,
    status  TEXT NOT NULL,
    PRIMARY KEY (network, phase)
);
`

// =============================================================================
// PostgresBackend
// =============================================================================

// PostgresBackend stores documents in PostgreSQL. It shares the table layout
// of the SQLite backend so several networks can live in one database.
type PostgresBackend struct {
	pool    *pgxpool.Pool
	network string
}

// NewPostgresBackend connects and creates the tables if needed.
func NewPostgresBackend(ctx context.Context, databaseURL, network string) (*PostgresBackend, error) {
	if databaseURL == "" {
		return nil, NewStoreError("NewPostgresBackend", BackendPostgres, "dsn is required", ErrConnectionFailed)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, NewStoreError("NewPostgresBackend", BackendPostgres, "failed to create connection pool: "+err.Error(), ErrConnectionFailed)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, NewStoreError("NewPostgresBackend", BackendPostgres, "failed to ping database: "+err.Error(), ErrConnectionFailed)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, NewStoreError("NewPostgresBackend", BackendPostgres, err.Error(), ErrMigrationFailed)
	}

	return &PostgresBackend{pool: pool, network: network}, nil
}

func (p *PostgresBackend) Name() string { return BackendPostgres }

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresBackend) Read(ctx context.Context) (*domain.DeploymentState, error) {
	var (
		deployer, phase string
		updatedAt       time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT deployer, phase, updated_at FROM deployment_state WHERE network = $1`, p.network,
	).Scan(&deployer, &phase, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewStoreError("Read", BackendPostgres, "no document for "+p.network, ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("Read", BackendPostgres, err.Error(), ErrConnectionFailed)
	}

	state := domain.NewDeploymentState(p.network, deployer)
	state.Phase = phase
	state.Timestamp = updatedAt.UTC()

	rows, err := p.pool.Query(ctx,
		`SELECT category, name, address FROM deployment_addresses WHERE network = $1`, p.network)
	if err != nil {
		return nil, NewStoreError("Read", BackendPostgres, err.Error(), ErrConnectionFailed)
	}
	for rows.Next() {
		var cat, name, addr string
		if err := rows.Scan(&cat, &name, &addr); err != nil {
			rows.Close()
			return nil, NewStoreError("Read", BackendPostgres, err.Error(), ErrInvalidData)
		}
		if err := state.SetAddress(domain.Category(cat), name, addr); err != nil {
			rows.Close()
			return nil, NewStoreError("Read", BackendPostgres, err.Error(), ErrInvalidData)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, NewStoreError("Read", BackendPostgres, err.Error(), ErrConnectionFailed)
	}

	phaseRows, err := p.pool.Query(ctx,
		`SELECT phase, status FROM deployment_phases WHERE network = $1`, p.network)
	if err != nil {
		return nil, NewStoreError("Read", BackendPostgres, err.Error(), ErrConnectionFailed)
	}
	defer phaseRows.Close()
	for phaseRows.Next() {
		var name, status string
		if err := phaseRows.Scan(&name, &status); err != nil {
			return nil, NewStoreError("Read", BackendPostgres, err.Error(), ErrInvalidData)
		}
		state.Phases[name] = domain.PhaseStatus(status)
	}
	if err := phaseRows.Err(); err != nil {
		return nil, NewStoreError("Read", BackendPostgres, err.Error(), ErrConnectionFailed)
	}
	return state, nil
}

// Write replaces the network's rows in one transaction.
func (p *PostgresBackend) Write(ctx context.Context, state *domain.DeploymentState) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return NewStoreError("Write", BackendPostgres, "failed to begin transaction", ErrTxFailed)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := writePostgres(ctx, tx, p.network, state); err != nil {
		return NewStoreError("Write", BackendPostgres, err.Error(), ErrWriteFailed)
	}
	if err := tx.Commit(ctx); err != nil {
		return NewStoreError("Write", BackendPostgres, "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

func writePostgres(ctx context.Context, tx pgx.Tx, network string, state *domain.DeploymentState) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO deployment_state (network, deployer, phase, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network) DO UPDATE SET
			deployer = EXCLUDED.deployer,
			phase = EXCLUDED.phase,
			updated_at = EXCLUDED.updated_at`,
		network, state.Deployer, state.Phase, state.Timestamp.UTC()); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM deployment_addresses WHERE network = $1`, network)
	for _, cat := range domain.Categories() {
		for name, addr := range state.Addresses(cat) {
			batch.Queue(`INSERT INTO deployment_addresses (network, category, name, address) VALUES ($1, $2, $3, $4)`,
				network, string(cat), name, addr)
		}
	}
	batch.Queue(`DELETE FROM deployment_phases WHERE network = $1`, network)
	for phase, status := range state.Phases {
		batch.Queue(`INSERT INTO deployment_phases (network, phase, status) VALUES ($1, $2, $3)`,
			network, phase, string(status))
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
