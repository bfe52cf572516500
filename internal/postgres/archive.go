package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vanish-leaderboard/internal/config"
)

// Archive provides PostgreSQL-based durability alongside the blob store:
// an audit log of every submission attempt and periodic blob snapshots
// used to repopulate the store after data loss. The blob store remains
// authoritative; the archive is best-effort.
type Archive struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Snapshot is one archived copy of a leaderboard blob.
type Snapshot struct {
	Key       string
	Data      []byte
	UpdatedAt time.Time
}

// NewArchive creates a new PostgreSQL archive
func NewArchive(cfg *config.PostgresConfig, logger *slog.Logger) (*Archive, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Archive{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (a *Archive) Close() {
	a.pool.Close()
}

// Pool returns the underlying connection pool
func (a *Archive) Pool() *pgxpool.Pool {
	return a.pool
}

// RunMigrations executes database migrations
func (a *Archive) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id BIGSERIAL PRIMARY KEY,
			category VARCHAR(32) NOT NULL,
			player_name VARCHAR(64) NOT NULL,
			time_seconds DOUBLE PRECISION NOT NULL,
			qualified BOOLEAN NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS blob_snapshots (
			key VARCHAR(128) PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_category ON submissions(category, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := a.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	a.logger.Info("database migrations completed")
	return nil
}

// RecordSubmission records one submission attempt for auditing. Callers
// treat failures as non-fatal.
func (a *Archive) RecordSubmission(ctx context.Context, category, playerName string, seconds float64, qualified bool) error {
	query := `
		INSERT INTO submissions (category, player_name, time_seconds, qualified, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := a.pool.Exec(ctx, query, category, playerName, seconds, qualified, time.Now())
	if err != nil {
		return fmt.Errorf("recording submission: %w", err)
	}
	return nil
}

// UpsertSnapshot stores or replaces the archived copy of a blob
func (a *Archive) UpsertSnapshot(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO blob_snapshots (key, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET data = $2, updated_at = $3
	`
	_, err := a.pool.Exec(ctx, query, key, data, time.Now())
	if err != nil {
		return fmt.Errorf("upserting snapshot %s: %w", key, err)
	}
	return nil
}

// ListSnapshots retrieves every archived blob
func (a *Archive) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	query := `SELECT key, data, updated_at FROM blob_snapshots ORDER BY key`
	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.Key, &s.Data, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}
