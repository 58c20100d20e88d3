package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/db"
	"github.com/stitchflow-website/dirsync/internal/queue"
	"github.com/stitchflow-website/dirsync/internal/sync/state"
	"github.com/stitchflow-website/dirsync/internal/sync/writer"
)

// DatabaseFactory creates database-backed storage components.
// All components created by this factory share one PostgreSQL connection pool.
type DatabaseFactory struct {
	config *config.Config
	pool   *pgxpool.Pool
	clock  clock.Clock
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database unless
// one is supplied with WithConnectionPool.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...Option) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	o := applyOptions(opts)

	pool := o.pool
	if pool == nil {
		if cfg.Database == nil {
			return nil, fmt.Errorf("database configuration is required for database storage type")
		}

		var err error
		pool, err = db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection pool: %w", err)
		}
	}

	slog.Info("Creating database-backed storage factory")
	return &DatabaseFactory{config: cfg, pool: pool, clock: o.clock}, nil
}

// CreateRunStore creates a database-backed run store.
func (d *DatabaseFactory) CreateRunStore(_ context.Context) (state.RunStore, error) {
	slog.Debug("Creating database-backed run store")
	return state.NewRunStore(d.config, d.pool, d.clock)
}

// CreateEntityWriter creates a database-backed entity writer.
func (d *DatabaseFactory) CreateEntityWriter(_ context.Context) (writer.EntityWriter, error) {
	slog.Debug("Creating database-backed entity writer")
	return writer.NewEntityWriter(d.config, d.pool, d.clock)
}

// CreateQueue creates the leased PostgreSQL stage queue.
func (d *DatabaseFactory) CreateQueue(_ context.Context) (queue.Queue, error) {
	slog.Debug("Creating database-backed stage queue")
	return queue.New(d.config, d.pool, d.clock)
}

// Ready pings the database.
func (d *DatabaseFactory) Ready(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database is not reachable: %w", err)
	}
	return nil
}

// Pool returns the connection pool shared by the factory's components.
func (d *DatabaseFactory) Pool() *pgxpool.Pool {
	return d.pool
}

// Cleanup closes the database connection pool.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}
