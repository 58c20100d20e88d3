package storage

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"
)

type factoryOptions struct {
	clock clock.Clock
	pool  *pgxpool.Pool
}

// Option configures a storage factory
type Option func(*factoryOptions)

// WithClock sets the clock used for heartbeats, sync timestamps and queue leases
func WithClock(clk clock.Clock) Option {
	return func(o *factoryOptions) {
		o.clock = clk
	}
}

// WithConnectionPool makes the database factory use an existing pool instead of
// connecting on its own. The factory still closes the pool on Cleanup.
func WithConnectionPool(pool *pgxpool.Pool) Option {
	return func(o *factoryOptions) {
		o.pool = pool
	}
}

func applyOptions(opts []Option) *factoryOptions {
	o := &factoryOptions{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
