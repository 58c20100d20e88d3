package state

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/config"
)

// NewRunStore creates a RunStore based on the configured storage type.
//
// For database storage, the pool parameter must not be nil.
func NewRunStore(cfg *config.Config, pool *pgxpool.Pool, clk clock.PassiveClock) (RunStore, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when storage type is database")
		}
		return NewDBRunStore(pool, clk), nil
	case config.StorageTypeMemory:
		return NewMemoryRunStore(clk), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.GetStorageType())
	}
}
