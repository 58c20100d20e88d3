package writer

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/config"
)

// NewEntityWriter creates an EntityWriter based on the configured storage type.
//
// For database storage, the pool parameter must not be nil.
func NewEntityWriter(cfg *config.Config, pool *pgxpool.Pool, clk clock.PassiveClock) (EntityWriter, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDBEntityWriter(pool, clk)
	case config.StorageTypeMemory:
		return NewMemoryEntityWriter(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.GetStorageType())
	}
}
