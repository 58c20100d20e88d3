// Package storage provides factory functions for creating storage-dependent components.
// A factory builds the run store, the entity writer and the stage queue as a family
// so all three share one backend.
package storage

import (
	"context"
	"fmt"

	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/queue"
	"github.com/stitchflow-website/dirsync/internal/sync/state"
	"github.com/stitchflow-website/dirsync/internal/sync/writer"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates storage-dependent components as a family.
type Factory interface {
	// CreateRunStore creates the store of sync run status records.
	CreateRunStore(ctx context.Context) (state.RunStore, error)

	// CreateEntityWriter creates the writer of imported directory entities.
	CreateEntityWriter(ctx context.Context) (writer.EntityWriter, error)

	// CreateQueue creates the stage task queue consumed by the worker pool.
	CreateQueue(ctx context.Context) (queue.Queue, error)

	// Ready reports whether the backend can serve requests.
	Ready(ctx context.Context) error

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...Option) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg, opts...)
	case config.StorageTypeMemory:
		return NewMemoryFactory(cfg, opts...)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
