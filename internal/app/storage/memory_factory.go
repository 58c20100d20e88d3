package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/queue"
	"github.com/stitchflow-website/dirsync/internal/sync/state"
	"github.com/stitchflow-website/dirsync/internal/sync/writer"
)

// MemoryFactory creates process-local storage components. Everything is lost
// on restart and nothing is shared between replicas.
type MemoryFactory struct {
	config *config.Config
	clock  clock.Clock

	// Memory components are singletons so every caller sees the same data.
	once     sync.Once
	runs     state.RunStore
	entities writer.EntityWriter
	queue    queue.Queue
	err      error
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a new in-memory storage factory.
func NewMemoryFactory(cfg *config.Config, opts ...Option) (*MemoryFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	o := applyOptions(opts)

	slog.Info("Creating in-memory storage factory")
	return &MemoryFactory{config: cfg, clock: o.clock}, nil
}

func (m *MemoryFactory) init() error {
	m.once.Do(func() {
		if m.runs, m.err = state.NewRunStore(m.config, nil, m.clock); m.err != nil {
			return
		}
		if m.entities, m.err = writer.NewEntityWriter(m.config, nil, m.clock); m.err != nil {
			return
		}
		m.queue, m.err = queue.New(m.config, nil, m.clock)
	})
	return m.err
}

// CreateRunStore returns the shared in-memory run store.
func (m *MemoryFactory) CreateRunStore(_ context.Context) (state.RunStore, error) {
	if err := m.init(); err != nil {
		return nil, err
	}
	return m.runs, nil
}

// CreateEntityWriter returns the shared in-memory entity writer.
func (m *MemoryFactory) CreateEntityWriter(_ context.Context) (writer.EntityWriter, error) {
	if err := m.init(); err != nil {
		return nil, err
	}
	return m.entities, nil
}

// CreateQueue returns the shared bounded in-memory queue.
func (m *MemoryFactory) CreateQueue(_ context.Context) (queue.Queue, error) {
	if err := m.init(); err != nil {
		return nil, err
	}
	return m.queue, nil
}

// Ready always succeeds for memory storage.
func (*MemoryFactory) Ready(_ context.Context) error {
	return nil
}

// Cleanup is a no-op for memory storage.
func (*MemoryFactory) Cleanup() {
	slog.Debug("Cleaning up in-memory storage factory (no-op)")
}
