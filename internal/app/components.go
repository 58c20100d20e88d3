package app

import (
	"github.com/stitchflow-website/dirsync/internal/queue"
	"github.com/stitchflow-website/dirsync/internal/service"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
	"github.com/stitchflow-website/dirsync/internal/sync/coordinator"
	"github.com/stitchflow-website/dirsync/internal/sync/state"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator runs the stage worker pool
	SyncCoordinator coordinator.Coordinator

	// SyncService answers status queries and corrects stale runs
	SyncService service.SyncService

	// RunStore holds the sync run status records
	RunStore state.RunStore

	// Queue carries stage tasks to the workers
	Queue queue.Queue

	// Trigger hands a stage off to the next one in the configured dispatch mode
	Trigger pkgsync.Trigger
}
