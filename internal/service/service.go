// Package service provides the business logic behind the sync API
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stitchflow-website/dirsync/internal/provider"
	"github.com/stitchflow-website/dirsync/internal/status"
)

var (
	// ErrInvalidRequest is returned when a request misses required input
	ErrInvalidRequest = errors.New("invalid request")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go SyncService

// SyncService defines the operations behind the sync API
type SyncService interface {
	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// StartSync creates a run for the organization and hands it to the first
	// stage. It returns the run id without waiting for any stage to execute.
	StartSync(ctx context.Context, organizationID string, creds provider.Credentials) (uuid.UUID, error)

	// GetStatus returns the run with the given id, or nil if it does not exist
	GetStatus(ctx context.Context, syncRunID uuid.UUID) (*status.SyncRun, error)

	// GetLatestStatus returns the latest run of the organization, or nil if it has none
	GetLatestStatus(ctx context.Context, organizationID string) (*status.SyncRun, error)
}
