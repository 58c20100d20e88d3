// Package v1 provides the REST API handlers for starting directory syncs and
// polling their status.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stitchflow-website/dirsync/internal/api/common"
	"github.com/stitchflow-website/dirsync/internal/provider"
	"github.com/stitchflow-website/dirsync/internal/service"
	"github.com/stitchflow-website/dirsync/internal/versions"
)

// StartSyncRequest is the body of POST /v1/sync
type StartSyncRequest struct {
	OrganizationID string               `json:"organizationId"`
	Credentials    provider.Credentials `json:"credentials"`
}

// StartSyncResponse is returned once a sync run has been started
type StartSyncResponse struct {
	SyncRunID uuid.UUID `json:"syncRunId"`
}

// Routes defines the routes for the sync API with dependency injection
type Routes struct {
	service service.SyncService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.SyncService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates a new router for the sync API
func Router(svc service.SyncService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Post("/sync", routes.startSync)
	r.Get("/sync/status", routes.getSyncStatus)

	return r
}

// startSync handles POST /v1/sync
//
// @Summary		Start a directory sync
// @Description	Create a sync run for the organization and start it in the background
// @Tags			sync
// @Accept			json
// @Produce		json
// @Param			request	body		StartSyncRequest	true	"Organization and provider credentials"
// @Success		202		{object}	StartSyncResponse
// @Failure		400		{object}	common.ErrorResponse
// @Failure		500		{object}	common.ErrorResponse
// @Router			/v1/sync [post]
func (rr *Routes) startSync(w http.ResponseWriter, r *http.Request) {
	var req StartSyncRequest
	if err := common.DecodeJSONBody(r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := rr.service.StartSync(r.Context(), req.OrganizationID, req.Credentials)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Failed to start sync", "organization_id", req.OrganizationID, "error", err)
		common.WriteErrorResponse(w, "Failed to start sync", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, StartSyncResponse{SyncRunID: id}, http.StatusAccepted)
}

// getSyncStatus handles GET /v1/sync/status
//
// @Summary		Get sync status
// @Description	Get a sync run by id, or the latest run of an organization. Returns null when there is none.
// @Tags			sync
// @Produce		json
// @Param			syncId	query		string	false	"Sync run id; takes precedence over orgId"
// @Param			orgId	query		string	false	"Organization id"
// @Success		200		{object}	status.SyncRun
// @Failure		400		{object}	common.ErrorResponse
// @Failure		500		{object}	common.ErrorResponse
// @Router			/v1/sync/status [get]
func (rr *Routes) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	syncID := strings.TrimSpace(r.URL.Query().Get("syncId"))
	orgID := strings.TrimSpace(r.URL.Query().Get("orgId"))

	switch {
	case syncID != "":
		id, err := uuid.Parse(syncID)
		if err != nil {
			common.WriteErrorResponse(w, "syncId must be a UUID", http.StatusBadRequest)
			return
		}
		run, err := rr.service.GetStatus(r.Context(), id)
		if err != nil {
			slog.Error("Failed to get sync status", "sync_run_id", id, "error", err)
			common.WriteErrorResponse(w, "Failed to get sync status", http.StatusInternalServerError)
			return
		}
		common.WriteJSONResponse(w, run, http.StatusOK)

	case orgID != "":
		run, err := rr.service.GetLatestStatus(r.Context(), orgID)
		if err != nil {
			slog.Error("Failed to get latest sync status", "organization_id", orgID, "error", err)
			common.WriteErrorResponse(w, "Failed to get sync status", http.StatusInternalServerError)
			return
		}
		common.WriteJSONResponse(w, run, http.StatusOK)

	default:
		common.WriteErrorResponse(w, "syncId or orgId is required", http.StatusBadRequest)
	}
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc service.SyncService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
//
// @Summary		Health check
// @Tags			system
// @Produce		json
// @Success		200	{object}	common.StatusResponse
// @Router			/health [get]
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, common.StatusResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler handles readiness check requests
//
// @Summary		Readiness check
// @Tags			system
// @Produce		json
// @Success		200	{object}	common.StatusResponse
// @Failure		503	{object}	common.ErrorResponse
// @Router			/readiness [get]
func readinessHandler(svc service.SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			common.WriteErrorResponse(w, "Service not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, common.StatusResponse{Status: "ready"}, http.StatusOK)
	}
}

// versionHandler handles version information requests
//
// @Summary		Version information
// @Tags			system
// @Produce		json
// @Success		200	{object}	versions.VersionInfo
// @Router			/version [get]
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
