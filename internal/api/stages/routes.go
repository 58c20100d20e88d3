// Package stages provides the internal endpoint through which one replica hands
// a stage task to another.
package stages

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stitchflow-website/dirsync/internal/api/common"
	"github.com/stitchflow-website/dirsync/internal/queue"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
)

// Routes defines the internal stage routes
type Routes struct {
	trigger pkgsync.Trigger
}

// Router creates the router of the stage endpoint. Accepted tasks are passed
// to trigger, which is expected to enqueue them locally.
func Router(trigger pkgsync.Trigger) http.Handler {
	routes := &Routes{trigger: trigger}

	r := chi.NewRouter()
	r.Post("/{stage}", routes.acceptTask)

	return r
}

// acceptTask handles POST /internal/v1/stages/{stage}
func (rr *Routes) acceptTask(w http.ResponseWriter, r *http.Request) {
	name, err := common.PathParam(r, "stage")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	stage, err := pkgsync.ParseStage(name)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var task pkgsync.Task
	if err := common.DecodeJSONBody(r, &task); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if task.Stage != stage {
		common.WriteErrorResponse(w, "task stage does not match the endpoint", http.StatusBadRequest)
		return
	}
	if err := task.Validate(); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := rr.trigger.Trigger(r.Context(), &task); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			common.WriteErrorResponse(w, "Stage queue is full", http.StatusServiceUnavailable)
			return
		}
		slog.Error("Failed to accept stage task",
			"stage", stage,
			"sync_run_id", task.SyncRunID,
			"error", err)
		common.WriteErrorResponse(w, "Failed to accept stage task", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, common.StatusResponse{Status: "accepted"}, http.StatusAccepted)
}
