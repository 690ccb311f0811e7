package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/domain/owner"
	"nursinghomes/internal/domain/update"
)

// Syncer runs dataset refreshes. It is satisfied by *cms.Service.
type Syncer interface {
	SyncFacilities(ctx context.Context) (*cms.FacilitySyncResult, error)
	SyncOwners(ctx context.Context) (*cms.OwnerSyncResult, error)
	ImportOwners(ctx context.Context, records []owner.Record, mode owner.Mode) (*cms.ImportResult, error)
}

// UpdateChecker runs the daily freshness gate. It is satisfied by *update.Gate.
type UpdateChecker interface {
	CheckAndRunUpdate(ctx context.Context) (*update.CheckResult, error)
}

// SyncHandler serves the refresh and update-check routes
type SyncHandler struct {
	syncer  Syncer
	checker UpdateChecker
	logger  *zap.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncer Syncer, checker UpdateChecker, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{syncer: syncer, checker: checker, logger: logger}
}

// HandleSyncFacilities refreshes facilities from the datastore
func (h *SyncHandler) HandleSyncFacilities(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.SyncFacilities(r.Context())
	if err != nil {
		writeSyncError(w, h.logger, err, result)
		return
	}
	writeJSON(w, statusForOutcome(result.Outcome), result)
}

// HandleSyncOwners merges the owner snapshot from the datastore
func (h *SyncHandler) HandleSyncOwners(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.SyncOwners(r.Context())
	if err != nil {
		writeSyncError(w, h.logger, err, result)
		return
	}
	writeJSON(w, statusForOutcome(result.Outcome), result)
}

// HandleUpdateCheck refreshes the dataset unless it was already refreshed today
func (h *SyncHandler) HandleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.checker.CheckAndRunUpdate(r.Context())
	if err != nil {
		writeSyncError(w, h.logger, err, result)
		return
	}
	status := http.StatusOK
	if result.Details != nil {
		status = statusForOutcome(result.Details.Outcome)
	}
	writeJSON(w, status, result)
}
