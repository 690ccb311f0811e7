package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Result any    `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusForError maps domain and sync errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, facility.ErrFacilityNotFound), errors.Is(err, owner.ErrOwnerNotFound):
		return http.StatusNotFound
	case errors.Is(err, facility.ErrInvalidSort),
		errors.Is(err, facility.ErrInvalidPage),
		errors.Is(err, owner.ErrInvalidMode),
		errors.Is(err, owner.ErrEmptyBatch),
		errors.Is(err, owner.ErrInvalidCSV):
		return http.StatusBadRequest
	case errors.Is(err, cms.ErrSyncInProgress):
		return http.StatusConflict
	case cms.IsKind(err, cms.KindUpstream):
		return http.StatusBadGateway
	case cms.IsKind(err, cms.KindCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusForOutcome is 207 for partial runs and 200 otherwise.
func statusForOutcome(o cms.Outcome) int {
	if o == cms.OutcomePartial {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}

// writeSyncError reports a failed run together with whatever it counted
// before failing.
func writeSyncError[T any](w http.ResponseWriter, logger *zap.Logger, err error, result *T) {
	status := statusForError(err)
	if status >= 500 {
		logger.Error("sync request failed", zap.Error(err))
	}

	resp := ErrorResponse{Error: err.Error()}
	if result != nil {
		resp.Result = result
	}
	var se *cms.SyncError
	if errors.As(err, &se) {
		resp.Kind = string(se.Kind)
	}
	writeJSON(w, status, resp)
}
