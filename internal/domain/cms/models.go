// Package cms provides domain services that refresh owners and facilities
// from the government datastore.
package cms

import (
	"errors"
	"fmt"
	"time"

	"nursinghomes/internal/domain/owner"
)

// ErrSyncInProgress is returned when another refresh holds the dataset lock.
var ErrSyncInProgress = errors.New("dataset sync already in progress")

// Outcome summarises how a run ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// ErrorKind classifies fatal sync errors.
type ErrorKind string

const (
	KindUpstream  ErrorKind = "upstream"
	KindStorage   ErrorKind = "storage"
	KindCancelled ErrorKind = "cancelled"
)

// SyncError is a fatal error of one run. Counts gathered before the
// failure stay on the accompanying result.
type SyncError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a SyncError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Kind == k
}

// FacilitySyncResult contains the results of a facility refresh.
// Inserted and Updated count planned operations; RawInserted and
// RawModified count what the store committed.
type FacilitySyncResult struct {
	Outcome       Outcome       `json:"outcome"`
	Fetched       int           `json:"fetched"`
	Processed     int           `json:"totalProcessed"`
	Inserted      int           `json:"newRecords"`
	Updated       int           `json:"updatedRecords"`
	Skipped       int           `json:"skipped"`
	RawInserted   int           `json:"inserted"`
	RawModified   int           `json:"modified"`
	FailedOps     int           `json:"failedOperations"`
	BatchFailures int           `json:"batchFailures"`
	Errors        []string      `json:"errors,omitempty"`
	Duration      time.Duration `json:"-"`
}

// OwnerSyncResult contains the results of an owner refresh from the API.
type OwnerSyncResult struct {
	Outcome   Outcome                `json:"outcome"`
	Fetched   int                    `json:"fetched"`
	Reconcile *owner.ReconcileResult `json:"result,omitempty"`
}

// ImportResult is returned by an owner upload: the reconciliation and the
// facility refresh that followed it.
type ImportResult struct {
	Outcome    Outcome                `json:"outcome"`
	Owners     *owner.ReconcileResult `json:"owners"`
	Facilities *FacilitySyncResult    `json:"facilities,omitempty"`
}

// RefreshResult is a full dataset refresh: owners first, then facilities.
type RefreshResult struct {
	Outcome    Outcome             `json:"outcome"`
	Owners     *OwnerSyncResult    `json:"owners,omitempty"`
	Facilities *FacilitySyncResult `json:"facilities,omitempty"`
}

func combine(outcomes ...Outcome) Outcome {
	out := OutcomeSuccess
	for _, o := range outcomes {
		switch o {
		case OutcomeFailed:
			return OutcomeFailed
		case OutcomePartial:
			out = OutcomePartial
		}
	}
	return out
}

func reconcileOutcome(r *owner.ReconcileResult) Outcome {
	if r != nil && r.Partial {
		return OutcomePartial
	}
	return OutcomeSuccess
}
