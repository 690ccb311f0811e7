// Package update decides once per calendar day whether the dataset needs
// a refresh and runs it.
package update

import (
	"context"
	"time"

	"nursinghomes/internal/domain/cms"
)

// State is the freshness of the dataset.
type State string

const (
	StateStale State = "STALE"
	StateFresh State = "FRESH"
)

// Tracker is the persisted record of the last successful refresh.
type Tracker struct {
	LastUpdate time.Time
	UpdatedAt  time.Time
}

// TrackerRepository defines the interface for the last-update record
type TrackerRepository interface {
	// Get returns the tracker, or nil when none has been written yet
	Get(ctx context.Context) (*Tracker, error)

	// Set stamps the last update time, creating the record if needed
	Set(ctx context.Context, lastUpdate time.Time) error
}

// Refresher runs a full dataset refresh.
type Refresher interface {
	Refresh(ctx context.Context) (*cms.RefreshResult, error)
}

// Notifier announces a completed refresh.
type Notifier interface {
	NotifyRefresh(ctx context.Context, result *cms.RefreshResult) error
}

// CheckResult is returned by CheckAndRunUpdate.
type CheckResult struct {
	Ran        bool               `json:"ran"`
	State      State              `json:"state"`
	LastUpdate *time.Time         `json:"lastUpdate,omitempty"`
	Details    *cms.RefreshResult `json:"details,omitempty"`
	Message    string             `json:"message"`
}
