package update

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/shared/lock"
)

// GateLockKey serialises check-run-stamp sequences across instances.
const GateLockKey = "dataset-update"

var (
	gateMeter   = otel.Meter("nursinghomes/update")
	gateRuns, _ = gateMeter.Int64Counter("update.gate.runs", metric.WithDescription("Update gate checks by decision"))
)

// Gate runs at most one successful refresh per UTC calendar day.
type Gate struct {
	tracker   TrackerRepository
	refresher Refresher
	locker    lock.Locker
	notifier  Notifier
	logger    *zap.Logger
	lockTTL   time.Duration
	now       func() time.Time
}

// NewGate creates a new update gate. locker and notifier may be nil.
func NewGate(tracker TrackerRepository, refresher Refresher, locker lock.Locker, notifier Notifier, logger *zap.Logger, lockTTL time.Duration) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = cms.DefaultLockTTL
	}
	return &Gate{
		tracker:   tracker,
		refresher: refresher,
		locker:    locker,
		notifier:  notifier,
		logger:    logger,
		lockTTL:   lockTTL,
		now:       time.Now,
	}
}

// IsFresh reports whether lastUpdate falls on the same UTC calendar day
// as now.
func IsFresh(t *Tracker, now time.Time) bool {
	if t == nil || t.LastUpdate.IsZero() {
		return false
	}
	ly, lm, ld := t.LastUpdate.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return ly == ny && lm == nm && ld == nd
}

// State reports the current freshness and the stored tracker.
func (g *Gate) State(ctx context.Context) (State, *Tracker, error) {
	t, err := g.tracker.Get(ctx)
	if err != nil {
		return StateStale, nil, fmt.Errorf("failed to read update tracker: %w", err)
	}
	if IsFresh(t, g.now()) {
		return StateFresh, t, nil
	}
	return StateStale, t, nil
}

// CheckAndRunUpdate refreshes the dataset unless it was already refreshed
// today. The tracker is stamped only when the refresh returns without a
// fatal error; a partial refresh still counts as done for the day.
func (g *Gate) CheckAndRunUpdate(ctx context.Context) (*CheckResult, error) {
	if g.locker != nil {
		held, err := g.locker.Acquire(ctx, GateLockKey, g.lockTTL)
		if errors.Is(err, lock.ErrNotAcquired) {
			g.record(ctx, "busy")
			return &CheckResult{State: StateStale, Message: "Update already in progress"}, cms.ErrSyncInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("failed to acquire update lock: %w", err)
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := held.Release(releaseCtx); err != nil {
				g.logger.Warn("failed to release update lock", zap.Error(err))
			}
		}()
	}

	state, t, err := g.State(ctx)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{State: state}
	if t != nil && !t.LastUpdate.IsZero() {
		last := t.LastUpdate
		result.LastUpdate = &last
	}

	if state == StateFresh {
		g.record(ctx, "skipped")
		result.Message = "Data is up to date"
		return result, nil
	}

	g.logger.Info("dataset stale, refreshing")
	details, err := g.refresher.Refresh(ctx)
	result.Details = details
	if err != nil {
		g.record(ctx, "failed")
		g.logger.Error("dataset refresh failed", zap.Error(err))
		result.Message = "Error performing updates"
		return result, err
	}

	stamp := g.now()
	if err := g.tracker.Set(ctx, stamp); err != nil {
		g.record(ctx, "failed")
		result.Message = "Error recording update time"
		return result, fmt.Errorf("failed to stamp update tracker: %w", err)
	}

	result.Ran = true
	result.State = StateFresh
	result.LastUpdate = &stamp
	result.Message = "Data updated successfully"
	g.record(ctx, "ran")

	g.logger.Info("dataset refreshed", zap.String("outcome", string(details.Outcome)))

	if g.notifier != nil {
		if err := g.notifier.NotifyRefresh(ctx, details); err != nil {
			g.logger.Warn("failed to send refresh notification", zap.Error(err))
		}
	}

	return result, nil
}

func (g *Gate) record(ctx context.Context, decision string) {
	gateRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}
