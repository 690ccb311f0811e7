// Package scheduler fires the daily update check at configured times of day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/domain/update"
)

// ScheduleTime represents a specific time of day when the scheduler should run.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// UpdateChecker runs the freshness gate. It is satisfied by *update.Gate.
type UpdateChecker interface {
	CheckAndRunUpdate(ctx context.Context) (*update.CheckResult, error)
}

// Config holds configuration for the scheduler.
type Config struct {
	ScheduleTimes []string
	RunOnStartup  bool
	// RunTimeout bounds a single update check. Zero means 30 minutes.
	RunTimeout time.Duration
}

// Scheduler calls the update gate at specific times of day. The gate
// decides whether a refresh is due; the scheduler only triggers it.
type Scheduler struct {
	checker       UpdateChecker
	scheduleTimes []ScheduleTime
	runOnStartup  bool
	runTimeout    time.Duration
	logger        *zap.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     atomic.Bool
	lastRunDate string
	mu          sync.Mutex
}

// New creates a new scheduler with the given configuration.
func New(checker UpdateChecker, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(cfg.ScheduleTimes))
	for _, timeStr := range cfg.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}

	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger.Info("scheduler initialized", zap.Strings("schedule_times", cfg.ScheduleTimes))

	return &Scheduler{
		checker:       checker,
		scheduleTimes: scheduleTimes,
		runOnStartup:  cfg.RunOnStartup,
		runTimeout:    cfg.RunTimeout,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() {
	if s.runOnStartup {
		s.logger.Info("running update check on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	s.logger.Info("scheduler started", zap.Time("next_run", s.NextRun(time.Now())))
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case now := <-ticker.C:
			if s.shouldRun(now) {
				s.logger.Info("scheduled update check triggered", zap.String("at", now.Format("15:04")))
				s.run()
			}
		}
	}
}

// shouldRun checks if the current time matches any scheduled time. Each
// scheduled minute fires at most once.
func (s *Scheduler) shouldRun(now time.Time) bool {
	currentHour := now.Hour()
	currentMinute := now.Minute()
	currentKey := fmt.Sprintf("%s-%02d:%02d", now.Format("2006-01-02"), currentHour, currentMinute)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRunDate == currentKey {
		return false
	}

	for _, st := range s.scheduleTimes {
		if currentHour == st.Hour && currentMinute == st.Minute {
			s.lastRunDate = currentKey
			return true
		}
	}

	return false
}

// run calls the gate once. Overlapping triggers are dropped.
func (s *Scheduler) run() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("update check already running, trigger dropped")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
	defer cancel()

	result, err := s.checker.CheckAndRunUpdate(ctx)
	switch {
	case errors.Is(err, cms.ErrSyncInProgress):
		s.logger.Info("update check skipped, sync in progress")
	case err != nil:
		s.logger.Error("scheduled update check failed", zap.Error(err))
	default:
		s.logger.Info("scheduled update check finished",
			zap.Bool("ran", result.Ran),
			zap.String("state", string(result.State)),
			zap.String("message", result.Message),
		)
	}
}

// Shutdown stops the scheduling loop and waits for a running check to end.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-time.After(timeout):
		s.logger.Warn("timeout waiting for scheduler to stop")
	}
}

// TriggerNow runs an update check immediately in the background. It is a
// no-op once Shutdown has been called.
func (s *Scheduler) TriggerNow() {
	if s.ctx.Err() != nil {
		return
	}
	s.logger.Info("update check triggered manually")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

// NextRun returns the next scheduled time after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	var next time.Time
	for _, st := range s.scheduleTimes {
		t := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next
}
