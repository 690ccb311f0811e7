package cms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
	cmsclient "nursinghomes/internal/infrastructure/cms"
	"nursinghomes/internal/shared/lock"
)

const (
	// SyncLockKey guards every write to the dataset
	SyncLockKey = "dataset-sync"

	DefaultBatchSize = 100
	DefaultLockTTL   = 30 * time.Minute

	maxReportedErrors = 20
)

var (
	syncTracer             = otel.Tracer("nursinghomes/sync")
	syncMeter              = otel.Meter("nursinghomes/sync")
	facilitiesProcessed, _ = syncMeter.Int64Counter("sync.facilities.processed", metric.WithDescription("Facilities rated and written by sync"))
	batchFailures, _       = syncMeter.Int64Counter("sync.facilities.batch_failures", metric.WithDescription("Facility bulk-write batches with failed operations"))
	ownersReconciled, _    = syncMeter.Int64Counter("owners.reconciled", metric.WithDescription("Owner records reconciled by mode"))
	syncDuration, _        = syncMeter.Float64Histogram(SyncDurationMetric, metric.WithDescription("Facility sync run time by outcome"), metric.WithUnit("s"))
)

// SyncDurationMetric is the histogram of facility sync run times.
const SyncDurationMetric = "sync.facilities.duration"

// Config holds sync settings
type Config struct {
	BatchSize int
	LockTTL   time.Duration
}

// Service refreshes owners and facilities from the datastore. Every public
// entry point holds the dataset lock for its whole run.
type Service struct {
	client     cmsclient.ClientInterface
	owners     *owner.Service
	facilities facility.Repository
	locker     lock.Locker
	logger     *zap.Logger
	batchSize  int
	lockTTL    time.Duration
	now        func() time.Time
	newID      func() string
}

// NewService creates a new sync service. A nil locker disables mutual
// exclusion.
func NewService(
	client cmsclient.ClientInterface,
	owners *owner.Service,
	facilities facility.Repository,
	locker lock.Locker,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:     client,
		owners:     owners,
		facilities: facilities,
		locker:     locker,
		logger:     logger,
		batchSize:  cfg.BatchSize,
		lockTTL:    cfg.LockTTL,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SyncFacilities refreshes the facility collection from the datastore.
func (s *Service) SyncFacilities(ctx context.Context) (*FacilitySyncResult, error) {
	var result *FacilitySyncResult
	err := s.withLock(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.syncFacilities(ctx)
		return err
	})
	if result == nil {
		result = &FacilitySyncResult{Outcome: OutcomeFailed}
	}
	return result, err
}

// SyncOwners merges the datastore ownership snapshot into stored owners.
func (s *Service) SyncOwners(ctx context.Context) (*OwnerSyncResult, error) {
	var result *OwnerSyncResult
	err := s.withLock(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.syncOwners(ctx)
		return err
	})
	if result == nil {
		result = &OwnerSyncResult{Outcome: OutcomeFailed}
	}
	return result, err
}

// ImportOwners applies an uploaded owner batch and then refreshes
// facilities so they pick up the new owner links.
func (s *Service) ImportOwners(ctx context.Context, records []owner.Record, mode owner.Mode) (*ImportResult, error) {
	result := &ImportResult{Outcome: OutcomeFailed}
	err := s.withLock(ctx, func(ctx context.Context) error {
		rec, err := s.owners.Reconcile(ctx, records, mode)
		result.Owners = rec
		if err != nil {
			return err
		}
		ownersReconciled.Add(ctx, int64(rec.Processed), metric.WithAttributes(attribute.String("mode", string(mode))))

		fac, err := s.syncFacilities(ctx)
		result.Facilities = fac
		if err != nil {
			return err
		}
		result.Outcome = combine(reconcileOutcome(rec), fac.Outcome)
		return nil
	})
	return result, err
}

// Refresh runs the owner sync followed by the facility sync. The facility
// sync is not attempted when the owner sync fails.
func (s *Service) Refresh(ctx context.Context) (*RefreshResult, error) {
	result := &RefreshResult{Outcome: OutcomeFailed}
	err := s.withLock(ctx, func(ctx context.Context) error {
		own, err := s.syncOwners(ctx)
		result.Owners = own
		if err != nil {
			return err
		}

		fac, err := s.syncFacilities(ctx)
		result.Facilities = fac
		if err != nil {
			return err
		}
		result.Outcome = combine(own.Outcome, fac.Outcome)
		return nil
	})
	return result, err
}

func (s *Service) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	held, err := s.locker.Acquire(ctx, SyncLockKey, s.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrSyncInProgress
	}
	if err != nil {
		return fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil {
			s.logger.Warn("failed to release sync lock", zap.Error(err))
		}
	}()

	return fn(ctx)
}

func (s *Service) syncOwners(ctx context.Context) (*OwnerSyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "sync.owners")
	defer span.End()

	result := &OwnerSyncResult{Outcome: OutcomeFailed}

	records, err := s.client.FetchOwners(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.logger.Error("owner snapshot fetch failed", zap.Error(err))
		return result, &SyncError{Kind: KindUpstream, Message: "failed to fetch owner snapshot", Err: err}
	}
	result.Fetched = len(records)

	stamp := s.now().UTC().Format(time.RFC3339)
	for i := range records {
		if records[i].ProcessingDate == "" {
			records[i].ProcessingDate = stamp
		}
	}

	rec, err := s.owners.Reconcile(ctx, records, owner.ModeMerge)
	result.Reconcile = rec
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return result, &SyncError{Kind: KindStorage, Message: "failed to reconcile owners", Err: err}
	}
	ownersReconciled.Add(ctx, int64(rec.Processed), metric.WithAttributes(attribute.String("mode", string(owner.ModeMerge))))

	result.Outcome = reconcileOutcome(rec)
	span.SetAttributes(
		attribute.Int("owners.fetched", result.Fetched),
		attribute.Int("owners.inserted", rec.Inserted),
		attribute.Int("owners.updated", rec.Updated),
	)
	return result, nil
}

func (s *Service) syncFacilities(ctx context.Context) (*FacilitySyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "sync.facilities")
	defer span.End()

	start := s.now()
	result := &FacilitySyncResult{Outcome: OutcomeFailed}
	fail := func(kind ErrorKind, msg string, err error) (*FacilitySyncResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		s.logger.Error("facility sync failed", zap.String("kind", string(kind)), zap.String("reason", msg), zap.Error(err))
		result.Duration = s.now().Sub(start)
		syncDuration.Record(ctx, result.Duration.Seconds(), metric.WithAttributes(attribute.String("outcome", string(kind))))
		return result, &SyncError{Kind: kind, Message: msg, Err: err}
	}

	raw, err := s.client.FetchFacilities(ctx)
	if err != nil {
		return fail(KindUpstream, "failed to fetch facility snapshot", err)
	}
	result.Fetched = len(raw)

	stored, err := s.facilities.FindAll(ctx)
	if err != nil {
		return fail(KindStorage, "failed to load facilities", err)
	}
	ids := make(map[string]string, len(stored))
	for _, f := range stored {
		ids[f.CertificationNumber] = f.ID
	}

	owners, err := s.owners.IndexByCertificationNumber(ctx)
	if err != nil {
		return fail(KindStorage, "failed to index owners", err)
	}

	s.logger.Info("facility sync started",
		zap.Int("fetched", len(raw)),
		zap.Int("stored", len(stored)),
		zap.Int("batch_size", s.batchSize),
	)

	now := s.now()
	batch := make([]facility.WriteOp, 0, s.batchSize)
	for _, attrs := range raw {
		ccn := attrs.CCN()
		if ccn == "" {
			result.Skipped++
			continue
		}
		attrs.CMSCertificationNumberCCN = ccn

		f := facility.Facility{
			CertificationNumber: ccn,
			Attributes:          attrs,
			OwnerIDs:            owners.OwnersOf(ccn),
			Rating:              facility.Rate(attrs),
			LastUpdated:         now,
		}

		op := facility.WriteOp{Kind: facility.OpUpdate}
		if id, ok := ids[ccn]; ok {
			f.ID = id
			result.Updated++
		} else {
			f.ID = s.newID()
			f.CreatedAt = now
			ids[ccn] = f.ID
			op.Kind = facility.OpInsert
			result.Inserted++
		}
		op.Facility = f
		result.Processed++

		batch = append(batch, op)
		if len(batch) >= s.batchSize {
			if err := s.flush(ctx, batch, result); err != nil {
				return fail(KindCancelled, "facility sync interrupted", err)
			}
			batch = make([]facility.WriteOp, 0, s.batchSize)
		}
	}
	if len(batch) > 0 {
		if err := s.flush(ctx, batch, result); err != nil {
			return fail(KindCancelled, "facility sync interrupted", err)
		}
	}

	switch {
	case result.FailedOps == 0:
		result.Outcome = OutcomeSuccess
	case result.RawInserted+result.RawModified > 0:
		result.Outcome = OutcomePartial
	default:
		result.Outcome = OutcomeFailed
	}
	result.Duration = s.now().Sub(start)
	syncDuration.Record(ctx, result.Duration.Seconds(), metric.WithAttributes(attribute.String("outcome", string(result.Outcome))))

	facilitiesProcessed.Add(ctx, int64(result.Processed), metric.WithAttributes(attribute.String("outcome", string(result.Outcome))))
	span.SetAttributes(
		attribute.Int("facilities.processed", result.Processed),
		attribute.Int("facilities.inserted", result.RawInserted),
		attribute.Int("facilities.modified", result.RawModified),
		attribute.Int("facilities.failed", result.FailedOps),
	)

	s.logger.Info("facility sync complete",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("processed", result.Processed),
		zap.Int("new", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("inserted", result.RawInserted),
		zap.Int("modified", result.RawModified),
		zap.Int("failed", result.FailedOps),
		zap.Duration("duration", result.Duration),
	)

	if result.Outcome == OutcomeFailed {
		return result, &SyncError{Kind: KindStorage, Message: "no facility writes committed", Err: errors.New(result.Errors[0])}
	}
	return result, nil
}

// flush writes one batch. Failed operations are recorded and the run
// continues; only cancellation of ctx stops it, after the operations the
// batch committed so far are counted.
func (s *Service) flush(ctx context.Context, ops []facility.WriteOp, result *FacilitySyncResult) error {
	res, err := s.facilities.BulkWrite(ctx, ops)

	var bulkErr *facility.BulkWriteError
	switch {
	case errors.As(err, &bulkErr):
		res = bulkErr.Result
		if len(bulkErr.Failures) > 0 {
			result.FailedOps += len(bulkErr.Failures)
			result.BatchFailures++
			for _, f := range bulkErr.Failures {
				result.addError(fmt.Sprintf("%s %s: %v", f.Kind, f.CCN, f.Err))
			}
			batchFailures.Add(ctx, 1)
			s.logger.Warn("facility batch partially failed",
				zap.Int("batch", len(ops)),
				zap.Int("failed", len(bulkErr.Failures)),
				zap.Error(err),
			)
		}
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.FailedOps += len(ops)
		result.BatchFailures++
		result.addError(fmt.Sprintf("batch of %d failed: %v", len(ops), err))
		batchFailures.Add(ctx, 1)
		s.logger.Error("facility batch failed", zap.Int("batch", len(ops)), zap.Error(err))
		return nil
	}

	result.RawInserted += res.Inserted
	result.RawModified += res.Modified
	if bulkErr != nil && bulkErr.Err != nil {
		return bulkErr.Err
	}
	return nil
}

func (r *FacilitySyncResult) addError(msg string) {
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, msg)
	}
}
