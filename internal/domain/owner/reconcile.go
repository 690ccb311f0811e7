package owner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcileResult contains the results of applying an owner batch
type ReconcileResult struct {
	Mode               Mode     `json:"mode"`
	Processed          int      `json:"processed"`
	Inserted           int      `json:"inserted"`
	Updated            int      `json:"updated"`
	DuplicatesResolved int      `json:"duplicatesResolved"`
	Skipped            int      `json:"skipped"`
	Removed            int      `json:"removed,omitempty"`
	Partial            bool     `json:"partial"`
	Errors             []string `json:"errors,omitempty"`
}

// MergePlan is the set of operations that folds a batch into the stored
// owners. Processed and Skipped count batch records.
type MergePlan struct {
	Ops        []WriteOp
	Processed  int
	Skipped    int
	Duplicates int
}

// Service reconciles owner batches against the stored collection
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a new owner service
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Reconcile applies records to the stored owners.
//
// In merge mode every normalized name ends up with exactly one stored owner
// whose certification numbers are the union of what was stored and what the
// batch carries. In replace mode the stored owners are cleared and one owner
// is inserted per valid record. Records without a name or certification
// number are skipped in both modes.
//
// Partial bulk-write failure is not an error: it is reported through
// Partial and Errors with the committed counts.
func (s *Service) Reconcile(ctx context.Context, records []Record, mode Mode) (*ReconcileResult, error) {
	switch mode {
	case ModeMerge:
		return s.merge(ctx, records)
	case ModeReplace:
		return s.replace(ctx, records)
	default:
		return &ReconcileResult{Mode: mode}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func (s *Service) merge(ctx context.Context, records []Record) (*ReconcileResult, error) {
	result := &ReconcileResult{Mode: ModeMerge}

	existing, err := s.repo.FindAll(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load owners: %w", err)
	}

	plan := PlanMerge(existing, records, s.now(), s.newID)
	result.Processed = plan.Processed
	result.Skipped = plan.Skipped

	if plan.Skipped > 0 {
		s.logger.Warn("skipped owner records missing name or ccn", zap.Int("skipped", plan.Skipped))
	}

	if len(plan.Ops) == 0 {
		s.logger.Info("owners already up to date", zap.Int("processed", plan.Processed))
		return result, nil
	}

	res, err := s.repo.BulkWrite(ctx, plan.Ops)
	if err := s.collect(result, res, err); err != nil {
		return result, err
	}

	s.logger.Info("owners merged",
		zap.Int("processed", result.Processed),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("duplicates_resolved", result.DuplicatesResolved),
		zap.Int("skipped", result.Skipped),
		zap.Bool("partial", result.Partial),
	)
	return result, nil
}

func (s *Service) replace(ctx context.Context, records []Record) (*ReconcileResult, error) {
	result := &ReconcileResult{Mode: ModeReplace}
	now := s.now()

	ops := make([]WriteOp, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			result.Skipped++
			continue
		}
		o := Owner{
			ID:                   s.newID(),
			CertificationNumbers: []string{strings.TrimSpace(r.CCN)},
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		o.applyRecord(r)
		ops = append(ops, WriteOp{Kind: OpInsert, Owner: o})
	}
	result.Processed = len(ops)

	if len(ops) == 0 {
		return result, ErrEmptyBatch
	}

	removed, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to clear owners: %w", err)
	}
	result.Removed = removed

	res, err := s.repo.BulkWrite(ctx, ops)
	if err := s.collect(result, res, err); err != nil {
		return result, err
	}

	s.logger.Info("owners replaced",
		zap.Int("removed", result.Removed),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
		zap.Bool("partial", result.Partial),
	)
	return result, nil
}

// collect folds a bulk write outcome into result. Partial failure is
// recorded and swallowed; a write that stopped early keeps its committed
// counts in result and returns the reason it stopped.
func (s *Service) collect(result *ReconcileResult, res BulkResult, err error) error {
	var bulkErr *BulkWriteError
	if errors.As(err, &bulkErr) {
		res = bulkErr.Result
		result.Partial = true
		for _, f := range bulkErr.Failures {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", f.Kind, f.OwnerID, f.Err))
		}
		s.logger.Error("owner bulk write partially failed",
			zap.Int("failed", len(bulkErr.Failures)),
			zap.Bool("interrupted", bulkErr.Err != nil),
			zap.Error(err),
		)
	} else if err != nil {
		return fmt.Errorf("failed to write owners: %w", err)
	}

	result.Inserted = res.Inserted
	result.Updated = res.Modified
	result.DuplicatesResolved = res.Deleted
	if bulkErr != nil && bulkErr.Err != nil {
		return fmt.Errorf("owner write interrupted: %w", err)
	}
	return nil
}

// Search lists owners by name and state
func (s *Service) Search(ctx context.Context, params SearchParams) ([]*Owner, error) {
	params.Search = strings.TrimSpace(params.Search)
	params.State = strings.TrimSpace(params.State)
	return s.repo.Search(ctx, params)
}

// Get retrieves a single owner
func (s *Service) Get(ctx context.Context, id string) (*Owner, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrOwnerNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// FindByIDs returns owners in the order of ids
func (s *Service) FindByIDs(ctx context.Context, ids []string) ([]*Owner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	owners, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Owner, len(owners))
	for _, o := range owners {
		byID[o.ID] = o
	}
	ordered := make([]*Owner, 0, len(owners))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			ordered = append(ordered, o)
		}
	}
	return ordered, nil
}

type batchGroup struct {
	first Record
	ccns  []string
}

// PlanMerge computes the operations that fold records into existing.
//
// Stored owners sharing a normalized name are collapsed onto the first one
// in existing: it absorbs their certification numbers and the rest are
// deleted. A batch group updates that survivor with its first-seen record
// and the union of numbers, or becomes an insert when the name is new.
// Survivors whose stored state would not change produce no operation.
func PlanMerge(existing []*Owner, records []Record, now time.Time, newID func() string) MergePlan {
	var plan MergePlan

	groups := make(map[string]*batchGroup)
	var order []string
	for _, r := range records {
		if !r.Valid() {
			plan.Skipped++
			continue
		}
		plan.Processed++

		key := NormalizeName(r.OwnerName)
		g, ok := groups[key]
		if !ok {
			g = &batchGroup{first: r}
			groups[key] = g
			order = append(order, key)
		}
		g.ccns = appendUnique(g.ccns, strings.TrimSpace(r.CCN))
	}

	stored := make(map[string][]*Owner)
	var storedOrder []string
	for _, o := range existing {
		key := o.NormalizedName
		if key == "" {
			key = NormalizeName(o.Name)
		}
		if _, ok := stored[key]; !ok {
			storedOrder = append(storedOrder, key)
		}
		stored[key] = append(stored[key], o)
	}

	for _, key := range order {
		g := groups[key]
		owners := stored[key]

		if len(owners) == 0 {
			o := Owner{
				ID:                   newID(),
				CertificationNumbers: g.ccns,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			o.applyRecord(g.first)
			plan.Ops = append(plan.Ops, WriteOp{Kind: OpInsert, Owner: o})
			continue
		}

		merged := *owners[0]
		merged.CertificationNumbers = unionNumbers(owners, g.ccns)
		merged.applyRecord(g.first)
		plan.collapse(owners, merged, now)
		delete(stored, key)
	}

	for _, key := range storedOrder {
		owners, ok := stored[key]
		if !ok || len(owners) < 2 {
			continue
		}
		merged := *owners[0]
		merged.NormalizedName = key
		merged.CertificationNumbers = unionNumbers(owners, nil)
		plan.collapse(owners, merged, now)
	}

	return plan
}

// collapse emits an update for the survivor when it changed and a delete
// for every other owner in the group.
func (p *MergePlan) collapse(owners []*Owner, merged Owner, now time.Time) {
	if !sameOwner(owners[0], &merged) {
		merged.UpdatedAt = now
		p.Ops = append(p.Ops, WriteOp{Kind: OpUpdate, Owner: merged})
	}
	for _, dup := range owners[1:] {
		p.Ops = append(p.Ops, WriteOp{Kind: OpDelete, Owner: Owner{ID: dup.ID}})
		p.Duplicates++
	}
}

func unionNumbers(owners []*Owner, extra []string) []string {
	var out []string
	for _, o := range owners {
		for _, c := range o.CertificationNumbers {
			out = appendUnique(out, c)
		}
	}
	for _, c := range extra {
		out = appendUnique(out, c)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

func sameOwner(a, b *Owner) bool {
	return a.Name == b.Name &&
		a.NormalizedName == b.NormalizedName &&
		slices.Equal(a.CertificationNumbers, b.CertificationNumbers) &&
		a.ProviderName == b.ProviderName &&
		a.ProviderAddress == b.ProviderAddress &&
		a.City == b.City &&
		a.State == b.State &&
		a.ZipCode == b.ZipCode &&
		a.Role == b.Role &&
		a.OwnerType == b.OwnerType &&
		a.OwnershipPercentage == b.OwnershipPercentage &&
		a.AssociationDate == b.AssociationDate &&
		a.Location == b.Location &&
		a.ProcessingDate == b.ProcessingDate
}
