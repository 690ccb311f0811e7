package owner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepository is a stateful in-memory Repository
type memRepository struct {
	owners []*Owner
	failOn map[string]bool
	writes int
}

func (m *memRepository) FindAll(ctx context.Context) ([]*Owner, error) {
	out := make([]*Owner, 0, len(m.owners))
	for _, o := range m.owners {
		c := *o
		c.CertificationNumbers = slices.Clone(o.CertificationNumbers)
		out = append(out, &c)
	}
	return out, nil
}

func (m *memRepository) FindByIDs(ctx context.Context, ids []string) ([]*Owner, error) {
	var out []*Owner
	for _, o := range m.owners {
		if slices.Contains(ids, o.ID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memRepository) GetByID(ctx context.Context, id string) (*Owner, error) {
	for _, o := range m.owners {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, ErrOwnerNotFound
}

func (m *memRepository) Search(ctx context.Context, params SearchParams) ([]*Owner, error) {
	var out []*Owner
	for _, o := range m.owners {
		if strings.Contains(o.NormalizedName, strings.ToLower(params.Search)) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memRepository) BulkWrite(ctx context.Context, ops []WriteOp) (BulkResult, error) {
	m.writes++
	var res BulkResult
	var failures []OpFailure
	for i, op := range ops {
		if m.failOn[op.Owner.ID] || m.failOn[op.Owner.NormalizedName] {
			failures = append(failures, OpFailure{Index: i, Kind: op.Kind, OwnerID: op.Owner.ID, Err: errors.New("write conflict")})
			continue
		}
		o := op.Owner
		switch op.Kind {
		case OpInsert:
			m.owners = append(m.owners, &o)
			res.Inserted++
		case OpUpdate:
			for i, existing := range m.owners {
				if existing.ID == o.ID {
					m.owners[i] = &o
					res.Modified++
				}
			}
		case OpDelete:
			m.owners = slices.DeleteFunc(m.owners, func(e *Owner) bool {
				if e.ID == o.ID {
					res.Deleted++
					return true
				}
				return false
			})
		}
	}
	if len(failures) > 0 {
		return res, &BulkWriteError{Result: res, Failures: failures}
	}
	return res, nil
}

func (m *memRepository) DeleteAll(ctx context.Context) (int, error) {
	n := len(m.owners)
	m.owners = nil
	return n, nil
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, nil)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("owner-%d", n)
	}
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func snapshot(repo *memRepository) map[string][]string {
	out := make(map[string][]string)
	for _, o := range repo.owners {
		ccns := slices.Clone(o.CertificationNumbers)
		sort.Strings(ccns)
		out[o.NormalizedName] = ccns
	}
	return out
}

func TestReconcileMergeInsertsAndGroups(t *testing.T) {
	repo := &memRepository{}
	svc := newTestService(repo)

	res, err := svc.Reconcile(context.Background(), []Record{
		{OwnerName: "Acme Health LLC", CCN: "015009", OwnerType: "Organization"},
		{OwnerName: "  ACME HEALTH LLC ", CCN: "015010", OwnerType: "Individual"},
		{OwnerName: "Acme Health LLC", CCN: "015009"},
		{OwnerName: "Jane Doe", CCN: "015011"},
	}, ModeMerge)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 2, res.Inserted)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Skipped)
	assert.False(t, res.Partial)

	require.Len(t, repo.owners, 2)
	acme := repo.owners[0]
	assert.Equal(t, "Acme Health LLC", acme.Name)
	assert.Equal(t, "acme health llc", acme.NormalizedName)
	assert.Equal(t, []string{"015009", "015010"}, acme.CertificationNumbers)
	assert.Equal(t, "Organization", acme.OwnerType, "first-seen metadata wins")
}

func TestReconcileMergeUnionsExisting(t *testing.T) {
	repo := &memRepository{owners: []*Owner{
		{ID: "a", Name: "Acme Health LLC", NormalizedName: "acme health llc", CertificationNumbers: []string{"015001", "015002"}},
	}}
	svc := newTestService(repo)

	res, err := svc.Reconcile(context.Background(), []Record{
		{OwnerName: "acme health llc", CCN: "015002"},
		{OwnerName: "acme health llc", CCN: "015003"},
	}, ModeMerge)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, res.Inserted)
	require.Len(t, repo.owners, 1)
	assert.Equal(t, "a", repo.owners[0].ID)
	assert.Equal(t, []string{"015001", "015002", "015003"}, repo.owners[0].CertificationNumbers)
}

func TestReconcileMergeResolvesStoredDuplicates(t *testing.T) {
	repo := &memRepository{owners: []*Owner{
		{ID: "a", Name: "Acme", NormalizedName: "acme", CertificationNumbers: []string{"1"}},
		{ID: "b", Name: "ACME", NormalizedName: "acme", CertificationNumbers: []string{"2"}},
		{ID: "c", Name: "Other", NormalizedName: "other", CertificationNumbers: []string{"3"}},
		{ID: "d", Name: "other ", NormalizedName: "other", CertificationNumbers: []string{"4", "3"}},
	}}
	svc := newTestService(repo)

	res, err := svc.Reconcile(context.Background(), []Record{
		{OwnerName: "Acme", CCN: "5"},
	}, ModeMerge)
	require.NoError(t, err)

	assert.Equal(t, 2, res.DuplicatesResolved)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, map[string][]string{
		"acme":  {"1", "2", "5"},
		"other": {"3", "4"},
	}, snapshot(repo))

	ids := []string{repo.owners[0].ID, repo.owners[1].ID}
	assert.ElementsMatch(t, []string{"a", "c"}, ids, "oldest owner survives")
}

func TestReconcileMergeIdempotent(t *testing.T) {
	repo := &memRepository{owners: []*Owner{
		{ID: "a", Name: "Acme", NormalizedName: "acme", CertificationNumbers: []string{"1"}},
		{ID: "b", Name: "acme", NormalizedName: "acme", CertificationNumbers: []string{"9"}},
	}}
	svc := newTestService(repo)
	batch := []Record{
		{OwnerName: "Acme", CCN: "1"},
		{OwnerName: "Acme", CCN: "2"},
		{OwnerName: "Beta Care", CCN: "3"},
		{OwnerName: "", CCN: "4"},
	}

	_, err := svc.Reconcile(context.Background(), batch, ModeMerge)
	require.NoError(t, err)
	first := snapshot(repo)
	writes := repo.writes

	res, err := svc.Reconcile(context.Background(), batch, ModeMerge)
	require.NoError(t, err)

	assert.Equal(t, first, snapshot(repo))
	assert.Equal(t, writes, repo.writes, "second run issues no writes")
	assert.Zero(t, res.Inserted)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 1, res.Skipped)
}

func TestReconcileMergeNeverShrinks(t *testing.T) {
	repo := &memRepository{}
	svc := newTestService(repo)
	batches := [][]Record{
		{{OwnerName: "A", CCN: "1"}, {OwnerName: "B", CCN: "2"}},
		{{OwnerName: "a", CCN: "3"}},
		{{OwnerName: "B", CCN: "2"}, {OwnerName: "C", CCN: "1"}},
		{{OwnerName: "A ", CCN: "1"}},
	}

	before := map[string][]string{}
	for _, batch := range batches {
		_, err := svc.Reconcile(context.Background(), batch, ModeMerge)
		require.NoError(t, err)

		after := snapshot(repo)
		for name, ccns := range before {
			for _, c := range ccns {
				assert.Contains(t, after[name], c, "owner %q lost %s", name, c)
			}
		}
		before = after
	}
	assert.Equal(t, []string{"1", "3"}, before["a"])
}

func TestReconcileMergePartialFailure(t *testing.T) {
	repo := &memRepository{failOn: map[string]bool{"broken": true}}
	svc := newTestService(repo)

	res, err := svc.Reconcile(context.Background(), []Record{
		{OwnerName: "Fine", CCN: "1"},
		{OwnerName: "Broken", CCN: "2"},
		{OwnerName: "Also Fine", CCN: "3"},
	}, ModeMerge)
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "write conflict")
	assert.Len(t, repo.owners, 2)
}

// stoppingRepository commits the first ops of a write and then reports the
// write as cancelled.
type stoppingRepository struct {
	*memRepository
	after int
}

func (s *stoppingRepository) BulkWrite(ctx context.Context, ops []WriteOp) (BulkResult, error) {
	res, _ := s.memRepository.BulkWrite(ctx, ops[:min(s.after, len(ops))])
	return res, &BulkWriteError{Result: res, Err: context.Canceled}
}

func TestReconcileKeepsCountsWhenWriteStops(t *testing.T) {
	repo := &stoppingRepository{memRepository: &memRepository{}, after: 1}
	svc := newTestService(repo)

	res, err := svc.Reconcile(context.Background(), []Record{
		{OwnerName: "First", CCN: "1"},
		{OwnerName: "Second", CCN: "2"},
	}, ModeMerge)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Equal(t, 1, res.Inserted)
	assert.Empty(t, res.Errors)
}

func TestBulkWriteErrorMessages(t *testing.T) {
	stopped := &BulkWriteError{Result: BulkResult{Inserted: 2, Deleted: 1}, Err: context.DeadlineExceeded}
	assert.Equal(t, "bulk write stopped after 3 committed and 0 failed operations: context deadline exceeded", stopped.Error())
	assert.ErrorIs(t, stopped, context.DeadlineExceeded)

	failed := &BulkWriteError{Failures: []OpFailure{{Kind: OpUpdate, OwnerID: "owner-1", Err: errors.New("deadlock")}}}
	assert.Equal(t, "bulk write: 1 operations failed (first: update owner-1: deadlock)", failed.Error())
	assert.NoError(t, errors.Unwrap(failed))
}

func TestReconcileReplace(t *testing.T) {
	repo := &memRepository{owners: []*Owner{
		{ID: "old", Name: "Old", NormalizedName: "old", CertificationNumbers: []string{"1", "2"}},
	}}
	svc := newTestService(repo)

	res, err := svc.Reconcile(context.Background(), []Record{
		{OwnerName: "Acme", CCN: "10"},
		{OwnerName: "Acme", CCN: "11"},
		{OwnerName: "Beta", CCN: ""},
	}, ModeReplace)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Skipped)

	require.Len(t, repo.owners, 2, "one owner per row, no merging")
	assert.Equal(t, []string{"10"}, repo.owners[0].CertificationNumbers)
	assert.Equal(t, []string{"11"}, repo.owners[1].CertificationNumbers)
}

func TestReconcileReplaceEmptyBatchKeepsOwners(t *testing.T) {
	repo := &memRepository{owners: []*Owner{{ID: "old", Name: "Old", NormalizedName: "old"}}}
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), []Record{{OwnerName: "No CCN"}}, ModeReplace)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Len(t, repo.owners, 1)
}

func TestReconcileInvalidMode(t *testing.T) {
	_, err := newTestService(&memRepository{}).Reconcile(context.Background(), nil, Mode("upsert"))
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeReplace, false},
		{"merge", ModeMerge, false},
		{" Replace ", ModeReplace, false},
		{"append", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in, ModeReplace)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindByIDsKeepsOrder(t *testing.T) {
	repo := &memRepository{owners: []*Owner{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	got, err := newTestService(repo).FindByIDs(context.Background(), []string{"c", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}
