package facility

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRepository implements Repository
type MockRepository struct {
	FindAllFunc     func(ctx context.Context) ([]*Facility, error)
	GetByIDFunc     func(ctx context.Context, id string) (*Facility, error)
	BulkWriteFunc   func(ctx context.Context, ops []WriteOp) (BulkResult, error)
	ListFunc        func(ctx context.Context, params ListParams) ([]*Facility, int, error)
	StatsFunc       func(ctx context.Context, filter Filter) (Stats, error)
	BedCountsFunc   func(ctx context.Context, filter Filter) ([]BedCount, error)
	ListByOwnerFunc func(ctx context.Context, ownerID string) ([]*Facility, error)
}

func (m *MockRepository) FindAll(ctx context.Context) ([]*Facility, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return nil, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Facility, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrFacilityNotFound
}

func (m *MockRepository) BulkWrite(ctx context.Context, ops []WriteOp) (BulkResult, error) {
	if m.BulkWriteFunc != nil {
		return m.BulkWriteFunc(ctx, ops)
	}
	return BulkResult{}, nil
}

func (m *MockRepository) List(ctx context.Context, params ListParams) ([]*Facility, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, params)
	}
	return nil, 0, nil
}

func (m *MockRepository) Stats(ctx context.Context, filter Filter) (Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, filter)
	}
	return Stats{}, nil
}

func (m *MockRepository) BedCounts(ctx context.Context, filter Filter) ([]BedCount, error) {
	if m.BedCountsFunc != nil {
		return m.BedCountsFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockRepository) ListByOwner(ctx context.Context, ownerID string) ([]*Facility, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID)
	}
	return nil, nil
}

func TestServiceList(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		page       int
		total      int
		wantPage   Pagination
		wantOffset int
	}{
		{
			name:       "first page",
			page:       1,
			total:      250,
			wantPage:   Pagination{CurrentPage: 1, TotalPages: 3, TotalItems: 250, ItemsPerPage: PageSize, HasNextPage: true},
			wantOffset: 0,
		},
		{
			name:       "last page",
			page:       3,
			total:      250,
			wantPage:   Pagination{CurrentPage: 3, TotalPages: 3, TotalItems: 250, ItemsPerPage: PageSize, HasPrevPage: true},
			wantOffset: 200,
		},
		{
			name:       "page below one",
			page:       -4,
			total:      0,
			wantPage:   Pagination{CurrentPage: 1, ItemsPerPage: PageSize},
			wantOffset: 0,
		},
		{
			name:       "highest page",
			page:       MaxPage,
			total:      250,
			wantPage:   Pagination{CurrentPage: MaxPage, TotalPages: 3, TotalItems: 250, ItemsPerPage: PageSize, HasPrevPage: true},
			wantOffset: (MaxPage - 1) * PageSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotParams ListParams
			repo := &MockRepository{
				ListFunc: func(ctx context.Context, params ListParams) ([]*Facility, int, error) {
					gotParams = params
					return []*Facility{{ID: "a"}}, tt.total, nil
				},
				StatsFunc: func(ctx context.Context, filter Filter) (Stats, error) {
					return Stats{AverageBuy: 2.349, AverageSell: 1.05, AverageRefinance: 3.96, TotalHomes: tt.total}, nil
				},
			}

			res, err := NewService(repo).List(ctx, tt.page, Filter{State: " TX "}, SortBuy)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPage, res.Pagination)
			assert.Equal(t, tt.wantOffset, gotParams.Offset)
			assert.Equal(t, PageSize, gotParams.Limit)
			assert.Equal(t, "TX", gotParams.Filter.State)
			assert.Equal(t, SortBuy, gotParams.Sort)
			assert.Equal(t, 2.3, res.Stats.AverageBuy)
			assert.Equal(t, 4.0, res.Stats.AverageRefinance)
			assert.Equal(t, tt.total, res.Stats.TotalHomes)
		})
	}
}

func TestServiceListStoreError(t *testing.T) {
	repo := &MockRepository{
		ListFunc: func(ctx context.Context, params ListParams) ([]*Facility, int, error) {
			return nil, 0, errors.New("connection refused")
		},
	}

	_, err := NewService(repo).List(context.Background(), 1, Filter{}, SortNone)
	assert.ErrorContains(t, err, "connection refused")
}

func TestServiceListPageOutOfRange(t *testing.T) {
	listed := false
	repo := &MockRepository{
		ListFunc: func(ctx context.Context, params ListParams) ([]*Facility, int, error) {
			listed = true
			return nil, 0, nil
		},
	}

	for _, page := range []int{MaxPage + 1, math.MaxInt/PageSize + 2, math.MaxInt} {
		_, err := NewService(repo).List(context.Background(), page, Filter{}, SortNone)
		assert.ErrorIs(t, err, ErrInvalidPage, "page %d", page)
	}
	assert.False(t, listed)
}

func TestServiceGetEmptyID(t *testing.T) {
	_, err := NewService(&MockRepository{}).Get(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrFacilityNotFound)
}

func TestBulkWriteErrorMessage(t *testing.T) {
	err := &BulkWriteError{
		Result:   BulkResult{Inserted: 3, Modified: 1},
		Failures: []OpFailure{{Index: 2, Kind: OpUpdate, CCN: "015009", Err: errors.New("deadlock")}},
	}
	assert.Equal(t, "bulk write: 1 of 5 operations failed (first: update 015009: deadlock)", err.Error())

	stopped := &BulkWriteError{Result: BulkResult{Inserted: 2}, Err: context.Canceled}
	assert.Equal(t, "bulk write stopped after 2 committed and 0 failed operations: context canceled", stopped.Error())
	assert.ErrorIs(t, stopped, context.Canceled)
}

func TestAverageOverallRating(t *testing.T) {
	withRating := func(r string) *Facility {
		return &Facility{Attributes: Attributes{OverallRating: r}}
	}

	tests := []struct {
		name       string
		facilities []*Facility
		want       float64
	}{
		{"none", nil, 0},
		{"all unparseable", []*Facility{withRating(""), withRating("N/A")}, 0},
		{"decimal mean", []*Facility{withRating("4"), withRating("3"), withRating("3")}, 3.3},
		{"skips unparseable", []*Facility{withRating("5"), withRating(""), withRating("2")}, 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AverageOverallRating(tt.facilities))
		})
	}
}
