package http

import (
	"context"

	"nursinghomes/internal/domain/cms"
	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
	"nursinghomes/internal/domain/update"
)

// MockFacilityRepo implements facility.Repository for testing
type MockFacilityRepo struct {
	FindAllFunc     func(ctx context.Context) ([]*facility.Facility, error)
	GetByIDFunc     func(ctx context.Context, id string) (*facility.Facility, error)
	BulkWriteFunc   func(ctx context.Context, ops []facility.WriteOp) (facility.BulkResult, error)
	ListFunc        func(ctx context.Context, params facility.ListParams) ([]*facility.Facility, int, error)
	StatsFunc       func(ctx context.Context, filter facility.Filter) (facility.Stats, error)
	BedCountsFunc   func(ctx context.Context, filter facility.Filter) ([]facility.BedCount, error)
	ListByOwnerFunc func(ctx context.Context, ownerID string) ([]*facility.Facility, error)
}

func (m *MockFacilityRepo) FindAll(ctx context.Context) ([]*facility.Facility, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return nil, nil
}

func (m *MockFacilityRepo) GetByID(ctx context.Context, id string) (*facility.Facility, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, facility.ErrFacilityNotFound
}

func (m *MockFacilityRepo) BulkWrite(ctx context.Context, ops []facility.WriteOp) (facility.BulkResult, error) {
	if m.BulkWriteFunc != nil {
		return m.BulkWriteFunc(ctx, ops)
	}
	return facility.BulkResult{}, nil
}

func (m *MockFacilityRepo) List(ctx context.Context, params facility.ListParams) ([]*facility.Facility, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, params)
	}
	return nil, 0, nil
}

func (m *MockFacilityRepo) Stats(ctx context.Context, filter facility.Filter) (facility.Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, filter)
	}
	return facility.Stats{}, nil
}

func (m *MockFacilityRepo) BedCounts(ctx context.Context, filter facility.Filter) ([]facility.BedCount, error) {
	if m.BedCountsFunc != nil {
		return m.BedCountsFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockFacilityRepo) ListByOwner(ctx context.Context, ownerID string) ([]*facility.Facility, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID)
	}
	return nil, nil
}

// MockOwnerRepo implements owner.Repository for testing
type MockOwnerRepo struct {
	FindByIDsFunc func(ctx context.Context, ids []string) ([]*owner.Owner, error)
	GetByIDFunc   func(ctx context.Context, id string) (*owner.Owner, error)
	SearchFunc    func(ctx context.Context, params owner.SearchParams) ([]*owner.Owner, error)
}

func (m *MockOwnerRepo) FindAll(ctx context.Context) ([]*owner.Owner, error) {
	return nil, nil
}

func (m *MockOwnerRepo) FindByIDs(ctx context.Context, ids []string) ([]*owner.Owner, error) {
	if m.FindByIDsFunc != nil {
		return m.FindByIDsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *MockOwnerRepo) GetByID(ctx context.Context, id string) (*owner.Owner, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, owner.ErrOwnerNotFound
}

func (m *MockOwnerRepo) Search(ctx context.Context, params owner.SearchParams) ([]*owner.Owner, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockOwnerRepo) BulkWrite(ctx context.Context, ops []owner.WriteOp) (owner.BulkResult, error) {
	return owner.BulkResult{}, nil
}

func (m *MockOwnerRepo) DeleteAll(ctx context.Context) (int, error) {
	return 0, nil
}

// MockSyncer implements Syncer for testing
type MockSyncer struct {
	SyncFacilitiesFunc func(ctx context.Context) (*cms.FacilitySyncResult, error)
	SyncOwnersFunc     func(ctx context.Context) (*cms.OwnerSyncResult, error)
	ImportOwnersFunc   func(ctx context.Context, records []owner.Record, mode owner.Mode) (*cms.ImportResult, error)
}

func (m *MockSyncer) SyncFacilities(ctx context.Context) (*cms.FacilitySyncResult, error) {
	if m.SyncFacilitiesFunc != nil {
		return m.SyncFacilitiesFunc(ctx)
	}
	return &cms.FacilitySyncResult{Outcome: cms.OutcomeSuccess}, nil
}

func (m *MockSyncer) SyncOwners(ctx context.Context) (*cms.OwnerSyncResult, error) {
	if m.SyncOwnersFunc != nil {
		return m.SyncOwnersFunc(ctx)
	}
	return &cms.OwnerSyncResult{Outcome: cms.OutcomeSuccess}, nil
}

func (m *MockSyncer) ImportOwners(ctx context.Context, records []owner.Record, mode owner.Mode) (*cms.ImportResult, error) {
	if m.ImportOwnersFunc != nil {
		return m.ImportOwnersFunc(ctx, records, mode)
	}
	return &cms.ImportResult{Outcome: cms.OutcomeSuccess}, nil
}

// MockUpdateChecker implements UpdateChecker for testing
type MockUpdateChecker struct {
	CheckAndRunUpdateFunc func(ctx context.Context) (*update.CheckResult, error)
}

func (m *MockUpdateChecker) CheckAndRunUpdate(ctx context.Context) (*update.CheckResult, error) {
	if m.CheckAndRunUpdateFunc != nil {
		return m.CheckAndRunUpdateFunc(ctx)
	}
	return &update.CheckResult{State: update.StateFresh, Message: "Data is up to date"}, nil
}
