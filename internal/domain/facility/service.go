package facility

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// PageSize is the number of facilities per listing page.
const PageSize = 100

// MaxPage is the highest page List accepts; its offset still fits a
// Postgres integer.
const MaxPage = math.MaxInt32 / PageSize

// Pagination describes the position of a listing page.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// ListResult is one page of the facility table.
type ListResult struct {
	Facilities []*Facility
	Pagination Pagination
	Stats      Stats
}

// Service serves read queries over stored facilities
type Service struct {
	repo Repository
}

// NewService creates a new facility service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the requested page together with aggregate scores over the
// whole filtered set. Pages are 1-based; anything lower is treated as 1
// and anything above MaxPage is rejected with ErrInvalidPage.
func (s *Service) List(ctx context.Context, page int, filter Filter, sort SortKey) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidPage, page, MaxPage)
	}
	filter = normalizeFilter(filter)

	facilities, total, err := s.repo.List(ctx, ListParams{
		Filter: filter,
		Sort:   sort,
		Limit:  PageSize,
		Offset: (page - 1) * PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}

	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compute facility stats: %w", err)
	}
	stats.AverageBuy = round1(stats.AverageBuy)
	stats.AverageSell = round1(stats.AverageSell)
	stats.AverageRefinance = round1(stats.AverageRefinance)

	totalPages := (total + PageSize - 1) / PageSize

	return &ListResult{
		Facilities: facilities,
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages,
			TotalItems:   total,
			ItemsPerPage: PageSize,
			HasNextPage:  page < totalPages,
			HasPrevPage:  page > 1,
		},
		Stats: stats,
	}, nil
}

// Get retrieves a single facility
func (s *Service) Get(ctx context.Context, id string) (*Facility, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrFacilityNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// BedCounts returns bed-count facets for the filter
func (s *Service) BedCounts(ctx context.Context, filter Filter) ([]BedCount, error) {
	counts, err := s.repo.BedCounts(ctx, normalizeFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to count beds: %w", err)
	}
	return counts, nil
}

// ListByOwner returns the facilities of one owner
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*Facility, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func normalizeFilter(f Filter) Filter {
	return Filter{
		Search:  strings.TrimSpace(f.Search),
		State:   strings.TrimSpace(f.State),
		OwnerID: strings.TrimSpace(f.OwnerID),
		Beds:    strings.TrimSpace(f.Beds),
	}
}

// AverageOverallRating is the mean overall rating of the facilities whose
// rating parses as a number, rounded to one decimal. It is 0 when none do.
func AverageOverallRating(facilities []*Facility) float64 {
	var sum float64
	var n int
	for _, f := range facilities {
		if v, ok := ParseRating(f.Attributes.OverallRating); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}
