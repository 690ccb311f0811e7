package facility

import "context"

// Repository defines the interface for facility data access
type Repository interface {
	// FindAll returns every stored facility
	FindAll(ctx context.Context) ([]*Facility, error)

	// GetByID retrieves a facility by its ID
	GetByID(ctx context.Context, id string) (*Facility, error)

	// BulkWrite applies inserts and full replacements without ordering.
	// A failed operation does not stop the others; partial failure is
	// reported as *BulkWriteError.
	BulkWrite(ctx context.Context, ops []WriteOp) (BulkResult, error)

	// List returns one page of facilities and the total matching the filter
	List(ctx context.Context, params ListParams) ([]*Facility, int, error)

	// Stats averages the scores of every facility matching the filter
	Stats(ctx context.Context, filter Filter) (Stats, error)

	// BedCounts groups matching facilities by certified bed count
	BedCounts(ctx context.Context, filter Filter) ([]BedCount, error)

	// ListByOwner returns facilities referencing the owner
	ListByOwner(ctx context.Context, ownerID string) ([]*Facility, error)
}
