package owner

import "context"

// Repository defines the interface for owner data access
type Repository interface {
	// FindAll returns every stored owner, oldest first
	FindAll(ctx context.Context) ([]*Owner, error)

	// FindByIDs returns the owners with the given IDs, skipping unknown ones
	FindByIDs(ctx context.Context, ids []string) ([]*Owner, error)

	// GetByID retrieves an owner by its ID
	GetByID(ctx context.Context, id string) (*Owner, error)

	// Search lists owners by name substring and state
	Search(ctx context.Context, params SearchParams) ([]*Owner, error)

	// BulkWrite applies inserts, full replacements and deletes without
	// ordering. Partial failure is reported as *BulkWriteError.
	BulkWrite(ctx context.Context, ops []WriteOp) (BulkResult, error)

	// DeleteAll removes every stored owner and returns how many were removed
	DeleteAll(ctx context.Context) (int, error)
}
