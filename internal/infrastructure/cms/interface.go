package cms

import (
	"context"

	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
)

// ClientInterface defines the methods required from the datastore client
type ClientInterface interface {
	FetchFacilities(ctx context.Context) ([]facility.Attributes, error)
	FetchOwners(ctx context.Context) ([]owner.Record, error)
}
