package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"nursinghomes/internal/domain/owner"
)

var ownerColumns = []string{
	"id", "owner_name", "normalized_name", "ccns", "provider_name", "provider_address",
	"citytown", "state", "zip_code", "role", "owner_type", "ownership_percentage",
	"association_date", "location", "processing_date", "created_at", "updated_at",
}

const ownerSelect = `
	SELECT id, owner_name, normalized_name, ccns, provider_name, provider_address,
	       citytown, state, zip_code, role, owner_type, ownership_percentage,
	       association_date, location, processing_date, created_at, updated_at
	FROM owners
`

type OwnerRepository struct {
	db *DB
}

func NewOwnerRepository(db *DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOwner(row rowScanner) (*owner.Owner, error) {
	var o owner.Owner
	err := row.Scan(
		&o.ID, &o.Name, &o.NormalizedName, pq.Array(&o.CertificationNumbers),
		&o.ProviderName, &o.ProviderAddress, &o.City, &o.State, &o.ZipCode,
		&o.Role, &o.OwnerType, &o.OwnershipPercentage, &o.AssociationDate,
		&o.Location, &o.ProcessingDate, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if o.CertificationNumbers == nil {
		o.CertificationNumbers = []string{}
	}
	return &o, nil
}

func (r *OwnerRepository) queryOwners(ctx context.Context, query string, args ...any) ([]*owner.Owner, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []*owner.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func (r *OwnerRepository) FindAll(ctx context.Context) ([]*owner.Owner, error) {
	owners, err := r.queryOwners(ctx, ownerSelect+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

func (r *OwnerRepository) FindByIDs(ctx context.Context, ids []string) ([]*owner.Owner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	owners, err := r.queryOwners(ctx, ownerSelect+` WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to find owners by ids: %w", err)
	}
	return owners, nil
}

func (r *OwnerRepository) GetByID(ctx context.Context, id string) (*owner.Owner, error) {
	o, err := scanOwner(r.db.QueryRowContext(ctx, ownerSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, owner.ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	return o, nil
}

func (r *OwnerRepository) Search(ctx context.Context, params owner.SearchParams) ([]*owner.Owner, error) {
	query, args := buildOwnerSearchQuery(params)
	owners, err := r.queryOwners(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search owners: %w", err)
	}
	return owners, nil
}

func buildOwnerSearchQuery(params owner.SearchParams) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(ownerColumns...).From("owners")
	var where []string
	if params.Search != "" {
		where = append(where, sb.ILike("owner_name", containsPattern(params.Search)))
	}
	if params.State != "" {
		where = append(where, sb.Equal("state", params.State))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("owner_name ASC", "id ASC")
	return sb.Build()
}

// BulkWrite applies each operation on its own. Failed operations are
// collected and reported together; the rest stay committed. Cancellation
// stops the run and is reported with the counts committed before it.
func (r *OwnerRepository) BulkWrite(ctx context.Context, ops []owner.WriteOp) (owner.BulkResult, error) {
	var res owner.BulkResult
	var failures []owner.OpFailure

	stopErr := runBulk(ctx, "owners", len(ops), func(ctx context.Context, i int) error {
		op := ops[i]
		err := r.apply(ctx, op, &res)
		if err != nil {
			failures = append(failures, owner.OpFailure{Index: i, Kind: op.Kind, OwnerID: op.Owner.ID, Err: err})
		}
		return err
	})

	if stopErr != nil || len(failures) > 0 {
		return res, &owner.BulkWriteError{Result: res, Failures: failures, Err: stopErr}
	}
	return res, nil
}

func (r *OwnerRepository) apply(ctx context.Context, op owner.WriteOp, res *owner.BulkResult) error {
	switch op.Kind {
	case owner.OpInsert:
		if err := r.insert(ctx, &op.Owner); err != nil {
			return err
		}
		res.Inserted++
	case owner.OpUpdate:
		if err := r.update(ctx, &op.Owner); err != nil {
			return err
		}
		res.Modified++
	case owner.OpDelete:
		if err := r.delete(ctx, op.Owner.ID); err != nil {
			return err
		}
		res.Deleted++
	default:
		return fmt.Errorf("unknown operation %d", op.Kind)
	}
	return nil
}

func (r *OwnerRepository) insert(ctx context.Context, o *owner.Owner) error {
	query := `
		INSERT INTO owners (
			id, owner_name, normalized_name, ccns, provider_name, provider_address,
			citytown, state, zip_code, role, owner_type, ownership_percentage,
			association_date, location, processing_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.Name, o.NormalizedName, pq.Array(nonNil(o.CertificationNumbers)),
		o.ProviderName, o.ProviderAddress, o.City, o.State, o.ZipCode,
		o.Role, o.OwnerType, o.OwnershipPercentage, o.AssociationDate,
		o.Location, o.ProcessingDate, o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("owner %s already exists: %w", o.ID, err)
	}
	return err
}

func (r *OwnerRepository) update(ctx context.Context, o *owner.Owner) error {
	query := `
		UPDATE owners
		SET owner_name = $2, normalized_name = $3, ccns = $4, provider_name = $5,
		    provider_address = $6, citytown = $7, state = $8, zip_code = $9, role = $10,
		    owner_type = $11, ownership_percentage = $12, association_date = $13,
		    location = $14, processing_date = $15, updated_at = $16
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		o.ID, o.Name, o.NormalizedName, pq.Array(nonNil(o.CertificationNumbers)),
		o.ProviderName, o.ProviderAddress, o.City, o.State, o.ZipCode,
		o.Role, o.OwnerType, o.OwnershipPercentage, o.AssociationDate,
		o.Location, o.ProcessingDate, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, owner.ErrOwnerNotFound)
}

func (r *OwnerRepository) delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM owners WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, owner.ErrOwnerNotFound)
}

func (r *OwnerRepository) DeleteAll(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM owners`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete owners: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted owners: %w", err)
	}
	return int(n), nil
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
