package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"nursinghomes/internal/domain/facility"
)

var facilityColumns = []string{
	"id", "ccn", "attributes", "owner_ids", "buy", "sell", "refinance",
	"rating_metrics", "last_updated", "created_at",
}

type FacilityRepository struct {
	db *DB
}

func NewFacilityRepository(db *DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

func scanFacility(row rowScanner) (*facility.Facility, error) {
	var f facility.Facility
	var attrs, metrics []byte
	err := row.Scan(
		&f.ID, &f.CertificationNumber, &attrs, pq.Array(&f.OwnerIDs),
		&f.Rating.Buy, &f.Rating.Sell, &f.Rating.Refinance, &metrics,
		&f.LastUpdated, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attrs, &f.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes of %s: %w", f.CertificationNumber, err)
	}
	if err := json.Unmarshal(metrics, &f.Rating.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode rating metrics of %s: %w", f.CertificationNumber, err)
	}
	if f.OwnerIDs == nil {
		f.OwnerIDs = []string{}
	}
	return &f, nil
}

func (r *FacilityRepository) queryFacilities(ctx context.Context, query string, args ...any) ([]*facility.Facility, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facilities []*facility.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

func (r *FacilityRepository) FindAll(ctx context.Context) ([]*facility.Facility, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(facilityColumns...).From("facilities").OrderBy("ccn")
	query, args := sb.Build()

	facilities, err := r.queryFacilities(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	return facilities, nil
}

func (r *FacilityRepository) GetByID(ctx context.Context, id string) (*facility.Facility, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(facilityColumns...).From("facilities").Where(sb.Equal("id", id))
	query, args := sb.Build()

	f, err := scanFacility(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, facility.ErrFacilityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}
	return f, nil
}

func (r *FacilityRepository) ListByOwner(ctx context.Context, ownerID string) ([]*facility.Facility, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(facilityColumns...).From("facilities").
		Where(sb.Var(ownerID)+" = ANY(owner_ids)").
		OrderBy("provider_name", "ccn")
	query, args := sb.Build()

	facilities, err := r.queryFacilities(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities of owner: %w", err)
	}
	return facilities, nil
}

func (r *FacilityRepository) List(ctx context.Context, params facility.ListParams) ([]*facility.Facility, int, error) {
	query, args := buildListQuery(params)
	facilities, err := r.queryFacilities(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list facilities: %w", err)
	}

	countQuery, countArgs := buildCountQuery(params.Filter)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count facilities: %w", err)
	}

	return facilities, total, nil
}

func (r *FacilityRepository) Stats(ctx context.Context, filter facility.Filter) (facility.Stats, error) {
	query, args := buildStatsQuery(filter)
	var s facility.Stats
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.AverageBuy, &s.AverageSell, &s.AverageRefinance, &s.TotalHomes,
	)
	if err != nil {
		return facility.Stats{}, fmt.Errorf("failed to compute facility stats: %w", err)
	}
	return s, nil
}

func (r *FacilityRepository) BedCounts(ctx context.Context, filter facility.Filter) ([]facility.BedCount, error) {
	query, args := buildBedCountsQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count beds: %w", err)
	}
	defer rows.Close()

	counts := []facility.BedCount{}
	for rows.Next() {
		var bc facility.BedCount
		if err := rows.Scan(&bc.Beds, &bc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan bed count: %w", err)
		}
		counts = append(counts, bc)
	}
	return counts, rows.Err()
}

// BulkWrite applies each operation on its own. Failed operations are
// collected and reported together; the rest stay committed. Cancellation
// stops the run and is reported with the counts committed before it.
func (r *FacilityRepository) BulkWrite(ctx context.Context, ops []facility.WriteOp) (facility.BulkResult, error) {
	var res facility.BulkResult
	var failures []facility.OpFailure

	stopErr := runBulk(ctx, "facilities", len(ops), func(ctx context.Context, i int) error {
		op := ops[i]
		var err error
		switch op.Kind {
		case facility.OpInsert:
			if err = r.insert(ctx, &op.Facility); err == nil {
				res.Inserted++
			}
		case facility.OpUpdate:
			if err = r.update(ctx, &op.Facility); err == nil {
				res.Modified++
			}
		default:
			err = fmt.Errorf("unknown operation %d", op.Kind)
		}
		if err != nil {
			failures = append(failures, facility.OpFailure{
				Index: i, Kind: op.Kind, CCN: op.Facility.CertificationNumber, Err: err,
			})
		}
		return err
	})

	if stopErr != nil || len(failures) > 0 {
		return res, &facility.BulkWriteError{Result: res, Failures: failures, Err: stopErr}
	}
	return res, nil
}

// facilityRow holds the encoded and denormalised values written for one
// facility.
type facilityRow struct {
	attributes    []byte
	metrics       []byte
	beds          string
	bedsNum       sql.NullFloat64
	overallRating sql.NullFloat64
}

func encodeFacility(f *facility.Facility) (facilityRow, error) {
	attrs, err := json.Marshal(f.Attributes)
	if err != nil {
		return facilityRow{}, fmt.Errorf("failed to encode attributes: %w", err)
	}
	metrics, err := json.Marshal(f.Rating.Metrics)
	if err != nil {
		return facilityRow{}, fmt.Errorf("failed to encode rating metrics: %w", err)
	}

	row := facilityRow{
		attributes: attrs,
		metrics:    metrics,
		beds:       strings.TrimSpace(f.Attributes.NumberOfCertifiedBeds),
	}
	if v, err := strconv.ParseFloat(row.beds, 64); err == nil {
		row.bedsNum = sql.NullFloat64{Float64: v, Valid: true}
	}
	if v, ok := facility.ParseRating(f.Attributes.OverallRating); ok {
		row.overallRating = sql.NullFloat64{Float64: v, Valid: true}
	}
	return row, nil
}

func (r *FacilityRepository) insert(ctx context.Context, f *facility.Facility) error {
	row, err := encodeFacility(f)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO facilities (
			id, ccn, attributes, owner_ids, buy, sell, refinance, rating_metrics,
			provider_name, citytown, state, certified_beds, certified_beds_num,
			overall_rating_num, last_updated, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.ExecContext(ctx, query,
		f.ID, f.CertificationNumber, row.attributes, pq.Array(nonNil(f.OwnerIDs)),
		f.Rating.Buy, f.Rating.Sell, f.Rating.Refinance, row.metrics,
		f.Attributes.ProviderName, f.Attributes.Citytown, f.Attributes.State,
		row.beds, row.bedsNum, row.overallRating, f.LastUpdated, f.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("facility %s already exists: %w", f.CertificationNumber, err)
	}
	return err
}

func (r *FacilityRepository) update(ctx context.Context, f *facility.Facility) error {
	row, err := encodeFacility(f)
	if err != nil {
		return err
	}

	query := `
		UPDATE facilities
		SET ccn = $2, attributes = $3, owner_ids = $4, buy = $5, sell = $6,
		    refinance = $7, rating_metrics = $8, provider_name = $9, citytown = $10,
		    state = $11, certified_beds = $12, certified_beds_num = $13,
		    overall_rating_num = $14, last_updated = $15
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		f.ID, f.CertificationNumber, row.attributes, pq.Array(nonNil(f.OwnerIDs)),
		f.Rating.Buy, f.Rating.Sell, f.Rating.Refinance, row.metrics,
		f.Attributes.ProviderName, f.Attributes.Citytown, f.Attributes.State,
		row.beds, row.bedsNum, row.overallRating, f.LastUpdated,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, facility.ErrFacilityNotFound)
}

// applyFilter adds the WHERE clause shared by listings, stats and facets.
func applyFilter(sb *sqlbuilder.SelectBuilder, f facility.Filter, extra ...string) {
	where := extra
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		where = append(where, sb.Or(
			sb.ILike("provider_name", pattern),
			sb.ILike("citytown", pattern),
		))
	}
	if f.State != "" {
		where = append(where, sb.Equal("state", f.State))
	}
	if f.OwnerID != "" {
		where = append(where, sb.Var(f.OwnerID)+" = ANY(owner_ids)")
	}
	if f.Beds != "" {
		where = append(where, sb.Equal("certified_beds", f.Beds))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
}

func sortColumns(key facility.SortKey) []string {
	switch key {
	case facility.SortBuy:
		return []string{"buy DESC", "ccn ASC"}
	case facility.SortSell:
		return []string{"sell DESC", "ccn ASC"}
	case facility.SortRefinance:
		return []string{"refinance DESC", "ccn ASC"}
	case facility.SortRating:
		return []string{"overall_rating_num DESC NULLS LAST", "ccn ASC"}
	case facility.SortBedsHighToLow:
		return []string{"certified_beds_num DESC NULLS LAST", "ccn ASC"}
	case facility.SortBedsLowToHigh:
		return []string{"certified_beds_num ASC NULLS LAST", "ccn ASC"}
	default:
		return []string{"ccn ASC"}
	}
}

func buildListQuery(params facility.ListParams) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(facilityColumns...).From("facilities")
	applyFilter(sb, params.Filter)
	sb.OrderBy(sortColumns(params.Sort)...)
	if params.Limit > 0 {
		sb.Limit(params.Limit)
	}
	if params.Offset > 0 {
		sb.Offset(params.Offset)
	}
	return sb.Build()
}

func buildCountQuery(filter facility.Filter) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From("facilities")
	applyFilter(sb, filter)
	return sb.Build()
}

func buildStatsQuery(filter facility.Filter) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"COALESCE(AVG(buy), 0)",
		"COALESCE(AVG(sell), 0)",
		"COALESCE(AVG(refinance), 0)",
		"COUNT(*)",
	).From("facilities")
	applyFilter(sb, filter)
	return sb.Build()
}

func buildBedCountsQuery(filter facility.Filter) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("certified_beds", "COUNT(*)").From("facilities")
	applyFilter(sb, filter, "certified_beds <> ''")
	sb.GroupBy("certified_beds", "certified_beds_num")
	sb.OrderBy("certified_beds_num DESC NULLS LAST", "certified_beds ASC")
	return sb.Build()
}

// containsPattern builds an ILIKE pattern matching s anywhere, with LIKE
// wildcards in s taken literally.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
