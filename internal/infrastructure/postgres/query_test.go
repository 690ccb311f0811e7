package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"params untouched", "SELECT * FROM owners WHERE id = $1", "SELECT * FROM owners WHERE id = $1"},
		{"string literal", "SELECT * FROM owners WHERE state = 'TX'", "SELECT * FROM owners WHERE state = '?'"},
		{"escaped quote", "SELECT 'O''Brien' AS n", "SELECT '?' AS n"},
		{"numeric literal", "SELECT * FROM update_tracker WHERE id = 1", "SELECT * FROM update_tracker WHERE id = ?"},
		{"decimal literal", "SELECT buy FROM facilities WHERE buy > 4.5", "SELECT buy FROM facilities WHERE buy > ?"},
		{"identifier digits kept", "SELECT col1 FROM t2", "SELECT col1 FROM t2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeQuery(tt.query))
		})
	}
}

func TestSanitizeQueryTruncates(t *testing.T) {
	got := sanitizeQuery("SELECT " + strings.Repeat("x", 400))
	assert.Len(t, got, 259)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestExtractSQLVerb(t *testing.T) {
	assert.Equal(t, "SELECT", extractSQLVerb("  select id from owners"))
	assert.Equal(t, "INSERT", extractSQLVerb("\n\t\tINSERT INTO owners"))
	assert.Equal(t, "COMMIT", extractSQLVerb("commit"))
}

func TestBuildListQuery(t *testing.T) {
	query, args := buildListQuery(facility.ListParams{
		Filter: facility.Filter{Search: "sunny", State: "TX", OwnerID: "owner-1", Beds: "120"},
		Sort:   facility.SortBuy,
		Limit:  100,
		Offset: 200,
	})

	assert.True(t, strings.HasPrefix(query, "SELECT id, ccn, attributes, owner_ids"))
	assert.Contains(t, query, "FROM facilities")
	assert.Contains(t, query, "provider_name ILIKE")
	assert.Contains(t, query, "citytown ILIKE")
	assert.Contains(t, query, "state = $")
	assert.Contains(t, query, " = ANY(owner_ids)")
	assert.Contains(t, query, "certified_beds = $")
	assert.Contains(t, query, "ORDER BY buy DESC, ccn ASC")
	assert.Contains(t, query, "LIMIT")
	assert.Contains(t, query, "OFFSET")
	assert.NotContains(t, query, "?")

	assert.Contains(t, args, "%sunny%")
	assert.Contains(t, args, "TX")
	assert.Contains(t, args, "owner-1")
	assert.Contains(t, args, "120")
}

func TestBuildListQueryNoFilter(t *testing.T) {
	query, _ := buildListQuery(facility.ListParams{Limit: 100})
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "ORDER BY ccn ASC")
	assert.NotContains(t, query, "OFFSET")
}

func TestSortColumns(t *testing.T) {
	tests := []struct {
		key  facility.SortKey
		want string
	}{
		{facility.SortNone, "ccn ASC"},
		{facility.SortSell, "sell DESC"},
		{facility.SortRefinance, "refinance DESC"},
		{facility.SortRating, "overall_rating_num DESC NULLS LAST"},
		{facility.SortBedsHighToLow, "certified_beds_num DESC NULLS LAST"},
		{facility.SortBedsLowToHigh, "certified_beds_num ASC NULLS LAST"},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			cols := sortColumns(tt.key)
			assert.Equal(t, tt.want, cols[0])
			assert.Equal(t, "ccn ASC", cols[len(cols)-1])
		})
	}
}

func TestBuildStatsQuery(t *testing.T) {
	query, args := buildStatsQuery(facility.Filter{State: "OH"})
	assert.Contains(t, query, "COALESCE(AVG(buy), 0)")
	assert.Contains(t, query, "COUNT(*)")
	assert.Contains(t, query, "state = $1")
	assert.Equal(t, []any{"OH"}, args)
}

func TestBuildCountQuery(t *testing.T) {
	query, args := buildCountQuery(facility.Filter{})
	assert.Equal(t, "SELECT COUNT(*) FROM facilities", query)
	assert.Empty(t, args)
}

func TestBuildBedCountsQuery(t *testing.T) {
	query, args := buildBedCountsQuery(facility.Filter{OwnerID: "owner-9"})
	assert.Contains(t, query, "certified_beds <> ''")
	assert.Contains(t, query, "$1 = ANY(owner_ids)")
	assert.Contains(t, query, "GROUP BY certified_beds, certified_beds_num")
	assert.Contains(t, query, "ORDER BY certified_beds_num DESC NULLS LAST")
	assert.Equal(t, []any{"owner-9"}, args)
}

func TestBuildOwnerSearchQuery(t *testing.T) {
	query, args := buildOwnerSearchQuery(owner.SearchParams{Search: "acme", State: "CA"})
	assert.Contains(t, query, "FROM owners")
	assert.Contains(t, query, "owner_name ILIKE $1")
	assert.Contains(t, query, "state = $2")
	assert.Contains(t, query, "ORDER BY owner_name ASC, id ASC")
	assert.Equal(t, []any{"%acme%", "CA"}, args)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%sunny%", containsPattern("sunny"))
	assert.Equal(t, `%100\%%`, containsPattern("100%"))
	assert.Equal(t, `%a\_b%`, containsPattern("a_b"))
	assert.Equal(t, `%c:\\x%`, containsPattern(`c:\x`))
}
