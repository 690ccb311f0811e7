package facility

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRate(t *testing.T) {
	tests := []struct {
		name          string
		attrs         Attributes
		wantBuy       float64
		wantSell      float64
		wantRefinance float64
	}{
		{
			name: "top buy candidate",
			attrs: Attributes{
				OverallRating:                               "5",
				AverageNumberOfResidentsPerDay:              "90",
				NumberOfCertifiedBeds:                       "100",
				NumberOfFines:                               "0",
				OwnershipType:                               "For Profit Corp",
				TotalNursingStaffTurnover:                   "10",
				HealthInspectionRating:                      "5",
				MostRecentHealthInspectionMoreThan2YearsAgo: "N",
			},
			wantBuy:       5.0,
			wantSell:      0,
			wantRefinance: 4.0,
		},
		{
			name: "top sell candidate",
			attrs: Attributes{
				TotalNursingStaffTurnover:                   "60",
				HealthInspectionRating:                      "1",
				AverageNumberOfResidentsPerDay:              "40",
				NumberOfCertifiedBeds:                       "100",
				NumberOfFines:                               "3",
				OverallRating:                               "1",
				MostRecentHealthInspectionMoreThan2YearsAgo: "N",
			},
			wantBuy:       0,
			wantSell:      5.0,
			wantRefinance: 0,
		},
		{
			name: "top refinance candidate without recent inspection",
			attrs: Attributes{
				OverallRating:                               "4.5",
				AverageNumberOfResidentsPerDay:              "82",
				NumberOfCertifiedBeds:                       "100",
				NumberOfFines:                               "1",
				HealthInspectionRating:                      "4",
				MostRecentHealthInspectionMoreThan2YearsAgo: "Y",
			},
			wantBuy:       3.0,
			wantSell:      0.5,
			wantRefinance: 5.0,
		},
		{
			name: "recent inspection withholds refinance points",
			attrs: Attributes{
				OverallRating:                               "4.5",
				AverageNumberOfResidentsPerDay:              "82",
				NumberOfCertifiedBeds:                       "100",
				NumberOfFines:                               "1",
				HealthInspectionRating:                      "4",
				MostRecentHealthInspectionMoreThan2YearsAgo: "N",
			},
			wantBuy:       3.0,
			wantSell:      0.5,
			wantRefinance: 4.0,
		},
		{
			name: "middle tiers",
			attrs: Attributes{
				OverallRating:                               "3",
				AverageNumberOfResidentsPerDay:              "76",
				NumberOfCertifiedBeds:                       "100",
				NumberOfFines:                               "2",
				TotalNursingStaffTurnover:                   "40",
				HealthInspectionRating:                      "3",
				OwnershipType:                               "Government - County",
				MostRecentHealthInspectionMoreThan2YearsAgo: "N",
			},
			// buy 2+2, sell 2+2+0+1, refinance 0+2
			wantBuy:       2.0,
			wantSell:      2.5,
			wantRefinance: 1.0,
		},
		{
			name:  "empty bag",
			attrs: Attributes{},
			// occupancy 0 -> sell +2, fines 0 -> buy +2, health 0 -> sell +3,
			// no recent inspection -> refinance +2
			wantBuy:       1.0,
			wantSell:      2.5,
			wantRefinance: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rate(tt.attrs)
			assert.Equal(t, tt.wantBuy, got.Buy, "buy")
			assert.Equal(t, tt.wantSell, got.Sell, "sell")
			assert.Equal(t, tt.wantRefinance, got.Refinance, "refinance")
		})
	}
}

func TestRateMetrics(t *testing.T) {
	got := Rate(Attributes{
		OverallRating:                               "7",
		HealthInspectionRating:                      "-2",
		AverageNumberOfResidentsPerDay:              "150",
		NumberOfCertifiedBeds:                       "120",
		TotalNursingStaffTurnover:                   "47.26",
		NumberOfFines:                               "2.6",
		MostRecentHealthInspectionMoreThan2YearsAgo: "N",
	})

	assert.Equal(t, RatingMetrics{
		OccupancyRate:          100,
		TurnoverRate:           47.3,
		OverallRating:          5,
		HealthInspectionRating: 0,
		NumberOfFines:          3,
		HasRecentInspection:    true,
	}, got.Metrics)
}

func TestRateDefaults(t *testing.T) {
	t.Run("zero beds fall back to one", func(t *testing.T) {
		got := Rate(Attributes{AverageNumberOfResidentsPerDay: "0.5", NumberOfCertifiedBeds: "0"})
		assert.Equal(t, 50.0, got.Metrics.OccupancyRate)
	})

	t.Run("unparseable beds fall back to one", func(t *testing.T) {
		got := Rate(Attributes{AverageNumberOfResidentsPerDay: "0.8", NumberOfCertifiedBeds: "n/a"})
		assert.Equal(t, 80.0, got.Metrics.OccupancyRate)
	})

	t.Run("garbage numbers count as zero", func(t *testing.T) {
		got := Rate(Attributes{
			OverallRating:             "NaN",
			TotalNursingStaffTurnover: "Inf",
			NumberOfFines:             "lots",
		})
		assert.Zero(t, got.Metrics.OverallRating)
		assert.Zero(t, got.Metrics.TurnoverRate)
		assert.Zero(t, got.Metrics.NumberOfFines)
	})

	t.Run("negative values are floored", func(t *testing.T) {
		got := Rate(Attributes{TotalNursingStaffTurnover: "-12", NumberOfFines: "-4"})
		assert.Zero(t, got.Metrics.TurnoverRate)
		assert.Zero(t, got.Metrics.NumberOfFines)
	})

	t.Run("huge fine counts stay positive", func(t *testing.T) {
		for _, fines := range []string{"1e300", "9999999999999999999999"} {
			got := Rate(Attributes{NumberOfFines: fines, OverallRating: "1"})
			assert.Equal(t, math.MaxInt32, got.Metrics.NumberOfFines, fines)
			assert.Equal(t, 0.0, got.Buy, fines)
			assert.Equal(t, 3.5, got.Sell, fines)
		}
	})

	t.Run("whitespace is tolerated", func(t *testing.T) {
		got := Rate(Attributes{OverallRating: " 4 "})
		assert.Equal(t, 4.0, got.Metrics.OverallRating)
	})
}

func TestRateBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := []string{"", "x", "-1", "0", "N", "Y", "1e9", "1e300", "NaN"}
	pick := func() string {
		if rng.Intn(3) == 0 {
			return values[rng.Intn(len(values))]
		}
		return strconv.FormatFloat(rng.Float64()*200-50, 'f', rng.Intn(3), 64)
	}

	for i := 0; i < 2000; i++ {
		got := Rate(Attributes{
			OverallRating:                               pick(),
			HealthInspectionRating:                      pick(),
			AverageNumberOfResidentsPerDay:              pick(),
			NumberOfCertifiedBeds:                       pick(),
			TotalNursingStaffTurnover:                   pick(),
			NumberOfFines:                               pick(),
			OwnershipType:                               []string{"For profit - LLC", "Non profit", ""}[rng.Intn(3)],
			MostRecentHealthInspectionMoreThan2YearsAgo: pick(),
		})

		for _, score := range []float64{got.Buy, got.Sell, got.Refinance} {
			if score < 0 || score > 5 {
				t.Fatalf("score %v out of range", score)
			}
			if math.Abs(score*10-math.Round(score*10)) > 1e-9 {
				t.Fatalf("score %v has more than one decimal", score)
			}
		}
		if got.Metrics.OccupancyRate < 0 || got.Metrics.OccupancyRate > 100 {
			t.Fatalf("occupancy %v out of range", got.Metrics.OccupancyRate)
		}
	}
}

func TestParseRating(t *testing.T) {
	v, ok := ParseRating("3.5")
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)

	_, ok = ParseRating("")
	assert.False(t, ok)

	_, ok = ParseRating("+Inf")
	assert.False(t, ok)
}

func TestParseSort(t *testing.T) {
	k, err := ParseSort("beds_high_to_low")
	assert.NoError(t, err)
	assert.Equal(t, SortBedsHighToLow, k)

	k, err = ParseSort("")
	assert.NoError(t, err)
	assert.Equal(t, SortNone, k)

	_, err = ParseSort("cheapest")
	assert.ErrorIs(t, err, ErrInvalidSort)
}
