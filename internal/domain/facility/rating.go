package facility

import (
	"math"
	"strconv"
	"strings"
)

const maxPoints = 10

// Rate derives the buy, sell and refinance scores of a facility. It never
// fails: unparseable numbers count as zero and an unusable bed count as one.
// Scores are on a 0-5 scale with one decimal.
func Rate(a Attributes) Rating {
	overall := clamp(parseNumber(a.OverallRating), 0, 5)
	health := clamp(parseNumber(a.HealthInspectionRating), 0, 5)

	residents := parseNumber(a.AverageNumberOfResidentsPerDay)
	beds := parseNumber(a.NumberOfCertifiedBeds)
	if beds == 0 {
		beds = 1
	}
	occupancy := clamp(residents/beds*100, 0, 100)

	turnover := math.Max(parseNumber(a.TotalNursingStaffTurnover), 0)

	fines := int(clamp(math.Round(parseNumber(a.NumberOfFines)), 0, math.MaxInt32))

	hasRecentInspection := a.MostRecentHealthInspectionMoreThan2YearsAgo == "N"
	forProfit := strings.Contains(strings.ToLower(a.OwnershipType), "for profit")

	var buy, sell, refinance int

	switch {
	case overall >= 4:
		buy += 4
	case overall >= 3:
		buy += 2
	}
	switch {
	case occupancy >= 85:
		buy += 3
	case occupancy >= 75:
		buy += 2
	}
	if fines == 0 {
		buy += 2
	}
	if forProfit {
		buy++
	}

	switch {
	case turnover > 50:
		sell += 3
	case turnover > 35:
		sell += 2
	}
	switch {
	case health <= 2:
		sell += 3
	case health <= 3:
		sell += 2
	}
	switch {
	case occupancy < 50:
		sell += 2
	case occupancy < 60:
		sell++
	}
	switch {
	case fines > 2:
		sell += 2
	case fines > 0:
		sell++
	}

	switch {
	case overall >= 4:
		refinance += 4
	case overall >= 3.5:
		refinance += 3
	}
	switch {
	case occupancy >= 80:
		refinance += 4
	case occupancy >= 70:
		refinance += 2
	}
	if !hasRecentInspection {
		refinance += 2
	}

	return Rating{
		Buy:       normalize(buy),
		Sell:      normalize(sell),
		Refinance: normalize(refinance),
		Metrics: RatingMetrics{
			OccupancyRate:          round1(occupancy),
			TurnoverRate:           round1(turnover),
			OverallRating:          overall,
			HealthInspectionRating: health,
			NumberOfFines:          fines,
			HasRecentInspection:    hasRecentInspection,
		},
	}
}

// ParseRating reads a star rating, reporting whether it held a number.
func ParseRating(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseNumber(s string) float64 {
	v, _ := ParseRating(s)
	return v
}

func normalize(points int) float64 {
	return round1(float64(points) / maxPoints * 5)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
