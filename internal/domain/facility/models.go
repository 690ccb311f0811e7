// Package facility holds the nursing home entity, its rating engine and
// the listing queries served to the browsing UI.
package facility

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrFacilityNotFound = errors.New("facility not found")
	ErrInvalidSort      = errors.New("invalid sort key")
	ErrInvalidPage      = errors.New("invalid page")
)

// Attributes is the raw record published by the government datastore.
// Every value arrives as a string; only the fields read by Rate are
// interpreted by this package.
type Attributes struct {
	CMSCertificationNumberCCN                               string `json:"cms_certification_number_ccn,omitempty"`
	ProviderName                                            string `json:"provider_name,omitempty"`
	ProviderAddress                                         string `json:"provider_address,omitempty"`
	Citytown                                                string `json:"citytown,omitempty"`
	State                                                   string `json:"state,omitempty"`
	ZipCode                                                 string `json:"zip_code,omitempty"`
	TelephoneNumber                                         string `json:"telephone_number,omitempty"`
	ProviderSSACountyCode                                   string `json:"provider_ssa_county_code,omitempty"`
	Countyparish                                            string `json:"countyparish,omitempty"`
	OwnershipType                                           string `json:"ownership_type,omitempty"`
	NumberOfCertifiedBeds                                   string `json:"number_of_certified_beds,omitempty"`
	AverageNumberOfResidentsPerDay                          string `json:"average_number_of_residents_per_day,omitempty"`
	AverageNumberOfResidentsPerDayFootnote                  string `json:"average_number_of_residents_per_day_footnote,omitempty"`
	ProviderType                                            string `json:"provider_type,omitempty"`
	ProviderResidesInHospital                               string `json:"provider_resides_in_hospital,omitempty"`
	LegalBusinessName                                       string `json:"legal_business_name,omitempty"`
	DateFirstApprovedToProvideMedicareAndMedicaidServices   string `json:"date_first_approved_to_provide_medicare_and_medicaid_services,omitempty"`
	AffiliatedEntityName                                    string `json:"affiliated_entity_name,omitempty"`
	AffiliatedEntityID                                      string `json:"affiliated_entity_id,omitempty"`
	ContinuingCareRetirementCommunity                       string `json:"continuing_care_retirement_community,omitempty"`
	SpecialFocusStatus                                      string `json:"special_focus_status,omitempty"`
	AbuseIcon                                               string `json:"abuse_icon,omitempty"`
	MostRecentHealthInspectionMoreThan2YearsAgo             string `json:"most_recent_health_inspection_more_than_2_years_ago,omitempty"`
	ProviderChangedOwnershipInLast12Months                  string `json:"provider_changed_ownership_in_last_12_months,omitempty"`
	WithAResidentAndFamilyCouncil                           string `json:"with_a_resident_and_family_council,omitempty"`
	AutomaticSprinklerSystemsInAllRequiredAreas             string `json:"automatic_sprinkler_systems_in_all_required_areas,omitempty"`
	OverallRating                                           string `json:"overall_rating,omitempty"`
	OverallRatingFootnote                                   string `json:"overall_rating_footnote,omitempty"`
	HealthInspectionRating                                  string `json:"health_inspection_rating,omitempty"`
	HealthInspectionRatingFootnote                          string `json:"health_inspection_rating_footnote,omitempty"`
	QMRating                                                string `json:"qm_rating,omitempty"`
	QMRatingFootnote                                        string `json:"qm_rating_footnote,omitempty"`
	LongstayQMRating                                        string `json:"longstay_qm_rating,omitempty"`
	LongstayQMRatingFootnote                                string `json:"longstay_qm_rating_footnote,omitempty"`
	ShortstayQMRating                                       string `json:"shortstay_qm_rating,omitempty"`
	ShortstayQMRatingFootnote                               string `json:"shortstay_qm_rating_footnote,omitempty"`
	StaffingRating                                          string `json:"staffing_rating,omitempty"`
	StaffingRatingFootnote                                  string `json:"staffing_rating_footnote,omitempty"`
	ReportedStaffingFootnote                                string `json:"reported_staffing_footnote,omitempty"`
	PhysicalTherapistStaffingFootnote                       string `json:"physical_therapist_staffing_footnote,omitempty"`
	ReportedNurseAideStaffingHoursPerResidentPerDay         string `json:"reported_nurse_aide_staffing_hours_per_resident_per_day,omitempty"`
	ReportedLPNStaffingHoursPerResidentPerDay               string `json:"reported_lpn_staffing_hours_per_resident_per_day,omitempty"`
	ReportedRNStaffingHoursPerResidentPerDay                string `json:"reported_rn_staffing_hours_per_resident_per_day,omitempty"`
	ReportedLicensedStaffingHoursPerResidentPerDay          string `json:"reported_licensed_staffing_hours_per_resident_per_day,omitempty"`
	ReportedTotalNurseStaffingHoursPerResidentPerDay        string `json:"reported_total_nurse_staffing_hours_per_resident_per_day,omitempty"`
	TotalNumberOfNurseStaffHoursPerResidentPerDayOnT4A14    string `json:"total_number_of_nurse_staff_hours_per_resident_per_day_on_t_4a14,omitempty"`
	RegisteredNurseHoursPerResidentPerDayOnTheWeekend       string `json:"registered_nurse_hours_per_resident_per_day_on_the_weekend,omitempty"`
	ReportedPhysicalTherapistStaffingHoursPerResidentPerDay string `json:"reported_physical_therapist_staffing_hours_per_resident_per_day,omitempty"`
	TotalNursingStaffTurnover                               string `json:"total_nursing_staff_turnover,omitempty"`
	TotalNursingStaffTurnoverFootnote                       string `json:"total_nursing_staff_turnover_footnote,omitempty"`
	RegisteredNurseTurnover                                 string `json:"registered_nurse_turnover,omitempty"`
	RegisteredNurseTurnoverFootnote                         string `json:"registered_nurse_turnover_footnote,omitempty"`
	NumberOfAdministratorsWhoHaveLeftTheNursingHome         string `json:"number_of_administrators_who_have_left_the_nursing_home,omitempty"`
	AdministratorTurnoverFootnote                           string `json:"administrator_turnover_footnote,omitempty"`
	NursingCasemixIndex                                     string `json:"nursing_casemix_index,omitempty"`
	NursingCasemixIndexRatio                                string `json:"nursing_casemix_index_ratio,omitempty"`
	CasemixNurseAideStaffingHoursPerResidentPerDay          string `json:"casemix_nurse_aide_staffing_hours_per_resident_per_day,omitempty"`
	CasemixLPNStaffingHoursPerResidentPerDay                string `json:"casemix_lpn_staffing_hours_per_resident_per_day,omitempty"`
	CasemixRNStaffingHoursPerResidentPerDay                 string `json:"casemix_rn_staffing_hours_per_resident_per_day,omitempty"`
	CasemixTotalNurseStaffingHoursPerResidentPerDay         string `json:"casemix_total_nurse_staffing_hours_per_resident_per_day,omitempty"`
	CasemixWeekendTotalNurseStaffingHoursPerResidentPerDay  string `json:"casemix_weekend_total_nurse_staffing_hours_per_resident_per_day,omitempty"`
	AdjustedNurseAideStaffingHoursPerResidentPerDay         string `json:"adjusted_nurse_aide_staffing_hours_per_resident_per_day,omitempty"`
	AdjustedLPNStaffingHoursPerResidentPerDay               string `json:"adjusted_lpn_staffing_hours_per_resident_per_day,omitempty"`
	AdjustedRNStaffingHoursPerResidentPerDay                string `json:"adjusted_rn_staffing_hours_per_resident_per_day,omitempty"`
	AdjustedTotalNurseStaffingHoursPerResidentPerDay        string `json:"adjusted_total_nurse_staffing_hours_per_resident_per_day,omitempty"`
	AdjustedWeekendTotalNurseStaffingHoursPerResidentPerDay string `json:"adjusted_weekend_total_nurse_staffing_hours_per_resident_per_day,omitempty"`
	RatingCycle1StandardSurveyHealthDate                    string `json:"rating_cycle_1_standard_survey_health_date,omitempty"`
	RatingCycle1TotalNumberOfHealthDeficiencies             string `json:"rating_cycle_1_total_number_of_health_deficiencies,omitempty"`
	RatingCycle1NumberOfStandardHealthDeficiencies          string `json:"rating_cycle_1_number_of_standard_health_deficiencies,omitempty"`
	RatingCycle1NumberOfComplaintHealthDeficiencies         string `json:"rating_cycle_1_number_of_complaint_health_deficiencies,omitempty"`
	RatingCycle1HealthDeficiencyScore                       string `json:"rating_cycle_1_health_deficiency_score,omitempty"`
	RatingCycle1NumberOfHealthRevisits                      string `json:"rating_cycle_1_number_of_health_revisits,omitempty"`
	RatingCycle1HealthRevisitScore                          string `json:"rating_cycle_1_health_revisit_score,omitempty"`
	RatingCycle1TotalHealthScore                            string `json:"rating_cycle_1_total_health_score,omitempty"`
	RatingCycle2StandardHealthSurveyDate                    string `json:"rating_cycle_2_standard_health_survey_date,omitempty"`
	RatingCycle2TotalNumberOfHealthDeficiencies             string `json:"rating_cycle_2_total_number_of_health_deficiencies,omitempty"`
	RatingCycle2NumberOfStandardHealthDeficiencies          string `json:"rating_cycle_2_number_of_standard_health_deficiencies,omitempty"`
	RatingCycle2NumberOfComplaintHealthDeficiencies         string `json:"rating_cycle_2_number_of_complaint_health_deficiencies,omitempty"`
	RatingCycle2HealthDeficiencyScore                       string `json:"rating_cycle_2_health_deficiency_score,omitempty"`
	RatingCycle2NumberOfHealthRevisits                      string `json:"rating_cycle_2_number_of_health_revisits,omitempty"`
	RatingCycle2HealthRevisitScore                          string `json:"rating_cycle_2_health_revisit_score,omitempty"`
	RatingCycle2TotalHealthScore                            string `json:"rating_cycle_2_total_health_score,omitempty"`
	RatingCycle3StandardHealthSurveyDate                    string `json:"rating_cycle_3_standard_health_survey_date,omitempty"`
	RatingCycle3TotalNumberOfHealthDeficiencies             string `json:"rating_cycle_3_total_number_of_health_deficiencies,omitempty"`
	RatingCycle3NumberOfStandardHealthDeficiencies          string `json:"rating_cycle_3_number_of_standard_health_deficiencies,omitempty"`
	RatingCycle3NumberOfComplaintHealthDeficiencies         string `json:"rating_cycle_3_number_of_complaint_health_deficiencies,omitempty"`
	RatingCycle3HealthDeficiencyScore                       string `json:"rating_cycle_3_health_deficiency_score,omitempty"`
	RatingCycle3NumberOfHealthRevisits                      string `json:"rating_cycle_3_number_of_health_revisits,omitempty"`
	RatingCycle3HealthRevisitScore                          string `json:"rating_cycle_3_health_revisit_score,omitempty"`
	RatingCycle3TotalHealthScore                            string `json:"rating_cycle_3_total_health_score,omitempty"`
	TotalWeightedHealthSurveyScore                          string `json:"total_weighted_health_survey_score,omitempty"`
	NumberOfFacilityReportedIncidents                       string `json:"number_of_facility_reported_incidents,omitempty"`
	NumberOfSubstantiatedComplaints                         string `json:"number_of_substantiated_complaints,omitempty"`
	NumberOfCitationsFromInfectionControlInspections        string `json:"number_of_citations_from_infection_control_inspections,omitempty"`
	NumberOfFines                                           string `json:"number_of_fines,omitempty"`
	TotalAmountOfFinesInDollars                             string `json:"total_amount_of_fines_in_dollars,omitempty"`
	NumberOfPaymentDenials                                  string `json:"number_of_payment_denials,omitempty"`
	TotalNumberOfPenalties                                  string `json:"total_number_of_penalties,omitempty"`
	Location                                                string `json:"location,omitempty"`
	Latitude                                                string `json:"latitude,omitempty"`
	Longitude                                               string `json:"longitude,omitempty"`
	GeocodingFootnote                                       string `json:"geocoding_footnote,omitempty"`
	ProcessingDate                                          string `json:"processing_date,omitempty"`
}

// CCN returns the trimmed certification number.
func (a Attributes) CCN() string {
	return strings.TrimSpace(a.CMSCertificationNumberCCN)
}

// RatingMetrics summarises the inputs that produced a facility's scores.
type RatingMetrics struct {
	OccupancyRate          float64 `json:"occupancy_rate"`
	TurnoverRate           float64 `json:"turnover_rate"`
	OverallRating          float64 `json:"overall_rating"`
	HealthInspectionRating float64 `json:"health_inspection_rating"`
	NumberOfFines          int     `json:"number_of_fines"`
	HasRecentInspection    bool    `json:"has_recent_inspection"`
}

// Rating is the output of Rate.
type Rating struct {
	Buy       float64       `json:"buy"`
	Sell      float64       `json:"sell"`
	Refinance float64       `json:"refinance"`
	Metrics   RatingMetrics `json:"rating_metrics"`
}

// Facility is a stored nursing home.
type Facility struct {
	ID                  string
	CertificationNumber string
	Attributes          Attributes
	OwnerIDs            []string
	Rating              Rating
	LastUpdated         time.Time
	CreatedAt           time.Time
}

// OpKind identifies a bulk write operation.
type OpKind int

const (
	OpInsert OpKind = iota
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// WriteOp is a single operation inside an unordered bulk write. Updates
// replace every stored field of the facility identified by Facility.ID.
type WriteOp struct {
	Kind     OpKind
	Facility Facility
}

// BulkResult counts operations that committed.
type BulkResult struct {
	Inserted int
	Modified int
}

// OpFailure describes one operation that did not commit.
type OpFailure struct {
	Index int
	Kind  OpKind
	CCN   string
	Err   error
}

// BulkWriteError is returned when some operations of a bulk write failed
// or the write stopped early, while the others committed. Result holds the
// committed counts and Err the reason a write stopped early.
type BulkWriteError struct {
	Result   BulkResult
	Failures []OpFailure
	Err      error
}

func (e *BulkWriteError) Unwrap() error {
	return e.Err
}

func (e *BulkWriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bulk write stopped after %d committed and %d failed operations: %v",
			e.Result.Inserted+e.Result.Modified, len(e.Failures), e.Err)
	}
	if len(e.Failures) == 0 {
		return "bulk write failed"
	}
	first := e.Failures[0]
	return fmt.Sprintf("bulk write: %d of %d operations failed (first: %s %s: %v)",
		len(e.Failures), len(e.Failures)+e.Result.Inserted+e.Result.Modified,
		first.Kind, first.CCN, first.Err)
}

// SortKey orders a facility listing.
type SortKey string

const (
	SortNone          SortKey = ""
	SortBuy           SortKey = "buy"
	SortSell          SortKey = "sell"
	SortRefinance     SortKey = "refinance"
	SortRating        SortKey = "rating"
	SortBedsHighToLow SortKey = "beds_high_to_low"
	SortBedsLowToHigh SortKey = "beds_low_to_high"
)

// ParseSort validates a sort key. An empty string means natural order.
func ParseSort(s string) (SortKey, error) {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case SortNone, SortBuy, SortSell, SortRefinance, SortRating, SortBedsHighToLow, SortBedsLowToHigh:
		return k, nil
	default:
		return SortNone, fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
}

// Filter narrows listings, stats and bed counts.
type Filter struct {
	Search  string
	State   string
	OwnerID string
	Beds    string
}

// ListParams selects one page of facilities.
type ListParams struct {
	Filter Filter
	Sort   SortKey
	Limit  int
	Offset int
}

// Stats aggregates scores over a filtered set.
type Stats struct {
	AverageBuy       float64 `json:"averageBuyRating"`
	AverageSell      float64 `json:"averageSellRating"`
	AverageRefinance float64 `json:"averageRefinanceRating"`
	TotalHomes       int     `json:"totalHomes"`
}

// BedCount is one facet entry: how many facilities report a bed count.
type BedCount struct {
	Beds  string `json:"beds"`
	Count int    `json:"count"`
}
