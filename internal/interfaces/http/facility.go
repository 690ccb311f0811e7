package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
)

// FacilityHandler serves the facility table, details and rating routes
type FacilityHandler struct {
	facilities *facility.Service
	owners     *owner.Service
	logger     *zap.Logger
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(facilities *facility.Service, owners *owner.Service, logger *zap.Logger) *FacilityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacilityHandler{facilities: facilities, owners: owners, logger: logger}
}

// FacilityResponse flattens the stored attributes and scores into one object
type FacilityResponse struct {
	facility.Attributes
	facility.Rating
	ID          string   `json:"id"`
	OwnerIDs    []string `json:"owners"`
	LastUpdated string   `json:"lastUpdated"`
}

// FacilityOwnerResponse is an owner expanded inside facility details
type FacilityOwnerResponse struct {
	ID                  string `json:"id"`
	Name                string `json:"owner_name"`
	Role                string `json:"role_played_by_owner_or_manager_in_facility"`
	OwnerType           string `json:"owner_type"`
	OwnershipPercentage string `json:"ownership_percentage"`
	AssociationDate     string `json:"association_date"`
}

// FacilityDetailsResponse is a facility with its owners expanded
type FacilityDetailsResponse struct {
	FacilityResponse
	Owners []FacilityOwnerResponse `json:"owners"`
}

// ListFacilitiesResponse is one page of the facility table
type ListFacilitiesResponse struct {
	Data       []FacilityResponse  `json:"data"`
	Pagination facility.Pagination `json:"pagination"`
	Filters    ListFilters         `json:"filters"`
	Stats      facility.Stats      `json:"stats"`
}

// ListFilters echoes the filters applied to a listing
type ListFilters struct {
	Search  string `json:"search"`
	State   string `json:"state"`
	OwnerID string `json:"ownerId"`
	Beds    string `json:"beds"`
	SortBy  string `json:"sortBy"`
}

// HandleList returns one page of facilities with aggregate scores
func (h *FacilityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid page")
			return
		}
		page = n
	}

	sort, err := facility.ParseSort(q.Get("sortBy"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := filterFromQuery(r)
	result, err := h.facilities.List(r.Context(), page, filter, sort)
	if err != nil {
		h.logger.Error("failed to list facilities", zap.Error(err))
		writeError(w, statusForError(err), "Failed to list facilities")
		return
	}

	data := make([]FacilityResponse, 0, len(result.Facilities))
	for _, f := range result.Facilities {
		data = append(data, toFacilityResponse(f))
	}

	writeJSON(w, http.StatusOK, ListFacilitiesResponse{
		Data:       data,
		Pagination: result.Pagination,
		Filters: ListFilters{
			Search:  filter.Search,
			State:   filter.State,
			OwnerID: filter.OwnerID,
			Beds:    filter.Beds,
			SortBy:  string(sort),
		},
		Stats: result.Stats,
	})
}

// HandleGet returns a facility with its owners expanded
func (h *FacilityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Facility ID is required")
		return
	}

	f, err := h.facilities.Get(r.Context(), id)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusNotFound {
			writeError(w, status, "Facility not found")
			return
		}
		h.logger.Error("failed to get facility", zap.String("facility_id", id), zap.Error(err))
		writeError(w, status, "Failed to get facility")
		return
	}

	owners, err := h.owners.FindByIDs(r.Context(), f.OwnerIDs)
	if err != nil {
		h.logger.Error("failed to load facility owners", zap.String("facility_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get facility")
		return
	}

	resp := FacilityDetailsResponse{
		FacilityResponse: toFacilityResponse(f),
		Owners:           make([]FacilityOwnerResponse, 0, len(owners)),
	}
	for _, o := range owners {
		resp.Owners = append(resp.Owners, FacilityOwnerResponse{
			ID:                  o.ID,
			Name:                o.Name,
			Role:                o.Role,
			OwnerType:           o.OwnerType,
			OwnershipPercentage: o.OwnershipPercentage,
			AssociationDate:     formatAssociationDate(o.AssociationDate),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleBedCounts returns bed-count facets for the state and owner filters
func (h *FacilityHandler) HandleBedCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	counts, err := h.facilities.BedCounts(r.Context(), facility.Filter{
		State:   q.Get("state"),
		OwnerID: q.Get("ownerId"),
	})
	if err != nil {
		h.logger.Error("failed to count beds", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to count beds")
		return
	}
	if counts == nil {
		counts = []facility.BedCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandleRate scores an attribute bag without storing it
func (h *FacilityHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	var attrs facility.Attributes
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, facility.Rate(attrs))
}

func filterFromQuery(r *http.Request) facility.Filter {
	q := r.URL.Query()
	return facility.Filter{
		Search:  strings.TrimSpace(q.Get("search")),
		State:   strings.TrimSpace(q.Get("state")),
		OwnerID: strings.TrimSpace(q.Get("ownerId")),
		Beds:    strings.TrimSpace(q.Get("beds")),
	}
}

func toFacilityResponse(f *facility.Facility) FacilityResponse {
	ownerIDs := f.OwnerIDs
	if ownerIDs == nil {
		ownerIDs = []string{}
	}
	resp := FacilityResponse{
		Attributes: f.Attributes,
		Rating:     f.Rating,
		ID:         f.ID,
		OwnerIDs:   ownerIDs,
	}
	if !f.LastUpdated.IsZero() {
		resp.LastUpdated = f.LastUpdated.UTC().Format(time.RFC3339)
	}
	return resp
}

var associationDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
}

// formatAssociationDate renders a datastore association date as
// 2006-01-02, or "N/A" when it is empty or cannot be parsed.
func formatAssociationDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 6 && strings.EqualFold(s[:6], "since ") {
		s = strings.TrimSpace(s[6:])
	}
	if s == "" {
		return "N/A"
	}
	for _, layout := range associationDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return "N/A"
}
