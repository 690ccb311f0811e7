package http

import (
	"net/http"

	"go.uber.org/zap"

	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
)

// OwnerHandler serves owner search, profile and upload routes
type OwnerHandler struct {
	owners        *owner.Service
	facilities    *facility.Service
	syncer        Syncer
	maxUploadSize int64
	logger        *zap.Logger
}

// NewOwnerHandler creates a new owner handler. maxUploadSize bounds the
// multipart body of an upload.
func NewOwnerHandler(owners *owner.Service, facilities *facility.Service, syncer Syncer, maxUploadSize int64, logger *zap.Logger) *OwnerHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 32 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OwnerHandler{
		owners:        owners,
		facilities:    facilities,
		syncer:        syncer,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// OwnerSummaryResponse is one owner search hit
type OwnerSummaryResponse struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"owner_name"`
	CertificationNumbers []string `json:"cms_certification_number_ccn"`
}

// OwnerProfileResponse is an owner with the facilities it is linked to
type OwnerProfileResponse struct {
	Owner         *owner.Owner       `json:"owner"`
	Facilities    []FacilityResponse `json:"facilities"`
	AverageRating float64            `json:"averageRating"`
}

// HandleSearch lists owners matching the search and state filters
func (h *OwnerHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owners, err := h.owners.Search(r.Context(), owner.SearchParams{
		Search: q.Get("search"),
		State:  q.Get("state"),
	})
	if err != nil {
		h.logger.Error("failed to search owners", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to search owners")
		return
	}

	resp := make([]OwnerSummaryResponse, 0, len(owners))
	for _, o := range owners {
		ccns := o.CertificationNumbers
		if ccns == nil {
			ccns = []string{}
		}
		resp = append(resp, OwnerSummaryResponse{ID: o.ID, Name: o.Name, CertificationNumbers: ccns})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet returns an owner profile
func (h *OwnerHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Owner ID is required")
		return
	}

	o, err := h.owners.Get(r.Context(), id)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusNotFound {
			writeError(w, status, "Owner not found")
			return
		}
		h.logger.Error("failed to get owner", zap.String("owner_id", id), zap.Error(err))
		writeError(w, status, "Failed to get owner")
		return
	}

	facilities, err := h.facilities.ListByOwner(r.Context(), o.ID)
	if err != nil {
		h.logger.Error("failed to list owner facilities", zap.String("owner_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get owner")
		return
	}

	resp := OwnerProfileResponse{
		Owner:         o,
		Facilities:    make([]FacilityResponse, 0, len(facilities)),
		AverageRating: facility.AverageOverallRating(facilities),
	}
	for _, f := range facilities {
		resp.Facilities = append(resp.Facilities, toFacilityResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleUpload reconciles an owner CSV export and refreshes facilities
// afterwards. The mode query parameter defaults to replace.
func (h *OwnerHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	mode, err := owner.ParseMode(r.URL.Query().Get("mode"), owner.ModeReplace)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	records, err := owner.ParseCSV(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("owner upload received",
		zap.String("filename", header.Filename),
		zap.Int("rows", len(records)),
		zap.String("mode", string(mode)),
	)

	result, err := h.syncer.ImportOwners(r.Context(), records, mode)
	if err != nil {
		writeSyncError(w, h.logger, err, result)
		return
	}
	writeJSON(w, statusForOutcome(result.Outcome), result)
}
