// Package owner holds beneficial owners and managers of nursing homes and
// the reconciliation that keeps one stored owner per name.
package owner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain errors
var (
	ErrOwnerNotFound = errors.New("owner not found")
	ErrInvalidMode   = errors.New("invalid reconciliation mode")
	ErrEmptyBatch    = errors.New("batch has no usable owner records")
	ErrInvalidCSV    = errors.New("invalid owner csv")
)

// Record is one raw owner row as published by the government datastore
// or uploaded as CSV. One row links one owner to one facility.
type Record struct {
	OwnerName           string `json:"owner_name"`
	CCN                 string `json:"cms_certification_number_ccn"`
	ProviderName        string `json:"provider_name"`
	ProviderAddress     string `json:"provider_address"`
	City                string `json:"citytown"`
	State               string `json:"state"`
	ZipCode             string `json:"zip_code"`
	Role                string `json:"role_played_by_owner_or_manager_in_facility"`
	OwnerType           string `json:"owner_type"`
	OwnershipPercentage string `json:"ownership_percentage"`
	AssociationDate     string `json:"association_date"`
	Location            string `json:"location"`
	ProcessingDate      string `json:"processing_date"`
}

// Valid reports whether the record carries both key fields.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.OwnerName) != "" && strings.TrimSpace(r.CCN) != ""
}

// Owner is a stored owner with every facility it is associated with.
type Owner struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"owner_name"`
	NormalizedName       string    `json:"-"`
	CertificationNumbers []string  `json:"cms_certification_number_ccn"`
	ProviderName         string    `json:"provider_name"`
	ProviderAddress      string    `json:"provider_address"`
	City                 string    `json:"citytown"`
	State                string    `json:"state"`
	ZipCode              string    `json:"zip_code"`
	Role                 string    `json:"role_played_by_owner_or_manager_in_facility"`
	OwnerType            string    `json:"owner_type"`
	OwnershipPercentage  string    `json:"ownership_percentage"`
	AssociationDate      string    `json:"association_date"`
	Location             string    `json:"location"`
	ProcessingDate       string    `json:"processing_date"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// NormalizeName returns the identity key of an owner name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// applyRecord copies the descriptive fields of r onto o.
func (o *Owner) applyRecord(r Record) {
	o.Name = strings.TrimSpace(r.OwnerName)
	o.NormalizedName = NormalizeName(r.OwnerName)
	o.ProviderName = r.ProviderName
	o.ProviderAddress = r.ProviderAddress
	o.City = r.City
	o.State = r.State
	o.ZipCode = r.ZipCode
	o.Role = r.Role
	o.OwnerType = r.OwnerType
	o.OwnershipPercentage = r.OwnershipPercentage
	o.AssociationDate = r.AssociationDate
	o.Location = r.Location
	o.ProcessingDate = r.ProcessingDate
}

// Mode selects how an owner batch is applied to the stored collection.
type Mode string

const (
	// ModeMerge unions the batch into stored owners by normalized name.
	ModeMerge Mode = "merge"
	// ModeReplace clears stored owners and inserts one owner per row.
	ModeReplace Mode = "replace"
)

// ParseMode validates a mode string. Empty falls back to def.
func ParseMode(s string, def Mode) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return def, nil
	case ModeMerge, ModeReplace:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// OpKind identifies a bulk write operation.
type OpKind int

const (
	OpInsert OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// WriteOp is a single operation inside an unordered bulk write. Inserts
// and updates carry the full owner; deletes only need Owner.ID.
type WriteOp struct {
	Kind  OpKind
	Owner Owner
}

// BulkResult counts operations that committed.
type BulkResult struct {
	Inserted int
	Modified int
	Deleted  int
}

// OpFailure describes one operation that did not commit.
type OpFailure struct {
	Index   int
	Kind    OpKind
	OwnerID string
	Err     error
}

// BulkWriteError is returned when some operations of a bulk write failed
// or the write stopped early, while the others committed. Result holds the
// committed counts. Err is set when the write stopped before the last
// operation, usually because the context was cancelled.
type BulkWriteError struct {
	Result   BulkResult
	Failures []OpFailure
	Err      error
}

func (e *BulkWriteError) Error() string {
	committed := e.Result.Inserted + e.Result.Modified + e.Result.Deleted
	if e.Err != nil {
		return fmt.Sprintf("bulk write stopped after %d committed and %d failed operations: %v",
			committed, len(e.Failures), e.Err)
	}
	if len(e.Failures) == 0 {
		return "bulk write failed"
	}
	first := e.Failures[0]
	return fmt.Sprintf("bulk write: %d operations failed (first: %s %s: %v)",
		len(e.Failures), first.Kind, first.OwnerID, first.Err)
}

func (e *BulkWriteError) Unwrap() error {
	return e.Err
}

// SearchParams narrows an owner search.
type SearchParams struct {
	Search string
	State  string
}
