package owner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// csvColumns maps upload headers to record fields. Both the published
// column titles and the datastore field names are accepted.
var csvColumns = map[string]func(r *Record, v string){
	"owner name":                     func(r *Record, v string) { r.OwnerName = v },
	"cms certification number (ccn)": func(r *Record, v string) { r.CCN = v },
	"provider name":                  func(r *Record, v string) { r.ProviderName = v },
	"provider address":               func(r *Record, v string) { r.ProviderAddress = v },
	"city/town":                      func(r *Record, v string) { r.City = v },
	"state":                          func(r *Record, v string) { r.State = v },
	"zip code":                       func(r *Record, v string) { r.ZipCode = v },
	"role played by owner or manager in facility": func(r *Record, v string) { r.Role = v },
	"owner type":           func(r *Record, v string) { r.OwnerType = v },
	"ownership percentage": func(r *Record, v string) { r.OwnershipPercentage = v },
	"association date":     func(r *Record, v string) { r.AssociationDate = v },
	"location":             func(r *Record, v string) { r.Location = v },
	"processing date":      func(r *Record, v string) { r.ProcessingDate = v },

	"owner_name":                   func(r *Record, v string) { r.OwnerName = v },
	"cms_certification_number_ccn": func(r *Record, v string) { r.CCN = v },
	"provider_name":                func(r *Record, v string) { r.ProviderName = v },
	"provider_address":             func(r *Record, v string) { r.ProviderAddress = v },
	"citytown":                     func(r *Record, v string) { r.City = v },
	"zip_code":                     func(r *Record, v string) { r.ZipCode = v },
	"role_played_by_owner_or_manager_in_facility": func(r *Record, v string) { r.Role = v },
	"owner_type":           func(r *Record, v string) { r.OwnerType = v },
	"ownership_percentage": func(r *Record, v string) { r.OwnershipPercentage = v },
	"association_date":     func(r *Record, v string) { r.AssociationDate = v },
	"processing_date":      func(r *Record, v string) { r.ProcessingDate = v },
}

// ParseCSV reads an owner export. The first row is the header; unknown
// columns are ignored and blank lines are skipped. Rows are returned as-is,
// including rows missing key fields, so callers can count them.
func ParseCSV(src io.Reader) ([]Record, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	setters := make([]func(r *Record, v string), len(header))
	var hasName, hasCCN bool
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		setters[i] = csvColumns[key]
		switch key {
		case "owner name", "owner_name":
			hasName = true
		case "cms certification number (ccn)", "cms_certification_number_ccn":
			hasCCN = true
		}
	}
	if !hasName || !hasCCN {
		return nil, fmt.Errorf("%w: owner name and certification number columns are required", ErrInvalidCSV)
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		if blankRow(row) {
			continue
		}

		var r Record
		for i, v := range row {
			if i < len(setters) && setters[i] != nil {
				setters[i](&r, strings.TrimSpace(v))
			}
		}
		records = append(records, r)
	}

	return records, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
