package owner

import (
	"context"
	"fmt"
)

// CertificationIndex maps a facility certification number to the IDs of
// the owners linked to it, in stored order.
type CertificationIndex map[string][]string

// IndexByCertificationNumber loads every owner once and indexes it by
// each of its certification numbers.
func (s *Service) IndexByCertificationNumber(ctx context.Context) (CertificationIndex, error) {
	owners, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load owners: %w", err)
	}
	return BuildIndex(owners), nil
}

// BuildIndex indexes owners by certification number. An owner listed
// twice under one number appears once.
func BuildIndex(owners []*Owner) CertificationIndex {
	idx := make(CertificationIndex)
	for _, o := range owners {
		for _, ccn := range o.CertificationNumbers {
			idx[ccn] = appendUnique(idx[ccn], o.ID)
		}
	}
	return idx
}

// OwnersOf returns the owner IDs linked to ccn, never nil.
func (idx CertificationIndex) OwnersOf(ccn string) []string {
	ids := idx[ccn]
	if ids == nil {
		return []string{}
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
