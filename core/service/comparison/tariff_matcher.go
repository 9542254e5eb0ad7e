// Package comparison implements the classification comparison orchestrator
// and its supporting analysis logic.
package comparison

import (
	"tariff_server/core/domain"
)

// ExactMatch reports whether two results classified to the same full code.
// Nil when either side has no usable code, so "could not compare" never
// masquerades as disagreement.
func ExactMatch(a, b *domain.ClassificationResult) *bool {
	if !a.OK() || !b.OK() {
		return nil
	}
	v := a.Code == b.Code
	return &v
}

// FamilyMatch reports whether two results land in the same 6-digit HS
// family. An exact match is always also a family match.
func FamilyMatch(a, b *domain.ClassificationResult) *bool {
	if !a.OK() || !b.OK() {
		return nil
	}
	v := a.HS6 == b.HS6
	return &v
}

// BuildMatchMatrix produces one cell per unordered pair of requested
// providers, in request order. Absent and errored providers still appear in
// their pairs, with nil cells.
func BuildMatchMatrix(providers []domain.ProviderID, results map[domain.ProviderID]*domain.ClassificationResult) []domain.ProviderMatch {
	var matches []domain.ProviderMatch
	for i := 0; i < len(providers); i++ {
		for j := i + 1; j < len(providers); j++ {
			a, b := providers[i], providers[j]
			m := domain.ProviderMatch{A: a, B: b}
			ra, rb := results[a], results[b]
			if ra != nil && rb != nil {
				m.Exact = ExactMatch(ra, rb)
				m.Family = FamilyMatch(ra, rb)
			}
			matches = append(matches, m)
		}
	}
	return matches
}
