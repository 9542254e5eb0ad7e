package comparison

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tariff_server/core/domain"
)

// BuildNotes renders the advisory summary of a finished comparison. The
// output is deterministic prose assembled from the analysis, never from a
// model, so identical comparisons produce identical notes.
func BuildNotes(result *domain.ComparisonResult, dutyDeltaThreshold, confidenceGapThreshold float64) string {
	var notes []string

	for _, id := range []domain.ProviderID{domain.ProviderReasoning, domain.ProviderStructured} {
		if c, ok := result.Classifications[id]; ok && !c.OK() {
			notes = append(notes, fmt.Sprintf("The %s provider returned no classification: %s.", id, c.Err))
		}
	}

	for _, m := range result.Analysis.Matches {
		a, b := result.Classifications[m.A], result.Classifications[m.B]
		switch {
		case m.Exact != nil && *m.Exact:
			notes = append(notes, fmt.Sprintf("Both providers agree on HS code %s.", a.Code))
		case m.Family != nil && *m.Family:
			notes = append(notes, fmt.Sprintf("Providers agree on the 6-digit family %s but differ on the full code (%s vs %s).", a.HS6, a.Code, b.Code))
		case m.Family != nil:
			notes = append(notes, fmt.Sprintf("Providers disagree: %s classified %s, %s classified %s.", m.A, a.Code, m.B, b.Code))
		}

		if a.OK() && b.OK() {
			if gap := math.Abs(a.Confidence - b.Confidence); gap > confidenceGapThreshold {
				notes = append(notes, fmt.Sprintf("Confidence differs markedly: %s at %.2f vs %s at %.2f.", m.A, a.Confidence, m.B, b.Confidence))
			}
		}
	}

	switch {
	case result.ResolvedValue == nil:
		notes = append(notes, "No product value was available, so no duty was calculated.")
	case result.ValueEstimated:
		notes = append(notes, fmt.Sprintf("The product value of %.2f %s is an estimate from the reasoning provider, not a declared value.", *result.ResolvedValue, result.Currency))
	}

	pairs := make([]string, 0, len(result.Analysis.DutyDeltaByPair))
	for pair := range result.Analysis.DutyDeltaByPair {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	for _, pair := range pairs {
		delta := result.Analysis.DutyDeltaByPair[pair]
		if delta > dutyDeltaThreshold {
			notes = append(notes, fmt.Sprintf("Landed cost differs significantly between %s (%.2f %s); verify the classification before filing.", strings.ReplaceAll(pair, ":", " and "), delta, result.Currency))
		}
	}

	if w := result.Analysis.Winner; w != "" && w != domain.WinnerTie {
		notes = append(notes, fmt.Sprintf("The %s classification is the stronger candidate.", w))
	}

	return strings.Join(notes, " ")
}
