package domain

import (
	"sort"
	"time"
)

// WinnerTie marks a comparison where both providers scored equal positive
// scores against the reference.
const WinnerTie = "tie"

// ComparisonRequest is the normalized inbound request for one comparison.
type ComparisonRequest struct {
	Input         ClassificationInput `json:"input"`
	ProductValue  *float64            `json:"product_value,omitempty"`
	Currency      string              `json:"currency"`
	Providers     []ProviderID        `json:"providers"`
	CalculateDuty bool                `json:"calculate_duty"`
}

// Requested reports whether the given provider is part of the request.
func (r *ComparisonRequest) Requested(id ProviderID) bool {
	for _, p := range r.Providers {
		if p == id {
			return true
		}
	}
	return false
}

// ProviderMatch is one cell pair of the match matrix. Nil Exact/Family
// means no comparison was possible (a provider absent or without a code),
// which is distinct from "compared and differ".
type ProviderMatch struct {
	A      ProviderID `json:"a"`
	B      ProviderID `json:"b"`
	Exact  *bool      `json:"exact"`
	Family *bool      `json:"family"`
}

// PairKey renders a stable key for a provider pair, used for duty deltas.
func PairKey(a, b ProviderID) string {
	s := []string{string(a), string(b)}
	sort.Strings(s)
	return s[0] + ":" + s[1]
}

// Analysis is the cross-provider analysis block of a comparison.
type Analysis struct {
	Matches              []ProviderMatch        `json:"matches"`
	ConfidenceByProvider map[ProviderID]float64 `json:"confidence_by_provider"`
	DutyDeltaByPair      map[string]float64     `json:"duty_delta_by_pair,omitempty"`

	// Winner is a provider id, WinnerTie, or empty when all scores were
	// zero and no winner can honestly be named.
	Winner string `json:"winner,omitempty"`

	// Notes is advisory prose from the summary generator. It is never
	// parsed by downstream logic.
	Notes string `json:"notes"`
}

// ComparisonResult is the stored aggregate of one comparison run. It is
// created once by the orchestrator and immutable afterwards.
type ComparisonResult struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Input ClassificationInput `json:"input"`

	ResolvedValue  *float64 `json:"resolved_value,omitempty"`
	ValueEstimated bool     `json:"value_estimated"`
	Currency       string   `json:"currency"`

	// Both maps are sparse: a provider missing from the request is simply
	// not a key, and a duty entry exists only when a usable value did.
	Classifications map[ProviderID]*ClassificationResult `json:"classifications"`
	Duties          map[ProviderID]*DutyResult           `json:"duties,omitempty"`

	Analysis Analysis `json:"analysis"`
}

// StoreStats aggregates over all stored comparisons.
type StoreStats struct {
	Total           int                    `json:"total"`
	Wins            map[ProviderID]int     `json:"wins"`
	Ties            int                    `json:"ties"`
	AvgConfidence   map[ProviderID]float64 `json:"avg_confidence"`
	FamilyMatchRate map[ProviderID]float64 `json:"family_match_rate"`
}

// ComputeStats derives aggregate statistics from a set of comparisons.
// Confidence averages count only providers that produced a non-error
// result; family-match rates divide by the comparisons in which the
// provider could be compared at all.
func ComputeStats(results []*ComparisonResult) *StoreStats {
	stats := &StoreStats{
		Total:           len(results),
		Wins:            map[ProviderID]int{},
		AvgConfidence:   map[ProviderID]float64{},
		FamilyMatchRate: map[ProviderID]float64{},
	}

	confSum := map[ProviderID]float64{}
	confCount := map[ProviderID]int{}
	famHit := map[ProviderID]int{}
	famSeen := map[ProviderID]int{}

	for _, r := range results {
		switch r.Analysis.Winner {
		case "":
		case WinnerTie:
			stats.Ties++
		default:
			stats.Wins[ProviderID(r.Analysis.Winner)]++
		}

		for id, c := range r.Classifications {
			if c.OK() {
				confSum[id] += c.Confidence
				confCount[id]++
			}
		}

		for _, m := range r.Analysis.Matches {
			if m.Family == nil {
				continue
			}
			for _, id := range []ProviderID{m.A, m.B} {
				famSeen[id]++
				if *m.Family {
					famHit[id]++
				}
			}
		}
	}

	for id, n := range confCount {
		stats.AvgConfidence[id] = confSum[id] / float64(n)
	}
	for id, n := range famSeen {
		stats.FamilyMatchRate[id] = float64(famHit[id]) / float64(n)
	}
	return stats
}
