package comparison

import (
	"tariff_server/core/domain"
)

// Match bonuses for scoring against the reference classification. Exact
// agreement outweighs family agreement, which outweighs none; confidence
// only breaks ties within the same agreement level.
const (
	exactBonus  = 3.0
	familyBonus = 2.0
)

// Score rates one classification against the reference result. An errored
// or absent result scores zero regardless of the reference; the reference
// provider naturally scores exact-match against itself.
func Score(result, reference *domain.ClassificationResult) float64 {
	if !result.OK() {
		return 0
	}

	bonus := 0.0
	if reference.OK() {
		switch {
		case result.Code == reference.Code:
			bonus = exactBonus
		case result.HS6 == reference.HS6:
			bonus = familyBonus
		}
	}
	return bonus + result.Confidence
}

// DetermineWinner names the provider whose classification scored strictly
// highest against the reference. Equal positive scores are a tie; all-zero
// scores yield no winner at all.
func DetermineWinner(providers []domain.ProviderID, results map[domain.ProviderID]*domain.ClassificationResult, reference domain.ProviderID) string {
	ref := results[reference]

	best := 0.0
	holders := 0
	winner := ""
	for _, id := range providers {
		s := Score(results[id], ref)
		switch {
		case s > best:
			best = s
			holders = 1
			winner = string(id)
		case s == best && s > 0:
			holders++
		}
	}

	if best == 0 {
		return ""
	}
	if holders > 1 {
		return domain.WinnerTie
	}
	return winner
}
