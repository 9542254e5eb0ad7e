package domain

import (
	"fmt"
	"math"
	"time"
)

// BreakdownTolerance is the floating-point tolerance applied when checking
// that a duty breakdown sums to the total landed cost.
const BreakdownTolerance = 1e-6

// DutyLine is the customs duty portion of a duty calculation.
type DutyLine struct {
	Amount   float64 `json:"amount"`
	Rate     string  `json:"rate,omitempty"`
	Category string  `json:"category,omitempty"`
}

// TaxLine is the VAT/import tax portion of a duty calculation.
type TaxLine struct {
	Amount float64 `json:"amount"`
	Rate   string  `json:"rate,omitempty"`
}

// BreakdownItem is one named line of a landed-cost breakdown. The first
// item of every breakdown is the declared product value.
type BreakdownItem struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Rate   string  `json:"rate,omitempty"`
}

// DutyResult is the outcome of a single duty calculation. On failure the
// breakdown holds only the product value and the total equals it: a failed
// calculation assumes zero duty, never an exception.
type DutyResult struct {
	Provider        ProviderID      `json:"provider"`
	Code            string          `json:"code"`
	Duty            DutyLine        `json:"duty"`
	VAT             TaxLine         `json:"vat"`
	Breakdown       []BreakdownItem `json:"breakdown"`
	TotalLandedCost float64         `json:"total_landed_cost"`
	Currency        string          `json:"currency"`
	LatencyMS       float64         `json:"latency_ms"`
	Err             string          `json:"error,omitempty"`
}

// OK reports whether the calculation succeeded.
func (d *DutyResult) OK() bool {
	return d != nil && d.Err == ""
}

// CheckBreakdown verifies the landed-cost invariant: total equals the
// product value plus all non-product breakdown amounts.
func (d *DutyResult) CheckBreakdown() error {
	if len(d.Breakdown) == 0 {
		return fmt.Errorf("breakdown is empty")
	}
	sum := 0.0
	for _, item := range d.Breakdown {
		sum += item.Amount
	}
	if math.Abs(sum-d.TotalLandedCost) > BreakdownTolerance {
		return fmt.Errorf("breakdown sums to %v, total is %v", sum, d.TotalLandedCost)
	}
	return nil
}

// NewDutyResult assembles a successful duty result. The product value
// always leads the breakdown and the total is computed from the lines, so
// the landed-cost invariant holds by construction even when a provider
// reports an inconsistent total of its own.
func NewDutyResult(provider ProviderID, code string, value float64, duty DutyLine, vat TaxLine, fees []BreakdownItem, currency string, latency time.Duration) *DutyResult {
	breakdown := make([]BreakdownItem, 0, 3+len(fees))
	breakdown = append(breakdown, BreakdownItem{Name: "Product value", Amount: value})
	breakdown = append(breakdown, BreakdownItem{Name: "Customs duty", Amount: duty.Amount, Rate: duty.Rate})
	breakdown = append(breakdown, BreakdownItem{Name: "VAT", Amount: vat.Amount, Rate: vat.Rate})
	breakdown = append(breakdown, fees...)

	total := 0.0
	for _, item := range breakdown {
		total += item.Amount
	}

	return &DutyResult{
		Provider:        provider,
		Code:            code,
		Duty:            duty,
		VAT:             vat,
		Breakdown:       breakdown,
		TotalLandedCost: total,
		Currency:        currency,
		LatencyMS:       float64(latency.Microseconds()) / 1000.0,
	}
}

// ErrorDutyResult builds the fail-safe result for a failed duty call: no
// duty or tax assumed, total defaulted to the bare product value.
func ErrorDutyResult(provider ProviderID, code string, value float64, currency string, latency time.Duration, errMsg string) *DutyResult {
	return &DutyResult{
		Provider:        provider,
		Code:            code,
		Breakdown:       []BreakdownItem{{Name: "Product value", Amount: value}},
		TotalLandedCost: value,
		Currency:        currency,
		LatencyMS:       float64(latency.Microseconds()) / 1000.0,
		Err:             errMsg,
	}
}
