package comparison

import (
	"math"
	"strconv"
	"strings"

	"tariff_server/core/domain"

	"github.com/goccy/go-json"
)

// ParsePositiveAmount coerces a provider-reported monetary value into a
// float. Providers return numbers, quoted numbers, or garbage; anything
// that is not a finite positive amount is rejected rather than guessed at.
func ParsePositiveAmount(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}

// ResolveValue picks the product value duty calculations run on. A
// user-declared value always wins; otherwise the reasoning provider's
// estimate is used and flagged as estimated. No usable value means no duty
// calculation, never a fabricated one.
func ResolveValue(declared *float64, reasoning *domain.ClassificationResult) (value *float64, estimated bool) {
	if declared != nil && *declared > 0 {
		v := *declared
		return &v, false
	}
	if reasoning.OK() {
		if v, ok := ParsePositiveAmount(reasoning.EstimatedValue); ok {
			return &v, true
		}
	}
	return nil, false
}

// DeriveSubstituteInput builds the input handed to the structured provider
// when the original request carried only inline image bytes. The reasoning
// provider's product identification stands in for the missing text; the
// original input is never mutated.
func DeriveSubstituteInput(original *domain.ClassificationInput, reasoning *domain.ClassificationResult) *domain.ClassificationInput {
	if !reasoning.OK() || reasoning.Description == "" {
		return nil
	}
	sub := original.Clone()
	sub.ImageBytes = nil
	sub.ProductName = reasoning.Description
	sub.ProductDescription = reasoning.Reasoning
	return sub
}
