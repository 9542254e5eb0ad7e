// Package domain contains the core types of the tariff comparison service.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProviderID identifies a classification backend. The set is closed:
// new providers require a new constant and an adapter.
type ProviderID string

const (
	// ProviderReasoning is the free-form vision/LLM classifier. It is the
	// only provider that may return an estimated monetary value.
	ProviderReasoning ProviderID = "reasoning"

	// ProviderStructured is the rules/graph classifier. It requires a
	// resolvable image URL or product text and cannot consume inline bytes.
	ProviderStructured ProviderID = "structured"
)

// KnownProvider reports whether id belongs to the closed provider set.
func KnownProvider(id ProviderID) bool {
	return id == ProviderReasoning || id == ProviderStructured
}

// ClassificationInput is the signal handed to a classification provider.
// ImageBytes and ImageURL are mutually exclusive; callers must supply at
// most one of them.
type ClassificationInput struct {
	ImageBytes         []byte `json:"-"`
	ImageURL           string `json:"image_url,omitempty"`
	ProductName        string `json:"product_name,omitempty"`
	ProductDescription string `json:"product_description,omitempty"`
	OriginCountry      string `json:"origin_country,omitempty"`
	DestinationCountry string `json:"destination_country"`

	// ImageBytesLen is kept for forensics; the bytes themselves are never
	// serialized into stored results.
	ImageBytesLen int `json:"image_bytes_len,omitempty"`
}

// HasSignal reports whether the input carries anything a reasoning
// provider could classify.
func (in *ClassificationInput) HasSignal() bool {
	return len(in.ImageBytes) > 0 || in.ImageURL != "" ||
		in.ProductName != "" || in.ProductDescription != ""
}

// HasTextOrURL reports whether the input is sufficient for the structured
// provider, which cannot consume inline image bytes.
func (in *ClassificationInput) HasTextOrURL() bool {
	return in.ImageURL != "" || in.ProductName != "" || in.ProductDescription != ""
}

// Clone returns a copy of the input. The byte slice is shared; inputs are
// treated as immutable after construction.
func (in *ClassificationInput) Clone() *ClassificationInput {
	cp := *in
	return &cp
}

// ClassificationResult is the outcome of a single provider call. Results
// are constructed once by an adapter and immutable afterwards.
type ClassificationResult struct {
	Provider    ProviderID `json:"provider"`
	Code        string     `json:"code,omitempty"`
	HS6         string     `json:"hs6,omitempty"`
	HS8         string     `json:"hs8,omitempty"`
	Description string     `json:"description,omitempty"`
	Confidence  float64    `json:"confidence"`
	Reasoning   string     `json:"reasoning,omitempty"`

	// EstimatedValue is the reasoning provider's monetary estimate. It is
	// kept in raw decoded form (number or string) and parsed defensively
	// during value resolution.
	EstimatedValue any `json:"estimated_value,omitempty"`

	// Raw keeps the provider payload for forensic debugging.
	Raw string `json:"raw,omitempty"`

	LatencyMS float64 `json:"latency_ms"`
	Err       string  `json:"error,omitempty"`
}

// OK reports whether the result carries a usable classification.
func (r *ClassificationResult) OK() bool {
	return r != nil && r.Err == "" && r.Code != ""
}

// NormalizeCode strips separators commonly found in HS codes so prefix
// comparisons operate on bare digits.
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NewClassificationResult builds a valid result, deriving the 6- and
// 8-digit prefixes from the full code. Providers occasionally return
// prefix fields of their own; when supplied they must nest under the full
// code or the payload is rejected as malformed. The nesting invariant is
// load-bearing: family matching compares hs6 fields directly.
func NewClassificationResult(provider ProviderID, code, providerHS6, providerHS8, description string, confidence float64, latency time.Duration) (*ClassificationResult, error) {
	norm := NormalizeCode(code)
	if len(norm) < 6 {
		return nil, fmt.Errorf("code %q has fewer than 6 digits", code)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence %v outside [0,1]", confidence)
	}

	hs6 := norm[:6]
	hs8 := ""
	if len(norm) >= 8 {
		hs8 = norm[:8]
	}

	if providerHS6 != "" && NormalizeCode(providerHS6) != hs6 {
		return nil, fmt.Errorf("provider hs6 %q does not prefix code %q", providerHS6, code)
	}
	if providerHS8 != "" {
		ph8 := NormalizeCode(providerHS8)
		if !strings.HasPrefix(ph8, hs6) {
			return nil, fmt.Errorf("provider hs8 %q does not extend hs6 %q", providerHS8, hs6)
		}
		hs8 = ph8
	}

	return &ClassificationResult{
		Provider:    provider,
		Code:        norm,
		HS6:         hs6,
		HS8:         hs8,
		Description: description,
		Confidence:  confidence,
		LatencyMS:   float64(latency.Microseconds()) / 1000.0,
	}, nil
}

// ErrorClassificationResult builds the error-carrying result adapters
// return instead of propagating failures. Confidence is pinned to zero.
func ErrorClassificationResult(provider ProviderID, latency time.Duration, errMsg string) *ClassificationResult {
	return &ClassificationResult{
		Provider:   provider,
		Confidence: 0,
		LatencyMS:  float64(latency.Microseconds()) / 1000.0,
		Err:        errMsg,
	}
}
