package comparison

import (
	"math"
	"testing"

	"tariff_server/core/domain"

	"github.com/goccy/go-json"
)

func TestParsePositiveAmount(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   float64
		wantOK bool
	}{
		{"float", 120.5, 120.5, true},
		{"int", 80, 80, true},
		{"numeric string", "99.90", 99.9, true},
		{"padded string", " 45 ", 45, true},
		{"json number", json.Number("60"), 60, true},
		{"zero", 0.0, 0, false},
		{"negative", -10.0, 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"garbage string", "around fifty", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePositiveAmount(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveValue(t *testing.T) {
	declared := 200.0
	withEstimate := okResult(domain.ProviderReasoning, "420221", 0.9)
	withEstimate.EstimatedValue = 85.0

	badEstimate := okResult(domain.ProviderReasoning, "420221", 0.9)
	badEstimate.EstimatedValue = "unknown"

	tests := []struct {
		name          string
		declared      *float64
		reasoning     *domain.ClassificationResult
		wantValue     *float64
		wantEstimated bool
	}{
		{"declared value wins over estimate", &declared, withEstimate, &declared, false},
		{"estimate used when nothing declared", nil, withEstimate, float64Ptr(85), true},
		{"unparseable estimate yields no value", nil, badEstimate, nil, false},
		{"errored reasoning yields no value", nil, errResult(domain.ProviderReasoning), nil, false},
		{"nothing at all", nil, nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, estimated := ResolveValue(tt.declared, tt.reasoning)
			if estimated != tt.wantEstimated {
				t.Errorf("estimated = %v, want %v", estimated, tt.wantEstimated)
			}
			switch {
			case tt.wantValue == nil && value != nil:
				t.Errorf("value = %v, want nil", *value)
			case tt.wantValue != nil && value == nil:
				t.Errorf("value = nil, want %v", *tt.wantValue)
			case tt.wantValue != nil && *value != *tt.wantValue:
				t.Errorf("value = %v, want %v", *value, *tt.wantValue)
			}
		})
	}
}

func TestDeriveSubstituteInput(t *testing.T) {
	original := &domain.ClassificationInput{
		ImageBytes:         []byte{0xff, 0xd8},
		OriginCountry:      "CN",
		DestinationCountry: "DE",
	}

	reasoning := okResult(domain.ProviderReasoning, "42022100", 0.9)
	reasoning.Description = "leather handbag"
	reasoning.Reasoning = "The image shows a handbag with an outer surface of leather."

	sub := DeriveSubstituteInput(original, reasoning)
	if sub == nil {
		t.Fatal("expected substitute input")
	}
	if sub.ProductName != "leather handbag" {
		t.Errorf("ProductName = %q", sub.ProductName)
	}
	if sub.ProductDescription != reasoning.Reasoning {
		t.Errorf("ProductDescription = %q", sub.ProductDescription)
	}
	if sub.ImageBytes != nil {
		t.Error("substitute must not carry image bytes")
	}
	if sub.OriginCountry != "CN" || sub.DestinationCountry != "DE" {
		t.Error("substitute must keep routing fields")
	}

	// The original input stays untouched.
	if len(original.ImageBytes) != 2 || original.ProductName != "" {
		t.Error("original input was mutated")
	}

	if DeriveSubstituteInput(original, errResult(domain.ProviderReasoning)) != nil {
		t.Error("errored reasoning must yield no substitute")
	}
	noDesc := okResult(domain.ProviderReasoning, "420221", 0.9)
	noDesc.Description = ""
	if DeriveSubstituteInput(original, noDesc) != nil {
		t.Error("reasoning without a description must yield no substitute")
	}
}

func float64Ptr(v float64) *float64 { return &v }
