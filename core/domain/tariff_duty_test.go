package domain

import (
	"testing"
	"time"
)

func TestNewDutyResultBreakdown(t *testing.T) {
	duty := DutyLine{Amount: 12, Rate: "12%", Category: "bags"}
	vat := TaxLine{Amount: 21.28, Rate: "19%"}
	fees := []BreakdownItem{{Name: "Handling fee", Amount: 5}}

	r := NewDutyResult(ProviderReasoning, "42022100", 100, duty, vat, fees, "EUR", time.Second)

	if !r.OK() {
		t.Fatal("expected OK result")
	}
	if r.Breakdown[0].Name != "Product value" || r.Breakdown[0].Amount != 100 {
		t.Errorf("breakdown must start with the product value, got %+v", r.Breakdown[0])
	}
	want := 100 + 12 + 21.28 + 5
	if r.TotalLandedCost != want {
		t.Errorf("TotalLandedCost = %v, want %v", r.TotalLandedCost, want)
	}
	if err := r.CheckBreakdown(); err != nil {
		t.Errorf("CheckBreakdown failed: %v", err)
	}
}

func TestErrorDutyResultDefaultsToValue(t *testing.T) {
	r := ErrorDutyResult(ProviderStructured, "420221", 250, "EUR", 0, "provider down")

	if r.OK() {
		t.Error("error result must not be OK")
	}
	if r.TotalLandedCost != 250 {
		t.Errorf("TotalLandedCost = %v, want bare value 250", r.TotalLandedCost)
	}
	if len(r.Breakdown) != 1 || r.Breakdown[0].Name != "Product value" {
		t.Errorf("error breakdown must hold only the product value, got %+v", r.Breakdown)
	}
	if err := r.CheckBreakdown(); err != nil {
		t.Errorf("CheckBreakdown failed: %v", err)
	}
}

func TestCheckBreakdownDetectsMismatch(t *testing.T) {
	r := &DutyResult{
		Breakdown:       []BreakdownItem{{Name: "Product value", Amount: 100}, {Name: "VAT", Amount: 19}},
		TotalLandedCost: 100,
	}
	if err := r.CheckBreakdown(); err == nil {
		t.Error("expected mismatch error")
	}

	r.TotalLandedCost = 119
	if err := r.CheckBreakdown(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
