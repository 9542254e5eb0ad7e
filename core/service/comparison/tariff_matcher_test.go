package comparison

import (
	"testing"

	"tariff_server/core/domain"
)

func okResult(provider domain.ProviderID, code string, confidence float64) *domain.ClassificationResult {
	r, err := domain.NewClassificationResult(provider, code, "", "", "desc", confidence, 0)
	if err != nil {
		panic(err)
	}
	return r
}

func errResult(provider domain.ProviderID) *domain.ClassificationResult {
	return domain.ErrorClassificationResult(provider, 0, "provider failed")
}

func TestExactAndFamilyMatch(t *testing.T) {
	tests := []struct {
		name       string
		a, b       *domain.ClassificationResult
		wantExact  *bool
		wantFamily *bool
	}{
		{
			name:       "identical codes match exactly and by family",
			a:          okResult(domain.ProviderReasoning, "42022100", 0.9),
			b:          okResult(domain.ProviderStructured, "42022100", 0.8),
			wantExact:  boolPtr(true),
			wantFamily: boolPtr(true),
		},
		{
			name:       "same family different suffix",
			a:          okResult(domain.ProviderReasoning, "42022100", 0.9),
			b:          okResult(domain.ProviderStructured, "42022190", 0.8),
			wantExact:  boolPtr(false),
			wantFamily: boolPtr(true),
		},
		{
			name:       "different families",
			a:          okResult(domain.ProviderReasoning, "420221", 0.9),
			b:          okResult(domain.ProviderStructured, "610910", 0.8),
			wantExact:  boolPtr(false),
			wantFamily: boolPtr(false),
		},
		{
			name:       "errored side yields no comparison",
			a:          okResult(domain.ProviderReasoning, "420221", 0.9),
			b:          errResult(domain.ProviderStructured),
			wantExact:  nil,
			wantFamily: nil,
		},
		{
			name:       "nil side yields no comparison",
			a:          nil,
			b:          okResult(domain.ProviderStructured, "420221", 0.8),
			wantExact:  nil,
			wantFamily: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exact := ExactMatch(tt.a, tt.b)
			family := FamilyMatch(tt.a, tt.b)

			if !boolPtrEq(exact, tt.wantExact) {
				t.Errorf("ExactMatch = %v, want %v", fmtBoolPtr(exact), fmtBoolPtr(tt.wantExact))
			}
			if !boolPtrEq(family, tt.wantFamily) {
				t.Errorf("FamilyMatch = %v, want %v", fmtBoolPtr(family), fmtBoolPtr(tt.wantFamily))
			}

			// Exact agreement always implies family agreement.
			if exact != nil && *exact && (family == nil || !*family) {
				t.Error("exact match without family match")
			}
		})
	}
}

func TestBuildMatchMatrix(t *testing.T) {
	providers := []domain.ProviderID{domain.ProviderReasoning, domain.ProviderStructured}

	results := map[domain.ProviderID]*domain.ClassificationResult{
		domain.ProviderReasoning:  okResult(domain.ProviderReasoning, "42022100", 0.9),
		domain.ProviderStructured: okResult(domain.ProviderStructured, "42022190", 0.8),
	}

	matches := BuildMatchMatrix(providers, results)
	if len(matches) != 1 {
		t.Fatalf("got %d cells, want 1", len(matches))
	}
	m := matches[0]
	if m.A != domain.ProviderReasoning || m.B != domain.ProviderStructured {
		t.Errorf("pair = %s:%s", m.A, m.B)
	}
	if m.Exact == nil || *m.Exact {
		t.Errorf("Exact = %v, want false", fmtBoolPtr(m.Exact))
	}
	if m.Family == nil || !*m.Family {
		t.Errorf("Family = %v, want true", fmtBoolPtr(m.Family))
	}

	// Single provider yields no pairs.
	if got := BuildMatchMatrix(providers[:1], results); len(got) != 0 {
		t.Errorf("single provider produced %d cells", len(got))
	}

	// Absent provider results still produce a cell, with nil values.
	matches = BuildMatchMatrix(providers, map[domain.ProviderID]*domain.ClassificationResult{
		domain.ProviderReasoning: results[domain.ProviderReasoning],
	})
	if len(matches) != 1 || matches[0].Exact != nil || matches[0].Family != nil {
		t.Errorf("absent provider cell = %+v, want nil values", matches[0])
	}
}

func boolPtr(b bool) *bool { return &b }

func boolPtrEq(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtBoolPtr(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
