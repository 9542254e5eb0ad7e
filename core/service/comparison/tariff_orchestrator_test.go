package comparison

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tariff_server/core/domain"
	"tariff_server/core/port/out"
	"tariff_server/pkg/apperr"
)

type fakeProvider struct {
	id     domain.ProviderID
	result *domain.ClassificationResult

	mu    sync.Mutex
	seen  []*domain.ClassificationInput
	calls int
}

func (f *fakeProvider) ID() domain.ProviderID { return f.id }

func (f *fakeProvider) Classify(_ context.Context, input *domain.ClassificationInput) *domain.ClassificationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, input)
	return f.result
}

type fakeDuty struct {
	mu       sync.Mutex
	requests []out.DutyRequest
	results  map[domain.ProviderID]*domain.DutyResult
}

func (f *fakeDuty) CalculateDuty(_ context.Context, req out.DutyRequest) *domain.DutyResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if r, ok := f.results[req.Provider]; ok {
		return r
	}
	return domain.NewDutyResult(req.Provider, req.Code, req.Value,
		domain.DutyLine{Amount: req.Value * 0.1, Rate: "10%"},
		domain.TaxLine{Amount: req.Value * 0.19, Rate: "19%"},
		nil, req.Currency, 0)
}

type fakeStore struct {
	mu      sync.Mutex
	created []*domain.ComparisonResult
	getErr  error
}

func (f *fakeStore) Create(_ context.Context, r *domain.ComparisonResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, r)
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*domain.ComparisonResult, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.created {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, out.ErrComparisonNotFound
}

func (f *fakeStore) List(_ context.Context, limit, offset int) ([]*domain.ComparisonResult, int, error) {
	return f.created, len(f.created), nil
}

func (f *fakeStore) Stats(_ context.Context) (*domain.StoreStats, error) {
	return domain.ComputeStats(f.created), nil
}

func newTestService(reasoning, structured *fakeProvider, duty *fakeDuty, store *fakeStore) *Service {
	return NewService(
		[]out.ClassificationProvider{reasoning, structured},
		duty,
		store,
		Config{},
	)
}

func textRequest() *domain.ComparisonRequest {
	return &domain.ComparisonRequest{
		Input: domain.ClassificationInput{
			ProductName:        "leather handbag",
			OriginCountry:      "CN",
			DestinationCountry: "DE",
		},
		Currency:      "EUR",
		Providers:     []domain.ProviderID{domain.ProviderReasoning, domain.ProviderStructured},
		CalculateDuty: true,
	}
}

func TestCompareHappyPath(t *testing.T) {
	reasoning := &fakeProvider{id: domain.ProviderReasoning, result: okResult(domain.ProviderReasoning, "42022100", 0.85)}
	structured := &fakeProvider{id: domain.ProviderStructured, result: okResult(domain.ProviderStructured, "42022100", 0.92)}
	duty := &fakeDuty{}
	store := &fakeStore{}

	svc := newTestService(reasoning, structured, duty, store)

	req := textRequest()
	declared := 300.0
	req.ProductValue = &declared

	result, err := svc.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if result.ID == "" {
		t.Error("result has no id")
	}
	if len(result.Classifications) != 2 {
		t.Fatalf("got %d classifications", len(result.Classifications))
	}
	if result.ResolvedValue == nil || *result.ResolvedValue != 300 {
		t.Errorf("ResolvedValue = %v", result.ResolvedValue)
	}
	if result.ValueEstimated {
		t.Error("declared value must not be flagged as estimated")
	}

	if len(result.Duties) != 2 {
		t.Fatalf("got %d duties, want 2", len(result.Duties))
	}
	for id, d := range result.Duties {
		if err := d.CheckBreakdown(); err != nil {
			t.Errorf("duty breakdown for %s: %v", id, err)
		}
	}

	if len(result.Analysis.Matches) != 1 {
		t.Fatalf("got %d match cells", len(result.Analysis.Matches))
	}
	if m := result.Analysis.Matches[0]; m.Exact == nil || !*m.Exact {
		t.Error("expected exact match")
	}
	// Same code, structured has higher confidence: structured wins.
	if result.Analysis.Winner != string(domain.ProviderStructured) {
		t.Errorf("Winner = %q", result.Analysis.Winner)
	}

	if delta, ok := result.Analysis.DutyDeltaByPair["reasoning:structured"]; !ok || delta != 0 {
		t.Errorf("duty delta = %v (present=%v)", delta, ok)
	}

	if len(store.created) != 1 {
		t.Fatalf("stored %d results", len(store.created))
	}
	if got, err := svc.Get(context.Background(), result.ID); err != nil || got.ID != result.ID {
		t.Errorf("Get returned %v, %v", got, err)
	}
}

func TestCompareSubstitutesReasoningOutputForImageOnlyInput(t *testing.T) {
	reasoningResult := okResult(domain.ProviderReasoning, "42022100", 0.85)
	reasoningResult.Description = "leather handbag"
	reasoningResult.Reasoning = "Visible grain and stitching indicate a leather outer surface."

	reasoning := &fakeProvider{id: domain.ProviderReasoning, result: reasoningResult}
	structured := &fakeProvider{id: domain.ProviderStructured, result: okResult(domain.ProviderStructured, "42022190", 0.9)}
	svc := newTestService(reasoning, structured, &fakeDuty{}, &fakeStore{})

	req := &domain.ComparisonRequest{
		Input: domain.ClassificationInput{
			ImageBytes:         []byte{0xff, 0xd8, 0xff},
			DestinationCountry: "DE",
		},
		Providers: []domain.ProviderID{domain.ProviderReasoning, domain.ProviderStructured},
	}

	result, err := svc.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if len(structured.seen) != 1 {
		t.Fatalf("structured called %d times", len(structured.seen))
	}
	got := structured.seen[0]
	if got.ProductName != "leather handbag" {
		t.Errorf("structured received name %q, want substituted description", got.ProductName)
	}
	if got.ImageBytes != nil {
		t.Error("substitute input must not carry image bytes")
	}

	// The original request input stays untouched.
	if req.Input.ProductName != "" || len(req.Input.ImageBytes) != 3 {
		t.Error("original request input was mutated")
	}

	// Stored input never carries the raw bytes, only their length.
	if result.Input.ImageBytes != nil || result.Input.ImageBytesLen != 3 {
		t.Errorf("stored input = %+v", result.Input)
	}
}

func TestCompareBorrowsCodeWhenStructuredFails(t *testing.T) {
	reasoningResult := okResult(domain.ProviderReasoning, "42022100", 0.85)
	reasoningResult.EstimatedValue = 120.0

	reasoning := &fakeProvider{id: domain.ProviderReasoning, result: reasoningResult}
	structured := &fakeProvider{id: domain.ProviderStructured, result: errResult(domain.ProviderStructured)}
	duty := &fakeDuty{}
	svc := newTestService(reasoning, structured, duty, &fakeStore{})

	req := textRequest()
	result, err := svc.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if result.ResolvedValue == nil || *result.ResolvedValue != 120 || !result.ValueEstimated {
		t.Errorf("value resolution = %v estimated=%v", result.ResolvedValue, result.ValueEstimated)
	}

	// Both duty slots are filled, the failed provider borrowing the
	// surviving provider's code.
	if len(result.Duties) != 2 {
		t.Fatalf("got %d duties, want 2", len(result.Duties))
	}
	for _, r := range duty.requests {
		if r.Code != "42022100" {
			t.Errorf("duty request for %s used code %q", r.Provider, r.Code)
		}
	}

	// No comparison possible, so the match cell is undefined.
	if m := result.Analysis.Matches[0]; m.Exact != nil || m.Family != nil {
		t.Errorf("match cell = %+v, want nil values", m)
	}

	if result.Analysis.Winner != string(domain.ProviderReasoning) {
		t.Errorf("Winner = %q, want reasoning", result.Analysis.Winner)
	}
}

func TestCompareSurvivesPartialDutyFailure(t *testing.T) {
	reasoning := &fakeProvider{id: domain.ProviderReasoning, result: okResult(domain.ProviderReasoning, "42022100", 0.85)}
	structured := &fakeProvider{id: domain.ProviderStructured, result: okResult(domain.ProviderStructured, "42022100", 0.92)}
	duty := &fakeDuty{results: map[domain.ProviderID]*domain.DutyResult{
		domain.ProviderReasoning: domain.ErrorDutyResult(
			domain.ProviderReasoning, "42022100", 300, "EUR", 0, "duty API unavailable"),
	}}
	store := &fakeStore{}

	svc := newTestService(reasoning, structured, duty, store)

	req := textRequest()
	declared := 300.0
	req.ProductValue = &declared

	result, err := svc.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	// One duty call failing never drops the other's entry or the request.
	if len(result.Duties) != 2 {
		t.Fatalf("got %d duties, want 2", len(result.Duties))
	}

	failed := result.Duties[domain.ProviderReasoning]
	if failed.OK() {
		t.Fatal("reasoning duty should carry the injected error")
	}
	if failed.TotalLandedCost != 300 {
		t.Errorf("failed duty total = %v, want bare product value", failed.TotalLandedCost)
	}
	if err := failed.CheckBreakdown(); err != nil {
		t.Errorf("failed duty breakdown: %v", err)
	}

	ok := result.Duties[domain.ProviderStructured]
	if !ok.OK() {
		t.Fatalf("structured duty unexpectedly failed: %s", ok.Err)
	}
	if err := ok.CheckBreakdown(); err != nil {
		t.Errorf("structured duty breakdown: %v", err)
	}

	// No delta is computed against the errored entry; its zero-duty total
	// would fabricate a divergence.
	if result.Analysis.DutyDeltaByPair != nil {
		t.Errorf("DutyDeltaByPair = %v, want none", result.Analysis.DutyDeltaByPair)
	}

	if len(store.created) != 1 {
		t.Fatalf("stored %d results", len(store.created))
	}
}

func TestCompareSkipsDutyWithoutValue(t *testing.T) {
	reasoning := &fakeProvider{id: domain.ProviderReasoning, result: okResult(domain.ProviderReasoning, "42022100", 0.85)}
	structured := &fakeProvider{id: domain.ProviderStructured, result: okResult(domain.ProviderStructured, "42022100", 0.9)}
	duty := &fakeDuty{}
	svc := newTestService(reasoning, structured, duty, &fakeStore{})

	result, err := svc.Compare(context.Background(), textRequest())
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if result.Duties != nil {
		t.Errorf("Duties = %v, want none", result.Duties)
	}
	if len(duty.requests) != 0 {
		t.Errorf("duty provider was called %d times", len(duty.requests))
	}
	if result.ResolvedValue != nil {
		t.Errorf("ResolvedValue = %v, want nil", *result.ResolvedValue)
	}
}

func TestCompareValidation(t *testing.T) {
	reasoning := &fakeProvider{id: domain.ProviderReasoning, result: okResult(domain.ProviderReasoning, "420221", 0.5)}
	structured := &fakeProvider{id: domain.ProviderStructured, result: okResult(domain.ProviderStructured, "420221", 0.5)}
	svc := newTestService(reasoning, structured, &fakeDuty{}, &fakeStore{})

	negative := -5.0

	tests := []struct {
		name string
		req  *domain.ComparisonRequest
	}{
		{"no providers", &domain.ComparisonRequest{
			Input: domain.ClassificationInput{ProductName: "x", DestinationCountry: "DE"},
		}},
		{"unknown provider", &domain.ComparisonRequest{
			Input:     domain.ClassificationInput{ProductName: "x", DestinationCountry: "DE"},
			Providers: []domain.ProviderID{"oracle"},
		}},
		{"duplicate provider", &domain.ComparisonRequest{
			Input:     domain.ClassificationInput{ProductName: "x", DestinationCountry: "DE"},
			Providers: []domain.ProviderID{domain.ProviderReasoning, domain.ProviderReasoning},
		}},
		{"no signal", &domain.ComparisonRequest{
			Input:     domain.ClassificationInput{DestinationCountry: "DE"},
			Providers: []domain.ProviderID{domain.ProviderReasoning},
		}},
		{"missing destination", &domain.ComparisonRequest{
			Input:     domain.ClassificationInput{ProductName: "x"},
			Providers: []domain.ProviderID{domain.ProviderReasoning},
		}},
		{"both image forms", &domain.ComparisonRequest{
			Input: domain.ClassificationInput{
				ImageBytes: []byte{1}, ImageURL: "https://x/y.jpg", DestinationCountry: "DE",
			},
			Providers: []domain.ProviderID{domain.ProviderReasoning},
		}},
		{"negative value", &domain.ComparisonRequest{
			Input:        domain.ClassificationInput{ProductName: "x", DestinationCountry: "DE"},
			Providers:    []domain.ProviderID{domain.ProviderReasoning},
			ProductValue: &negative,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Compare(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var appErr *apperr.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("error is not an AppError: %v", err)
			}
			if appErr.Status != 400 {
				t.Errorf("status = %d, want 400", appErr.Status)
			}
			if reasoning.calls != 0 || structured.calls != 0 {
				t.Error("providers must not be called on validation failure")
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(
		&fakeProvider{id: domain.ProviderReasoning},
		&fakeProvider{id: domain.ProviderStructured},
		&fakeDuty{}, &fakeStore{},
	)

	_, err := svc.Get(context.Background(), "missing")
	appErr := apperr.AsAppError(err)
	if appErr.Code != apperr.CodeNotFound || appErr.Status != 404 {
		t.Errorf("got %+v, want 404 NOT_FOUND", appErr)
	}
}
