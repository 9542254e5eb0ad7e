package comparison

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"time"

	"tariff_server/core/domain"
	"tariff_server/core/port/in"
	"tariff_server/core/port/out"
	"tariff_server/pkg/apperr"
	"tariff_server/pkg/logger"
	"tariff_server/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config tunes the orchestrator's analysis and duty fan-out.
type Config struct {
	// ReferenceProvider is the provider the winner scoring anchors on.
	ReferenceProvider domain.ProviderID

	// DutyDeltaThreshold is the landed-cost difference (in the comparison
	// currency) above which the summary flags a significant divergence.
	DutyDeltaThreshold float64

	// ConfidenceGapThreshold is the confidence spread above which the
	// summary calls out the gap.
	ConfidenceGapThreshold float64

	DefaultCurrency string
	DutyTimeout     time.Duration
}

// Service orchestrates one comparison run end to end: classification
// fan-in, fallback substitution, value resolution, concurrent duty fan-out,
// analysis and persistence.
type Service struct {
	providers map[domain.ProviderID]out.ClassificationProvider
	duty      out.DutyProvider
	store     out.ResultStore
	cfg       Config
	log       *logger.Logger

	// events is a dedicated structured stream of per-provider outcomes,
	// kept separate from the service log for offline analysis.
	events zerolog.Logger
}

// NewService wires the orchestrator. Unset config fields fall back to
// service defaults.
func NewService(providers []out.ClassificationProvider, duty out.DutyProvider, store out.ResultStore, cfg Config) *Service {
	if cfg.ReferenceProvider == "" {
		cfg.ReferenceProvider = domain.ProviderStructured
	}
	if cfg.DutyDeltaThreshold == 0 {
		cfg.DutyDeltaThreshold = 50
	}
	if cfg.ConfidenceGapThreshold == 0 {
		cfg.ConfidenceGapThreshold = 0.2
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "EUR"
	}
	if cfg.DutyTimeout == 0 {
		cfg.DutyTimeout = 30 * time.Second
	}

	byID := make(map[domain.ProviderID]out.ClassificationProvider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}

	return &Service{
		providers: byID,
		duty:      duty,
		store:     store,
		cfg:       cfg,
		log:       logger.WithField("component", "comparison-service"),
		events:    zerolog.New(os.Stdout).With().Timestamp().Str("stream", "comparison-events").Logger(),
	}
}

func (s *Service) validate(req *domain.ComparisonRequest) error {
	if len(req.Providers) == 0 {
		return apperr.MissingField("providers")
	}
	seen := map[domain.ProviderID]bool{}
	for _, id := range req.Providers {
		if !domain.KnownProvider(id) {
			return apperr.InvalidInput("providers", "unknown provider '"+string(id)+"'")
		}
		if seen[id] {
			return apperr.InvalidInput("providers", "duplicate provider '"+string(id)+"'")
		}
		seen[id] = true
		if _, ok := s.providers[id]; !ok {
			return apperr.InvalidInput("providers", "provider '"+string(id)+"' is not configured")
		}
	}
	if len(req.Input.ImageBytes) > 0 && req.Input.ImageURL != "" {
		return apperr.InvalidInput("image", "image bytes and image URL are mutually exclusive")
	}
	if !req.Input.HasSignal() {
		return apperr.ValidationFailed("request carries no classifiable signal: supply an image or product text")
	}
	if req.Input.DestinationCountry == "" {
		return apperr.MissingField("destination_country")
	}
	if req.ProductValue != nil && (*req.ProductValue <= 0 || math.IsNaN(*req.ProductValue) || math.IsInf(*req.ProductValue, 0)) {
		return apperr.InvalidInput("product_value", "must be a finite positive amount")
	}
	return nil
}

// Compare implements in.ComparisonService.
func (s *Service) Compare(ctx context.Context, req *domain.ComparisonRequest) (*domain.ComparisonResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	start := time.Now()
	classifications := s.classify(ctx, req)

	value, estimated := ResolveValue(req.ProductValue, classifications[domain.ProviderReasoning])

	var duties map[domain.ProviderID]*domain.DutyResult
	if req.CalculateDuty && value != nil {
		duties = s.fanOutDuty(ctx, req, classifications, *value, currency)
	}

	input := *req.Input.Clone()
	input.ImageBytes = nil
	input.ImageBytesLen = len(req.Input.ImageBytes)

	result := &domain.ComparisonResult{
		ID:              uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		Input:           input,
		ResolvedValue:   value,
		ValueEstimated:  estimated,
		Currency:        currency,
		Classifications: classifications,
		Duties:          duties,
	}
	s.analyze(req, result)

	if err := s.store.Create(ctx, result); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternalError, "failed to persist comparison", 500)
	}

	metrics.RecordLatency("comparison.compare", time.Since(start))
	s.log.WithFields(map[string]any{
		"comparison_id": result.ID,
		"providers":     len(classifications),
		"winner":        result.Analysis.Winner,
		"duty_computed": duties != nil,
	}).WithDuration(time.Since(start)).Info("comparison completed")

	return result, nil
}

// classify runs the requested providers. The reasoning provider goes first
// because its output feeds two downstream decisions: the substitute input
// for a byte-only structured call and the estimated product value.
func (s *Service) classify(ctx context.Context, req *domain.ComparisonRequest) map[domain.ProviderID]*domain.ClassificationResult {
	results := make(map[domain.ProviderID]*domain.ClassificationResult, len(req.Providers))

	if req.Requested(domain.ProviderReasoning) {
		results[domain.ProviderReasoning] = s.providers[domain.ProviderReasoning].Classify(ctx, &req.Input)
	}

	if req.Requested(domain.ProviderStructured) {
		input := &req.Input
		if !input.HasTextOrURL() {
			if sub := DeriveSubstituteInput(&req.Input, results[domain.ProviderReasoning]); sub != nil {
				s.log.WithField("substituted_name", sub.ProductName).Debug("substituting reasoning output for structured input")
				input = sub
			}
		}
		results[domain.ProviderStructured] = s.providers[domain.ProviderStructured].Classify(ctx, input)
	}

	for id, r := range results {
		s.events.Info().
			Str("provider", string(id)).
			Bool("ok", r.OK()).
			Str("code", r.Code).
			Float64("confidence", r.Confidence).
			Float64("latency_ms", r.LatencyMS).
			Str("error", r.Err).
			Msg("classification completed")
	}

	return results
}

// fanOutDuty runs one duty calculation per requested provider concurrently.
// A provider without a usable code borrows the other provider's code so its
// duty slot still gets filled; with no code anywhere the slot stays empty.
func (s *Service) fanOutDuty(ctx context.Context, req *domain.ComparisonRequest, classifications map[domain.ProviderID]*domain.ClassificationResult, value float64, currency string) map[domain.ProviderID]*domain.DutyResult {
	type slot struct {
		provider domain.ProviderID
		code     string
	}

	var slots []slot
	for _, id := range req.Providers {
		code := ""
		if c := classifications[id]; c.OK() {
			code = c.Code
		} else if other := bestCode(req.Providers, classifications, id); other != "" {
			code = other
		}
		if code == "" {
			continue
		}
		slots = append(slots, slot{provider: id, code: code})
	}
	if len(slots) == 0 {
		return nil
	}

	results := make([]*domain.DutyResult, len(slots))
	var wg sync.WaitGroup
	for i, sl := range slots {
		wg.Add(1)
		go func(i int, sl slot) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.DutyTimeout)
			defer cancel()
			results[i] = s.duty.CalculateDuty(callCtx, out.DutyRequest{
				Provider:    sl.provider,
				Code:        sl.code,
				Value:       value,
				Currency:    currency,
				Origin:      req.Input.OriginCountry,
				Destination: req.Input.DestinationCountry,
			})
		}(i, sl)
	}
	wg.Wait()

	duties := make(map[domain.ProviderID]*domain.DutyResult, len(slots))
	for i, sl := range slots {
		duties[sl.provider] = results[i]
	}
	return duties
}

// bestCode finds a usable code from any other requested provider, in
// request order.
func bestCode(providers []domain.ProviderID, classifications map[domain.ProviderID]*domain.ClassificationResult, skip domain.ProviderID) string {
	for _, id := range providers {
		if id == skip {
			continue
		}
		if c := classifications[id]; c.OK() {
			return c.Code
		}
	}
	return ""
}

// analyze fills in the cross-provider analysis block. Notes are generated
// last so the summary can see every other analysis field.
func (s *Service) analyze(req *domain.ComparisonRequest, result *domain.ComparisonResult) {
	analysis := domain.Analysis{
		Matches:              BuildMatchMatrix(req.Providers, result.Classifications),
		ConfidenceByProvider: make(map[domain.ProviderID]float64, len(result.Classifications)),
	}
	for id, c := range result.Classifications {
		analysis.ConfidenceByProvider[id] = c.Confidence
	}

	if len(result.Duties) > 0 {
		deltas := make(map[string]float64)
		for i := 0; i < len(req.Providers); i++ {
			for j := i + 1; j < len(req.Providers); j++ {
				a, b := result.Duties[req.Providers[i]], result.Duties[req.Providers[j]]
				if a.OK() && b.OK() {
					deltas[domain.PairKey(req.Providers[i], req.Providers[j])] = math.Abs(a.TotalLandedCost - b.TotalLandedCost)
				}
			}
		}
		if len(deltas) > 0 {
			analysis.DutyDeltaByPair = deltas
		}
	}

	analysis.Winner = DetermineWinner(req.Providers, result.Classifications, s.cfg.ReferenceProvider)

	result.Analysis = analysis
	result.Analysis.Notes = BuildNotes(result, s.cfg.DutyDeltaThreshold, s.cfg.ConfidenceGapThreshold)
}

// Get implements in.ComparisonService.
func (s *Service) Get(ctx context.Context, id string) (*domain.ComparisonResult, error) {
	result, err := s.store.Get(ctx, id)
	if errors.Is(err, out.ErrComparisonNotFound) {
		return nil, apperr.NotFound("comparison")
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternalError, "failed to load comparison", 500)
	}
	return result, nil
}

// List implements in.ComparisonService.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.ComparisonResult, int, error) {
	results, total, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeInternalError, "failed to list comparisons", 500)
	}
	return results, total, nil
}

// Stats implements in.ComparisonService.
func (s *Service) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternalError, "failed to compute stats", 500)
	}
	return stats, nil
}

var _ in.ComparisonService = (*Service)(nil)
