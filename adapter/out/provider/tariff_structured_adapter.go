package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tariff_server/core/domain"
	"tariff_server/core/port/out"
	"tariff_server/pkg/apperr"
	"tariff_server/pkg/httputil"
	"tariff_server/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

const classifyQuery = `query Classify($name: String, $description: String, $imageUrl: String) {
  classify(name: $name, description: $description, imageUrl: $imageUrl) {
    hsCode
    hs6
    hs8
    description
    confidence
  }
}`

// StructuredAdapter calls the rules/graph classification service over
// GraphQL. It cannot consume inline image bytes; callers must hand it an
// image URL or product text (the orchestrator substitutes reasoning output
// when the original request carried only bytes).
type StructuredAdapter struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

// StructuredConfig configures the structured adapter.
type StructuredConfig struct {
	URL    string
	APIKey string

	// Timeout bounds a single classify call. Zero falls back to 45s.
	Timeout time.Duration
}

// NewStructuredAdapter creates the GraphQL-backed structured adapter.
func NewStructuredAdapter(cfg StructuredConfig) *StructuredAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &StructuredAdapter{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  httputil.ClassificationClient(),
		cb:      newBreaker("structured-provider"),
	}
}

// ID implements out.ClassificationProvider.
func (a *StructuredAdapter) ID() domain.ProviderID {
	return domain.ProviderStructured
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type classifyResponse struct {
	Data struct {
		Classify *struct {
			HSCode      string  `json:"hsCode"`
			HS6         string  `json:"hs6"`
			HS8         string  `json:"hs8"`
			Description string  `json:"description"`
			Confidence  float64 `json:"confidence"`
		} `json:"classify"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Classify implements out.ClassificationProvider.
func (a *StructuredAdapter) Classify(ctx context.Context, input *domain.ClassificationInput) *domain.ClassificationResult {
	if a.url == "" || a.apiKey == "" {
		return domain.ErrorClassificationResult(domain.ProviderStructured, 0,
			apperr.MissingCredential("structured provider").Error())
	}
	if !input.HasTextOrURL() {
		return domain.ErrorClassificationResult(domain.ProviderStructured, 0,
			"structured provider requires an image URL or product text")
	}

	variables := map[string]any{}
	if input.ProductName != "" {
		variables["name"] = input.ProductName
	}
	if input.ProductDescription != "" {
		variables["description"] = input.ProductDescription
	}
	if input.ImageURL != "" {
		variables["imageUrl"] = input.ImageURL
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	var resp classifyResponse
	_, err := a.cb.Execute(func() (any, error) {
		return nil, httputil.PostJSON(callCtx, a.client, a.url,
			map[string]string{"Authorization": "Bearer " + a.apiKey},
			graphqlRequest{Query: classifyQuery, Variables: variables},
			&resp)
	})
	latency := time.Since(start)
	metrics.RecordLatency("provider.structured", latency)

	if err != nil {
		return domain.ErrorClassificationResult(domain.ProviderStructured, latency,
			apperr.TransportError("structured provider", err).Error())
	}
	if len(resp.Errors) > 0 {
		return domain.ErrorClassificationResult(domain.ProviderStructured, latency,
			fmt.Sprintf("structured provider error: %s", resp.Errors[0].Message))
	}
	if resp.Data.Classify == nil {
		return domain.ErrorClassificationResult(domain.ProviderStructured, latency,
			apperr.MalformedResponse("structured provider", fmt.Errorf("missing classify payload")).Error())
	}

	c := resp.Data.Classify
	result, err := domain.NewClassificationResult(domain.ProviderStructured,
		c.HSCode, c.HS6, c.HS8, c.Description, c.Confidence, latency)
	if err != nil {
		res := domain.ErrorClassificationResult(domain.ProviderStructured, latency,
			apperr.MalformedResponse("structured provider", err).Error())
		if raw, merr := json.Marshal(c); merr == nil {
			res.Raw = string(raw)
		}
		return res
	}

	if raw, merr := json.Marshal(c); merr == nil {
		result.Raw = string(raw)
	}
	return result
}

var _ out.ClassificationProvider = (*StructuredAdapter)(nil)
