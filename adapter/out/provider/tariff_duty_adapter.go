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

	"github.com/sony/gobreaker"
)

const dutyQuery = `query CalculateDuty($code: String!, $value: Float!, $currency: String!, $origin: String, $destination: String!) {
  calculateDuty(code: $code, value: $value, currency: $currency, origin: $origin, destination: $destination) {
    dutyAmount
    dutyRate
    dutyCategory
    vatAmount
    vatRate
    fees {
      name
      amount
      rate
    }
  }
}`

// DutyAdapter calls the duty calculation service. Failures never raise:
// they come back as error-carrying results whose total defaults to the
// bare product value (zero duty assumed on failure).
type DutyAdapter struct {
	url     string
	apiKey  string
	vatRate float64
	union   map[string]bool
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

// DutyConfig configures the duty adapter.
type DutyConfig struct {
	URL             string
	APIKey          string
	StandardVATRate float64
	CustomsUnion    []string
}

// NewDutyAdapter creates the duty calculation adapter.
func NewDutyAdapter(cfg DutyConfig) *DutyAdapter {
	union := make(map[string]bool, len(cfg.CustomsUnion))
	for _, c := range cfg.CustomsUnion {
		union[c] = true
	}
	return &DutyAdapter{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		vatRate: cfg.StandardVATRate,
		union:   union,
		client:  httputil.DutyClient(),
		cb:      newBreaker("duty-provider"),
	}
}

// domestic reports whether origin and destination sit in the same customs
// union, in which case no customs duty applies.
func (a *DutyAdapter) domestic(origin, destination string) bool {
	if origin == "" {
		return false
	}
	if origin == destination {
		return true
	}
	return a.union[origin] && a.union[destination]
}

type dutyResponse struct {
	Data struct {
		CalculateDuty *struct {
			DutyAmount   float64 `json:"dutyAmount"`
			DutyRate     string  `json:"dutyRate"`
			DutyCategory string  `json:"dutyCategory"`
			VATAmount    float64 `json:"vatAmount"`
			VATRate      string  `json:"vatRate"`
			Fees         []struct {
				Name   string  `json:"name"`
				Amount float64 `json:"amount"`
				Rate   string  `json:"rate"`
			} `json:"fees"`
		} `json:"calculateDuty"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// CalculateDuty implements out.DutyProvider.
func (a *DutyAdapter) CalculateDuty(ctx context.Context, req out.DutyRequest) *domain.DutyResult {
	// Shipments within one customs union are a legitimate zero-duty
	// outcome, not an error, and need no provider round trip.
	if a.domestic(req.Origin, req.Destination) {
		vat := domain.TaxLine{
			Amount: round2(req.Value * a.vatRate),
			Rate:   fmt.Sprintf("%.0f%%", a.vatRate*100),
		}
		duty := domain.DutyLine{Amount: 0, Rate: "0%", Category: "domestic"}
		return domain.NewDutyResult(req.Provider, req.Code, req.Value, duty, vat, nil, req.Currency, 0)
	}

	if a.url == "" || a.apiKey == "" {
		return domain.ErrorDutyResult(req.Provider, req.Code, req.Value, req.Currency, 0,
			apperr.MissingCredential("duty provider").Error())
	}

	variables := map[string]any{
		"code":        req.Code,
		"value":       req.Value,
		"currency":    req.Currency,
		"destination": req.Destination,
	}
	if req.Origin != "" {
		variables["origin"] = req.Origin
	}

	start := time.Now()
	var resp dutyResponse
	_, err := a.cb.Execute(func() (any, error) {
		return nil, httputil.PostJSON(ctx, a.client, a.url,
			map[string]string{"Authorization": "Bearer " + a.apiKey},
			graphqlRequest{Query: dutyQuery, Variables: variables},
			&resp)
	})
	latency := time.Since(start)
	metrics.RecordLatency("provider.duty", latency)

	if err != nil {
		return domain.ErrorDutyResult(req.Provider, req.Code, req.Value, req.Currency, latency,
			apperr.TransportError("duty provider", err).Error())
	}
	if len(resp.Errors) > 0 {
		return domain.ErrorDutyResult(req.Provider, req.Code, req.Value, req.Currency, latency,
			fmt.Sprintf("duty provider error: %s", resp.Errors[0].Message))
	}
	if resp.Data.CalculateDuty == nil {
		return domain.ErrorDutyResult(req.Provider, req.Code, req.Value, req.Currency, latency,
			apperr.MalformedResponse("duty provider", fmt.Errorf("missing calculateDuty payload")).Error())
	}

	d := resp.Data.CalculateDuty
	duty := domain.DutyLine{Amount: d.DutyAmount, Rate: d.DutyRate, Category: d.DutyCategory}
	vat := domain.TaxLine{Amount: d.VATAmount, Rate: d.VATRate}

	fees := make([]domain.BreakdownItem, 0, len(d.Fees))
	for _, f := range d.Fees {
		fees = append(fees, domain.BreakdownItem{Name: f.Name, Amount: f.Amount, Rate: f.Rate})
	}

	return domain.NewDutyResult(req.Provider, req.Code, req.Value, duty, vat, fees, req.Currency, latency)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

var _ out.DutyProvider = (*DutyAdapter)(nil)
