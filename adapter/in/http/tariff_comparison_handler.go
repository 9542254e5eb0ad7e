package http

import (
	"encoding/base64"
	"strings"

	"tariff_server/core/domain"
	"tariff_server/core/port/in"
	"tariff_server/pkg/apperr"
	"tariff_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const maxImageBytes = 8 << 20 // 8 MiB decoded

// HandlerDefaults carries the request defaults applied before validation.
type HandlerDefaults struct {
	DestinationCountry string
	Currency           string
}

// ComparisonHandler handles the comparison API requests.
type ComparisonHandler struct {
	service  in.ComparisonService
	defaults HandlerDefaults
}

// NewComparisonHandler creates a new comparison handler.
func NewComparisonHandler(service in.ComparisonService, defaults HandlerDefaults) *ComparisonHandler {
	return &ComparisonHandler{service: service, defaults: defaults}
}

// Register registers all comparison routes.
func (h *ComparisonHandler) Register(api fiber.Router) {
	cmp := api.Group("/comparisons")
	cmp.Post("/", h.CreateComparison)
	cmp.Get("/", h.ListComparisons)
	cmp.Get("/stats", h.GetStats)
	cmp.Get("/:id", h.GetComparison)
}

// CompareRequest represents the request for one comparison run.
type CompareRequest struct {
	ImageBase64        string   `json:"image_base64,omitempty"`
	ImageURL           string   `json:"image_url,omitempty"`
	ProductName        string   `json:"product_name,omitempty"`
	ProductDescription string   `json:"product_description,omitempty"`
	OriginCountry      string   `json:"origin_country,omitempty"`
	DestinationCountry string   `json:"destination_country,omitempty"`
	ProductValue       *float64 `json:"product_value,omitempty"`
	Currency           string   `json:"currency,omitempty"`
	Providers          []string `json:"providers,omitempty"`
	CalculateDuty      *bool    `json:"calculate_duty,omitempty"`
}

func (h *ComparisonHandler) toDomain(req *CompareRequest) (*domain.ComparisonRequest, error) {
	if req.ImageBase64 != "" && req.ImageURL != "" {
		return nil, apperr.InvalidInput("image", "image_base64 and image_url are mutually exclusive")
	}

	var imageBytes []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return nil, apperr.InvalidInput("image_base64", "not valid base64")
		}
		if len(decoded) > maxImageBytes {
			return nil, apperr.InvalidInput("image_base64", "decoded image exceeds 8 MiB")
		}
		imageBytes = decoded
	}

	origin := strings.ToUpper(strings.TrimSpace(req.OriginCountry))
	if origin != "" && !isCountryCode(origin) {
		return nil, apperr.InvalidInput("origin_country", "must be a 2-letter ISO country code")
	}

	destination := strings.ToUpper(strings.TrimSpace(req.DestinationCountry))
	if destination == "" {
		destination = h.defaults.DestinationCountry
	}
	if !isCountryCode(destination) {
		return nil, apperr.InvalidInput("destination_country", "must be a 2-letter ISO country code")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = h.defaults.Currency
	}
	if !isCurrencyCode(currency) {
		return nil, apperr.InvalidInput("currency", "must be a 3-letter ISO currency code")
	}

	providers := []domain.ProviderID{domain.ProviderReasoning, domain.ProviderStructured}
	if len(req.Providers) > 0 {
		providers = providers[:0]
		for _, p := range req.Providers {
			providers = append(providers, domain.ProviderID(strings.ToLower(strings.TrimSpace(p))))
		}
	}

	calculateDuty := true
	if req.CalculateDuty != nil {
		calculateDuty = *req.CalculateDuty
	}

	return &domain.ComparisonRequest{
		Input: domain.ClassificationInput{
			ImageBytes:         imageBytes,
			ImageURL:           req.ImageURL,
			ProductName:        strings.TrimSpace(req.ProductName),
			ProductDescription: strings.TrimSpace(req.ProductDescription),
			OriginCountry:      origin,
			DestinationCountry: destination,
			ImageBytesLen:      len(imageBytes),
		},
		ProductValue:  req.ProductValue,
		Currency:      currency,
		Providers:     providers,
		CalculateDuty: calculateDuty,
	}, nil
}

// CreateComparison runs a new comparison
// POST /api/v1/comparisons
func (h *ComparisonHandler) CreateComparison(c *fiber.Ctx) error {
	var req CompareRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	domainReq, err := h.toDomain(&req)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	result, err := h.service.Compare(c.Context(), domainReq)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.Created(c, result)
}

// GetComparison returns a stored comparison by ID
// GET /api/v1/comparisons/:id
func (h *ComparisonHandler) GetComparison(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.BadRequest(c, "comparison id is required")
	}

	result, err := h.service.Get(c.Context(), id)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, result)
}

// ListComparisons returns stored comparisons, newest first
// GET /api/v1/comparisons?limit=20&offset=0
func (h *ComparisonHandler) ListComparisons(c *fiber.Ctx) error {
	page := response.GetPagination(c, 20, 100)

	results, total, err := h.service.List(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OKWithMeta(c, results, &response.Meta{
		Total:   total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: page.Offset+len(results) < total,
	})
}

// GetStats returns aggregate statistics over all stored comparisons
// GET /api/v1/comparisons/stats
func (h *ComparisonHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, stats)
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	return isUpperAlpha(s)
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	return isUpperAlpha(s)
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
