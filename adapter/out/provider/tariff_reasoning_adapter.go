package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"tariff_server/core/domain"
	"tariff_server/core/port/out"
	"tariff_server/pkg/apperr"
	"tariff_server/pkg/httputil"
	"tariff_server/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	openai "github.com/sashabaranov/go-openai"
)

const reasoningSystemPrompt = `You are a customs classification expert. Identify the product from the image and/or text and classify it under the Harmonized System.

Respond with this exact JSON format:
{
  "code": "full HS code, at least 6 digits, digits only or dotted",
  "description": "short product identification, e.g. 'leather handbag'",
  "confidence": 0.0-1.0,
  "reasoning": "1-3 sentences explaining the classification",
  "estimated_value": typical retail value in EUR as a number, or null if no value can be estimated
}

Only estimate a value when the product is clearly identifiable. Never invent a code with fewer than 6 digits.`

// ReasoningAdapter classifies via an OpenAI vision completion. It is the
// only provider that can consume inline image bytes and the only one that
// returns a monetary estimate.
type ReasoningAdapter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	cb          *gobreaker.CircuitBreaker
	hasKey      bool
}

// ReasoningConfig configures the reasoning adapter.
type ReasoningConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewReasoningAdapter creates the OpenAI-backed reasoning adapter.
func NewReasoningAdapter(cfg ReasoningConfig) *ReasoningAdapter {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = httputil.NewClient(httputil.OpenAIClientConfig())

	return &ReasoningAdapter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		cb:          newBreaker("reasoning-provider"),
		hasKey:      cfg.APIKey != "",
	}
}

// ID implements out.ClassificationProvider.
func (a *ReasoningAdapter) ID() domain.ProviderID {
	return domain.ProviderReasoning
}

// reasoningPayload is the JSON shape the model is instructed to return.
type reasoningPayload struct {
	Code           string  `json:"code"`
	Description    string  `json:"description"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	EstimatedValue any     `json:"estimated_value"`
}

// Classify implements out.ClassificationProvider. All failure paths
// return an error-carrying result; nothing escapes as a Go error.
func (a *ReasoningAdapter) Classify(ctx context.Context, input *domain.ClassificationInput) *domain.ClassificationResult {
	if !a.hasKey {
		return domain.ErrorClassificationResult(domain.ProviderReasoning, 0,
			apperr.MissingCredential("reasoning provider").Error())
	}
	if !input.HasSignal() {
		return domain.ErrorClassificationResult(domain.ProviderReasoning, 0,
			"no classifiable signal in input")
	}

	start := time.Now()
	content, err := a.cb.Execute(func() (any, error) {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.model,
			MaxTokens:   a.maxTokens,
			Temperature: a.temperature,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: reasoningSystemPrompt,
				},
				{
					Role:         openai.ChatMessageRoleUser,
					MultiContent: buildUserParts(input),
				},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	latency := time.Since(start)
	metrics.RecordLatency("provider.reasoning", latency)

	if err != nil {
		return domain.ErrorClassificationResult(domain.ProviderReasoning, latency,
			apperr.TransportError("reasoning provider", err).Error())
	}

	raw := strings.TrimSpace(content.(string))
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload reasoningPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		res := domain.ErrorClassificationResult(domain.ProviderReasoning, latency,
			apperr.MalformedResponse("reasoning provider", err).Error())
		res.Raw = raw
		return res
	}

	result, err := domain.NewClassificationResult(domain.ProviderReasoning,
		payload.Code, "", "", payload.Description, payload.Confidence, latency)
	if err != nil {
		res := domain.ErrorClassificationResult(domain.ProviderReasoning, latency,
			apperr.MalformedResponse("reasoning provider", err).Error())
		res.Raw = raw
		return res
	}

	result.Reasoning = payload.Reasoning
	result.EstimatedValue = payload.EstimatedValue
	result.Raw = raw
	return result
}

// buildUserParts assembles the multimodal message: free text first, then
// the image as a remote URL or an inline data URL.
func buildUserParts(input *domain.ClassificationInput) []openai.ChatMessagePart {
	var text strings.Builder
	text.WriteString("Classify this product.")
	if input.ProductName != "" {
		fmt.Fprintf(&text, "\nProduct name: %s", input.ProductName)
	}
	if input.ProductDescription != "" {
		fmt.Fprintf(&text, "\nDescription: %s", input.ProductDescription)
	}
	if input.OriginCountry != "" {
		fmt.Fprintf(&text, "\nCountry of origin: %s", input.OriginCountry)
	}

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: text.String()},
	}

	switch {
	case input.ImageURL != "":
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: input.ImageURL},
		})
	case len(input.ImageBytes) > 0:
		dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(input.ImageBytes)
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
		})
	}

	return parts
}

var _ out.ClassificationProvider = (*ReasoningAdapter)(nil)
