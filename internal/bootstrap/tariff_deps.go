// Package bootstrap wires the application together.
package bootstrap

import (
	"time"

	"tariff_server/adapter/out/persistence"
	"tariff_server/adapter/out/provider"
	"tariff_server/config"
	"tariff_server/core/domain"
	"tariff_server/core/port/in"
	"tariff_server/core/port/out"
	"tariff_server/core/service/comparison"
	"tariff_server/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Dependencies holds every wired component the API layer needs.
type Dependencies struct {
	ComparisonService in.ComparisonService
	ResultStore       out.ResultStore

	// Redis is nil when the in-memory store is in use.
	Redis *redis.Client
}

// NewDependencies builds the adapters and the orchestrator. It returns a
// cleanup function releasing any held connections.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{}
	cleanup := func() {}

	if cfg.RedisURL != "" {
		redisStore, err := persistence.NewRedisResultStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		deps.ResultStore = redisStore
		deps.Redis = redisStore.Client()
		cleanup = func() {
			if err := redisStore.Close(); err != nil {
				logger.WithError(err).Warn("failed to close redis store")
			}
		}
		logger.Info("Using redis result store")
	} else {
		deps.ResultStore = persistence.NewMemoryResultStore()
		logger.Info("Using in-memory result store")
	}

	reasoning := provider.NewReasoningAdapter(provider.ReasoningConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	})
	structured := provider.NewStructuredAdapter(provider.StructuredConfig{
		URL:     cfg.ClassifyAPIURL,
		APIKey:  cfg.ClassifyAPIKey,
		Timeout: time.Duration(cfg.ClassifyTimeoutSec) * time.Second,
	})
	duty := provider.NewDutyAdapter(provider.DutyConfig{
		URL:             cfg.DutyAPIURL,
		APIKey:          cfg.DutyAPIKey,
		StandardVATRate: cfg.StandardVATRate,
		CustomsUnion:    cfg.CustomsUnion,
	})

	deps.ComparisonService = comparison.NewService(
		[]out.ClassificationProvider{reasoning, structured},
		duty,
		deps.ResultStore,
		comparison.Config{
			ReferenceProvider:      domain.ProviderID(cfg.ReferenceProvider),
			DutyDeltaThreshold:     cfg.DutyDeltaThreshold,
			ConfidenceGapThreshold: cfg.ConfidenceGapThreshold,
			DefaultCurrency:        cfg.DefaultCurrency,
			DutyTimeout:            time.Duration(cfg.DutyTimeoutSec) * time.Second,
		},
	)

	return deps, cleanup, nil
}
