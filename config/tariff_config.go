package config

import (
	"os"
	"strconv"
	"strings"
)

// euMembers is the default customs union. Origin/destination pairs inside
// one union ship duty-free with standard VAT.
var euMembers = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR",
	"DE", "GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL",
	"PL", "PT", "RO", "SK", "SI", "ES", "SE",
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Request defaults
	DefaultDestination string
	DefaultCurrency    string

	// Scoring
	ReferenceProvider      string
	DutyDeltaThreshold     float64
	ConfidenceGapThreshold float64

	// Reasoning provider (OpenAI)
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// Structured provider (classification graph API)
	ClassifyAPIURL string
	ClassifyAPIKey string

	// Duty provider
	DutyAPIURL      string
	DutyAPIKey      string
	StandardVATRate float64
	CustomsUnion    []string

	// Adapter timeouts
	ClassifyTimeoutSec int
	DutyTimeoutSec     int

	// Result store
	RedisURL string

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DefaultDestination: getEnv("DEFAULT_DESTINATION", "DE"),
		DefaultCurrency:    getEnv("DEFAULT_CURRENCY", "EUR"),

		ReferenceProvider:      getEnv("REFERENCE_PROVIDER", "structured"),
		DutyDeltaThreshold:     getEnvFloat("DUTY_DELTA_THRESHOLD", 50),
		ConfidenceGapThreshold: getEnvFloat("CONFIDENCE_GAP_THRESHOLD", 0.2),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),

		ClassifyAPIURL: getEnv("CLASSIFY_API_URL", ""),
		ClassifyAPIKey: getEnv("CLASSIFY_API_KEY", ""),

		DutyAPIURL:      getEnv("DUTY_API_URL", ""),
		DutyAPIKey:      getEnv("DUTY_API_KEY", ""),
		StandardVATRate: getEnvFloat("STANDARD_VAT_RATE", 0.19),
		CustomsUnion:    getEnvSlice("CUSTOMS_UNION", euMembers),

		ClassifyTimeoutSec: getEnvInt("CLASSIFY_TIMEOUT_SEC", 60),
		DutyTimeoutSec:     getEnvInt("DUTY_TIMEOUT_SEC", 30),

		RedisURL: getEnv("REDIS_URL", ""),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
