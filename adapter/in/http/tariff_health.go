package http

import (
	"context"
	"time"

	"tariff_server/pkg/metrics"
	"tariff_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler serves liveness, readiness and latency metrics endpoints.
type HealthHandler struct {
	redis *redis.Client
}

// NewHealthHandler creates the health handler. The redis client may be nil
// when the in-memory store is in use.
func NewHealthHandler(redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{redis: redisClient}
}

// Register registers the health routes on the app root and the metrics
// route under the API group.
func (h *HealthHandler) Register(app *fiber.App, api fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/health/ready", h.Ready)
	api.Get("/metrics/latency", h.LatencyMetrics)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// LatencyMetrics returns the sliding-window latency percentiles per
// operation, in milliseconds.
func (h *HealthHandler) LatencyMetrics(c *fiber.Ctx) error {
	stats := metrics.GetAllLatencyStats()
	out := make(map[string]map[string]any, len(stats))
	for name, s := range stats {
		out[name] = s.ToMap()
	}
	return response.OK(c, out)
}
