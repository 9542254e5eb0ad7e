// Package provider implements the outbound classification and duty
// provider adapters.
package provider

import (
	"time"

	"tariff_server/pkg/logger"

	"github.com/sony/gobreaker"
)

// newBreaker builds the circuit breaker wrapped around every outbound
// provider call. A tripped breaker turns into an error-carrying result at
// the adapter boundary like any other transport failure.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}
