package out

import (
	"context"
	"errors"

	"tariff_server/core/domain"
)

// ErrComparisonNotFound is returned by Get for unknown ids.
var ErrComparisonNotFound = errors.New("comparison not found")

// ResultStore keeps finished comparisons for the life of the process.
// Implementations must allow swapping a durable backing store without the
// orchestrator noticing; the contract is create/get/list/stats only.
type ResultStore interface {
	// Create stores a finished comparison. IDs are globally unique, so
	// concurrent writers never collide on a key.
	Create(ctx context.Context, result *domain.ComparisonResult) error

	// Get retrieves a comparison by id regardless of insertion order.
	Get(ctx context.Context, id string) (*domain.ComparisonResult, error)

	// List returns comparisons newest-first along with the total count.
	List(ctx context.Context, limit, offset int) ([]*domain.ComparisonResult, int, error)

	// Stats aggregates over all stored comparisons.
	Stats(ctx context.Context) (*domain.StoreStats, error)
}
