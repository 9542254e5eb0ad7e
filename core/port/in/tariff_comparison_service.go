package in

import (
	"context"

	"tariff_server/core/domain"
)

// ComparisonService is the inbound port the HTTP layer drives.
type ComparisonService interface {
	// Compare runs one full comparison: classification fan-in, value
	// resolution, duty fan-out, analysis, persistence. It fails only on
	// request validation; provider failures are embedded in the result.
	Compare(ctx context.Context, req *domain.ComparisonRequest) (*domain.ComparisonResult, error)

	Get(ctx context.Context, id string) (*domain.ComparisonResult, error)
	List(ctx context.Context, limit, offset int) ([]*domain.ComparisonResult, int, error)
	Stats(ctx context.Context) (*domain.StoreStats, error)
}
