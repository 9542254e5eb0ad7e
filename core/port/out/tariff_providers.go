package out

import (
	"context"

	"tariff_server/core/domain"
)

// ClassificationProvider is the uniform contract every classification
// backend is hidden behind. Classify never returns a Go error: failures
// (missing credential, transport, malformed payload) come back as
// error-carrying results with zero confidence, so the orchestrator can
// always complete the aggregate.
type ClassificationProvider interface {
	ID() domain.ProviderID
	Classify(ctx context.Context, input *domain.ClassificationInput) *domain.ClassificationResult
}

// DutyRequest carries everything one duty calculation needs. Provider is
// the slot the result is attributed to; the code may originate from a
// different provider when a synthetic call substitutes for a failed one.
type DutyRequest struct {
	Provider    domain.ProviderID
	Code        string
	Value       float64
	Currency    string
	Origin      string
	Destination string
}

// DutyProvider calculates duty/tax/fee lines for a classified product.
// Same no-error contract as ClassificationProvider: failures become
// error-carrying results with the total defaulted to the bare value.
type DutyProvider interface {
	CalculateDuty(ctx context.Context, req DutyRequest) *domain.DutyResult
}
