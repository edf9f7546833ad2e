// Package enrich classifies scraped events through an external text model.
package enrich

//go:generate mockgen -source=enricher.go -destination=mock_enricher.go -package=enrich

import (
	"context"
	"errors"

	"github.com/galois26/event-ingester/internal/model"
)

var (
	ErrNotConfigured = errors.New("enrich: api key not configured")
	ErrEmptyResponse = errors.New("enrich: empty response")
)

// Enricher classifies a batch of events. The result is index-aligned with
// items; it may come back shorter, longer or with unusable entries, which the
// caller degrades per item. An error means nothing in the batch is usable.
type Enricher interface {
	Classify(ctx context.Context, items []model.EnrichInput) ([]model.Classification, error)
}
