package port

import (
	"context"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
)

// SearchIndex abstracts the search backend documents are bulk-loaded into.
type SearchIndex interface {
	// Backend returns the backend name (e.g. "elasticsearch", "postgres").
	Backend() string

	// Exists reports whether the named index exists.
	Exists(ctx context.Context, name string) (bool, error)

	// Create creates the named index with vector fields of the given dimension.
	Create(ctx context.Context, name string, dims int) error

	// Delete drops the named index. Deleting a missing index is not an error.
	Delete(ctx context.Context, name string) error

	// Bulk upserts docs and reports per-document failures.
	// A non-nil error means the whole request failed.
	Bulk(ctx context.Context, name string, docs []domain.SurveyDocument) (*domain.BulkResult, error)
}
