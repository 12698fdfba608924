package catalog

import (
	"context"
	"errors"

	"music-librarian/internal/models"
)

// Search failures are wrapped with one of these so callers can tell a flaky
// remote from a request that will never succeed.
var (
	ErrTransient = errors.New("transient search failure")
	ErrPermanent = errors.New("permanent search failure")
)

// Searcher is the remote free-text track search. Results keep the remote ranking.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)
}

// SearcherFunc adapts a plain function to Searcher.
type SearcherFunc func(ctx context.Context, query string, limit int) ([]models.Candidate, error)

func (f SearcherFunc) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	return f(ctx, query, limit)
}
