package matcher

import (
	"context"
	"fmt"
	"log/slog"

	"music-librarian/internal/logging"
	"music-librarian/internal/models"
	"music-librarian/internal/prompt"
)

const DefaultMaxOptions = 5

// Resolver asks the operator to disambiguate tracks the heuristic rejected.
// It is not safe for concurrent use; prompts run one at a time.
type Resolver struct {
	prompter   prompt.Prompter
	maxOptions int
	logger     *slog.Logger
}

func NewResolver(p prompt.Prompter, maxOptions int, logger *slog.Logger) *Resolver {
	if maxOptions <= 0 {
		maxOptions = DefaultMaxOptions
	}
	return &Resolver{
		prompter:   p,
		maxOptions: maxOptions,
		logger:     logging.Component(logger, "resolver"),
	}
}

// Resolve presents up to maxOptions candidates. ok is false when there is
// nothing to choose from or the operator declined.
func (r *Resolver) Resolve(ctx context.Context, t models.LocalTrack, candidates []models.Candidate) (models.Candidate, bool, error) {
	if len(candidates) == 0 {
		return models.Candidate{}, false, nil
	}
	shown := candidates[:min(len(candidates), r.maxOptions)]

	labels := make([]string, len(shown))
	for i, c := range shown {
		labels[i] = Label(c)
	}

	title := fmt.Sprintf("Select a match for %q by %s", t.Name, t.Artist)
	idx, ok, err := r.prompter.Select(ctx, title, labels, Suggest(t, shown))
	if err != nil {
		return models.Candidate{}, false, fmt.Errorf("prompt for %q: %w", t.Name, err)
	}
	if !ok || idx < 0 || idx >= len(shown) {
		r.logger.Debug("operator declined",
			slog.String(logging.FieldTrack, t.Name),
			slog.String(logging.FieldLocalID, t.PersistentID))
		return models.Candidate{}, false, nil
	}
	return shown[idx], true, nil
}
