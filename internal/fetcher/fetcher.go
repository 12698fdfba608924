package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"music-librarian/internal/catalog"
	"music-librarian/internal/logging"
	"music-librarian/internal/models"
)

const (
	DefaultInterval     = 650 * time.Millisecond
	DefaultLimit        = 25
	DefaultRetries      = 2
	DefaultRetryBackoff = time.Second
)

// Status says how a track's search ended.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusTransient
	StatusPermanent
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusTransient:
		return "transient_error"
	case StatusPermanent:
		return "permanent_error"
	}
	return "unknown"
}

// Result is the outcome of searching for one track. Failed searches carry no
// candidates, so callers that ignore Status see an ordinary empty result.
type Result struct {
	Track      models.LocalTrack
	Candidates []models.Candidate
	Status     Status
	Err        error
	Attempts   int
}

type Options struct {
	// Interval is the minimum spacing between search submissions.
	Interval time.Duration
	// Limit caps the number of candidates requested per search.
	Limit int
	// MaxInFlight bounds concurrent searches. Zero leaves it unbounded.
	MaxInFlight int
	// Retries is how many extra attempts a transient failure gets.
	Retries      int
	RetryBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	return o
}

// Fetcher runs rate limited candidate searches for local tracks.
type Fetcher struct {
	searcher catalog.Searcher
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger
}

func New(searcher catalog.Searcher, opts Options, logger *slog.Logger) *Fetcher {
	opts = opts.withDefaults()
	return &Fetcher{
		searcher: searcher,
		limiter:  rate.NewLimiter(rate.Every(opts.Interval), 1),
		opts:     opts,
		logger:   logging.Component(logger, "fetcher"),
	}
}

// Query is the free-text search sent for a track.
func Query(t models.LocalTrack) string {
	return t.Name + " " + t.Artist
}

// Run searches for every track concurrently. Submissions are spaced by the
// configured interval no matter how many searches are still in flight.
// handle is called from the search goroutine as each result arrives; the
// first error it returns cancels outstanding work and is returned by Run.
func (f *Fetcher) Run(ctx context.Context, tracks []models.LocalTrack, handle func(context.Context, Result) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if f.opts.MaxInFlight > 0 {
		g.SetLimit(f.opts.MaxInFlight)
	}

	for _, t := range tracks {
		if err := f.limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			res := f.Fetch(gctx, t)
			if err := gctx.Err(); err != nil {
				return err
			}
			return handle(gctx, res)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Fetch searches for a single track, retrying transient failures. Retries
// wait on the same limiter as fresh submissions.
func (f *Fetcher) Fetch(ctx context.Context, t models.LocalTrack) Result {
	query := Query(t)
	res := Result{Track: t}

	op := func() ([]models.Candidate, error) {
		res.Attempts++
		if res.Attempts > 1 {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		candidates, err := f.searcher.Search(ctx, query, f.opts.Limit)
		if err != nil && (errors.Is(err, catalog.ErrPermanent) || ctx.Err() != nil) {
			return nil, backoff.Permanent(err)
		}
		return candidates, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.RetryBackoff

	candidates, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(f.opts.Retries+1)))

	switch {
	case err == nil && len(candidates) > 0:
		res.Status = StatusFound
		res.Candidates = candidates
	case err == nil:
		res.Status = StatusNotFound
	case errors.Is(err, catalog.ErrPermanent):
		res.Status = StatusPermanent
		res.Err = err
	default:
		res.Status = StatusTransient
		res.Err = err
	}

	if res.Err != nil && ctx.Err() == nil {
		f.logger.Warn("search failed, treating as no candidates",
			slog.String(logging.FieldTrack, t.Name),
			slog.String(logging.FieldLocalID, t.PersistentID),
			slog.String("status", res.Status.String()),
			slog.Int("attempts", res.Attempts),
			logging.Error(res.Err))
	} else {
		f.logger.Debug("search finished",
			slog.String(logging.FieldTrack, t.Name),
			slog.Int("candidates", len(res.Candidates)))
	}
	return res
}
