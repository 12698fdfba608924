package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"music-librarian/internal/cache"
	"music-librarian/internal/fetcher"
	"music-librarian/internal/logging"
	"music-librarian/internal/matcher"
	"music-librarian/internal/models"
)

type Options struct {
	// RememberSkips writes a skip marker when the operator declines a track,
	// so later runs leave it alone.
	RememberSkips bool
	// RetrySkipped puts skip-marked tracks back into the uncached set.
	RetrySkipped bool
}

// Report counts how each track of a run ended.
type Report struct {
	RunID          string
	Total          int
	AlreadyCached  int
	AutoMatched    int
	ManualMatched  int
	Skipped        int
	Unresolved     int
	FailedSearches int
	Conflicts      int
}

// Orchestrator drives uncached tracks through fetch, resolve and persist.
type Orchestrator struct {
	cache    *cache.Cache
	fetcher  *fetcher.Fetcher
	resolver *matcher.Resolver
	opts     Options
	base     *slog.Logger
	logger   *slog.Logger

	mu     sync.Mutex
	report Report
}

func New(c *cache.Cache, f *fetcher.Fetcher, r *matcher.Resolver, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cache:    c,
		fetcher:  f,
		resolver: r,
		opts:     opts,
		base:     logging.Component(logger, "pipeline"),
	}
}

// Run resolves every track missing from the cache. Auto matches are persisted
// as their searches complete; the rest are resolved one at a time afterwards,
// in the order tracks were given. Every accepted match is durable before the
// next manual prompt. The returned report is valid even when err is not nil.
func (o *Orchestrator) Run(ctx context.Context, tracks []models.LocalTrack) (Report, error) {
	runID := uuid.NewString()
	o.logger = o.base.With(slog.String(logging.FieldRunID, runID))
	o.report = Report{RunID: runID, Total: len(tracks)}

	uncached := o.cache.Uncached(tracks, o.opts.RetrySkipped)
	o.report.AlreadyCached = len(tracks) - len(uncached)
	o.logger.Info("starting run",
		slog.Int("tracks", len(tracks)),
		slog.Int("uncached", len(uncached)))

	order := make(map[string]int, len(uncached))
	for i, t := range uncached {
		order[t.PersistentID] = i
	}

	var pending []fetcher.Result
	err := o.fetcher.Run(ctx, uncached, func(_ context.Context, res fetcher.Result) error {
		next, err := o.afterFetch(res)
		if err != nil {
			return err
		}
		if next == NeedsManualResolution {
			o.mu.Lock()
			pending = append(pending, res)
			o.mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return o.report, stageError(StageFetch, err)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return order[pending[i].Track.PersistentID] < order[pending[j].Track.PersistentID]
	})

	for _, res := range pending {
		if err := ctx.Err(); err != nil {
			return o.report, stageError(StageResolve, err)
		}
		if _, err := o.resolveManually(ctx, res); err != nil {
			return o.report, err
		}
	}

	o.logger.Info("run finished",
		slog.Int("auto_matched", o.report.AutoMatched),
		slog.Int("manual_matched", o.report.ManualMatched),
		slog.Int("skipped", o.report.Skipped),
		slog.Int("unresolved", o.report.Unresolved))
	return o.report, nil
}

// afterFetch applies the heuristic to a finished search. It runs on fetch
// goroutines, so report updates take the lock and the cache write goes
// through Cache.Add.
func (o *Orchestrator) afterFetch(res fetcher.Result) (State, error) {
	if res.Err != nil {
		o.mu.Lock()
		o.report.FailedSearches++
		o.mu.Unlock()
	}

	cand, ok := matcher.AutoMatch(res.Track, res.Candidates)
	if !ok {
		return NeedsManualResolution, nil
	}

	added, err := o.cache.Add(cand.Record(res.Track))
	if err != nil {
		return AutoMatched, stageError(StagePersist, err)
	}

	o.mu.Lock()
	o.report.AutoMatched++
	if !added {
		o.report.Conflicts++
	}
	o.mu.Unlock()

	o.logAccepted(res.Track, cand, added, "auto")
	return Cached, nil
}

func (o *Orchestrator) resolveManually(ctx context.Context, res fetcher.Result) (State, error) {
	if len(res.Candidates) == 0 {
		o.report.Unresolved++
		o.logger.Info("no candidates",
			slog.String(logging.FieldTrack, res.Track.Name),
			slog.String("artist", res.Track.Artist),
			slog.String("search", res.Status.String()))
		return Skipped, nil
	}

	cand, ok, err := o.resolver.Resolve(ctx, res.Track, res.Candidates)
	if err != nil {
		return NeedsManualResolution, stageError(StageResolve, err)
	}

	if !ok {
		o.report.Skipped++
		if o.opts.RememberSkips {
			if _, err := o.cache.Add(models.SkipRecord(res.Track)); err != nil {
				return Skipped, stageError(StagePersist, err)
			}
		}
		return Skipped, nil
	}

	added, err := o.cache.Add(cand.Record(res.Track))
	if err != nil {
		return NeedsManualResolution, stageError(StagePersist, err)
	}
	o.report.ManualMatched++
	if !added {
		o.report.Conflicts++
	}
	o.logAccepted(res.Track, cand, added, "manual")
	return Cached, nil
}

func (o *Orchestrator) logAccepted(t models.LocalTrack, c models.Candidate, added bool, how string) {
	if !added {
		o.logger.Warn("remote track already cross referenced, match not recorded",
			slog.String(logging.FieldTrack, t.Name),
			slog.String(logging.FieldLocalID, t.PersistentID),
			slog.String(logging.FieldRemoteID, c.RemoteID))
		return
	}
	o.logger.Info("matched",
		slog.String(logging.FieldTrack, t.Name),
		slog.String(logging.FieldRemoteID, c.RemoteID),
		slog.String("how", how))
}

func stageError(stage Stage, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}
