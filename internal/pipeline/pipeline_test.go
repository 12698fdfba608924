package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-librarian/internal/cache"
	"music-librarian/internal/catalog"
	"music-librarian/internal/fetcher"
	"music-librarian/internal/matcher"
	"music-librarian/internal/models"
)

// fakeCatalog answers searches from a query -> candidates table.
type fakeCatalog struct {
	mu      sync.Mutex
	results map[string][]models.Candidate
	errs    map[string]error
	queries []string
}

func (f *fakeCatalog) Search(_ context.Context, query string, _ int) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

func (f *fakeCatalog) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// answerPrompter picks by track title; titles it has no answer for are declined.
type answerPrompter struct {
	answers map[string]int
	titles  []string
}

func (p *answerPrompter) Select(_ context.Context, title string, _ []string, _ int) (int, bool, error) {
	p.titles = append(p.titles, title)
	for name, idx := range p.answers {
		if strings.Contains(title, fmt.Sprintf("%q", name)) {
			return idx, true, nil
		}
	}
	return 0, false, nil
}

type memStore struct {
	mu      sync.Mutex
	saved   []models.Record
	saveErr error
}

func (s *memStore) Load() ([]models.Record, error) { return nil, nil }
func (s *memStore) Location() string { return "memory" }
func (s *memStore) Close() error { return nil }

func (s *memStore) Save(records []models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append([]models.Record(nil), records...)
	return nil
}

func newFetcher(s catalog.Searcher) *fetcher.Fetcher {
	return fetcher.New(s, fetcher.Options{
		Interval:     time.Millisecond,
		RetryBackoff: time.Millisecond,
		Retries:      1,
	}, nil)
}

func newOrchestrator(c *cache.Cache, s catalog.Searcher, p *answerPrompter, opts Options) *Orchestrator {
	return New(c, newFetcher(s), matcher.NewResolver(p, 5, nil), opts, nil)
}

var (
	yesterday = models.LocalTrack{Name: "Yesterday", Artist: "The Beatles", ID: 1, PersistentID: "ABC123"}
	crazy     = models.LocalTrack{Name: "Crazy in Love", Artist: "Beyoncé", ID: 2, PersistentID: "DEF456"}
	obscure   = models.LocalTrack{Name: "Demo", Artist: "Garage Band", ID: 3, PersistentID: "GHI789"}
)

func TestRunAutoMatchesAndSkipsNextRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := cache.Load(cache.NewJSONStore(path), nil)
	cat := &fakeCatalog{results: map[string][]models.Candidate{
		"Yesterday The Beatles": {{RemoteID: "spotify:track:1", Name: "Yesterday", Artists: []string{"The Beatles"}}},
	}}
	p := &answerPrompter{}

	report, err := newOrchestrator(c, cat, p, Options{}).Run(context.Background(), []models.LocalTrack{yesterday})
	require.NoError(t, err)
	assert.Equal(t, 1, report.AutoMatched)
	assert.NotEmpty(t, report.RunID)
	assert.Empty(t, p.titles, "auto match never prompts")
	firstRun := report.RunID

	reloaded := cache.Load(cache.NewJSONStore(path), nil)
	got, ok := reloaded.Lookup(models.Local, "ABC123")
	require.True(t, ok)
	assert.Equal(t, models.Record{Name: "Yesterday", RemoteID: "spotify:track:1", LocalID: "ABC123"}, got)

	cat2 := &fakeCatalog{}
	report, err = newOrchestrator(reloaded, cat2, p, Options{}).Run(context.Background(), []models.LocalTrack{yesterday})
	require.NoError(t, err)
	assert.Equal(t, 1, report.AlreadyCached)
	assert.NotEqual(t, firstRun, report.RunID)
	assert.Empty(t, cat2.searched())
}

func TestRunManualResolution(t *testing.T) {
	c := cache.Load(&memStore{}, nil)
	cat := &fakeCatalog{results: map[string][]models.Candidate{
		"Crazy in Love Beyoncé": {
			{RemoteID: "spotify:track:jz", Name: "Crazy in Love", Artists: []string{"Jay-Z"}},
			{RemoteID: "spotify:track:b", Name: "Crazy in Love (feat. Jay-Z)", Artists: []string{"Beyonce"}},
		},
	}}
	p := &answerPrompter{answers: map[string]int{"Crazy in Love": 1}}

	report, err := newOrchestrator(c, cat, p, Options{}).Run(context.Background(), []models.LocalTrack{crazy})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ManualMatched)
	assert.Len(t, p.titles, 1)

	got, ok := c.Lookup(models.Local, "DEF456")
	require.True(t, ok)
	assert.Equal(t, "spotify:track:b", got.RemoteID)
}

func TestRunDeclineIsNotRemembered(t *testing.T) {
	c := cache.Load(&memStore{}, nil)
	cat := &fakeCatalog{results: map[string][]models.Candidate{
		"Crazy in Love Beyoncé": {{RemoteID: "spotify:track:jz", Name: "Crazy in Love", Artists: []string{"Jay-Z"}}},
	}}
	p := &answerPrompter{}

	report, err := newOrchestrator(c, cat, p, Options{}).Run(context.Background(), []models.LocalTrack{crazy})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, c.Len())

	report, err = newOrchestrator(c, cat, p, Options{}).Run(context.Background(), []models.LocalTrack{crazy})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, p.titles, 2, "declined track is prompted again")
}

func TestRunRememberSkips(t *testing.T) {
	c := cache.Load(&memStore{}, nil)
	cat := &fakeCatalog{results: map[string][]models.Candidate{
		"Crazy in Love Beyoncé": {{RemoteID: "spotify:track:jz", Name: "Crazy in Love", Artists: []string{"Jay-Z"}}},
	}}
	p := &answerPrompter{}
	opts := Options{RememberSkips: true}

	_, err := newOrchestrator(c, cat, p, opts).Run(context.Background(), []models.LocalTrack{crazy})
	require.NoError(t, err)
	rec, ok := c.Lookup(models.Local, "DEF456")
	require.True(t, ok)
	assert.True(t, rec.Skipped())

	report, err := newOrchestrator(c, cat, p, opts).Run(context.Background(), []models.LocalTrack{crazy})
	require.NoError(t, err)
	assert.Equal(t, 1, report.AlreadyCached)
	assert.Len(t, p.titles, 1)

	p.answers = map[string]int{"Crazy in Love": 0}
	opts.RetrySkipped = true
	report, err = newOrchestrator(c, cat, p, opts).Run(context.Background(), []models.LocalTrack{crazy})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ManualMatched)
	rec, _ = c.Lookup(models.Local, "DEF456")
	assert.False(t, rec.Skipped())
	assert.Equal(t, "spotify:track:jz", rec.RemoteID)
}

func TestRunNoCandidatesAreUnresolved(t *testing.T) {
	c := cache.Load(&memStore{}, nil)
	cat := &fakeCatalog{errs: map[string]error{
		"Demo Garage Band": fmt.Errorf("%w: 503", catalog.ErrTransient),
	}}
	p := &answerPrompter{}

	report, err := newOrchestrator(c, cat, p, Options{RememberSkips: true}).Run(context.Background(), []models.LocalTrack{obscure})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unresolved)
	assert.Equal(t, 1, report.FailedSearches)
	assert.Empty(t, p.titles)
	assert.Zero(t, c.Len(), "unresolved tracks leave no marker")
	assert.Len(t, cat.searched(), 2, "transient failure retried once")
}

func TestRunManualPhaseKeepsTrackOrder(t *testing.T) {
	c := cache.Load(&memStore{}, nil)
	results := map[string][]models.Candidate{}
	var in []models.LocalTrack
	for i := range 8 {
		tr := models.LocalTrack{Name: fmt.Sprintf("Song %d", i), Artist: "Nobody", ID: i, PersistentID: fmt.Sprintf("P%d", i)}
		in = append(in, tr)
		results[fetcher.Query(tr)] = []models.Candidate{{RemoteID: fmt.Sprintf("R%d", i), Name: tr.Name, Artists: []string{"Somebody Else"}}}
	}
	p := &answerPrompter{}

	_, err := newOrchestrator(c, &fakeCatalog{results: results}, p, Options{}).Run(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, p.titles, len(in))
	for i, title := range p.titles {
		assert.Contains(t, title, fmt.Sprintf("%q", in[i].Name))
	}
}

func TestRunConcurrentAutoMatchesAllPersisted(t *testing.T) {
	store := &memStore{}
	c := cache.Load(store, nil)
	results := map[string][]models.Candidate{}
	var in []models.LocalTrack
	for i := range 40 {
		tr := models.LocalTrack{Name: fmt.Sprintf("Song %d", i), Artist: "Band", ID: i, PersistentID: fmt.Sprintf("P%d", i)}
		in = append(in, tr)
		results[fetcher.Query(tr)] = []models.Candidate{{RemoteID: fmt.Sprintf("R%d", i), Artists: []string{"Band"}}}
	}

	report, err := newOrchestrator(c, &fakeCatalog{results: results}, &answerPrompter{}, Options{}).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 40, report.AutoMatched)
	assert.Equal(t, 40, c.Len())
	assert.Len(t, store.saved, 40)
}

func TestRunPersistFailureIsFatal(t *testing.T) {
	boom := errors.New("read-only file system")
	c := cache.Load(&memStore{saveErr: boom}, nil)
	cat := &fakeCatalog{results: map[string][]models.Candidate{
		"Yesterday The Beatles": {{RemoteID: "spotify:track:1", Artists: []string{"The Beatles"}}},
	}}

	_, err := newOrchestrator(c, cat, &answerPrompter{}, Options{}).Run(context.Background(), []models.LocalTrack{yesterday})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StagePersist, se.Stage)
	assert.True(t, strings.HasPrefix(err.Error(), "persist: "))
}

type failingPrompter struct{ err error }

func (p failingPrompter) Select(context.Context, string, []string, int) (int, bool, error) {
	return 0, false, p.err
}

func TestRunPromptFailureIsResolveStage(t *testing.T) {
	c := cache.Load(&memStore{}, nil)
	cat := &fakeCatalog{results: map[string][]models.Candidate{
		"Crazy in Love Beyoncé": {{RemoteID: "spotify:track:jz", Artists: []string{"Jay-Z"}}},
	}}
	boom := errors.New("no tty")
	o := New(c, newFetcher(cat), matcher.NewResolver(failingPrompter{err: boom}, 5, nil), Options{}, nil)

	_, err := o.Run(context.Background(), []models.LocalTrack{crazy})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageResolve, se.Stage)
	assert.ErrorIs(t, err, boom)
}

func TestRunDuplicateRemoteCountsConflict(t *testing.T) {
	c := cache.Load(&memStore{}, nil)
	c.Insert(models.Record{Name: "Yesterday", RemoteID: "spotify:track:1", LocalID: "OTHER"})
	cat := &fakeCatalog{results: map[string][]models.Candidate{
		"Yesterday The Beatles": {{RemoteID: "spotify:track:1", Artists: []string{"The Beatles"}}},
	}}

	report, err := newOrchestrator(c, cat, &answerPrompter{}, Options{}).Run(context.Background(), []models.LocalTrack{yesterday})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	assert.False(t, c.Contains(models.Local, "ABC123"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "needs_manual_resolution", NeedsManualResolution.String())
	assert.Equal(t, "cached", Cached.String())
}
