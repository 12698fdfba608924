package cache

import (
	"fmt"
	"log/slog"
	"sync"

	"music-librarian/internal/logging"
	"music-librarian/internal/models"
)

// Cache is the set of confirmed cross references, indexed by both namespaces.
//
// Two records are the same identity when they share a non-empty remote id or a
// non-empty local id. A record carrying only a remote id never equals one
// carrying only a local id, even if both denote the same song.
type Cache struct {
	store  Store
	logger *slog.Logger

	mu       sync.RWMutex
	records  []models.Record
	byRemote map[string]int
	byLocal  map[string]int
}

// New returns an empty cache backed by store.
func New(store Store, logger *slog.Logger) *Cache {
	return &Cache{
		store:    store,
		logger:   logging.Component(logger, "cache"),
		byRemote: make(map[string]int),
		byLocal:  make(map[string]int),
	}
}

// Load reads the store into a new cache. A missing, unreadable or malformed
// store yields an empty cache; the failure is logged, never returned.
func Load(store Store, logger *slog.Logger) *Cache {
	c := New(store, logger)

	records, err := store.Load()
	if err != nil {
		c.logger.Warn("cache unreadable, starting empty",
			slog.String("path", store.Location()),
			logging.Error(err))
		return c
	}

	for _, r := range records {
		c.insertLocked(r)
	}
	c.logger.Debug("cache loaded",
		slog.String("path", store.Location()),
		slog.Int("records", len(c.records)))
	return c
}

// Contains reports whether some record holds id in namespace ns.
func (c *Cache) Contains(ns models.Namespace, id string) bool {
	_, ok := c.Lookup(ns, id)
	return ok
}

func (c *Cache) Lookup(ns models.Namespace, id string) (models.Record, bool) {
	if id == "" {
		return models.Record{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := c.byLocal
	if ns == models.Remote {
		idx = c.byRemote
	}
	i, ok := idx[id]
	if !ok {
		return models.Record{}, false
	}
	return c.records[i], true
}

// Insert adds r unless an equal record exists, and reports whether the set changed.
func (c *Cache) Insert(r models.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(r)
}

// Persist writes the full record set to the store.
func (c *Cache) Persist() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.persistLocked()
}

// Add inserts r and persists the set as one critical section, so concurrent
// callers never interleave a write with another caller's insert.
func (c *Cache) Add(r models.Record) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.insertLocked(r) {
		return false, nil
	}
	if err := c.persistLocked(); err != nil {
		return true, err
	}
	c.logger.Debug("record cached",
		slog.String(logging.FieldTrack, r.Name),
		slog.String(logging.FieldRemoteID, r.RemoteID),
		slog.String(logging.FieldLocalID, r.LocalID),
		slog.Bool("skipped", r.Skipped()))
	return true, nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Records returns a copy of every record in insertion order.
func (c *Cache) Records() []models.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Record, len(c.records))
	copy(out, c.records)
	return out
}

// Uncached filters tracks down to those with no record under their local id.
// Skip markers hide a track unless retrySkipped is set.
func (c *Cache) Uncached(tracks []models.LocalTrack, retrySkipped bool) []models.LocalTrack {
	var out []models.LocalTrack
	for _, t := range tracks {
		r, ok := c.Lookup(models.Local, t.PersistentID)
		if !ok || (retrySkipped && r.Skipped()) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Cache) insertLocked(r models.Record) bool {
	if r.RemoteID == "" && r.LocalID == "" {
		return false
	}
	if r.RemoteID != "" {
		if _, ok := c.byRemote[r.RemoteID]; ok {
			return false
		}
	}
	if r.LocalID != "" {
		if i, ok := c.byLocal[r.LocalID]; ok {
			// A match supersedes an earlier skip marker for the same local track.
			if c.records[i].Skipped() && !r.Skipped() {
				c.records[i] = r
				c.index(i)
				return true
			}
			return false
		}
	}

	c.records = append(c.records, r)
	c.index(len(c.records) - 1)
	return true
}

func (c *Cache) index(i int) {
	r := c.records[i]
	if r.RemoteID != "" {
		c.byRemote[r.RemoteID] = i
	}
	if r.LocalID != "" {
		c.byLocal[r.LocalID] = i
	}
}

func (c *Cache) persistLocked() error {
	if err := c.store.Save(c.records); err != nil {
		return fmt.Errorf("persist cache to %s: %w", c.store.Location(), err)
	}
	return nil
}
