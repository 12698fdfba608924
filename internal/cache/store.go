package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"music-librarian/internal/database"
	"music-librarian/internal/models"
)

const documentVersion = 1

// Store is the durable side of the cache. Save always receives the full set.
type Store interface {
	Load() ([]models.Record, error)
	Save(records []models.Record) error
	Location() string
	Close() error
}

// Open returns the store for backend ("json" or "sqlite") at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "json":
		return NewJSONStore(path), nil
	case "sqlite":
		s, err := database.Open(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", backend)
	}
}

type document struct {
	Version int             `json:"version,omitempty"`
	Tracks  []models.Record `json:"tracks"`
}

// JSONStore keeps the set as a single JSON document, rewritten on every save.
type JSONStore struct {
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Location() string { return s.path }

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) Load() ([]models.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("cache file version %d is newer than supported version %d", doc.Version, documentVersion)
	}
	return doc.Tracks, nil
}

// Save writes to a temp file next to the target and renames it into place.
func (s *JSONStore) Save(records []models.Record) error {
	doc := document{Version: documentVersion, Tracks: records}
	if doc.Tracks == nil {
		doc.Tracks = []models.Record{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
