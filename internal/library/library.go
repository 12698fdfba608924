package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"music-librarian/internal/models"
)

// Library is the parsed source library. Tracks are unique by persistent id
// and ordered by their numeric id.
type Library struct {
	tracks    []models.LocalTrack
	playlists []models.Playlist
}

func (l *Library) Tracks() []models.LocalTrack { return l.tracks }

func (l *Library) Playlists() []models.Playlist { return l.playlists }

// Load reads the library at path. format is "itunes", "csv", or empty to pick
// by file extension.
func Load(path, format string) (*Library, error) {
	if format == "" {
		format = "itunes"
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = "csv"
		}
	}

	switch format {
	case "itunes":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read library file: %w", err)
		}
		return ParseITunes(data)
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open library file: %w", err)
		}
		defer f.Close()
		return ParseCSV(f)
	default:
		return nil, fmt.Errorf("unsupported library format: %s", format)
	}
}

func newLibrary(tracks []models.LocalTrack, playlists []models.Playlist) *Library {
	seen := make(map[string]struct{}, len(tracks))
	unique := make([]models.LocalTrack, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := seen[t.PersistentID]; dup {
			continue
		}
		seen[t.PersistentID] = struct{}{}
		unique = append(unique, t)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].ID < unique[j].ID
	})
	return &Library{tracks: unique, playlists: playlists}
}
