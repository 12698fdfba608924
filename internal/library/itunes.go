package library

import (
	"errors"
	"fmt"

	"howett.net/plist"

	"music-librarian/internal/models"
)

type plistLibrary struct {
	Tracks    map[string]plistTrack `plist:"Tracks"`
	Playlists []plistPlaylist       `plist:"Playlists"`
}

type plistTrack struct {
	TrackID      int    `plist:"Track ID"`
	Name         string `plist:"Name"`
	Artist       string `plist:"Artist"`
	PersistentID string `plist:"Persistent ID"`
}

type plistPlaylist struct {
	Name        string `plist:"Name"`
	Description string `plist:"Description"`
	Items       []struct {
		TrackID int `plist:"Track ID"`
	} `plist:"Playlist Items"`
}

// ParseITunes decodes an exported iTunes / Music "Library.xml" property list.
// Tracks without a name or persistent id are dropped; playlists are optional.
func ParseITunes(data []byte) (*Library, error) {
	var raw plistLibrary
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse library plist: %w", err)
	}
	if raw.Tracks == nil {
		return nil, errors.New("could not find tracks dict")
	}

	tracks := make([]models.LocalTrack, 0, len(raw.Tracks))
	for _, t := range raw.Tracks {
		if t.Name == "" || t.PersistentID == "" {
			continue
		}
		tracks = append(tracks, models.LocalTrack{
			Name:         t.Name,
			Artist:       t.Artist,
			ID:           t.TrackID,
			PersistentID: t.PersistentID,
		})
	}

	playlists := make([]models.Playlist, 0, len(raw.Playlists))
	for _, p := range raw.Playlists {
		if p.Name == "" {
			continue
		}
		ids := make([]int, 0, len(p.Items))
		for _, item := range p.Items {
			ids = append(ids, item.TrackID)
		}
		playlists = append(playlists, models.Playlist{
			Name:        p.Name,
			Description: p.Description,
			TrackIDs:    ids,
		})
	}

	return newLibrary(tracks, playlists), nil
}
