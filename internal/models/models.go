package models

// LocalTrack is a track read from the source library. PersistentID survives
// library re-imports and is what the cache stores as the local id.
type LocalTrack struct {
	Name         string `json:"name"`
	Artist       string `json:"artist"`
	ID           int    `json:"id"`
	PersistentID string `json:"persistent_id"`
}

type Playlist struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TrackIDs    []int  `json:"track_ids"`
}

// Namespace selects one of the two identifier domains a Record can be found by.
type Namespace int

const (
	Remote Namespace = iota
	Local
)

func (n Namespace) String() string {
	switch n {
	case Remote:
		return "remote"
	case Local:
		return "local"
	}
	return "unknown"
}

// Outcome distinguishes a confirmed match from an operator skip marker.
// The empty value is a match so documents written without the field still load.
type Outcome string

const (
	OutcomeMatched Outcome = ""
	OutcomeSkipped Outcome = "skipped"
)

// Record is one cross reference between a local track and a remote track.
// Field names on disk stay readable by existing cache.json files (spotify_id / itunes_id).
type Record struct {
	Name     string  `json:"name"`
	RemoteID string  `json:"spotify_id,omitempty"`
	LocalID  string  `json:"itunes_id,omitempty"`
	Outcome  Outcome `json:"outcome,omitempty"`
}

func (r Record) Skipped() bool { return r.Outcome == OutcomeSkipped }

// ID returns the record's id in the given namespace, empty when absent.
func (r Record) ID(ns Namespace) string {
	if ns == Remote {
		return r.RemoteID
	}
	return r.LocalID
}

// Candidate is a remote search result. It is never persisted directly.
type Candidate struct {
	RemoteID string   `json:"remote_id"`
	Name     string   `json:"name"`
	Artists  []string `json:"artists"`
	URL      string   `json:"url,omitempty"`
}

// Record distills an accepted candidate into a cache record for track.
func (c Candidate) Record(t LocalTrack) Record {
	return Record{
		Name:     t.Name,
		RemoteID: c.RemoteID,
		LocalID:  t.PersistentID,
	}
}

// SkipRecord is the marker written when the operator declines every candidate.
func SkipRecord(t LocalTrack) Record {
	return Record{
		Name:    t.Name,
		LocalID: t.PersistentID,
		Outcome: OutcomeSkipped,
	}
}
