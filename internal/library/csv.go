package library

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"music-librarian/internal/models"
)

// canonical header mapping
var headerAliases = map[string]string{
	"title":      "name",
	"track":      "name",
	"track_name": "name",
	"name":       "name",

	"artist":      "artist",
	"artist_name": "artist",
	"performer":   "artist",

	"track_id": "id",
	"track id": "id",
	"id":       "id",

	"persistent_id": "persistent_id",
	"persistent id": "persistent_id",
	"pid":           "persistent_id",
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseCSV reads a track list with a header row. Rows without a persistent id
// cannot be cross referenced and are dropped.
func ParseCSV(r io.Reader) (*Library, error) {
	reader := csv.NewReader(r)

	// ---- Read header row ----
	rawHeaders, err := reader.Read()
	if err != nil {
		return nil, err
	}

	columnMap := make(map[int]string)
	for i, h := range rawHeaders {
		if canonical, ok := headerAliases[normalize(h)]; ok {
			columnMap[i] = canonical
		}
	}

	if len(columnMap) == 0 {
		return nil, errors.New("CSV has no recognizable columns")
	}

	var tracks []models.LocalTrack

	// ---- Read rows ----
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var t models.LocalTrack

		for i, v := range record {
			field, ok := columnMap[i]
			if !ok {
				continue
			}

			val := strings.TrimSpace(v)
			if val == "" {
				continue
			}

			switch field {
			case "name":
				t.Name = val
			case "artist":
				t.Artist = val
			case "id":
				if id, err := strconv.Atoi(val); err == nil {
					t.ID = id
				}
			case "persistent_id":
				t.PersistentID = val
			}
		}

		if t.PersistentID == "" {
			continue
		}

		tracks = append(tracks, t)
	}

	return newLibrary(tracks, nil), nil
}
