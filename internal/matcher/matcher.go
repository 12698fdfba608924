package matcher

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"music-librarian/internal/models"
)

// labelNameLen is how many characters of a candidate name a prompt label keeps.
const labelNameLen = 17

// Normalize lowercases s and drops all whitespace.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(s))
}

// ArtistsMatch accepts when either normalized artist string contains the other.
// Candidate artist names are concatenated before normalizing, so ordering and
// featured-artist suffixes are tolerated. Short names can false-positive.
func ArtistsMatch(localArtist string, candidateArtists []string) bool {
	local := Normalize(localArtist)
	remote := Normalize(strings.Join(candidateArtists, ""))
	if local == "" || remote == "" {
		return false
	}
	return strings.Contains(local, remote) || strings.Contains(remote, local)
}

// AutoMatch applies the artist heuristic to the top ranked candidate only.
func AutoMatch(t models.LocalTrack, candidates []models.Candidate) (models.Candidate, bool) {
	if len(candidates) == 0 {
		return models.Candidate{}, false
	}
	top := candidates[0]
	if !ArtistsMatch(t.Artist, top.Artists) {
		return models.Candidate{}, false
	}
	return top, true
}

// Label renders a candidate as a prompt option.
func Label(c models.Candidate) string {
	name := c.Name
	if runes := []rune(name); len(runes) > labelNameLen {
		name = string(runes[:labelNameLen]) + "…"
	}

	label := fmt.Sprintf("%s - %s", name, strings.Join(c.Artists, ", "))
	if c.URL != "" {
		label += " (" + c.URL + ")"
	}
	return label
}

// Suggest picks the candidate whose title is closest to the local track name
// (Jaro-Winkler). Ties keep the search ranking.
func Suggest(t models.LocalTrack, candidates []models.Candidate) int {
	best, bestScore := 0, -1.0
	jw := metrics.NewJaroWinkler()
	name := strings.ToLower(t.Name)
	for i, c := range candidates {
		score := strutil.Similarity(name, strings.ToLower(c.Name), jw)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
