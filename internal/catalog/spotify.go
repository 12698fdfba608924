package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"music-librarian/internal/models"
)

// maxSearchLimit is the largest page the Web API search endpoint returns.
const maxSearchLimit = 50

type Spotify struct {
	client *spotify.Client
}

func NewSpotify(client *spotify.Client) *Spotify {
	return &Spotify{client: client}
}

// NewClientCredentialsClient builds a Web API client authorized with the
// client credentials flow, which is enough for catalog search.
func NewClientCredentialsClient(ctx context.Context, clientID, clientSecret string) *spotify.Client {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return spotify.New(config.Client(ctx))
}

func (s *Spotify) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	res, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, classify(err)
	}
	if res.Tracks == nil {
		return nil, nil
	}

	candidates := make([]models.Candidate, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		candidates = append(candidates, transform(t))
	}
	return candidates, nil
}

func transform(st spotify.FullTrack) models.Candidate {
	artists := make([]string, len(st.Artists))
	for i, a := range st.Artists {
		artists[i] = a.Name
	}

	return models.Candidate{
		RemoteID: string(st.URI),
		Name:     st.Name,
		Artists:  artists,
		URL:      st.ExternalURLs["spotify"],
	}
}

// classify maps Web API failures onto ErrTransient or ErrPermanent.
// Rate limiting and server errors are transient; other API errors are not.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Status
	default:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}
