package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/metrics"
)

// spotifyArtist represents an artist from the Spotify API.
type spotifyArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
}

// spotifyTrack represents a track from the Spotify API.
type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PreviewURL *string         `json:"preview_url"`
	Popularity int             `json:"popularity"`
	Artists    []spotifyArtist `json:"artists"`
}

// RelatedArtists returns artists Spotify considers related to the given one.
func (c *Client) RelatedArtists(ctx context.Context, artistID string) ([]domain.Artist, error) {
	if c.related != nil {
		if cached, ok := c.related.Get(artistID); ok {
			metrics.CatalogCacheHits.WithLabelValues("related_artists").Inc()
			return cached, nil
		}
	}

	endpoint := fmt.Sprintf("%s/artists/%s/related-artists", c.baseURL, url.PathEscape(artistID))
	var body struct {
		Artists []spotifyArtist `json:"artists"`
	}
	if err := c.getJSON(ctx, "related_artists", endpoint, &body); err != nil {
		return nil, err
	}

	artists := mapArtists(body.Artists)
	if c.related != nil {
		c.related.Add(artistID, artists)
	}
	return artists, nil
}

// SearchArtists runs an artist search, e.g. `genre:"shoegaze"`.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]domain.Artist, error) {
	searchURL, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: invalid search url: %w", err)
	}

	q := searchURL.Query()
	q.Set("q", query)
	q.Set("type", "artist")
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	searchURL.RawQuery = q.Encode()

	var body struct {
		Artists struct {
			Items []spotifyArtist `json:"items"`
		} `json:"artists"`
	}
	if err := c.getJSON(ctx, "search", searchURL.String(), &body); err != nil {
		return nil, err
	}
	return mapArtists(body.Artists.Items), nil
}

// TopTracks returns an artist's most played tracks in the US market.
func (c *Client) TopTracks(ctx context.Context, artistID string) ([]domain.Track, error) {
	endpoint := fmt.Sprintf("%s/artists/%s/top-tracks?market=US", c.baseURL, url.PathEscape(artistID))

	var body struct {
		Tracks []spotifyTrack `json:"tracks"`
	}
	if err := c.getJSON(ctx, "top_tracks", endpoint, &body); err != nil {
		return nil, err
	}
	return mapTracks(body.Tracks), nil
}

// clampLimit keeps page sizes within the API's 1..50 range.
func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > 50:
		return 50
	default:
		return limit
	}
}
