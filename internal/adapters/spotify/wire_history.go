package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ewilliams-labs/latent/internal/core/domain"
)

func (c *Client) topURL(kind string, window domain.TimeWindow, limit int) (string, error) {
	topURL, err := url.Parse(fmt.Sprintf("%s/me/top/%s", c.baseURL, kind))
	if err != nil {
		return "", fmt.Errorf("spotify adapter: invalid top %s url: %w", kind, err)
	}
	q := topURL.Query()
	q.Set("time_range", string(window))
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	topURL.RawQuery = q.Encode()
	return topURL.String(), nil
}

// UserTopArtists returns the listener's ranked top artists for the window.
func (c *Client) UserTopArtists(ctx context.Context, window domain.TimeWindow, limit int) ([]domain.Artist, error) {
	endpoint, err := c.topURL("artists", window, limit)
	if err != nil {
		return nil, err
	}
	var body struct {
		Items []spotifyArtist `json:"items"`
	}
	if err := c.getJSON(ctx, "top_artists", endpoint, &body); err != nil {
		return nil, err
	}
	return mapArtists(body.Items), nil
}

// UserTopTracks returns the listener's ranked top tracks for the window.
func (c *Client) UserTopTracks(ctx context.Context, window domain.TimeWindow, limit int) ([]domain.Track, error) {
	endpoint, err := c.topURL("tracks", window, limit)
	if err != nil {
		return nil, err
	}
	var body struct {
		Items []spotifyTrack `json:"items"`
	}
	if err := c.getJSON(ctx, "top_tracks_user", endpoint, &body); err != nil {
		return nil, err
	}
	return mapTracks(body.Items), nil
}
