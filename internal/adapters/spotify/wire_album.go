package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/metrics"
)

type spotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// ArtistAlbums returns up to limit albums and singles by the artist.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string, limit int) ([]domain.Album, error) {
	key := artistID + "|" + strconv.Itoa(limit)
	if c.albums != nil {
		if cached, ok := c.albums.Get(key); ok {
			metrics.CatalogCacheHits.WithLabelValues("artist_albums").Inc()
			return cached, nil
		}
	}

	albumsURL, err := url.Parse(fmt.Sprintf("%s/artists/%s/albums", c.baseURL, url.PathEscape(artistID)))
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: invalid albums url: %w", err)
	}
	q := albumsURL.Query()
	q.Set("include_groups", "album,single")
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	albumsURL.RawQuery = q.Encode()

	var body struct {
		Items []spotifyAlbum `json:"items"`
	}
	if err := c.getJSON(ctx, "artist_albums", albumsURL.String(), &body); err != nil {
		return nil, err
	}

	albums := make([]domain.Album, 0, len(body.Items))
	for _, a := range body.Items {
		albums = append(albums, mapAlbum(a))
	}
	if c.albums != nil {
		c.albums.Add(key, albums)
	}
	return albums, nil
}
