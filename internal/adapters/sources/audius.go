package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
)

const (
	// DefaultAudiusURL is a public Audius discovery node.
	DefaultAudiusURL = "https://discoveryprovider.audius.co"
	audiusAppName    = "latent-search"

	// undergroundMaxPlays is the play count under which a track counts as
	// underground on sites that report plays or downloads.
	undergroundMaxPlays = 1000
)

// Audius searches the Audius track index.
type Audius struct {
	hc          *http.Client
	baseURL     string
	underground bool
}

var _ ports.TrackSource = (*Audius)(nil)

// NewAudius returns the plain keyword search variant.
func NewAudius(hc *http.Client, baseURL string) *Audius {
	return &Audius{hc: clientOrDefault(hc), baseURL: strings.TrimRight(orDefault(baseURL, DefaultAudiusURL), "/")}
}

// NewAudiusUnderground returns a variant that keeps only low-play tracks,
// least played first.
func NewAudiusUnderground(hc *http.Client, baseURL string) *Audius {
	a := NewAudius(hc, baseURL)
	a.underground = true
	return a
}

// Name implements ports.TrackSource.
func (a *Audius) Name() string { return "audius" }

type audiusTrack struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
	Genre     string `json:"genre"`
	User      struct {
		Name   string `json:"name"`
		Handle string `json:"handle"`
	} `json:"user"`
	Artwork      map[string]string       `json:"artwork"`
	PlayCount    domain.Optional[int64] `json:"play_count"`
	Duration     domain.Optional[int]   `json:"duration"`
	Downloadable bool                    `json:"downloadable"`
}

// Search implements ports.TrackSource.
func (a *Audius) Search(ctx context.Context, query string, limit int) ([]domain.RawTrack, error) {
	searchURL, err := url.Parse(a.baseURL + "/v1/tracks/search")
	if err != nil {
		return nil, fmt.Errorf("audius: invalid search url: %w", err)
	}
	q := searchURL.Query()
	q.Set("query", query)
	q.Set("app_name", audiusAppName)
	searchURL.RawQuery = q.Encode()

	var body struct {
		Data []audiusTrack `json:"data"`
	}
	if err := fetchJSON(ctx, a.hc, "audius", searchURL.String(), DefaultUserAgent, &body); err != nil {
		return nil, err
	}

	take := limit
	if a.underground {
		take = limit * 3
	}
	items := body.Data
	if len(items) > take {
		items = items[:take]
	}

	tracks := make([]domain.RawTrack, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		tracks = append(tracks, mapAudius(item))
	}

	if a.underground {
		tracks = keepUnderground(tracks, limit)
	}
	return tracks, nil
}

func mapAudius(item audiusTrack) domain.RawTrack {
	slug := orDefault(item.Permalink, item.ID)
	artwork := item.Artwork["480x480"]
	if artwork == "" {
		artwork = item.Artwork["150x150"]
	}
	return domain.RawTrack{
		ID:           "audius_" + item.ID,
		Title:        orDefault(cleanText(item.Title), "Untitled"),
		Artist:       orDefault(cleanText(item.User.Name), "Unknown Artist"),
		URL:          fmt.Sprintf("https://audius.co/%s/%s", item.User.Handle, slug),
		ArtworkURL:   artwork,
		Genre:        item.Genre,
		Plays:        item.PlayCount,
		DurationSec:  item.Duration,
		Downloadable: item.Downloadable,
	}
}

// keepUnderground drops tracks at or above the play ceiling and orders the
// rest by ascending plays. Tracks without a play count are dropped.
func keepUnderground(tracks []domain.RawTrack, limit int) []domain.RawTrack {
	kept := tracks[:0]
	for _, t := range tracks {
		if plays, ok := t.Plays.Get(); ok && plays < undergroundMaxPlays {
			kept = append(kept, t)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Plays.Value < kept[j].Plays.Value
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
