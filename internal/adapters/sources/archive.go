package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
)

// DefaultArchiveURL is the Internet Archive root.
const DefaultArchiveURL = "https://archive.org"

// musicCollections restricts unscoped searches to music-bearing collections.
var musicCollections = []string{
	"audio",
	"etree",
	"netlabels",
	"opensource_audio",
	"audio_music",
	"electronicmusic",
	"freemusicarchive",
}

type archiveMode int

const (
	archiveUnderground archiveMode = iota
	archiveNetlabels
)

// Archive searches Internet Archive audio items. Downloads stand in for
// plays and every item is downloadable.
type Archive struct {
	hc      *http.Client
	baseURL string
	mode    archiveMode
}

var _ ports.TrackSource = (*Archive)(nil)

// NewArchiveUnderground returns the variant that keeps items under the
// download ceiling, least downloaded first.
func NewArchiveUnderground(hc *http.Client, baseURL string) *Archive {
	return &Archive{
		hc:      clientOrDefault(hc),
		baseURL: strings.TrimRight(orDefault(baseURL, DefaultArchiveURL), "/"),
		mode:    archiveUnderground,
	}
}

// NewArchiveNetlabels returns the variant scoped to the netlabels collection.
func NewArchiveNetlabels(hc *http.Client, baseURL string) *Archive {
	a := NewArchiveUnderground(hc, baseURL)
	a.mode = archiveNetlabels
	return a
}

// Name implements ports.TrackSource.
func (a *Archive) Name() string { return "archive" }

type archiveDoc struct {
	Identifier string     `json:"identifier"`
	Title      flexString `json:"title"`
	Creator    flexString `json:"creator"`
	Downloads  flexInt    `json:"downloads"`
}

// Search implements ports.TrackSource.
func (a *Archive) Search(ctx context.Context, query string, limit int) ([]domain.RawTrack, error) {
	rows := limit
	collection := ""
	switch a.mode {
	case archiveUnderground:
		rows = limit * 3
	case archiveNetlabels:
		collection = "netlabels"
	}

	endpoint, err := a.searchURL(query, collection, rows)
	if err != nil {
		return nil, err
	}

	var body struct {
		Response struct {
			Docs []archiveDoc `json:"docs"`
		} `json:"response"`
	}
	if err := fetchJSON(ctx, a.hc, "archive", endpoint, DefaultUserAgent, &body); err != nil {
		return nil, err
	}

	tracks := make([]domain.RawTrack, 0, len(body.Response.Docs))
	for _, doc := range body.Response.Docs {
		if doc.Identifier == "" {
			continue
		}
		tracks = append(tracks, a.mapDoc(doc))
	}

	if a.mode == archiveUnderground {
		return keepUnderground(tracks, limit), nil
	}
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func (a *Archive) searchURL(query, collection string, rows int) (string, error) {
	if strings.TrimSpace(query) == "" {
		query = "*"
	}
	parts := []string{"(" + query + ")", "mediatype:audio"}
	if collection != "" {
		parts = append(parts, "collection:"+collection)
	} else {
		scoped := make([]string, len(musicCollections))
		for i, c := range musicCollections {
			scoped[i] = "collection:" + c
		}
		parts = append(parts, "("+strings.Join(scoped, " OR ")+")")
	}

	searchURL, err := url.Parse(a.baseURL + "/advancedsearch.php")
	if err != nil {
		return "", fmt.Errorf("archive: invalid search url: %w", err)
	}
	q := searchURL.Query()
	q.Set("q", strings.Join(parts, " AND "))
	q.Set("output", "json")
	q.Set("rows", strconv.Itoa(rows))
	for _, field := range []string{"identifier", "title", "creator", "downloads"} {
		q.Add("fl[]", field)
	}
	q.Set("sort[]", "downloads desc")
	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

func (a *Archive) mapDoc(doc archiveDoc) domain.RawTrack {
	plays := domain.Some(int64(0))
	if doc.Downloads.Valid {
		plays = domain.Some(doc.Downloads.Value)
	}
	return domain.RawTrack{
		ID:           "archive_" + doc.Identifier,
		Title:        orDefault(cleanText(string(doc.Title)), "Untitled"),
		Artist:       orDefault(cleanText(string(doc.Creator)), "Unknown Artist"),
		URL:          "https://archive.org/details/" + doc.Identifier,
		ArtworkURL:   "https://archive.org/services/img/" + doc.Identifier,
		Plays:        plays,
		Downloadable: true,
	}
}
