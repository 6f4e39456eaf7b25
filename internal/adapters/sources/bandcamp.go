package sources

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
)

const (
	// DefaultBandcampURL is the Bandcamp site root.
	DefaultBandcampURL = "https://bandcamp.com"
	bandcampUserAgent  = "Mozilla/5.0 (compatible; LatentSearch/1.0)"
)

// Bandcamp scrapes the public track search page. Bandcamp reports neither
// plays nor genre on search results.
type Bandcamp struct {
	hc      *http.Client
	baseURL string
}

var _ ports.TrackSource = (*Bandcamp)(nil)

// NewBandcamp constructs the Bandcamp source.
func NewBandcamp(hc *http.Client, baseURL string) *Bandcamp {
	return &Bandcamp{hc: clientOrDefault(hc), baseURL: strings.TrimRight(orDefault(baseURL, DefaultBandcampURL), "/")}
}

// Name implements ports.TrackSource.
func (b *Bandcamp) Name() string { return "bandcamp" }

// Search implements ports.TrackSource.
func (b *Bandcamp) Search(ctx context.Context, query string, limit int) ([]domain.RawTrack, error) {
	searchURL, err := url.Parse(b.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("bandcamp: invalid search url: %w", err)
	}
	q := searchURL.Query()
	q.Set("q", query)
	q.Set("item_type", "t")
	searchURL.RawQuery = q.Encode()

	resp, err := fetch(ctx, b.hc, "bandcamp", searchURL.String(), bandcampUserAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bandcamp: parse page: %w", err)
	}
	return parseBandcampResults(doc, limit), nil
}

func parseBandcampResults(doc *goquery.Document, limit int) []domain.RawTrack {
	var tracks []domain.RawTrack
	doc.Find("li.searchresult").EachWithBreak(func(idx int, s *goquery.Selection) bool {
		if idx >= limit {
			return false
		}
		heading := s.Find(".heading").First()
		if heading.Length() == 0 {
			return true
		}
		link := heading.Find("a").First()

		title := orDefault(cleanText(link.Text()), "Unknown")
		artist := strings.TrimSpace(strings.Replace(cleanText(s.Find(".subhead").First().Text()), "by ", "", 1))
		artist = orDefault(artist, "Unknown Artist")

		href, _ := link.Attr("href")
		if i := strings.IndexByte(href, '?'); i >= 0 {
			href = href[:i]
		}
		artwork, _ := s.Find(".art img").First().Attr("src")

		tracks = append(tracks, domain.RawTrack{
			ID:         fmt.Sprintf("bc_%d_%d", idx, titleHash(title+artist)%100000),
			Title:      title,
			Artist:     artist,
			URL:        href,
			ArtworkURL: artwork,
		})
		return true
	})
	return tracks
}

func titleHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
