package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
)

// DefaultRedditURL is the Reddit site root.
const DefaultRedditURL = "https://www.reddit.com"

// DefaultSubreddits are communities where listeners share obscure music.
var DefaultSubreddits = []string{
	"listentothis",
	"under10k",
	"futurebeats",
	"experimentalmusic",
	"obscuremusic",
	"truemusic",
}

var (
	bracketGenre  = regexp.MustCompile(`\[([^\]]+)\]`)
	trailingParen = regexp.MustCompile(`\(([^)]+)\)$`)
	yearLike      = regexp.MustCompile(`\d{4}`)

	titleSeparators = []string{" - ", " -- ", " – ", " — ", " | "}
	noThumbnail     = map[string]bool{"": true, "self": true, "default": true, "nsfw": true}
)

// Reddit searches music subreddits for posts titled "Artist - Title".
// Subreddits are queried in order until the limit is reached; a failing
// subreddit is skipped.
type Reddit struct {
	hc         *http.Client
	baseURL    string
	subreddits []string
}

var _ ports.TrackSource = (*Reddit)(nil)

// NewReddit constructs the Reddit source. Nil subreddits selects the defaults.
func NewReddit(hc *http.Client, baseURL string, subreddits []string) *Reddit {
	if len(subreddits) == 0 {
		subreddits = DefaultSubreddits
	}
	return &Reddit{
		hc:         clientOrDefault(hc),
		baseURL:    strings.TrimRight(orDefault(baseURL, DefaultRedditURL), "/"),
		subreddits: subreddits,
	}
}

// Name implements ports.TrackSource.
func (r *Reddit) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Permalink string `json:"permalink"`
	Thumbnail string `json:"thumbnail"`
}

// Search implements ports.TrackSource.
func (r *Reddit) Search(ctx context.Context, query string, limit int) ([]domain.RawTrack, error) {
	var tracks []domain.RawTrack
	var lastErr error
	failed := 0

	for _, sub := range r.subreddits {
		if len(tracks) >= limit {
			break
		}
		posts, err := r.searchSubreddit(ctx, sub, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("reddit: %w", ctx.Err())
			}
			log.Debug().Err(err).Str("subreddit", sub).Msg("reddit: subreddit search failed")
			lastErr = err
			failed++
			continue
		}
		for _, post := range posts {
			if len(tracks) >= limit {
				break
			}
			if t, ok := r.mapPost(post); ok {
				tracks = append(tracks, t)
			}
		}
	}

	if failed == len(r.subreddits) && lastErr != nil {
		return nil, lastErr
	}
	return tracks, nil
}

func (r *Reddit) searchSubreddit(ctx context.Context, sub, query string) ([]redditPost, error) {
	searchURL, err := url.Parse(fmt.Sprintf("%s/r/%s/search.json", r.baseURL, url.PathEscape(sub)))
	if err != nil {
		return nil, fmt.Errorf("reddit: invalid search url: %w", err)
	}
	q := searchURL.Query()
	q.Set("q", query)
	q.Set("restrict_sr", "on")
	q.Set("sort", "relevance")
	q.Set("limit", "100")
	q.Set("t", "all")
	searchURL.RawQuery = q.Encode()

	var listing redditListing
	if err := fetchJSON(ctx, r.hc, "reddit", searchURL.String(), DefaultUserAgent, &listing); err != nil {
		return nil, err
	}
	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

func (r *Reddit) mapPost(post redditPost) (domain.RawTrack, bool) {
	artist, title, genre := ParsePostTitle(cleanText(post.Title))
	if artist == "" || title == "" {
		return domain.RawTrack{}, false
	}

	link := post.URL
	if strings.Contains(link, "reddit.com") || link == "" {
		link = "https://reddit.com" + post.Permalink
	}
	artwork := ""
	if !noThumbnail[post.Thumbnail] {
		artwork = post.Thumbnail
	}

	return domain.RawTrack{
		ID:         "reddit_" + post.ID,
		Title:      title,
		Artist:     artist,
		URL:        link,
		ArtworkURL: artwork,
		Genre:      genre,
	}, true
}

// ParsePostTitle splits a post title of the form "Artist - Title [Genre]".
// A bracketed tag is the genre; failing that, a short trailing parenthetical
// without a year is. Artist or title is empty when no separator is found.
func ParsePostTitle(raw string) (artist, title, genre string) {
	s := raw
	if m := bracketGenre.FindStringSubmatch(s); m != nil {
		genre = strings.TrimSpace(m[1])
		s = strings.TrimSpace(bracketGenre.ReplaceAllString(s, ""))
	}
	if genre == "" {
		if m := trailingParen.FindStringSubmatch(s); m != nil && len(m[1]) < 30 && !yearLike.MatchString(m[1]) {
			genre = strings.TrimSpace(m[1])
			s = strings.TrimSpace(trailingParen.ReplaceAllString(s, ""))
		}
	}

	for _, sep := range titleSeparators {
		if a, t, ok := strings.Cut(s, sep); ok {
			artist = strings.Join(strings.Fields(a), " ")
			title = strings.Join(strings.Fields(t), " ")
			break
		}
	}
	return artist, title, genre
}
