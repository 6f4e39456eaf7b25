package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
	"github.com/ewilliams-labs/latent/internal/metrics"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

// Client is an HTTP client for the Spotify adapter.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	baseBackoff time.Duration
	limiter     *rate.Limiter

	related *expirable.LRU[string, []domain.Artist]
	albums  *expirable.LRU[string, []domain.Album]
}

// compile-time interface assertions
var (
	_ ports.ArtistCatalog   = (*Client)(nil)
	_ ports.HistoryProvider = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the attempt count and base backoff for 429 and 5xx responses.
func WithRetry(maxRetries int, baseBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseBackoff = baseBackoff
	}
}

// WithRateLimit caps outgoing requests per second. A non-positive rps
// disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithCache caches related-artist and album lookups, which are stable across
// listeners. A non-positive size disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size <= 0 {
			c.related, c.albums = nil, nil
			return
		}
		c.related = expirable.NewLRU[string, []domain.Artist](size, nil, ttl)
		c.albums = expirable.NewLRU[string, []domain.Album](size, nil, ttl)
	}
}

// NewClient constructs a new Spotify client. The http.Client is expected to
// attach authorization, typically via an oauth2 transport.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON issues a GET with retry and decodes a 200 response into out. The
// endpoint label groups requests in metrics.
func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("spotify adapter: create %s request: %w", endpoint, err)
	}

	resp, err := c.doRequestWithRetry(req, endpoint)
	if err != nil {
		metrics.CatalogRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("spotify adapter: %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.CatalogRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("spotify adapter: %s status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify adapter: %s decode error: %w", endpoint, err)
	}

	log.Debug().Str("endpoint", endpoint).Msg("spotify adapter: request complete")
	return nil
}
