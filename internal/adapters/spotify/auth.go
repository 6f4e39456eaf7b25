package spotify

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/latent/internal/core/ports"
)

// DefaultTokenURL is the Spotify accounts token endpoint.
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// CatalogCredentials are the application credentials used for catalog reads.
type CatalogCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// NewCatalogClient returns a Client authorised with the client-credentials
// grant. Tokens are fetched lazily and refreshed by the oauth2 transport.
func NewCatalogClient(ctx context.Context, creds CatalogCredentials, baseURL string, timeout time.Duration, opts ...Option) *Client {
	tokenURL := creds.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	hc := cfg.Client(ctx)
	hc.Timeout = timeout
	return NewClient(hc, baseURL, opts...)
}

// Connector builds per-listener clients from user access tokens.
type Connector struct {
	baseURL string
	timeout time.Duration
	opts    []Option
}

var _ ports.HistoryConnector = (*Connector)(nil)

// NewConnector constructs a Connector. opts apply to every per-user client.
func NewConnector(baseURL string, timeout time.Duration, opts ...Option) *Connector {
	return &Connector{baseURL: baseURL, timeout: timeout, opts: opts}
}

// ForUser returns a history provider acting with the listener's token.
func (c *Connector) ForUser(accessToken string) ports.HistoryProvider {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.Background(), src)
	hc.Timeout = c.timeout
	return NewClient(hc, c.baseURL, c.opts...)
}
