package sources

import (
	"net/http"
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/ports"
)

// Registry holds the configured sources in registration order.
type Registry struct {
	sources []ports.TrackSource
}

var _ ports.SourceDirectory = (*Registry)(nil)

// NewRegistry returns a registry over the given sources.
func NewRegistry(sources ...ports.TrackSource) *Registry {
	return &Registry{sources: sources}
}

// Register appends a source. Not safe for use once requests are served.
func (r *Registry) Register(s ports.TrackSource) {
	r.sources = append(r.sources, s)
}

// Names returns the distinct source names in registration order.
func (r *Registry) Names() []string {
	seen := make(map[string]bool, len(r.sources))
	var names []string
	for _, s := range r.sources {
		if !seen[s.Name()] {
			seen[s.Name()] = true
			names = append(names, s.Name())
		}
	}
	return names
}

// Select implements ports.SourceDirectory. Every variant registered under a
// requested name is returned; unknown names are ignored and an empty request
// selects everything.
func (r *Registry) Select(names []string) []ports.TrackSource {
	if len(names) == 0 {
		out := make([]ports.TrackSource, len(r.sources))
		copy(out, r.sources)
		return out
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []ports.TrackSource
	for _, s := range r.sources {
		if want[s.Name()] {
			out = append(out, s)
		}
	}
	return out
}

// URLs points each site adapter at its root; empty fields use the public
// defaults.
type URLs struct {
	Audius   string
	Archive  string
	Bandcamp string
	Reddit   string
}

// NewDefaultRegistry registers every site variant, each behind its own
// breaker.
func NewDefaultRegistry(hc *http.Client, urls URLs, breaker BreakerSettings) *Registry {
	variants := []struct {
		label  string
		source ports.TrackSource
	}{
		{"audius", NewAudius(hc, urls.Audius)},
		{"audius_underground", NewAudiusUnderground(hc, urls.Audius)},
		{"archive_underground", NewArchiveUnderground(hc, urls.Archive)},
		{"archive_netlabels", NewArchiveNetlabels(hc, urls.Archive)},
		{"bandcamp", NewBandcamp(hc, urls.Bandcamp)},
		{"reddit", NewReddit(hc, urls.Reddit, nil)},
	}
	r := NewRegistry()
	for _, v := range variants {
		r.Register(NewBreaker(v.source, v.label, breaker))
	}
	return r
}
