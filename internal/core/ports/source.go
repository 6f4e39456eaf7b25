package ports

import (
	"context"

	"github.com/ewilliams-labs/latent/internal/core/domain"
)

// TrackSource is one shadow search endpoint. Several sources may share a
// Name when they are variants of the same site.
type TrackSource interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]domain.RawTrack, error)
}

// SourceDirectory resolves source names to the registered TrackSource
// variants. Empty names select every source; unknown names are ignored.
type SourceDirectory interface {
	Select(names []string) []TrackSource
}
