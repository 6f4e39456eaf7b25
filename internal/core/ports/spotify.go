package ports

import (
	"context"

	"github.com/ewilliams-labs/latent/internal/core/domain"
)

// ArtistCatalog is the public music catalog used to expand and enrich candidates.
type ArtistCatalog interface {
	RelatedArtists(ctx context.Context, artistID string) ([]domain.Artist, error)
	SearchArtists(ctx context.Context, query string, limit int) ([]domain.Artist, error)
	TopTracks(ctx context.Context, artistID string) ([]domain.Track, error)
	ArtistAlbums(ctx context.Context, artistID string, limit int) ([]domain.Album, error)
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]domain.AudioFeatures, error)
}

// HistoryProvider reads one listener's ranked listening history.
type HistoryProvider interface {
	UserTopArtists(ctx context.Context, window domain.TimeWindow, limit int) ([]domain.Artist, error)
	UserTopTracks(ctx context.Context, window domain.TimeWindow, limit int) ([]domain.Track, error)
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]domain.AudioFeatures, error)
}

// HistoryConnector binds a HistoryProvider to a listener's access token.
type HistoryConnector interface {
	ForUser(accessToken string) HistoryProvider
}
