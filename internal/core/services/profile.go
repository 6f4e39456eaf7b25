package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
)

// ProfileBuilder loads listening history and derives a ListeningProfile.
type ProfileBuilder struct {
	limit int
}

// NewProfileBuilder constructs a ProfileBuilder reading limit entries per window.
func NewProfileBuilder(limit int) *ProfileBuilder {
	if limit <= 0 {
		limit = domain.HistoryLimit
	}
	return &ProfileBuilder{limit: limit}
}

// Load fetches top artists and tracks for each window concurrently, then
// audio features for every distinct track. A failed window read is an error;
// missing audio features only degrade the profile to default centers.
func (b *ProfileBuilder) Load(ctx context.Context, provider ports.HistoryProvider, windows []domain.TimeWindow) (domain.History, error) {
	history := domain.History{Windows: make([]domain.WindowHistory, len(windows))}

	g, gctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		g.Go(func() error {
			artists, err := provider.UserTopArtists(gctx, w, b.limit)
			if err != nil {
				return fmt.Errorf("service: load top artists (%s): %w", w, err)
			}
			tracks, err := provider.UserTopTracks(gctx, w, b.limit)
			if err != nil {
				return fmt.Errorf("service: load top tracks (%s): %w", w, err)
			}
			history.Windows[i] = domain.WindowHistory{Window: w, Artists: artists, Tracks: tracks}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.History{}, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, wh := range history.Windows {
		for _, t := range wh.Tracks {
			if _, ok := seen[t.ID]; ok || t.ID == "" {
				continue
			}
			seen[t.ID] = struct{}{}
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return history, nil
	}

	features, err := provider.AudioFeatures(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Int("tracks", len(ids)).Msg("service: audio features unavailable, using default centers")
		return history, nil
	}
	history.TrackFeatures = features
	return history, nil
}

// Build loads history and derives the profile.
func (b *ProfileBuilder) Build(ctx context.Context, provider ports.HistoryProvider, windows []domain.TimeWindow) (domain.ListeningProfile, error) {
	history, err := b.Load(ctx, provider, windows)
	if err != nil {
		return domain.ListeningProfile{}, err
	}
	p := domain.BuildProfile(history)
	log.Debug().
		Int("artists", len(p.ArtistOrder)).
		Int("recurring", len(p.RecurringIDs)).
		Int("genres", len(p.GenreWeights)).
		Bool("audio", p.Audio.Available).
		Msg("service: profile built")
	return p, nil
}
