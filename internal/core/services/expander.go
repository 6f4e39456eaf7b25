package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
	"github.com/ewilliams-labs/latent/internal/metrics"
	"github.com/ewilliams-labs/latent/internal/worker"
)

// ExpandOptions are the per-request expansion bounds.
type ExpandOptions struct {
	MaxCandidates int
	MinPopularity int
	MaxPopularity int
}

// DefaultExpandOptions returns the standard per-request bounds.
func DefaultExpandOptions() ExpandOptions {
	return ExpandOptions{MaxCandidates: 100, MinPopularity: 5, MaxPopularity: 60}
}

// ExpanderConfig holds the fan-out and enrichment limits.
type ExpanderConfig struct {
	MaxSeeds               int
	MinSeedSupport         int
	RelatedConcurrency     int
	GenreFallbackThreshold int
	GenreFallbackGenres    int
	GenreSearchLimit       int
	SampleTrackLimit       int
	ReleaseYearLimit       int
	AlbumLimit             int
	EnrichWorkers          int
	AnalyzePreviews        bool
}

// DefaultExpanderConfig returns the standard expansion limits.
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		MaxSeeds:               15,
		MinSeedSupport:         2,
		RelatedConcurrency:     4,
		GenreFallbackThreshold: 10,
		GenreFallbackGenres:    5,
		GenreSearchLimit:       30,
		SampleTrackLimit:       30,
		ReleaseYearLimit:       20,
		AlbumLimit:             5,
		EnrichWorkers:          4,
	}
}

// PreviewAnalyzer estimates energy from an audio preview URL.
type PreviewAnalyzer func(ctx context.Context, url string) (float64, error)

// Expander grows a candidate pool from the listener's seeds.
type Expander struct {
	catalog ports.ArtistCatalog
	cfg     ExpanderConfig
	analyze PreviewAnalyzer
}

// NewExpander constructs an Expander backed by the given catalog.
func NewExpander(catalog ports.ArtistCatalog, cfg ExpanderConfig) *Expander {
	return &Expander{catalog: catalog, cfg: cfg, analyze: worker.AnalyzePreviewFunc}
}

// Expand returns candidates reachable from the profile's seeds, each
// annotated with the distinct seeds that reached it. Related-artist lookups
// that fail are skipped; enrichment failures leave fields absent. Only
// cancellation of ctx is reported as an error.
func (e *Expander) Expand(ctx context.Context, p domain.ListeningProfile, opts ExpandOptions) ([]domain.CandidateArtist, error) {
	seeds := p.ExpansionSeeds()
	effMin := domain.EffectiveMinSeedSupport(len(seeds), e.cfg.MinSeedSupport)
	used := seeds
	if len(used) > e.cfg.MaxSeeds {
		used = used[:e.cfg.MaxSeeds]
	}

	log.Debug().Int("seeds", len(seeds)).Int("queried", len(used)).Int("min_support", effMin).Msg("expander: starting")

	pool := e.collectRelated(ctx, p, used, opts)

	candidates := make([]domain.CandidateArtist, 0, len(pool))
	for _, c := range pool {
		if c.SeedSupportCount() >= effMin {
			candidates = append(candidates, *c)
		}
	}
	log.Debug().Int("reached", len(pool)).Int("supported", len(candidates)).Msg("expander: related pass complete")

	if len(candidates) < e.cfg.GenreFallbackThreshold {
		existing := make(map[string]struct{}, len(candidates))
		for _, c := range candidates {
			existing[c.ID] = struct{}{}
		}
		candidates = append(candidates, e.expandByGenre(ctx, p, existing, opts, opts.MaxCandidates-len(candidates))...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return float64(candidates[i].SeedSupportCount())*candidates[i].GenreOverlap >
			float64(candidates[j].SeedSupportCount())*candidates[j].GenreOverlap
	})
	if opts.MaxCandidates >= 0 && len(candidates) > opts.MaxCandidates {
		candidates = candidates[:opts.MaxCandidates]
	}

	e.enrich(ctx, candidates)
	metrics.CandidatePoolSize.Observe(float64(len(candidates)))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("service: expansion canceled: %w", err)
	}
	return candidates, nil
}

// collectRelated queries related artists for each seed concurrently and
// merges the results in seed order, so first-sighting order is stable.
func (e *Expander) collectRelated(ctx context.Context, p domain.ListeningProfile, seeds []string, opts ExpandOptions) []*domain.CandidateArtist {
	related := make([][]domain.Artist, len(seeds))

	var g errgroup.Group
	g.SetLimit(max(e.cfg.RelatedConcurrency, 1))
	for i, seedID := range seeds {
		g.Go(func() error {
			artists, err := e.catalog.RelatedArtists(ctx, seedID)
			if err != nil {
				log.Warn().Err(err).Str("seed", seedID).Msg("expander: related artists lookup failed")
				return nil
			}
			related[i] = artists
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]*domain.CandidateArtist)
	var order []*domain.CandidateArtist
	for i, seedID := range seeds {
		seedName := p.ArtistName(seedID)
		for _, a := range related[i] {
			if a.ID == "" || p.IsKnown(a.ID) {
				continue
			}
			c, ok := byID[a.ID]
			if !ok {
				// The popularity window applies only at first sighting.
				if a.Popularity < opts.MinPopularity || a.Popularity > opts.MaxPopularity {
					continue
				}
				c = newCandidate(a, p)
				c.Source = domain.SourceRelated
				byID[a.ID] = c
				order = append(order, c)
			}
			c.AddSeed(seedID, seedName)
		}
	}
	return order
}

func (e *Expander) expandByGenre(ctx context.Context, p domain.ListeningProfile, existing map[string]struct{}, opts ExpandOptions, limit int) []domain.CandidateArtist {
	var out []domain.CandidateArtist
	for _, genre := range p.TopGenres(e.cfg.GenreFallbackGenres) {
		if len(out) >= limit {
			break
		}
		artists, err := e.catalog.SearchArtists(ctx, fmt.Sprintf("genre:%q", genre), e.cfg.GenreSearchLimit)
		if err != nil {
			log.Warn().Err(err).Str("genre", genre).Msg("expander: genre search failed")
			continue
		}
		for _, a := range artists {
			if a.ID == "" || p.IsKnown(a.ID) {
				continue
			}
			if _, dup := existing[a.ID]; dup {
				continue
			}
			if a.Popularity < opts.MinPopularity || a.Popularity > opts.MaxPopularity {
				continue
			}
			c := newCandidate(a, p)
			c.Source = domain.SourceGenreSearch
			c.SourceGenre = genre
			out = append(out, *c)
			existing[a.ID] = struct{}{}
			if len(out) >= limit {
				break
			}
		}
	}
	log.Debug().Int("added", len(out)).Msg("expander: genre fallback complete")
	return out
}

func newCandidate(a domain.Artist, p domain.ListeningProfile) *domain.CandidateArtist {
	name := a.Name
	if name == "" {
		name = "Unknown"
	}
	return &domain.CandidateArtist{
		ID:           a.ID,
		Name:         name,
		Genres:       a.Genres,
		Popularity:   a.Popularity,
		GenreOverlap: GenreOverlap(a.Genres, p),
		SeedIDs:      []string{},
		SeedNames:    []string{},
	}
}

// enrich attaches sample tracks, earliest release years and audio features
// to the leading candidates. Each job writes only its own candidate's slot.
func (e *Expander) enrich(ctx context.Context, candidates []domain.CandidateArtist) {
	sampleN := min(e.cfg.SampleTrackLimit, len(candidates))
	yearN := min(e.cfg.ReleaseYearLimit, len(candidates))

	samples := make([]domain.Optional[domain.SampleTrack], sampleN)
	years := make([]domain.Optional[int], yearN)

	pool := worker.NewPool(sampleN + yearN)
	pool.Start(ctx, e.cfg.EnrichWorkers)
	for i := 0; i < sampleN; i++ {
		pool.Submit(worker.Job{Name: "sample-track", Run: func(ctx context.Context) {
			samples[i] = e.sampleTrack(ctx, candidates[i].ID)
		}})
	}
	for i := 0; i < yearN; i++ {
		pool.Submit(worker.Job{Name: "release-year", Run: func(ctx context.Context) {
			years[i] = e.earliestYear(ctx, candidates[i].ID)
		}})
	}
	pool.Stop()

	for i := range samples {
		candidates[i].SampleTrack = samples[i]
	}
	for i := range years {
		candidates[i].EarliestReleaseYear = years[i]
	}

	e.attachFeatures(ctx, candidates[:sampleN])
}

func (e *Expander) sampleTrack(ctx context.Context, artistID string) domain.Optional[domain.SampleTrack] {
	tracks, err := e.catalog.TopTracks(ctx, artistID)
	if err != nil {
		log.Debug().Err(err).Str("artist", artistID).Msg("expander: top tracks unavailable")
		return domain.None[domain.SampleTrack]()
	}
	if len(tracks) == 0 {
		return domain.None[domain.SampleTrack]()
	}
	t := tracks[0]
	return domain.Some(domain.SampleTrack{ID: t.ID, Name: t.Name, PreviewURL: t.PreviewURL})
}

func (e *Expander) earliestYear(ctx context.Context, artistID string) domain.Optional[int] {
	albums, err := e.catalog.ArtistAlbums(ctx, artistID, e.cfg.AlbumLimit)
	if err != nil {
		log.Debug().Err(err).Str("artist", artistID).Msg("expander: albums unavailable")
		return domain.None[int]()
	}
	earliest := domain.None[int]()
	for _, a := range albums {
		year, ok := a.ReleaseYear()
		if !ok {
			continue
		}
		if !earliest.Valid || year < earliest.Value {
			earliest = domain.Some(year)
		}
	}
	return earliest
}

// attachFeatures fetches catalog audio features for sample tracks in one
// batch. When enabled, previews without catalog features are analysed for
// energy instead.
func (e *Expander) attachFeatures(ctx context.Context, candidates []domain.CandidateArtist) {
	var ids []string
	for _, c := range candidates {
		if st, ok := c.SampleTrack.Get(); ok && st.ID != "" {
			ids = append(ids, st.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	features, err := e.catalog.AudioFeatures(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("expander: audio features unavailable, scoring on genre overlap")
		features = nil
	}

	var missing []int
	for i := range candidates {
		st, ok := candidates[i].SampleTrack.Get()
		if !ok {
			continue
		}
		if f, ok := features[st.ID]; ok && len(f) > 0 {
			candidates[i].AudioFeatures = f
			continue
		}
		if st.PreviewURL != "" {
			missing = append(missing, i)
		}
	}

	if !e.cfg.AnalyzePreviews || e.analyze == nil || len(missing) == 0 {
		return
	}

	energies := make([]domain.Optional[float64], len(missing))
	pool := worker.NewPool(len(missing))
	pool.Start(ctx, e.cfg.EnrichWorkers)
	for j, idx := range missing {
		url := candidates[idx].SampleTrack.Value.PreviewURL
		pool.Submit(worker.Job{Name: "preview-energy", Run: func(ctx context.Context) {
			energy, err := e.analyze(ctx, url)
			if err != nil {
				log.Debug().Err(err).Msg("expander: preview analysis failed")
				return
			}
			energies[j] = domain.Some(energy)
		}})
	}
	pool.Stop()

	for j, idx := range missing {
		if energy, ok := energies[j].Get(); ok {
			candidates[idx].AudioFeatures = domain.AudioFeatures{domain.FeatureEnergy: energy}
		}
	}
}
