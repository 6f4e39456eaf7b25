package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
	"github.com/ewilliams-labs/latent/internal/metrics"
)

// ShadowConfig holds the shadow search fan-out settings.
type ShadowConfig struct {
	CallTimeout   time.Duration
	MaxGenres     int
	DefaultGenres []string
	DeepSources   []string
	DeepThreshold float64
	DefaultLimit  int
}

// DefaultShadowConfig returns the standard shadow search settings.
func DefaultShadowConfig() ShadowConfig {
	return ShadowConfig{
		CallTimeout:   15 * time.Second,
		MaxGenres:     3,
		DefaultGenres: []string{"electronic", "experimental"},
		DeepSources:   []string{"audius", "archive", "bandcamp"},
		DeepThreshold: 0.7,
		DefaultLimit:  30,
	}
}

// ShadowRequest describes one shadow search.
type ShadowRequest struct {
	// Genres are the listener's genres, best first.
	Genres  []string
	Sources []ports.TrackSource
	Limit   int
	Deep    bool
}

// Aggregator fans a genre list out over track sources and ranks the merged
// results.
type Aggregator struct {
	cfg ShadowConfig
}

// NewAggregator constructs an Aggregator.
func NewAggregator(cfg ShadowConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Config returns the aggregator's configuration.
func (a *Aggregator) Config() ShadowConfig {
	return a.cfg
}

type sourceCall struct {
	source ports.TrackSource
	genre  string
}

// Search queries every (genre, source) pair concurrently. Failing or slow
// sources contribute nothing; the result is never an error. Tracks are
// deduplicated and returned in descending combined-score order, up to twice
// the requested limit.
func (a *Aggregator) Search(ctx context.Context, req ShadowRequest) []domain.ShadowTrack {
	limit := req.Limit
	if limit <= 0 {
		limit = a.cfg.DefaultLimit
	}

	genres := req.Genres
	if len(genres) == 0 {
		genres = a.cfg.DefaultGenres
	}
	if len(genres) > a.cfg.MaxGenres {
		genres = genres[:a.cfg.MaxGenres]
	}

	sources := req.Sources
	if req.Deep {
		sources = a.deepSources(sources)
	}

	var calls []sourceCall
	for _, g := range genres {
		for _, s := range sources {
			calls = append(calls, sourceCall{source: s, genre: g})
		}
	}

	log.Info().Int("calls", len(calls)).Strs("genres", genres).Bool("deep", req.Deep).Msg("shadow: searching")

	perCall := max(limit/2, 1)
	results := make([][]domain.RawTrack, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = a.call(ctx, call, perCall)
			return nil
		})
	}
	_ = g.Wait()

	var tracks []domain.ShadowTrack
	for i, raw := range results {
		name := calls[i].source.Name()
		for _, r := range raw {
			tracks = append(tracks, NormalizeTrack(r, name, req.Genres))
		}
	}

	unique := Dedupe(tracks)
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].CombinedScore > unique[j].CombinedScore
	})
	if len(unique) > 2*limit {
		unique = unique[:2*limit]
	}

	if req.Deep {
		deep := unique[:0]
		for _, t := range unique {
			if t.ShadowScore > a.cfg.DeepThreshold {
				deep = append(deep, t)
			}
		}
		unique = deep
	}

	log.Info().Int("tracks", len(unique)).Msg("shadow: search complete")
	return unique
}

func (a *Aggregator) deepSources(sources []ports.TrackSource) []ports.TrackSource {
	allowed := make(map[string]struct{}, len(a.cfg.DeepSources))
	for _, name := range a.cfg.DeepSources {
		allowed[name] = struct{}{}
	}
	var out []ports.TrackSource
	for _, s := range sources {
		if _, ok := allowed[s.Name()]; ok {
			out = append(out, s)
		}
	}
	return out
}

type callResult struct {
	tracks []domain.RawTrack
	err    error
}

// call runs one adapter query under the per-call timeout. A source that
// ignores cancellation is abandoned; its goroutine finishes into a buffered
// channel nobody reads.
func (a *Aggregator) call(ctx context.Context, c sourceCall, limit int) []domain.RawTrack {
	name := c.source.Name()
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	done := make(chan callResult, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("shadow: source %s panicked: %v", name, r)}
			}
		}()
		tracks, err := c.source.Search(callCtx, c.genre, limit)
		done <- callResult{tracks: tracks, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			outcome := metrics.OutcomeError
			if errors.Is(res.err, context.DeadlineExceeded) {
				outcome = metrics.OutcomeTimeout
			}
			metrics.ObserveSource(name, outcome, time.Since(start))
			log.Warn().Err(res.err).Str("source", name).Str("genre", c.genre).Msg("shadow: source failed")
			return nil
		}
		metrics.ObserveSource(name, metrics.OutcomeOK, time.Since(start))
		return res.tracks
	case <-callCtx.Done():
		metrics.ObserveSource(name, metrics.OutcomeTimeout, time.Since(start))
		log.Warn().Str("source", name).Str("genre", c.genre).Dur("timeout", a.cfg.CallTimeout).Msg("shadow: source timed out")
		return nil
	}
}
