package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
	"github.com/ewilliams-labs/latent/internal/metrics"
)

// Weights are the omission score component weights.
type Weights struct {
	Similarity float64
	Exposure   float64
	Saturation float64
	Popularity float64
	Recency    float64
}

// ScoringConfig holds every tunable constant of the omission scorer.
type ScoringConfig struct {
	Weights           Weights
	PopularityCeiling int
	RecencyCutoffYear int
	// CurrentYear overrides the clock when non-zero.
	CurrentYear     int
	SimilarityFloor float64
	PopularityGate  int
	MinSeedSupport  int
	MaxResults      int
}

// DefaultScoringConfig returns the standard scoring constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: Weights{
			Similarity: 0.35,
			Exposure:   0.25,
			Saturation: 0.15,
			Popularity: 0.15,
			Recency:    0.10,
		},
		PopularityCeiling: 60,
		RecencyCutoffYear: 2018,
		SimilarityFloor:   0.55,
		PopularityGate:    70,
		MinSeedSupport:    2,
		MaxResults:        5,
	}
}

// Scorer ranks candidates by omission score behind a confidence gate.
type Scorer struct {
	cfg      ScoringConfig
	feedback ports.FeedbackReader
	now      func() time.Time
}

// NewScorer constructs a Scorer. feedback may be nil, in which case no
// adjustments apply.
func NewScorer(cfg ScoringConfig, feedback ports.FeedbackReader) *Scorer {
	return &Scorer{cfg: cfg, feedback: feedback, now: time.Now}
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() ScoringConfig {
	return s.cfg
}

func (s *Scorer) currentYear() int {
	if s.cfg.CurrentYear > 0 {
		return s.cfg.CurrentYear
	}
	return s.now().Year()
}

// Score reads the feedback snapshot and returns gate-passing candidates in
// descending omission order. A failed snapshot read is an error: scoring
// without it could surface hard-excluded artists.
func (s *Scorer) Score(ctx context.Context, candidates []domain.CandidateArtist, p domain.ListeningProfile) ([]domain.ScoredCandidate, error) {
	adjustments, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Rank(candidates, p, adjustments), nil
}

// snapshot merges the per-artist adjustments with the hard exclusion list.
// An artist on the list is excluded even if its adjustment says otherwise.
func (s *Scorer) snapshot(ctx context.Context) (map[string]domain.Adjustment, error) {
	if s.feedback == nil {
		return map[string]domain.Adjustment{}, nil
	}

	snap, err := s.feedback.Adjustments(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: load feedback adjustments: %w", err)
	}
	excluded, err := s.feedback.ExcludedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: load feedback exclusions: %w", err)
	}

	adjustments := make(map[string]domain.Adjustment, len(snap)+len(excluded))
	for id, adj := range snap {
		adjustments[id] = adj
	}
	for id := range excluded {
		adjustments[id] = domain.Adjustment{Excluded: true}
	}
	return adjustments, nil
}

// TopN scores candidates and returns at most min(limit, MaxResults) of them.
func (s *Scorer) TopN(ctx context.Context, candidates []domain.CandidateArtist, p domain.ListeningProfile, limit int) ([]domain.ScoredCandidate, error) {
	scored, err := s.Score(ctx, candidates, p)
	if err != nil {
		return nil, err
	}
	capped := s.cfg.MaxResults
	if limit > 0 && limit < capped {
		capped = limit
	}
	if len(scored) > capped {
		scored = scored[:capped]
	}
	return scored, nil
}

// Rank is the pure scoring core: it evaluates every candidate, drops those
// failing the gate and sorts the rest by omission score, keeping input order
// for ties.
func (s *Scorer) Rank(candidates []domain.CandidateArtist, p domain.ListeningProfile, adjustments map[string]domain.Adjustment) []domain.ScoredCandidate {
	effMin := domain.EffectiveMinSeedSupport(len(p.ExpansionSeeds()), s.cfg.MinSeedSupport)

	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		sc := s.Evaluate(c, p, adjustments[c.ID], effMin)
		if !sc.Confident {
			metrics.GateDecisions.WithLabelValues("rejected").Inc()
			continue
		}
		metrics.GateDecisions.WithLabelValues("accepted").Inc()
		scored = append(scored, sc)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].OmissionScore > scored[j].OmissionScore
	})
	return scored
}

// Evaluate scores a single candidate, reporting the gate decision in Confident.
func (s *Scorer) Evaluate(c domain.CandidateArtist, p domain.ListeningProfile, adj domain.Adjustment, effMin int) domain.ScoredCandidate {
	w := s.cfg.Weights

	audioSim := 0.0
	if len(c.AudioFeatures) > 0 && p.Audio.Available {
		audioSim = AudioSimilarity(c.AudioFeatures, p.Audio)
	}

	comp := domain.ScoreComponents{
		ContextualSimilarity: ContextualSimilarity(c.GenreOverlap, audioSim, c.SeedSupportCount()),
		Exposure:             ExposureScore(c.ID, p),
		Saturation:           SaturationScore(c.Popularity),
		Popularity:           PopularityScore(c.Popularity, s.cfg.PopularityCeiling),
		Recency:              RecencyScore(c.EarliestReleaseYear, s.cfg.RecencyCutoffYear, s.currentYear()),
	}

	omission := comp.ContextualSimilarity*w.Similarity +
		comp.Exposure*w.Exposure +
		comp.Saturation*w.Saturation +
		comp.Popularity*w.Popularity +
		comp.Recency*w.Recency
	omission = clamp01(omission + adj.Delta)

	confident := !adj.Excluded &&
		c.SeedSupportCount() >= effMin &&
		comp.ContextualSimilarity >= s.cfg.SimilarityFloor &&
		c.Popularity <= s.cfg.PopularityGate

	overlapCount := GenreOverlapCount(c.Genres, p)
	kind, text := explain(c, comp, overlapCount)

	seeds := c.SeedNames
	if seeds == nil {
		seeds = []string{}
	}

	return domain.ScoredCandidate{
		Candidate:     c,
		Components:    comp,
		OmissionScore: omission,
		Confident:     confident,
		Evidence: domain.Evidence{
			SeedArtists:       seeds,
			GenreOverlapCount: overlapCount,
			AudioSimilarity:   math.Round(audioSim*1000) / 1000,
			Popularity:        c.Popularity,
			EarliestAlbumYear: c.EarliestReleaseYear,
		},
		ExplanationKind: kind,
		Explanation:     text,
	}
}

// ContextualSimilarity blends genre overlap, audio similarity and a boost of
// 0.05 per supporting seed (capped at 0.2). Without audio similarity the
// genre term carries both shares.
func ContextualSimilarity(overlap, audioSim float64, seedSupport int) float64 {
	seedBoost := math.Min(0.2, float64(seedSupport)*0.05)
	var base float64
	if audioSim > 0 {
		base = overlap*0.4 + audioSim*0.4 + seedBoost
	} else {
		base = overlap*0.8 + seedBoost
	}
	return math.Min(1, base)
}

// AudioSimilarity averages 1-|distance| over the scalar features the
// candidate reports, plus a tempo term that reaches zero at 40 BPM apart.
func AudioSimilarity(features domain.AudioFeatures, centers domain.AudioCenters) float64 {
	reference := centers.Features()
	var sum float64
	var n int

	for _, name := range domain.ScalarFeatures {
		v, ok := features.Lookup(name)
		if !ok {
			continue
		}
		sum += 1 - math.Abs(v-reference[name])
		n++
	}

	if tempo, ok := features.Lookup(domain.FeatureTempo); ok && tempo != 0 && centers.Tempo != 0 {
		sum += math.Max(0, 1-math.Abs(tempo-centers.Tempo)/40)
		n++
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ExposureScore is 1 for artists absent from the listener's history. The
// expander never yields known artists, so in practice this is constant.
func ExposureScore(artistID string, p domain.ListeningProfile) float64 {
	if p.IsKnown(artistID) {
		return 0
	}
	return 1
}

// SaturationScore estimates playlist saturation from popularity.
func SaturationScore(popularity int) float64 {
	switch {
	case popularity <= 30:
		return 1
	case popularity >= 70:
		return 0.2
	default:
		return 1 - (float64(popularity-30)/40)*0.8
	}
}

// PopularityScore penalises popularity up to the ceiling.
func PopularityScore(popularity, ceiling int) float64 {
	if popularity > ceiling {
		popularity = ceiling
	}
	return clamp01(1 - float64(popularity)/100)
}

// RecencyScore favours older catalogs: 1.0 at or before the cutoff, 0.2 for
// releases from last year onward, linear in between, and 0.5 when unknown.
func RecencyScore(earliest domain.Optional[int], cutoff, currentYear int) float64 {
	year, ok := earliest.Get()
	if !ok {
		return 0.5
	}
	if year <= cutoff {
		return 1
	}
	if year >= currentYear-1 {
		return 0.2
	}
	span := currentYear - 1 - cutoff
	if span <= 0 {
		return 0.2
	}
	return 1 - (float64(year-cutoff)/float64(span))*0.8
}
