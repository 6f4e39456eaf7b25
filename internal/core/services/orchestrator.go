package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
	"github.com/ewilliams-labs/latent/internal/metrics"
)

// ErrInvalidRequest is returned when a request is missing required input.
var ErrInvalidRequest = errors.New("service: invalid request")

// ScanRequest describes one omission scan.
type ScanRequest struct {
	AccessToken   string
	MinPopularity int
	MaxPopularity int
	TimeRange     string
	MaxResults    int
}

// ScanResult is the gated, ranked output of an omission scan.
type ScanResult struct {
	Results             []domain.ScoredCandidate
	Summary             string
	CandidatesEvaluated int
	ConfidenceThreshold float64
}

// ShadowSearchRequest describes one shadow search. When Genres is empty and
// an access token is present, the listener's top genres are used.
type ShadowSearchRequest struct {
	AccessToken string
	Genres      []string
	Sources     []string
	Limit       int
	Deep        bool
}

// FeedbackRequest is a verdict submitted for a surfaced candidate.
type FeedbackRequest struct {
	ArtistID      string
	Verdict       string
	SeedArtists   []string
	OmissionScore float64
}

// Orchestrator coordinates history, expansion, scoring, shadow search and
// the feedback store.
type Orchestrator struct {
	history  ports.HistoryConnector
	profiles *ProfileBuilder
	expander *Expander
	scorer   *Scorer
	shadow   *Aggregator
	sources  ports.SourceDirectory
	feedback ports.FeedbackStore
	scans    ports.ScanLog
	expand   ExpandOptions
	now      func() time.Time
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	history ports.HistoryConnector,
	profiles *ProfileBuilder,
	expander *Expander,
	scorer *Scorer,
	shadow *Aggregator,
	sources ports.SourceDirectory,
	feedback ports.FeedbackStore,
	scans ports.ScanLog,
) *Orchestrator {
	return &Orchestrator{
		history:  history,
		profiles: profiles,
		expander: expander,
		scorer:   scorer,
		shadow:   shadow,
		sources:  sources,
		feedback: feedback,
		scans:    scans,
		expand:   DefaultExpandOptions(),
		now:      time.Now,
	}
}

// SetMaxCandidates caps the expansion pool evaluated by each scan.
func (o *Orchestrator) SetMaxCandidates(n int) {
	if n > 0 {
		o.expand.MaxCandidates = n
	}
}

// BuildProfile loads the listener's history for the given time range.
func (o *Orchestrator) BuildProfile(ctx context.Context, accessToken, timeRange string) (domain.ListeningProfile, error) {
	if strings.TrimSpace(accessToken) == "" {
		return domain.ListeningProfile{}, fmt.Errorf("%w: access token required", ErrInvalidRequest)
	}
	windows, err := domain.ParseTimeRange(timeRange)
	if err != nil {
		return domain.ListeningProfile{}, err
	}
	p, err := o.profiles.Build(ctx, o.history.ForUser(accessToken), windows)
	if err != nil {
		return domain.ListeningProfile{}, fmt.Errorf("service: failed to build profile: %w", err)
	}
	return p, nil
}

// Diagnose builds the listener's profile over all windows and summarises it.
func (o *Orchestrator) Diagnose(ctx context.Context, accessToken string) (domain.Diagnosis, error) {
	p, err := o.BuildProfile(ctx, accessToken, "all")
	if err != nil {
		return domain.Diagnosis{}, err
	}
	return domain.Diagnose(p), nil
}

// Scan expands and scores candidates, returning at most the configured
// number of gate-passing results.
func (o *Orchestrator) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	start := o.now()
	defer func() { metrics.ScanDuration.Observe(time.Since(start).Seconds()) }()

	if req.MinPopularity > req.MaxPopularity {
		return ScanResult{}, fmt.Errorf("%w: min_popularity exceeds max_popularity", ErrInvalidRequest)
	}

	// 1. Build the listener profile
	p, err := o.BuildProfile(ctx, req.AccessToken, req.TimeRange)
	if err != nil {
		return ScanResult{}, err
	}

	// 2. Expand candidates from the recurring seeds
	opts := o.expand
	opts.MinPopularity = req.MinPopularity
	opts.MaxPopularity = req.MaxPopularity
	candidates, err := o.expander.Expand(ctx, p, opts)
	if err != nil {
		return ScanResult{}, err
	}

	result := ScanResult{
		Results:             []domain.ScoredCandidate{},
		Summary:             p.Summary(),
		CandidatesEvaluated: len(candidates),
		ConfidenceThreshold: o.scorer.Config().SimilarityFloor,
	}

	// 3. Score behind the confidence gate
	if len(candidates) > 0 {
		scored, err := o.scorer.TopN(ctx, candidates, p, req.MaxResults)
		if err != nil {
			return ScanResult{}, err
		}
		result.Results = scored
	}

	// 4. Record the scan; a logging failure never fails the request
	o.logScan(ctx, req, result)

	log.Info().
		Int("candidates", result.CandidatesEvaluated).
		Int("results", len(result.Results)).
		Msg("service: scan complete")
	return result, nil
}

func (o *Orchestrator) logScan(ctx context.Context, req ScanRequest, result ScanResult) {
	if o.scans == nil {
		return
	}
	timeRange := req.TimeRange
	if timeRange == "" {
		timeRange = "all"
	}
	rec := domain.ScanRecord{
		ID:              uuid.NewString(),
		MinPopularity:   req.MinPopularity,
		MaxPopularity:   req.MaxPopularity,
		TimeRange:       timeRange,
		MaxResults:      req.MaxResults,
		CandidatesFound: result.CandidatesEvaluated,
		ResultsReturned: len(result.Results),
		CreatedAt:       o.now().UTC(),
	}
	if err := o.scans.LogScan(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("service: failed to log scan")
	}
}

// ShadowSearch runs a federated search over the selected sources.
func (o *Orchestrator) ShadowSearch(ctx context.Context, req ShadowSearchRequest) ([]domain.ShadowTrack, error) {
	genres := req.Genres
	if len(genres) == 0 && req.AccessToken != "" {
		p, err := o.BuildProfile(ctx, req.AccessToken, "all")
		if err != nil {
			return nil, err
		}
		genres = p.TopGenres(o.shadow.Config().MaxGenres)
	}

	sources := o.sources.Select(req.Sources)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no known sources in %v", ErrInvalidRequest, req.Sources)
	}

	return o.shadow.Search(ctx, ShadowRequest{
		Genres:  genres,
		Sources: sources,
		Limit:   req.Limit,
		Deep:    req.Deep,
	}), nil
}

// SubmitFeedback validates and records a verdict.
func (o *Orchestrator) SubmitFeedback(ctx context.Context, req FeedbackRequest) (domain.FeedbackEntry, error) {
	verdict, err := domain.ParseVerdict(req.Verdict)
	if err != nil {
		return domain.FeedbackEntry{}, err
	}
	if strings.TrimSpace(req.ArtistID) == "" {
		return domain.FeedbackEntry{}, fmt.Errorf("%w: candidate_artist_id required", ErrInvalidRequest)
	}

	seeds := req.SeedArtists
	if seeds == nil {
		seeds = []string{}
	}
	entry := domain.FeedbackEntry{
		ID:            uuid.NewString(),
		ArtistID:      strings.TrimSpace(req.ArtistID),
		Verdict:       verdict,
		SeedArtists:   seeds,
		OmissionScore: req.OmissionScore,
		CreatedAt:     o.now().UTC(),
	}
	if err := o.feedback.RecordVerdict(ctx, entry); err != nil {
		return domain.FeedbackEntry{}, fmt.Errorf("service: failed to record feedback: %w", err)
	}
	metrics.FeedbackVerdicts.WithLabelValues(string(verdict)).Inc()
	return entry, nil
}

// FeedbackStats returns aggregate verdict counts.
func (o *Orchestrator) FeedbackStats(ctx context.Context) (domain.FeedbackStats, error) {
	stats, err := o.feedback.Stats(ctx)
	if err != nil {
		return domain.FeedbackStats{}, fmt.Errorf("service: failed to load feedback stats: %w", err)
	}
	return stats, nil
}

// FeedbackHistory returns the most recent verdicts, newest first.
func (o *Orchestrator) FeedbackHistory(ctx context.Context, limit int) ([]domain.FeedbackEntry, error) {
	entries, err := o.feedback.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load feedback history: %w", err)
	}
	return entries, nil
}
