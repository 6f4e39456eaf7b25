package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
)

// listenerHistory has five artists present in every window, all tagged
// shoegaze and dream pop, so they become the recurring seeds.
func listenerHistory() *mockHistory {
	artists := []domain.Artist{
		{ID: "s1", Name: "Seed s1", Genres: []string{"shoegaze", "dream pop"}, Popularity: 50},
		{ID: "s2", Name: "Seed s2", Genres: []string{"shoegaze", "dream pop"}, Popularity: 50},
		{ID: "s3", Name: "Seed s3", Genres: []string{"shoegaze", "dream pop"}, Popularity: 50},
		{ID: "s4", Name: "Seed s4", Genres: []string{"shoegaze", "dream pop"}, Popularity: 50},
		{ID: "s5", Name: "Seed s5", Genres: []string{"shoegaze", "dream pop"}, Popularity: 50},
	}
	tracks := []domain.Track{{ID: "k1", ArtistIDs: []string{"s1"}}}
	windows := map[domain.TimeWindow]domain.WindowHistory{}
	for _, w := range domain.AllWindows {
		windows[w] = domain.WindowHistory{Window: w, Artists: artists, Tracks: tracks}
	}
	return &mockHistory{windows: windows}
}

type orchestratorFixture struct {
	o        *Orchestrator
	history  *mockConnector
	catalog  *mockCatalog
	feedback *mockFeedback
	scans    *mockScanLog
	sources  *mockDirectory
}

func newOrchestratorFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		history:  &mockConnector{provider: listenerHistory()},
		catalog:  expanderCatalog(),
		feedback: &mockFeedback{},
		scans:    &mockScanLog{},
		sources: &mockDirectory{sources: []ports.TrackSource{
			&mockSource{name: "audius", tracks: []domain.RawTrack{{ID: "audius_1", Title: "T", Artist: "A", Genre: "shoegaze"}}},
		}},
	}
	expander := NewExpander(f.catalog, DefaultExpanderConfig())
	expander.analyze = nil

	cfg := DefaultScoringConfig()
	cfg.CurrentYear = 2026

	f.o = NewOrchestrator(
		f.history,
		NewProfileBuilder(0),
		expander,
		NewScorer(cfg, f.feedback),
		NewAggregator(DefaultShadowConfig()),
		f.sources,
		f.feedback,
		f.scans,
	)
	return f
}

func TestOrchestrator_Scan(t *testing.T) {
	f := newOrchestratorFixture()

	got, err := f.o.Scan(context.Background(), ScanRequest{
		AccessToken:   "token",
		MinPopularity: 5,
		MaxPopularity: 60,
	})
	require.NoError(t, err)

	assert.Equal(t, "token", f.history.token)
	assert.Equal(t, 4, got.CandidatesEvaluated)
	assert.Equal(t, 0.55, got.ConfidenceThreshold)
	assert.Contains(t, got.Summary, "Based on 5 artists, 5 recurring.")

	// Only the candidates with two or more supporting seeds pass the gate.
	require.Len(t, got.Results, 2)
	ids := []string{got.Results[0].Candidate.ID, got.Results[1].Candidate.ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	for _, r := range got.Results {
		assert.True(t, r.Confident)
		assert.GreaterOrEqual(t, r.Candidate.SeedSupportCount(), 2)
		assert.LessOrEqual(t, r.Candidate.Popularity, 70)
	}

	require.Len(t, f.scans.records, 1)
	rec := f.scans.records[0]
	assert.Equal(t, "all", rec.TimeRange)
	assert.Equal(t, 4, rec.CandidatesFound)
	assert.Equal(t, 2, rec.ResultsReturned)
	assert.NotEmpty(t, rec.ID)
}

func TestOrchestrator_Scan_ExcludedArtist(t *testing.T) {
	f := newOrchestratorFixture()
	f.feedback.adjustments = map[string]domain.Adjustment{"a": {Excluded: true}}

	got, err := f.o.Scan(context.Background(), ScanRequest{AccessToken: "token", MinPopularity: 5, MaxPopularity: 60})
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "b", got.Results[0].Candidate.ID)
}

func TestOrchestrator_Scan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *orchestratorFixture)
		req     ScanRequest
		wantErr error
	}{
		{
			name:    "missing token",
			req:     ScanRequest{MaxPopularity: 60},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "bad time range",
			req:     ScanRequest{AccessToken: "token", MaxPopularity: 60, TimeRange: "decade"},
			wantErr: domain.ErrInvalidTimeRange,
		},
		{
			name:    "inverted popularity window",
			req:     ScanRequest{AccessToken: "token", MinPopularity: 70, MaxPopularity: 10},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "history failure",
			setup:   func(f *orchestratorFixture) { f.history.provider.windowErr = errBoom },
			req:     ScanRequest{AccessToken: "token", MaxPopularity: 60},
			wantErr: errBoom,
		},
		{
			name:    "feedback failure",
			setup:   func(f *orchestratorFixture) { f.feedback.readErr = errBoom },
			req:     ScanRequest{AccessToken: "token", MinPopularity: 5, MaxPopularity: 60},
			wantErr: errBoom,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrchestratorFixture()
			if tc.setup != nil {
				tc.setup(f)
			}
			_, err := f.o.Scan(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, f.scans.records)
		})
	}
}

func TestOrchestrator_Scan_LogFailureIsIgnored(t *testing.T) {
	f := newOrchestratorFixture()
	f.scans.err = errBoom

	_, err := f.o.Scan(context.Background(), ScanRequest{AccessToken: "token", MinPopularity: 5, MaxPopularity: 60})
	assert.NoError(t, err)
}

func TestOrchestrator_Diagnose(t *testing.T) {
	f := newOrchestratorFixture()

	got, err := f.o.Diagnose(context.Background(), "token")
	require.NoError(t, err)
	assert.Len(t, got.RecurringArtists, 5)
	assert.Equal(t, 5, got.TotalArtists)
	assert.Equal(t, 1, got.TotalTracks)
	require.NotEmpty(t, got.TopGenres)
	assert.Equal(t, "shoegaze", got.TopGenres[0].Genre)
}

func TestOrchestrator_ShadowSearch(t *testing.T) {
	f := newOrchestratorFixture()

	got, err := f.o.ShadowSearch(context.Background(), ShadowSearchRequest{AccessToken: "token", Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	// Genres come from the listener profile when none are given.
	assert.Equal(t, 1.0, got[0].TasteMatch)

	_, err = f.o.ShadowSearch(context.Background(), ShadowSearchRequest{Genres: []string{"jazz"}, Sources: []string{"myspace"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestOrchestrator_SubmitFeedback(t *testing.T) {
	tests := []struct {
		name     string
		req      FeedbackRequest
		wantErr  error
		recorded int
	}{
		{name: "accept", req: FeedbackRequest{ArtistID: "a", Verdict: "accept", SeedArtists: []string{"Seed s1"}, OmissionScore: 0.8}, recorded: 1},
		{name: "reject mixed case", req: FeedbackRequest{ArtistID: "a", Verdict: " Reject "}, recorded: 1},
		{name: "invalid verdict", req: FeedbackRequest{ArtistID: "a", Verdict: "maybe"}, wantErr: domain.ErrInvalidVerdict},
		{name: "missing artist", req: FeedbackRequest{Verdict: "accept"}, wantErr: ErrInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrchestratorFixture()
			entry, err := f.o.SubmitFeedback(context.Background(), tc.req)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, f.feedback.recorded)
				return
			}
			require.NoError(t, err)
			assert.Len(t, f.feedback.recorded, tc.recorded)
			assert.NotEmpty(t, entry.ID)
			assert.NotNil(t, entry.SeedArtists)
			assert.Equal(t, entry, f.feedback.recorded[0])
		})
	}
}

func TestOrchestrator_FeedbackHistory(t *testing.T) {
	f := newOrchestratorFixture()
	for _, v := range []string{"accept", "reject", "accept"} {
		_, err := f.o.SubmitFeedback(context.Background(), FeedbackRequest{ArtistID: "a", Verdict: v})
		require.NoError(t, err)
	}

	entries, err := f.o.FeedbackHistory(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	f.feedback.stats = domain.FeedbackStats{Total: 3, Accepts: 2, Rejects: 1, UniqueArtists: 1}
	stats, err := f.o.FeedbackStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
}
