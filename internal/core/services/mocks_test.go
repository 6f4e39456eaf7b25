package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
)

type mockCatalog struct {
	related     map[string][]domain.Artist
	relatedErr  map[string]error
	search      map[string][]domain.Artist
	topTracks   map[string][]domain.Track
	albums      map[string][]domain.Album
	features    map[string]domain.AudioFeatures
	featuresErr error

	mu       sync.Mutex
	queries  []string
	featured []string
}

func (m *mockCatalog) RelatedArtists(_ context.Context, artistID string) ([]domain.Artist, error) {
	if err := m.relatedErr[artistID]; err != nil {
		return nil, err
	}
	return m.related[artistID], nil
}

func (m *mockCatalog) SearchArtists(_ context.Context, query string, _ int) ([]domain.Artist, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	return m.search[query], nil
}

func (m *mockCatalog) TopTracks(_ context.Context, artistID string) ([]domain.Track, error) {
	return m.topTracks[artistID], nil
}

func (m *mockCatalog) ArtistAlbums(_ context.Context, artistID string, _ int) ([]domain.Album, error) {
	return m.albums[artistID], nil
}

func (m *mockCatalog) AudioFeatures(_ context.Context, trackIDs []string) (map[string]domain.AudioFeatures, error) {
	m.mu.Lock()
	m.featured = append(m.featured, trackIDs...)
	m.mu.Unlock()
	if m.featuresErr != nil {
		return nil, m.featuresErr
	}
	out := make(map[string]domain.AudioFeatures)
	for _, id := range trackIDs {
		if f, ok := m.features[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

type mockHistory struct {
	windows     map[domain.TimeWindow]domain.WindowHistory
	windowErr   error
	features    map[string]domain.AudioFeatures
	featuresErr error
}

func (m *mockHistory) UserTopArtists(_ context.Context, window domain.TimeWindow, _ int) ([]domain.Artist, error) {
	if m.windowErr != nil {
		return nil, m.windowErr
	}
	return m.windows[window].Artists, nil
}

func (m *mockHistory) UserTopTracks(_ context.Context, window domain.TimeWindow, _ int) ([]domain.Track, error) {
	if m.windowErr != nil {
		return nil, m.windowErr
	}
	return m.windows[window].Tracks, nil
}

func (m *mockHistory) AudioFeatures(_ context.Context, _ []string) (map[string]domain.AudioFeatures, error) {
	if m.featuresErr != nil {
		return nil, m.featuresErr
	}
	return m.features, nil
}

type mockConnector struct {
	provider *mockHistory
	token    string
}

func (m *mockConnector) ForUser(accessToken string) ports.HistoryProvider {
	m.token = accessToken
	return m.provider
}

type mockFeedback struct {
	adjustments map[string]domain.Adjustment
	excluded    map[string]struct{}
	readErr     error
	excludedErr error
	recordErr   error
	recorded    []domain.FeedbackEntry
	stats       domain.FeedbackStats
}

func (m *mockFeedback) Adjustments(context.Context) (map[string]domain.Adjustment, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.adjustments, nil
}

func (m *mockFeedback) ExcludedIDs(context.Context) (map[string]struct{}, error) {
	if m.excludedErr != nil {
		return nil, m.excludedErr
	}
	out := make(map[string]struct{})
	for id := range m.excluded {
		out[id] = struct{}{}
	}
	for id, adj := range m.adjustments {
		if adj.Excluded {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockFeedback) RecordVerdict(_ context.Context, entry domain.FeedbackEntry) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, entry)
	return nil
}

func (m *mockFeedback) Stats(context.Context) (domain.FeedbackStats, error) {
	return m.stats, nil
}

func (m *mockFeedback) History(_ context.Context, limit int) ([]domain.FeedbackEntry, error) {
	if limit < len(m.recorded) {
		return m.recorded[:limit], nil
	}
	return m.recorded, nil
}

type mockScanLog struct {
	records []domain.ScanRecord
	err     error
}

func (m *mockScanLog) LogScan(_ context.Context, rec domain.ScanRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

// mockSource answers every query with tracks, optionally after a delay or
// with an error. A delay ignores cancellation.
type mockSource struct {
	name   string
	tracks []domain.RawTrack
	err    error
	delay  time.Duration
	panics bool
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Search(_ context.Context, _ string, _ int) ([]domain.RawTrack, error) {
	if m.panics {
		panic("boom")
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.tracks, nil
}

type mockDirectory struct {
	sources []ports.TrackSource
}

func (m *mockDirectory) Select(names []string) []ports.TrackSource {
	if len(names) == 0 {
		return m.sources
	}
	var out []ports.TrackSource
	for _, s := range m.sources {
		for _, n := range names {
			if s.Name() == n {
				out = append(out, s)
			}
		}
	}
	return out
}

var errBoom = errors.New("boom")

// seededProfile returns a profile with five recurring seeds s1..s5 and two
// weighted genres.
func seededProfile() domain.ListeningProfile {
	p := domain.ListeningProfile{
		Artists:        map[string]domain.ArtistContext{},
		GenreWeights:   map[string]float64{"shoegaze": 1, "dream pop": 0.5},
		GenreOrder:     []string{"shoegaze", "dream pop"},
		KnownArtistIDs: map[string]struct{}{},
		KnownTrackIDs:  map[string]struct{}{},
		Audio:          domain.DefaultAudioCenters(),
	}
	for i, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		p.Artists[id] = domain.ArtistContext{
			Artist:      domain.Artist{ID: id, Name: "Seed " + id, Genres: []string{"shoegaze"}},
			InShort:     true,
			InMedium:    true,
			PositionAvg: float64(i + 1),
		}
		p.ArtistOrder = append(p.ArtistOrder, id)
		p.KnownArtistIDs[id] = struct{}{}
		p.RecurringIDs = append(p.RecurringIDs, id)
		p.SeedIDs = append(p.SeedIDs, id)
	}
	return p
}
