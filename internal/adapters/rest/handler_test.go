package rest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ewilliams-labs/latent/internal/adapters/sources"
	"github.com/ewilliams-labs/latent/internal/adapters/sqlite"
	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
	"github.com/ewilliams-labs/latent/internal/core/services"
)

// --- Mocks ---

// The Handler depends on a concrete *Orchestrator, so the tests build a real
// one over mock ports and an in-memory feedback store.

type mockHistory struct {
	err error
}

func (m *mockHistory) UserTopArtists(_ context.Context, window domain.TimeWindow, _ int) ([]domain.Artist, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []domain.Artist{
		{ID: "a1", Name: "Stars of the Lid", Genres: []string{"drone", "ambient"}, Popularity: 40},
		{ID: "a2", Name: "Grouper", Genres: []string{"ambient", "dream pop"}, Popularity: 50},
	}, nil
}

func (m *mockHistory) UserTopTracks(_ context.Context, _ domain.TimeWindow, _ int) ([]domain.Track, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []domain.Track{{ID: "t1", Name: "Requiem for Dying Mothers", ArtistIDs: []string{"a1"}}}, nil
}

func (m *mockHistory) AudioFeatures(_ context.Context, _ []string) (map[string]domain.AudioFeatures, error) {
	return nil, errors.New("features unavailable")
}

type mockConnector struct {
	history *mockHistory
}

func (m *mockConnector) ForUser(string) ports.HistoryProvider {
	return m.history
}

// emptyCatalog knows no related artists, so every scan has an empty pool.
type emptyCatalog struct{}

func (emptyCatalog) RelatedArtists(context.Context, string) ([]domain.Artist, error) {
	return nil, nil
}

func (emptyCatalog) SearchArtists(context.Context, string, int) ([]domain.Artist, error) {
	return nil, nil
}

func (emptyCatalog) TopTracks(context.Context, string) ([]domain.Track, error) {
	return nil, nil
}

func (emptyCatalog) ArtistAlbums(context.Context, string, int) ([]domain.Album, error) {
	return nil, nil
}

func (emptyCatalog) AudioFeatures(context.Context, []string) (map[string]domain.AudioFeatures, error) {
	return nil, nil
}

type mockSource struct {
	name   string
	tracks []domain.RawTrack
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Search(context.Context, string, int) ([]domain.RawTrack, error) {
	return m.tracks, nil
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }

type testDeps struct {
	historyErr error
	opts       *Options
}

func newTestHandler(t *testing.T, deps testDeps) *Handler {
	t.Helper()

	store, err := sqlite.NewAdapter(":memory:", domain.DefaultFeedbackPolicy())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := sources.NewRegistry(&mockSource{
		name: "audius",
		tracks: []domain.RawTrack{{
			ID:     "audius_1",
			Title:  "Hidden Song",
			Artist: "Nobody",
			URL:    "https://audius.co/nobody/hidden-song",
			Plays:  domain.Some[int64](12),
		}},
	})

	svc := services.NewOrchestrator(
		&mockConnector{history: &mockHistory{err: deps.historyErr}},
		services.NewProfileBuilder(0),
		services.NewExpander(emptyCatalog{}, services.DefaultExpanderConfig()),
		services.NewScorer(services.DefaultScoringConfig(), store),
		services.NewAggregator(services.DefaultShadowConfig()),
		registry,
		store,
		store,
	)

	opts := DefaultOptions()
	opts.RequestsPerMinute = 0
	opts.Ready = store
	if deps.opts != nil {
		opts = *deps.opts
	}
	return NewHandler(svc, opts)
}

func serve(h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHandler_HealthAndReady(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		ready          Pinger
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "health is always ok",
			path:           "/health",
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ok"`,
		},
		{
			name:           "ready when store answers",
			path:           "/ready",
			ready:          mockPinger{},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ready"`,
		},
		{
			name:           "not ready when store fails",
			path:           "/ready",
			ready:          mockPinger{err: errors.New("database is locked")},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.RequestsPerMinute = 0
			opts.Ready = tt.ready
			h := newTestHandler(t, testDeps{opts: &opts})

			rec := serve(h, http.MethodGet, tt.path, nil)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status Code: got %d, want %d", rec.Code, tt.expectedStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("Response Body: got %q, want substring %q", rec.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestHandler_Diagnosis(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		historyErr     error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Bad Request: missing token",
			target:         "/diagnosis",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "access_token is required",
		},
		{
			name:           "Server Error: history unavailable",
			target:         "/diagnosis?access_token=tok",
			historyErr:     errors.New("spotify down"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "internal error",
		},
		{
			name:           "Success: returns recurring artists",
			target:         "/diagnosis?access_token=tok",
			expectedStatus: http.StatusOK,
			expectedBody:   `"Stars of the Lid"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, testDeps{historyErr: tt.historyErr})

			rec := serve(h, http.MethodGet, tt.target, nil)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status Code: got %d, want %d, body: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("Response Body: got %q, want substring %q", rec.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestHandler_Scan(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		historyErr     error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Bad Request: missing token",
			target:         "/scan",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "access_token (required)",
		},
		{
			name:           "Bad Request: popularity out of range",
			target:         "/scan?access_token=tok&max_popularity=101",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "max_popularity",
		},
		{
			name:           "Bad Request: inverted popularity window",
			target:         "/scan?access_token=tok&min_popularity=50&max_popularity=10",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "max_popularity (gtefield)",
		},
		{
			name:           "Bad Request: non-numeric popularity",
			target:         "/scan?access_token=tok&min_popularity=low",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "is not an integer",
		},
		{
			name:           "Bad Request: unknown time range",
			target:         "/scan?access_token=tok&time_range=decade",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "time_range (oneof)",
		},
		{
			name:           "Server Error: history unavailable",
			target:         "/scan?access_token=tok",
			historyErr:     errors.New("spotify down"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "internal error",
		},
		{
			name:           "Success: empty pool still summarises",
			target:         "/scan?access_token=tok&time_range=short",
			expectedStatus: http.StatusOK,
			expectedBody:   `"results":[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, testDeps{historyErr: tt.historyErr})

			rec := serve(h, http.MethodGet, tt.target, nil)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status Code: got %d, want %d, body: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("Response Body: got %q, want substring %q", rec.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestHandler_Scan_Summary(t *testing.T) {
	h := newTestHandler(t, testDeps{})

	rec := serve(h, http.MethodGet, "/scan?access_token=tok", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status Code: got %d, body: %s", rec.Code, rec.Body.String())
	}
	for _, want := range []string{
		`"diagnosis_summary":"Based on 2 artists, 2 recurring.`,
		`"candidates_evaluated":0`,
		`"confidence_threshold_used":0.55`,
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("Response Body: got %q, want substring %q", rec.Body.String(), want)
		}
	}
}

func TestHandler_ShadowSearch(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success: explicit genres",
			target:         "/shadow?genres=ambient,drone&sources=audius",
			expectedStatus: http.StatusOK,
			expectedBody:   `"title":"Hidden Song"`,
		},
		{
			name:           "Success: default genres without token",
			target:         "/shadow",
			expectedStatus: http.StatusOK,
			expectedBody:   `"total":1`,
		},
		{
			name:           "Bad Request: unknown source",
			target:         "/shadow?sources=myspace",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "no known sources",
		},
		{
			name:           "Bad Request: limit too large",
			target:         "/shadow?limit=500",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "limit (lte)",
		},
		{
			name:           "Bad Request: malformed deep flag",
			target:         "/shadow?deep=maybe",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "is not a boolean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, testDeps{})

			rec := serve(h, http.MethodGet, tt.target, nil)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status Code: got %d, want %d, body: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("Response Body: got %q, want substring %q", rec.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestHandler_SubmitFeedback(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		contentType    string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success: accept is recorded",
			body:           `{"candidate_artist_id":"x1","verdict":"accept","seed_artists":["a1","a2"],"omission_score":0.71}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   "Feedback recorded: accept",
		},
		{
			name:           "Success: verdict is normalised",
			body:           `{"candidate_artist_id":"x1","verdict":" REJECT "}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   `"verdict":"reject"`,
		},
		{
			name:           "Bad Request: invalid verdict",
			body:           `{"candidate_artist_id":"x1","verdict":"maybe"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"invalid_verdict"`,
		},
		{
			name:           "Bad Request: missing artist",
			body:           `{"verdict":"accept"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "candidate_artist_id (required)",
		},
		{
			name:           "Bad Request: malformed json",
			body:           `{invalid-json`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid request body",
		},
		{
			name:           "Bad Request: wrong content type",
			body:           `{"candidate_artist_id":"x1","verdict":"accept"}`,
			contentType:    "text/plain",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "content type must be application/json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, testDeps{})

			req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(tt.body))
			contentType := tt.contentType
			if contentType == "" {
				contentType = "application/json"
			}
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status Code: got %d, want %d, body: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("Response Body: got %q, want substring %q", rec.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestHandler_FeedbackStatsAndHistory(t *testing.T) {
	h := newTestHandler(t, testDeps{})

	for _, body := range []string{
		`{"candidate_artist_id":"x1","verdict":"accept"}`,
		`{"candidate_artist_id":"x1","verdict":"accept"}`,
		`{"candidate_artist_id":"x2","verdict":"reject"}`,
		`{"candidate_artist_id":"x3","verdict":"accept"}`,
	} {
		if rec := serve(h, http.MethodPost, "/feedback", []byte(body)); rec.Code != http.StatusCreated {
			t.Fatalf("seed feedback: got %d, body: %s", rec.Code, rec.Body.String())
		}
	}

	stats := serve(h, http.MethodGet, "/feedback/stats", nil)
	if stats.Code != http.StatusOK {
		t.Fatalf("stats: got %d", stats.Code)
	}
	for _, want := range []string{`"total_feedback":4`, `"accepts":3`, `"rejects":1`, `"unique_artists":3`, `"accept_rate":0.75`} {
		if !strings.Contains(stats.Body.String(), want) {
			t.Errorf("stats body: got %q, want substring %q", stats.Body.String(), want)
		}
	}

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedBody   string
	}{
		{"default limit", "/feedback/history", http.StatusOK, `"candidate_artist_id":"x3"`},
		{"explicit limit", "/feedback/history?limit=1", http.StatusOK, `"feedback":[{`},
		{"limit below range", "/feedback/history?limit=0", http.StatusBadRequest, "between 1 and 200"},
		{"limit above range", "/feedback/history?limit=201", http.StatusBadRequest, "between 1 and 200"},
		{"limit not a number", "/feedback/history?limit=ten", http.StatusBadRequest, "is not an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tt.target, nil)
			if rec.Code != tt.expectedStatus {
				t.Errorf("Status Code: got %d, want %d", rec.Code, tt.expectedStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("Response Body: got %q, want substring %q", rec.Body.String(), tt.expectedBody)
			}
		})
	}

	one := serve(h, http.MethodGet, "/feedback/history?limit=1", nil)
	if n := strings.Count(one.Body.String(), `"candidate_artist_id"`); n != 1 {
		t.Errorf("history limit=1 returned %d entries", n)
	}
}

func TestHandler_RateLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.RequestsPerMinute = 2
	h := newTestHandler(t, testDeps{opts: &opts})

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(h, http.MethodGet, "/health", nil).Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: got %d, want %d", i+1, codes[i], want[i])
		}
	}
}

func TestHandler_CORSAndRequestID(t *testing.T) {
	opts := DefaultOptions()
	opts.RequestsPerMinute = 0
	opts.AllowedOrigins = []string{"http://localhost:3000"}
	h := newTestHandler(t, testDeps{opts: &opts})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin: got %q", got)
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("X-Request-ID: got %q, want req-123", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("X-Request-ID should be generated when absent")
	}
}

func TestHandler_Metrics(t *testing.T) {
	h := newTestHandler(t, testDeps{})

	rec := serve(h, http.MethodGet, "/metrics", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status Code: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics body missing runtime collectors")
	}
}
