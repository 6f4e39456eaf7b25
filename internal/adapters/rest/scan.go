package rest

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/services"
)

type scanQuery struct {
	AccessToken   string `query:"access_token" validate:"required"`
	MinPopularity int    `query:"min_popularity" validate:"gte=0,lte=100"`
	MaxPopularity int    `query:"max_popularity" validate:"gte=0,lte=100,gtefield=MinPopularity"`
	TimeRange     string `query:"time_range" validate:"omitempty,oneof=short medium long all"`
	MaxResults    int    `query:"max_results" validate:"gte=0,lte=50"`
}

type evidenceItem struct {
	SeedArtists       []string             `json:"seed_artists"`
	GenreOverlapCount int                  `json:"genre_overlap_count"`
	AudioSimilarity   float64              `json:"audio_similarity_score"`
	Popularity        int                  `json:"popularity"`
	EarliestAlbumYear domain.Optional[int] `json:"earliest_album_year"`
}

type scanResultItem struct {
	ArtistID        string                 `json:"artist_id"`
	ArtistName      string                 `json:"artist_name"`
	SampleTrackName string                 `json:"sample_track_name,omitempty"`
	Genres          []string               `json:"genres"`
	OmissionScore   float64                `json:"omission_score"`
	Components      domain.ScoreComponents `json:"components"`
	ExplanationKind domain.ExplanationKind `json:"explanation_kind"`
	Explanation     string                 `json:"explanation"`
	Evidence        evidenceItem           `json:"evidence"`
}

type scanResponse struct {
	Results             []scanResultItem `json:"results"`
	DiagnosisSummary    string           `json:"diagnosis_summary"`
	CandidatesEvaluated int              `json:"candidates_evaluated"`
	ConfidenceThreshold float64          `json:"confidence_threshold_used"`
}

// Diagnosis handles GET /diagnosis
func (h *Handler) Diagnosis(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("access_token"))
	if token == "" {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", "access_token is required")
		return
	}

	d, err := h.svc.Diagnose(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Scan handles GET /scan
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	// 1. Decode and validate the query
	q := r.URL.Query()
	req := scanQuery{
		AccessToken: strings.TrimSpace(q.Get("access_token")),
		TimeRange:   strings.ToLower(strings.TrimSpace(q.Get("time_range"))),
	}
	var err error
	if req.MinPopularity, err = intParam(q.Get("min_popularity"), h.opts.MinPopularity); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", "min_popularity: "+err.Error())
		return
	}
	if req.MaxPopularity, err = intParam(q.Get("max_popularity"), h.opts.MaxPopularity); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", "max_popularity: "+err.Error())
		return
	}
	if req.MaxResults, err = intParam(q.Get("max_results"), 0); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", "max_results: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	// 2. Call Service
	result, err := h.svc.Scan(r.Context(), services.ScanRequest{
		AccessToken:   req.AccessToken,
		MinPopularity: req.MinPopularity,
		MaxPopularity: req.MaxPopularity,
		TimeRange:     req.TimeRange,
		MaxResults:    req.MaxResults,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// 3. Respond
	resp := scanResponse{
		Results:             make([]scanResultItem, 0, len(result.Results)),
		DiagnosisSummary:    result.Summary,
		CandidatesEvaluated: result.CandidatesEvaluated,
		ConfidenceThreshold: result.ConfidenceThreshold,
	}
	for _, sc := range result.Results {
		resp.Results = append(resp.Results, toScanResultItem(sc))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toScanResultItem(sc domain.ScoredCandidate) scanResultItem {
	c := sc.Candidate
	genres := c.Genres
	if len(genres) > 3 {
		genres = genres[:3]
	}
	if genres == nil {
		genres = []string{}
	}
	seeds := sc.Evidence.SeedArtists
	if seeds == nil {
		seeds = []string{}
	}
	item := scanResultItem{
		ArtistID:        c.ID,
		ArtistName:      c.Name,
		Genres:          genres,
		OmissionScore:   math.Round(sc.OmissionScore*1000) / 1000,
		Components:      sc.Components,
		ExplanationKind: sc.ExplanationKind,
		Explanation:     sc.Explanation,
		Evidence: evidenceItem{
			SeedArtists:       seeds,
			GenreOverlapCount: sc.Evidence.GenreOverlapCount,
			AudioSimilarity:   sc.Evidence.AudioSimilarity,
			Popularity:        sc.Evidence.Popularity,
			EarliestAlbumYear: sc.Evidence.EarliestAlbumYear,
		},
	}
	if track, ok := c.SampleTrack.Get(); ok {
		item.SampleTrackName = track.Name
	}
	return item
}

// intParam parses an optional integer query value.
func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	return n, nil
}

// boolParam parses an optional boolean query value.
func boolParam(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%q is not a boolean", raw)
	}
	return b, nil
}

// listParam splits a comma-separated query value, dropping blanks.
func listParam(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
