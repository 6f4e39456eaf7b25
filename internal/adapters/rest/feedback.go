package rest

import (
	"net/http"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/services"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type feedbackRequest struct {
	CandidateArtistID string   `json:"candidate_artist_id" validate:"required,max=128"`
	Verdict           string   `json:"verdict" validate:"required"`
	SeedArtists       []string `json:"seed_artists" validate:"max=50"`
	OmissionScore     float64  `json:"omission_score" validate:"gte=0,lte=1"`
}

type feedbackResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Entry   domain.FeedbackEntry `json:"feedback"`
}

type historyResponse struct {
	Feedback []domain.FeedbackEntry `json:"feedback"`
}

// SubmitFeedback handles POST /feedback
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	// 1. Decode Request
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	// 2. Call Service; the verdict itself is checked by the domain
	entry, err := h.svc.SubmitFeedback(r.Context(), services.FeedbackRequest{
		ArtistID:      req.CandidateArtistID,
		Verdict:       req.Verdict,
		SeedArtists:   req.SeedArtists,
		OmissionScore: req.OmissionScore,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// 3. Respond
	writeJSON(w, http.StatusCreated, feedbackResponse{
		Success: true,
		Message: "Feedback recorded: " + string(entry.Verdict),
		Entry:   entry,
	})
}

// FeedbackStats handles GET /feedback/stats
func (h *Handler) FeedbackStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.FeedbackStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FeedbackHistory handles GET /feedback/history
func (h *Handler) FeedbackHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), defaultHistoryLimit)
	if err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", "limit: "+err.Error())
		return
	}
	if limit < 1 || limit > maxHistoryLimit {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 200")
		return
	}

	entries, err := h.svc.FeedbackHistory(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.FeedbackEntry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Feedback: entries})
}
