package rest

import (
	"net/http"
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/services"
)

type shadowQuery struct {
	Genres  []string `query:"genres" validate:"max=10,dive,max=64"`
	Sources []string `query:"sources" validate:"max=10"`
	Limit   int      `query:"limit" validate:"gte=0,lte=100"`
}

type shadowResponse struct {
	Results []domain.ShadowTrack `json:"results"`
	Total   int                  `json:"total"`
}

// ShadowSearch handles GET /shadow
func (h *Handler) ShadowSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := shadowQuery{
		Genres:  listParam(q.Get("genres")),
		Sources: listParam(q.Get("sources")),
	}
	var err error
	if req.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", "limit: "+err.Error())
		return
	}
	deep, err := boolParam(q.Get("deep"))
	if err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_request", "deep: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	tracks, err := h.svc.ShadowSearch(r.Context(), services.ShadowSearchRequest{
		AccessToken: strings.TrimSpace(q.Get("access_token")),
		Genres:      req.Genres,
		Sources:     req.Sources,
		Limit:       req.Limit,
		Deep:        deep,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if tracks == nil {
		tracks = []domain.ShadowTrack{}
	}
	writeJSON(w, http.StatusOK, shadowResponse{Results: tracks, Total: len(tracks)})
}
