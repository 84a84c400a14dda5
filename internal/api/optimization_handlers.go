package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/pkg/httputil"
)

// SelectWinnersRequest is the body of POST .../winners. A zero top_n uses
// the service default.
type SelectWinnersRequest struct {
	TopN   int           `json:"top_n"`
	Metric domain.Metric `json:"metric"`
}

// GenerateIterationsRequest is the body of POST .../iterations.
type GenerateIterationsRequest struct {
	TopN  int `json:"top_n"`
	Count int `json:"count"`
}

// HandleCampaignMetrics returns per-angle aggregated metrics.
//
//	GET /api/campaigns/{campaignID}/metrics
func (h *Handlers) HandleCampaignMetrics(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	metrics, err := h.performance.Aggregate(r.Context(), campaignID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"campaign_id": campaignID,
		"metrics":     metrics,
	})
}

// HandleSelectWinners ranks angles, flags winners and returns the analysis.
//
//	POST /api/campaigns/{campaignID}/winners
func (h *Handlers) HandleSelectWinners(w http.ResponseWriter, r *http.Request) {
	var req SelectWinnersRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	analysis, err := h.optimization.SelectWinners(r.Context(), chi.URLParam(r, "campaignID"), req.TopN, req.Metric)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, analysis)
}

// HandleGenerateIterations creates draft angles from the flagged winners.
//
//	POST /api/campaigns/{campaignID}/iterations
func (h *Handlers) HandleGenerateIterations(w http.ResponseWriter, r *http.Request) {
	var req GenerateIterationsRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	angles, err := h.optimization.GenerateIterations(r.Context(), chi.URLParam(r, "campaignID"), req.TopN, req.Count)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, map[string]interface{}{
		"angles": angles,
		"count":  len(angles),
	})
}

// decodeOptional decodes a JSON body when one was sent. An empty body leaves
// dst untouched.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return httputil.Decode(w, r, dst)
}
