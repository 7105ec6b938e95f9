package handler

import (
	"log/slog"
	"net/http"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/identity"
	"github.com/octorank/octorank/internal/service"
)

// ScoreHandler serves the quota-gated score endpoints.
type ScoreHandler struct {
	gate   service.GateService
	logger *slog.Logger
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(gate service.GateService, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{
		gate:   gate,
		logger: logger,
	}
}

// Limits handles GET /api/score-limit.
//
// Reports the caller's quota standing without consuming anything.
func (h *ScoreHandler) Limits(w http.ResponseWriter, r *http.Request) {
	id := identity.FromRequest(r)
	if id == nil {
		ErrorResponse(w, r, h.logger, domain.Unauthorized("score.limits", "authentication required"))
		return
	}

	ent, decision, err := h.gate.Limits(r.Context(), id.UserID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"remainingSearches": decision.Remaining(),
		"limit":             decision.Limit,
		"isSubscriber":      ent.IsSubscriber,
		"canSearch":         decision.Allowed,
	})
}

type scoreRequest struct {
	Username string `json:"username"`
}

// Query handles POST /api/score-limit.
//
// Spends one query unit and returns the score breakdown together with the
// caller's updated counts. Exhausted quota yields 429 with counts; a
// scoring engine failure yields 502 and the unit stays spent.
func (h *ScoreHandler) Query(w http.ResponseWriter, r *http.Request) {
	id := identity.FromRequest(r)
	if id == nil {
		ErrorResponse(w, r, h.logger, domain.Unauthorized("score.query", "authentication required"))
		return
	}

	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.gate.HandleScoreQuery(r.Context(), id.UserID, req.Username)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"score":             result.Score,
		"remainingSearches": result.Decision.Remaining(),
		"limit":             result.Decision.Limit,
	})
}
