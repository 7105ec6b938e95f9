package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/identity"
	"github.com/octorank/octorank/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryHandler serves the search history endpoint.
type HistoryHandler struct {
	history store.HistoryStore
	logger  *slog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history store.HistoryStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// List handles GET /api/search-history.
//
// Returns the caller's recent queries, newest first. The log is
// best-effort, so this is a convenience view, not an audit trail.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "history.list"

	id := identity.FromRequest(r)
	if id == nil {
		ErrorResponse(w, r, h.logger, domain.Unauthorized(op, "authentication required"))
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.ListSearches(r.Context(), id.UserID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to list search history"))
		return
	}

	searches := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		searches = append(searches, map[string]any{
			"username":  rec.Username,
			"createdAt": rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"searches": searches,
	})
}
