package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/octorank/octorank/internal/billing"
	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/service"
)

// maxWebhookBytes caps webhook payload size.
const maxWebhookBytes = 1 << 20

// WebhookHandler receives provider lifecycle notifications.
type WebhookHandler struct {
	providers  *billing.Registry
	reconciler service.ReconcilerService
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(providers *billing.Registry, reconciler service.ReconcilerService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		providers:  providers,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Receive handles POST /webhooks/{provider}.
//
// Business outcomes (applied, ignored) are acknowledged with 200 so the
// provider stops retrying: a redelivery cannot change an ignored outcome.
// Non-2xx is reserved for requests we could not trust or read (bad
// signature, malformed payload) and storage failures, where a retry can
// succeed.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	const op = "webhook.receive"

	name, ok := domain.ValidProviderName(r.PathValue("provider"))
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "provider", r.PathValue("provider")))
		return
	}
	provider, ok := h.providers.Lookup(name)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "provider", string(name)))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "failed to read payload"))
		return
	}

	event, err := provider.ParseEvent(r.Context(), payload, r.Header)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrBadSignature):
			h.logger.Warn("webhook signature rejected",
				"provider", name,
				"error", err,
			)
			ErrorResponse(w, r, h.logger, domain.Unauthorized(op, "webhook signature verification failed"))
		case errors.Is(err, billing.ErrUnhandledEvent):
			// Event types outside the subscription lifecycle. Acknowledge
			// so the provider does not retry.
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		default:
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "malformed webhook payload"))
		}
		return
	}

	outcome, err := h.reconciler.ApplyEvent(r.Context(), event)
	if err != nil {
		// Storage failure: let the provider redeliver.
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": string(outcome.Result),
	})
}
