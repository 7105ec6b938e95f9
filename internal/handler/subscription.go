package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/identity"
	"github.com/octorank/octorank/internal/service"
)

// SubscriptionHandler serves checkout and subscription detail endpoints.
type SubscriptionHandler struct {
	checkout service.CheckoutService
	gate     service.GateService
	logger   *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(checkout service.CheckoutService, gate service.GateService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		checkout: checkout,
		gate:     gate,
		logger:   logger,
	}
}

type createSubscriptionRequest struct {
	PlanID     string `json:"planId"`
	Frequency  string `json:"frequency"`
	Provider   string `json:"provider"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// Create handles POST /api/subscriptions/create.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "subscription.create"

	id := identity.FromRequest(r)
	if id == nil {
		ErrorResponse(w, r, h.logger, domain.Unauthorized(op, "authentication required"))
		return
	}

	var req createSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	plan, ok := domain.ValidPlanID(req.PlanID)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "unknown plan"))
		return
	}
	freq, ok := domain.ValidFrequency(req.Frequency)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "unknown billing frequency"))
		return
	}
	provider, ok := domain.ValidProviderName(req.Provider)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "unknown payment provider"))
		return
	}

	result, err := h.checkout.StartCheckout(r.Context(), service.StartCheckoutParams{
		UserID:     id.UserID,
		Email:      id.Email,
		Plan:       plan,
		Frequency:  freq,
		Provider:   provider,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkoutUrl":     result.CheckoutURL,
		"subscriptionRef": result.Subscription.ProviderSubscriptionID,
		"provider":        result.Subscription.Provider,
	})
}

// Details handles GET /api/subscriptions/details.
func (h *SubscriptionHandler) Details(w http.ResponseWriter, r *http.Request) {
	const op = "subscription.details"

	id := identity.FromRequest(r)
	if id == nil {
		ErrorResponse(w, r, h.logger, domain.Unauthorized(op, "authentication required"))
		return
	}

	details, err := h.checkout.SubscriptionDetails(r.Context(), id.UserID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	_, decision, err := h.gate.Limits(r.Context(), id.UserID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	sub := details.Subscription
	daysUntilRenewal := int(time.Until(details.NextBillingDate).Hours() / 24)
	if daysUntilRenewal < 0 {
		daysUntilRenewal = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subscription": map[string]any{
			"planId":          sub.PlanID,
			"frequency":       sub.Frequency,
			"status":          sub.Status,
			"provider":        sub.Provider,
			"priceCents":      sub.PriceCents,
			"queryLimit":      sub.QueryLimit,
			"createdAt":       sub.CreatedAt,
			"nextBillingDate": details.NextBillingDate,
		},
		"daysUntilRenewal":  daysUntilRenewal,
		"remainingSearches": decision.Remaining(),
		"limit":             decision.Limit,
	})
}
