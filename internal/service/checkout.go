// Package service contains the business logic layer.
//
// This file implements the checkout service, which starts provider
// checkout flows and records the resulting pending subscriptions.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/billing"
	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/metrics"
	"github.com/octorank/octorank/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// StartCheckoutParams contains parameters for starting a checkout flow.
type StartCheckoutParams struct {
	UserID     uuid.UUID
	Email      string
	Plan       domain.PlanID
	Frequency  domain.Frequency
	Provider   domain.ProviderName
	SuccessURL string
	CancelURL  string
}

// StartCheckoutResult is returned to the caller so they can complete
// payment on the provider's side.
type StartCheckoutResult struct {
	Subscription *domain.Subscription
	CheckoutURL  string
}

// CheckoutService starts provider checkout flows.
type CheckoutService interface {
	// StartCheckout validates the plan selection, creates a checkout
	// session with the chosen provider, and records a pending
	// subscription referencing the provider's subscription ID.
	//
	// Returns domain.EINVALID for unknown plan/frequency/provider,
	// domain.EUPSTREAM when the provider call fails (nothing recorded),
	// and domain.EPARTIAL when the provider session was created but the
	// local record could not be written.
	StartCheckout(ctx context.Context, params StartCheckoutParams) (*StartCheckoutResult, error)

	// SubscriptionDetails returns the user's most recent subscription
	// together with its next billing date, or ENOTFOUND if the user has
	// never started a checkout.
	SubscriptionDetails(ctx context.Context, userID uuid.UUID) (*SubscriptionDetails, error)
}

// SubscriptionDetails pairs a subscription with derived billing info.
type SubscriptionDetails struct {
	Subscription    *domain.Subscription
	NextBillingDate time.Time
}

// =============================================================================
// Implementation
// =============================================================================

type checkoutService struct {
	providers *billing.Registry
	subs      store.SubscriptionStore
	now       func() time.Time
	logger    *slog.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(providers *billing.Registry, subs store.SubscriptionStore, logger *slog.Logger) CheckoutService {
	return &checkoutService{
		providers: providers,
		subs:      subs,
		now:       time.Now,
		logger:    logger,
	}
}

// StartCheckout starts a provider checkout flow and records the pending
// subscription. The provider call happens first: if it fails, nothing is
// recorded locally.
func (s *checkoutService) StartCheckout(ctx context.Context, params StartCheckoutParams) (*StartCheckoutResult, error) {
	const op = "checkout.start"

	plan, err := domain.ResolvePlan(params.Plan, params.Frequency)
	if err != nil {
		return nil, domain.Invalid(op, "unknown plan or billing frequency")
	}

	provider, ok := s.providers.Lookup(params.Provider)
	if !ok {
		return nil, domain.Invalid(op, "unknown payment provider")
	}

	session, err := provider.CreateCheckoutSession(ctx, billing.CheckoutParams{
		UserID:     params.UserID,
		Email:      params.Email,
		Plan:       plan,
		SuccessURL: params.SuccessURL,
		CancelURL:  params.CancelURL,
	})
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues(string(params.Provider), "provider_error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(string(params.Provider)).Inc()
		return nil, domain.Upstream(err, op, "payment provider rejected checkout")
	}

	now := s.now().UTC()
	sub := &domain.Subscription{
		ID:                     uuid.New(),
		UserID:                 params.UserID,
		PlanID:                 plan.PlanID,
		Frequency:              plan.Frequency,
		Status:                 domain.SubscriptionStatusPending,
		Provider:               params.Provider,
		ProviderSubscriptionID: session.ProviderSubscriptionID,
		QueryLimit:             plan.QueryLimit,
		PriceCents:             plan.PriceCents,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.subs.CreateSubscription(ctx, sub); err != nil {
		// The provider session exists but we failed to record it. Surface
		// the provider reference so the failure can be reconciled by hand.
		s.logger.Error("checkout session created but subscription record failed",
			"provider", params.Provider,
			"provider_subscription_id", session.ProviderSubscriptionID,
			"user_id", params.UserID,
			"error", err,
		)
		metrics.CheckoutSessionsTotal.WithLabelValues(string(params.Provider), "record_error").Inc()
		return nil, domain.PartialFailure(err, op, session.ProviderSubscriptionID)
	}

	s.logger.Info("checkout started",
		"subscription_id", sub.ID,
		"user_id", params.UserID,
		"provider", params.Provider,
		"plan", plan.PlanID,
		"frequency", plan.Frequency,
	)
	metrics.CheckoutSessionsTotal.WithLabelValues(string(params.Provider), "created").Inc()

	return &StartCheckoutResult{
		Subscription: sub,
		CheckoutURL:  session.CheckoutURL,
	}, nil
}

// SubscriptionDetails returns the user's most recent subscription.
func (s *checkoutService) SubscriptionDetails(ctx context.Context, userID uuid.UUID) (*SubscriptionDetails, error) {
	const op = "checkout.details"

	sub, err := s.subs.LatestSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound(op, "subscription", userID.String())
		}
		return nil, domain.Internal(err, op, "failed to look up subscription")
	}

	return &SubscriptionDetails{
		Subscription:    sub,
		NextBillingDate: sub.NextBillingDate(s.now()),
	}, nil
}
