// Package service contains the business logic layer.
//
// This file implements the webhook reconciler: the single authority for
// turning provider lifecycle events into subscription state changes.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/metrics"
	"github.com/octorank/octorank/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ReconcilerService applies provider webhook events to stored
// subscriptions.
type ReconcilerService interface {
	// ApplyEvent drives the subscription referenced by the event toward
	// the event's target status. Applying the same event twice, or
	// receiving events out of order, must converge on the same state:
	//
	//   - event targets the current status: applied, no-op
	//   - legal transition: applied
	//   - terminal target (cancelled/expired) from any status: applied;
	//     the provider is authoritative about termination
	//   - illegal non-terminal transition: ignored
	//   - unknown subscription reference: ignored
	//
	// The error return is reserved for storage failures; business
	// outcomes are reported in the ReconcileOutcome.
	ApplyEvent(ctx context.Context, event *domain.WebhookEvent) (domain.ReconcileOutcome, error)
}

// =============================================================================
// Implementation
// =============================================================================

type reconcilerService struct {
	subs   store.SubscriptionStore
	logger *slog.Logger
}

// NewReconcilerService creates a new ReconcilerService.
func NewReconcilerService(subs store.SubscriptionStore, logger *slog.Logger) ReconcilerService {
	return &reconcilerService{
		subs:   subs,
		logger: logger,
	}
}

// ApplyEvent applies one webhook event. See the interface doc for the
// convergence rules.
func (s *reconcilerService) ApplyEvent(ctx context.Context, event *domain.WebhookEvent) (domain.ReconcileOutcome, error) {
	const op = "reconciler.apply"

	target, ok := event.Type.TargetStatus()
	if !ok {
		return s.outcome(event, domain.ReconcileIgnored, "unrecognized event type"), nil
	}

	sub, err := s.subs.GetSubscriptionByProviderRef(ctx, event.Provider, event.ProviderSubscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// References we never issued: a checkout we failed to record,
			// or a subscription managed outside this system. Acknowledge
			// and move on; retrying cannot help.
			return s.outcome(event, domain.ReconcileIgnored, "unknown subscription reference"), nil
		}
		return s.outcome(event, domain.ReconcileFailed, "subscription lookup failed"),
			domain.Internal(err, op, "failed to look up subscription")
	}

	if sub.Status == target {
		// Duplicate delivery or a payment event on an already-active
		// subscription. Converged; nothing to do.
		return s.outcome(event, domain.ReconcileApplied, ""), nil
	}

	// Terminal targets are always honored: once the provider says a
	// subscription is over, local state must follow regardless of what
	// intermediate events were lost or reordered.
	if !sub.Status.CanTransitionTo(target) && !target.IsTerminal() {
		return s.outcome(event, domain.ReconcileIgnored, "transition not allowed from "+string(sub.Status)), nil
	}

	if err := s.subs.UpdateSubscriptionStatus(ctx, sub.ID, target); err != nil {
		return s.outcome(event, domain.ReconcileFailed, "status update failed"),
			domain.Internal(err, op, "failed to update subscription status")
	}

	s.logger.Info("subscription transitioned",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"provider", event.Provider,
		"event_type", event.Type,
		"provider_event_id", event.ProviderEventID,
		"from", sub.Status,
		"to", target,
	)

	return s.outcome(event, domain.ReconcileApplied, ""), nil
}

func (s *reconcilerService) outcome(event *domain.WebhookEvent, result domain.ReconcileResult, reason string) domain.ReconcileOutcome {
	if result != domain.ReconcileApplied {
		s.logger.Info("webhook event not applied",
			"provider", event.Provider,
			"event_type", event.Type,
			"provider_subscription_id", event.ProviderSubscriptionID,
			"provider_event_id", event.ProviderEventID,
			"result", result,
			"reason", reason,
		)
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(event.Provider), string(event.Type), string(result)).Inc()
	return domain.ReconcileOutcome{Result: result, Reason: reason}
}
