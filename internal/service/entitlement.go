// Package service contains the business logic layer.
//
// This file implements the entitlement service, which maps a user's
// subscription state to the query limit they are entitled to.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService resolves what a user is currently entitled to.
type EntitlementService interface {
	// Resolve returns the user's current entitlement. Users without an
	// active subscription get the free-tier limit; a subscription in any
	// other status confers nothing.
	Resolve(ctx context.Context, userID uuid.UUID) (domain.Entitlement, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	subs   store.SubscriptionStore
	logger *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(subs store.SubscriptionStore, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		subs:   subs,
		logger: logger,
	}
}

// Resolve returns the user's current entitlement.
func (s *entitlementService) Resolve(ctx context.Context, userID uuid.UUID) (domain.Entitlement, error) {
	const op = "entitlement.resolve"

	sub, err := s.subs.LatestActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Entitlement{
				Limit:        domain.FreeTierQueryLimit,
				IsSubscriber: false,
			}, nil
		}
		return domain.Entitlement{}, domain.Internal(err, op, "failed to look up subscription")
	}

	return domain.Entitlement{
		Limit:        sub.QueryLimit,
		IsSubscriber: true,
		PlanID:       sub.PlanID,
		Frequency:    sub.Frequency,
	}, nil
}
