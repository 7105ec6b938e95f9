// Package service contains the business logic layer.
//
// This file implements the quota service: atomic consumption of query
// units against a user's entitlement, and usage reporting.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/metrics"
	"github.com/octorank/octorank/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService enforces per-period query limits.
type QuotaService interface {
	// Consume atomically spends one query unit against the entitlement.
	// Returns *domain.QuotaError when the limit is exhausted; the counter
	// is left unchanged in that case. Under concurrent calls with one
	// unit remaining, exactly one caller wins.
	Consume(ctx context.Context, userID uuid.UUID, ent domain.Entitlement) (domain.QuotaDecision, error)

	// Usage reports current consumption without mutating the counter.
	// Users who have consumed nothing this period report zero.
	Usage(ctx context.Context, userID uuid.UUID, ent domain.Entitlement) (domain.QuotaDecision, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	quotas    store.QuotaStore
	periodKey domain.PeriodKeyFunc
	now       func() time.Time
	logger    *slog.Logger
}

// NewQuotaService creates a new QuotaService using the standard accounting
// periods.
func NewQuotaService(quotas store.QuotaStore, logger *slog.Logger) QuotaService {
	return &quotaService{
		quotas:    quotas,
		periodKey: domain.DefaultPeriodKey,
		now:       time.Now,
		logger:    logger,
	}
}

// Consume atomically spends one query unit.
func (s *quotaService) Consume(ctx context.Context, userID uuid.UUID, ent domain.Entitlement) (domain.QuotaDecision, error) {
	const op = "quota.consume"

	key := s.periodKey(ent, s.now())

	decision, err := s.quotas.TryConsume(ctx, userID, key, ent.Limit)
	if err != nil {
		return domain.QuotaDecision{}, domain.Internal(err, op, "failed to consume quota")
	}

	if !decision.Allowed {
		s.logger.Info("quota exhausted",
			"user_id", userID,
			"period_key", key,
			"consumed", decision.Consumed,
			"limit", decision.Limit,
		)
		metrics.QuotaDenialsTotal.Inc()
		return decision, domain.QuotaExceeded(op, decision.Consumed, decision.Limit)
	}

	return decision, nil
}

// Usage reports current consumption without mutating the counter.
func (s *quotaService) Usage(ctx context.Context, userID uuid.UUID, ent domain.Entitlement) (domain.QuotaDecision, error) {
	const op = "quota.usage"

	key := s.periodKey(ent, s.now())

	counter, err := s.quotas.GetCounter(ctx, userID, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.QuotaDecision{
				Allowed:  true,
				Consumed: 0,
				Limit:    ent.Limit,
			}, nil
		}
		return domain.QuotaDecision{}, domain.Internal(err, op, "failed to read quota counter")
	}

	allowed := ent.Limit == domain.QueryLimitUnlimited || counter.Consumed < ent.Limit
	return domain.QuotaDecision{
		Allowed:  allowed,
		Consumed: counter.Consumed,
		Limit:    ent.Limit,
	}, nil
}
