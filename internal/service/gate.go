// Package service contains the business logic layer.
//
// This file implements the query gate: the single path through which
// score queries reach the scoring engine, gated by quota.
package service

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/metrics"
	"github.com/octorank/octorank/internal/scoring"
)

// usernamePattern matches valid GitHub usernames: alphanumeric and
// hyphens, no leading/trailing/double hyphen, at most 39 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9]|-[a-zA-Z0-9]){0,38}$`)

// =============================================================================
// Interface Definition
// =============================================================================

// ScoreQueryResult is the outcome of a successful gated query.
type ScoreQueryResult struct {
	Score    *domain.ScoreResult
	Decision domain.QuotaDecision
}

// HistoryRecorder accepts best-effort search history entries. Recording
// must never block or fail the query path.
type HistoryRecorder interface {
	Record(userID uuid.UUID, username string)
}

// GateService runs score queries through quota enforcement.
type GateService interface {
	// HandleScoreQuery resolves the caller's entitlement, spends one
	// query unit, and invokes the scoring engine.
	//
	// Returns *domain.QuotaError on exhaustion without touching the
	// engine. An engine failure returns EUPSTREAM; the spent unit is
	// not refunded.
	HandleScoreQuery(ctx context.Context, userID uuid.UUID, username string) (*ScoreQueryResult, error)

	// Limits reports the caller's current quota standing without
	// consuming anything.
	Limits(ctx context.Context, userID uuid.UUID) (domain.Entitlement, domain.QuotaDecision, error)
}

// =============================================================================
// Implementation
// =============================================================================

type gateService struct {
	entitlements EntitlementService
	quotas       QuotaService
	oracle       scoring.Oracle
	history      HistoryRecorder
	logger       *slog.Logger
}

// NewGateService creates a new GateService. The history recorder may be
// nil, in which case queries are not logged.
func NewGateService(
	entitlements EntitlementService,
	quotas QuotaService,
	oracle scoring.Oracle,
	history HistoryRecorder,
	logger *slog.Logger,
) GateService {
	return &gateService{
		entitlements: entitlements,
		quotas:       quotas,
		oracle:       oracle,
		history:      history,
		logger:       logger,
	}
}

// HandleScoreQuery runs one gated score query.
func (s *gateService) HandleScoreQuery(ctx context.Context, userID uuid.UUID, username string) (*ScoreQueryResult, error) {
	const op = "gate.score_query"

	if !usernamePattern.MatchString(username) {
		return nil, domain.Invalid(op, "username is not a valid GitHub username")
	}

	ent, err := s.entitlements.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision, err := s.quotas.Consume(ctx, userID, ent)
	if err != nil {
		// Quota denials and storage errors both land here; either way
		// the engine is never called.
		metrics.ScoreQueriesTotal.WithLabelValues("denied").Inc()
		return nil, err
	}

	start := time.Now()
	score, err := s.oracle.Score(ctx, scoring.ScoreParams{
		Username: username,
		UserID:   userID,
	})
	metrics.OracleCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// The unit stays spent. Refunding would let a failing engine be
		// probed for free, and the denial counts must stay monotonic.
		s.logger.Warn("score query failed after quota spend",
			"user_id", userID,
			"username", username,
			"error", err,
		)
		metrics.ScoreQueriesTotal.WithLabelValues("upstream_error").Inc()
		return nil, err
	}

	if s.history != nil {
		s.history.Record(userID, username)
	}

	metrics.ScoreQueriesTotal.WithLabelValues("ok").Inc()
	return &ScoreQueryResult{
		Score:    score,
		Decision: decision,
	}, nil
}

// Limits reports quota standing without consuming.
func (s *gateService) Limits(ctx context.Context, userID uuid.UUID) (domain.Entitlement, domain.QuotaDecision, error) {
	ent, err := s.entitlements.Resolve(ctx, userID)
	if err != nil {
		return domain.Entitlement{}, domain.QuotaDecision{}, err
	}

	decision, err := s.quotas.Usage(ctx, userID, ent)
	if err != nil {
		return domain.Entitlement{}, domain.QuotaDecision{}, err
	}
	return ent, decision, nil
}
