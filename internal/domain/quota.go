// Package domain contains core business types and interfaces.
//
// This file defines quota types for gating score queries by subscription tier.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement is the query allowance computed for a user from their
// subscription state: the denormalized subscription limit when an active
// subscription exists, the free-tier default otherwise.
type Entitlement struct {
	Limit        int // QueryLimitUnlimited for uncapped plans
	IsSubscriber bool
	PlanID       PlanID    // zero value for free tier
	Frequency    Frequency // zero value for free tier
}

// Unlimited reports whether the entitlement has no query cap.
func (e Entitlement) Unlimited() bool {
	return e.Limit == QueryLimitUnlimited
}

// QuotaCounter tracks consumption against a limit for one accounting period.
type QuotaCounter struct {
	UserID    uuid.UUID
	PeriodKey string
	Consumed  int
	Limit     int
}

// QuotaDecision is the result of an atomic consume attempt. Consumed and
// Limit reflect the counter after the attempt, for client display.
type QuotaDecision struct {
	Allowed  bool
	Consumed int
	Limit    int
}

// Remaining returns the remaining query count, never negative.
// Unlimited entitlements report QueryLimitUnlimited.
func (d QuotaDecision) Remaining() int {
	if d.Limit == QueryLimitUnlimited {
		return QueryLimitUnlimited
	}
	if r := d.Limit - d.Consumed; r > 0 {
		return r
	}
	return 0
}

// PeriodKeyFunc derives the accounting period key for an entitlement at a
// point in time. The mechanism is pluggable because plan definitions vary
// by billing frequency.
type PeriodKeyFunc func(ent Entitlement, now time.Time) string

// DefaultPeriodKey implements the standard accounting periods: free-tier
// users consume against a single lifetime counter, monthly plans against a
// calendar-month counter, and annual plans against a calendar-year counter.
func DefaultPeriodKey(ent Entitlement, now time.Time) string {
	if !ent.IsSubscriber {
		return "lifetime"
	}
	now = now.UTC()
	if ent.Frequency == FrequencyAnnually {
		return now.Format("2006")
	}
	return now.Format("2006-01")
}

// SearchRecord is one entry in the per-user query history log. History is
// observability, not correctness-critical: failures to record never affect
// quota accounting.
type SearchRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Username  string // the queried code-hosting identity
	CreatedAt time.Time
}
