// Package store defines the persistence interfaces for subscriptions, quota
// counters, and the search history log, plus the backing implementations.
//
// The interfaces expose get/put/conditional-update semantics; callers never
// see driver errors. Implementations must make TryConsume a single atomic
// conditional update, never a read-then-write pair.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint
// (e.g., provider subscription reference already recorded).
var ErrDuplicate = errors.New("store: duplicate record")

// SubscriptionStore persists subscription records. Records are never
// deleted; cancelled and expired subscriptions are retained for history.
type SubscriptionStore interface {
	// CreateSubscription inserts a new subscription record.
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error

	// GetSubscriptionByProviderRef looks up a subscription by its
	// provider-side reference, unique per provider.
	GetSubscriptionByProviderRef(ctx context.Context, provider domain.ProviderName, ref string) (*domain.Subscription, error)

	// LatestActiveSubscription returns the most recently created active
	// subscription for the user, or ErrNotFound.
	LatestActiveSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// LatestSubscription returns the most recently created subscription for
	// the user in any status, or ErrNotFound.
	LatestSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// ListPendingOlderThan returns pending subscriptions created before the
	// cutoff, for the provider-status reconciliation poll.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Subscription, error)

	// UpdateSubscriptionStatus sets status and updated_at; no other field
	// changes on lifecycle events.
	UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error
}

// QuotaStore persists per-user consumption counters.
type QuotaStore interface {
	// TryConsume atomically increments the counter for (userID, periodKey)
	// when consumed < limit, or unconditionally when limit is unlimited.
	// A denied attempt leaves the counter unchanged. The returned decision
	// reflects the counter after the attempt.
	//
	// This is the central concurrency contract: with one unit remaining,
	// two simultaneous calls must yield exactly one allowed and one denied.
	TryConsume(ctx context.Context, userID uuid.UUID, periodKey string, limit int) (domain.QuotaDecision, error)

	// GetCounter returns the counter for (userID, periodKey), or ErrNotFound
	// if the user has not consumed anything this period.
	GetCounter(ctx context.Context, userID uuid.UUID, periodKey string) (*domain.QuotaCounter, error)
}

// HistoryStore persists the best-effort search history log.
type HistoryStore interface {
	InsertSearch(ctx context.Context, userID uuid.UUID, username string) error
	ListSearches(ctx context.Context, userID uuid.UUID, limit int) ([]domain.SearchRecord, error)
}

// Store aggregates all persistence concerns behind one dependency.
type Store interface {
	SubscriptionStore
	QuotaStore
	HistoryStore
}
