package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octorank/octorank/internal/domain"
)

func TestMemoryStore_TryConsume_Sequential(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()

	// N successful consumes up to the limit
	for i := 1; i <= 3; i++ {
		dec, err := s.TryConsume(ctx, userID, "lifetime", 3)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
		assert.Equal(t, i, dec.Consumed)
	}

	// The (N+1)-th is denied and the counter is unchanged
	dec, err := s.TryConsume(ctx, userID, "lifetime", 3)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 3, dec.Consumed)

	counter, err := s.GetCounter(ctx, userID, "lifetime")
	require.NoError(t, err)
	assert.Equal(t, 3, counter.Consumed)
}

func TestMemoryStore_TryConsume_Unlimited(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()

	for i := 0; i < 50; i++ {
		dec, err := s.TryConsume(ctx, userID, "2026-08", domain.QueryLimitUnlimited)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
	}
}

func TestMemoryStore_TryConsume_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()

	const limit = 5
	const callers = 50

	var wg sync.WaitGroup
	allowed := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := s.TryConsume(ctx, userID, "lifetime", limit)
			require.NoError(t, err)
			allowed <- dec.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	allowedCount := 0
	for ok := range allowed {
		if ok {
			allowedCount++
		}
	}
	assert.Equal(t, limit, allowedCount)

	counter, err := s.GetCounter(ctx, userID, "lifetime")
	require.NoError(t, err)
	assert.Equal(t, limit, counter.Consumed)
}

func TestMemoryStore_TryConsume_SeparatePeriods(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()

	dec, err := s.TryConsume(ctx, userID, "2026-07", 1)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	dec, err = s.TryConsume(ctx, userID, "2026-07", 1)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	// A new period starts fresh
	dec, err = s.TryConsume(ctx, userID, "2026-08", 1)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestMemoryStore_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()

	older := &domain.Subscription{
		ID:                     uuid.New(),
		UserID:                 userID,
		PlanID:                 domain.PlanStarter,
		Frequency:              domain.FrequencyMonthly,
		Status:                 domain.SubscriptionStatusActive,
		Provider:               domain.ProviderStripe,
		ProviderSubscriptionID: "sub_old",
		QueryLimit:             100,
		CreatedAt:              time.Now().Add(-48 * time.Hour),
	}
	newer := &domain.Subscription{
		ID:                     uuid.New(),
		UserID:                 userID,
		PlanID:                 domain.PlanRecruiter,
		Frequency:              domain.FrequencyMonthly,
		Status:                 domain.SubscriptionStatusActive,
		Provider:               domain.ProviderPayPal,
		ProviderSubscriptionID: "I-NEW",
		QueryLimit:             500,
		CreatedAt:              time.Now().Add(-1 * time.Hour),
	}
	require.NoError(t, s.CreateSubscription(ctx, older))
	require.NoError(t, s.CreateSubscription(ctx, newer))

	// Duplicate provider reference is rejected
	dup := *older
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.CreateSubscription(ctx, &dup), ErrDuplicate)

	// Most-recently-created active subscription wins
	got, err := s.LatestActiveSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	// Lookup by provider reference
	got, err = s.GetSubscriptionByProviderRef(ctx, domain.ProviderStripe, "sub_old")
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)

	_, err = s.GetSubscriptionByProviderRef(ctx, domain.ProviderStripe, "sub_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Status update touches only status and updated_at
	require.NoError(t, s.UpdateSubscriptionStatus(ctx, newer.ID, domain.SubscriptionStatusCancelled))
	got, err = s.LatestSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, got.Status)
	assert.Equal(t, domain.PlanRecruiter, got.PlanID)
	assert.Equal(t, 500, got.QueryLimit)

	// With the newer one cancelled, the older active record is current again
	got, err = s.LatestActiveSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)

	assert.ErrorIs(t, s.UpdateSubscriptionStatus(ctx, uuid.New(), domain.SubscriptionStatusActive), ErrNotFound)
}

func TestMemoryStore_PendingOlderThan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stale := &domain.Subscription{
		ID:                     uuid.New(),
		UserID:                 uuid.New(),
		Status:                 domain.SubscriptionStatusPending,
		Provider:               domain.ProviderStripe,
		ProviderSubscriptionID: "sub_stale",
		CreatedAt:              time.Now().Add(-2 * time.Hour),
	}
	fresh := &domain.Subscription{
		ID:                     uuid.New(),
		UserID:                 uuid.New(),
		Status:                 domain.SubscriptionStatusPending,
		Provider:               domain.ProviderStripe,
		ProviderSubscriptionID: "sub_fresh",
		CreatedAt:              time.Now(),
	}
	require.NoError(t, s.CreateSubscription(ctx, stale))
	require.NoError(t, s.CreateSubscription(ctx, fresh))

	subs, err := s.ListPendingOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, stale.ID, subs[0].ID)
}

func TestMemoryStore_SearchHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()

	for _, name := range []string{"torvalds", "bradfitz", "rsc"} {
		require.NoError(t, s.InsertSearch(ctx, userID, name))
	}
	require.NoError(t, s.InsertSearch(ctx, uuid.New(), "someone-else"))

	records, err := s.ListSearches(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first
	assert.Equal(t, "rsc", records[0].Username)
	assert.Equal(t, "bradfitz", records[1].Username)
}
