package worker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octorank/octorank/internal/billing"
	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/service"
	"github.com/octorank/octorank/internal/store"
)

// statusProvider reports a fixed provider-side status.
type statusProvider struct {
	status domain.SubscriptionStatus
	calls  int
}

func (p *statusProvider) Name() domain.ProviderName { return domain.ProviderStripe }

func (p *statusProvider) CreateCheckoutSession(_ context.Context, _ billing.CheckoutParams) (*billing.CheckoutSession, error) {
	panic("not used")
}

func (p *statusProvider) ParseEvent(_ context.Context, _ []byte, _ http.Header) (*domain.WebhookEvent, error) {
	return nil, billing.ErrUnhandledEvent
}

func (p *statusProvider) SubscriptionStatus(_ context.Context, _ string) (domain.SubscriptionStatus, error) {
	p.calls++
	return p.status, nil
}

func seedPending(t *testing.T, mem store.Store, createdAt time.Time) *domain.Subscription {
	t.Helper()
	plan, err := domain.ResolvePlan(domain.PlanStarter, domain.FrequencyMonthly)
	require.NoError(t, err)
	sub := &domain.Subscription{
		ID:                     uuid.New(),
		UserID:                 uuid.New(),
		PlanID:                 plan.PlanID,
		Frequency:              plan.Frequency,
		Status:                 domain.SubscriptionStatusPending,
		Provider:               domain.ProviderStripe,
		ProviderSubscriptionID: "sub_" + uuid.NewString(),
		QueryLimit:             plan.QueryLimit,
		PriceCents:             plan.PriceCents,
		CreatedAt:              createdAt,
		UpdatedAt:              createdAt,
	}
	require.NoError(t, mem.CreateSubscription(context.Background(), sub))
	return sub
}

func TestReconcilePollerRunOnce(t *testing.T) {
	ctx := context.Background()

	newPoller := func(mem store.Store, provider billing.CheckoutProvider) *ReconcilePoller {
		return NewReconcilePoller(
			mem,
			billing.NewRegistry(provider),
			service.NewReconcilerService(mem, testLogger()),
			time.Minute,
			time.Hour,
			testLogger(),
		)
	}

	t.Run("activates stale pending subscription", func(t *testing.T) {
		mem := store.NewMemoryStore()
		sub := seedPending(t, mem, time.Now().Add(-2*time.Hour))
		provider := &statusProvider{status: domain.SubscriptionStatusActive}

		poller := newPoller(mem, provider)
		require.NoError(t, poller.runOnce(ctx))

		got, err := mem.GetSubscriptionByProviderRef(ctx, domain.ProviderStripe, sub.ProviderSubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	})

	t.Run("expires abandoned checkout", func(t *testing.T) {
		mem := store.NewMemoryStore()
		sub := seedPending(t, mem, time.Now().Add(-2*time.Hour))
		provider := &statusProvider{status: domain.SubscriptionStatusExpired}

		poller := newPoller(mem, provider)
		require.NoError(t, poller.runOnce(ctx))

		got, err := mem.GetSubscriptionByProviderRef(ctx, domain.ProviderStripe, sub.ProviderSubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, domain.SubscriptionStatusExpired, got.Status)
	})

	t.Run("leaves still-pending subscription alone", func(t *testing.T) {
		mem := store.NewMemoryStore()
		sub := seedPending(t, mem, time.Now().Add(-2*time.Hour))
		provider := &statusProvider{status: domain.SubscriptionStatusPending}

		poller := newPoller(mem, provider)
		require.NoError(t, poller.runOnce(ctx))

		got, err := mem.GetSubscriptionByProviderRef(ctx, domain.ProviderStripe, sub.ProviderSubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, domain.SubscriptionStatusPending, got.Status)
		assert.Equal(t, 1, provider.calls)
	})

	t.Run("skips recent pending subscriptions", func(t *testing.T) {
		mem := store.NewMemoryStore()
		seedPending(t, mem, time.Now().Add(-time.Minute))
		provider := &statusProvider{status: domain.SubscriptionStatusActive}

		poller := newPoller(mem, provider)
		require.NoError(t, poller.runOnce(ctx))
		assert.Zero(t, provider.calls)
	})
}
