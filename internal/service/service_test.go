package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/billing"
	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/store"
)

// testLogger discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubProvider is a configurable billing.CheckoutProvider for tests.
type stubProvider struct {
	name    domain.ProviderName
	session *billing.CheckoutSession
	err     error
	calls   int
}

func (p *stubProvider) Name() domain.ProviderName { return p.name }

func (p *stubProvider) CreateCheckoutSession(_ context.Context, _ billing.CheckoutParams) (*billing.CheckoutSession, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func (p *stubProvider) ParseEvent(_ context.Context, _ []byte, _ http.Header) (*domain.WebhookEvent, error) {
	return nil, billing.ErrUnhandledEvent
}

func (p *stubProvider) SubscriptionStatus(_ context.Context, _ string) (domain.SubscriptionStatus, error) {
	return domain.SubscriptionStatusPending, nil
}

// failingSubStore wraps a SubscriptionStore and fails CreateSubscription.
type failingSubStore struct {
	store.SubscriptionStore
}

func (f *failingSubStore) CreateSubscription(_ context.Context, _ *domain.Subscription) error {
	return errors.New("disk on fire")
}

// recorderSpy captures history records.
type recorderSpy struct {
	mu      sync.Mutex
	records []string
}

func (r *recorderSpy) Record(_ uuid.UUID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, username)
}

func (r *recorderSpy) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.records...)
}

// seedSubscription inserts a subscription in the given status.
func seedSubscription(ctx context.Context, s store.SubscriptionStore, userID uuid.UUID, status domain.SubscriptionStatus, provider domain.ProviderName, ref string) (*domain.Subscription, error) {
	plan, err := domain.ResolvePlan(domain.PlanStarter, domain.FrequencyMonthly)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sub := &domain.Subscription{
		ID:                     uuid.New(),
		UserID:                 userID,
		PlanID:                 plan.PlanID,
		Frequency:              plan.Frequency,
		Status:                 status,
		Provider:               provider,
		ProviderSubscriptionID: ref,
		QueryLimit:             plan.QueryLimit,
		PriceCents:             plan.PriceCents,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}
