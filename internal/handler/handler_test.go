package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/billing"
	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/identity"
	"github.com/octorank/octorank/internal/scoring/mock"
	"github.com/octorank/octorank/internal/service"
	"github.com/octorank/octorank/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testEnv bundles the services handler tests exercise.
type testEnv struct {
	store  *store.MemoryStore
	oracle *mock.Oracle
	gate   service.GateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	oracle := mock.New()
	gate := service.NewGateService(
		service.NewEntitlementService(mem, testLogger()),
		service.NewQuotaService(mem, testLogger()),
		oracle,
		nil,
		testLogger(),
	)
	return &testEnv{store: mem, oracle: oracle, gate: gate}
}

// authedRequest builds a request carrying a verified identity.
func authedRequest(method, target string, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	id := &domain.VerifiedIdentity{UserID: userID, Email: "dev@example.com"}
	return req.WithContext(identity.NewContext(context.Background(), id))
}

// stubCheckoutProvider implements billing.CheckoutProvider for handler tests.
type stubCheckoutProvider struct {
	name    domain.ProviderName
	session *billing.CheckoutSession
	err     error
}

func (p *stubCheckoutProvider) Name() domain.ProviderName { return p.name }

func (p *stubCheckoutProvider) CreateCheckoutSession(_ context.Context, _ billing.CheckoutParams) (*billing.CheckoutSession, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func (p *stubCheckoutProvider) ParseEvent(_ context.Context, _ []byte, _ http.Header) (*domain.WebhookEvent, error) {
	return nil, billing.ErrUnhandledEvent
}

func (p *stubCheckoutProvider) SubscriptionStatus(_ context.Context, _ string) (domain.SubscriptionStatus, error) {
	return domain.SubscriptionStatusPending, nil
}
