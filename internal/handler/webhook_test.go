package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octorank/octorank/internal/billing"
	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/service"
)

// newWebhookServer wires the webhook route the way main does, using the
// PayPal provider without signature verification so payloads parse
// directly.
func newWebhookServer(t *testing.T) (*httptest.Server, *testEnv) {
	t.Helper()
	env := newTestEnv(t)

	paypal := billing.NewPayPalProvider("client", "secret", "https://unused.test", "", billing.PayPalPlanConfig{}, time.Second)
	registry := billing.NewRegistry(paypal)
	reconciler := service.NewReconcilerService(env.store, testLogger())
	h := NewWebhookHandler(registry, reconciler, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/{provider}", h.Receive)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, env
}

func postWebhook(t *testing.T, srv *httptest.Server, provider, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/webhooks/"+provider, "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebhookReceive(t *testing.T) {
	t.Run("unknown provider path is 404", func(t *testing.T) {
		srv, _ := newWebhookServer(t)
		resp := postWebhook(t, srv, "square", `{}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed payload is 400", func(t *testing.T) {
		srv, _ := newWebhookServer(t)
		resp := postWebhook(t, srv, "paypal", `{not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown subscription reference is acknowledged", func(t *testing.T) {
		srv, _ := newWebhookServer(t)
		resp := postWebhook(t, srv, "paypal",
			`{"id":"WH-1","event_type":"BILLING.SUBSCRIPTION.ACTIVATED","resource":{"id":"I-UNKNOWN"}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ignored", body["status"])
	})

	t.Run("activation event transitions stored subscription", func(t *testing.T) {
		srv, env := newWebhookServer(t)

		ctx := context.Background()
		plan, err := domain.ResolvePlan(domain.PlanStarter, domain.FrequencyMonthly)
		require.NoError(t, err)
		now := time.Now().UTC()
		sub := &domain.Subscription{
			ID:                     uuid.New(),
			UserID:                 uuid.New(),
			PlanID:                 plan.PlanID,
			Frequency:              plan.Frequency,
			Status:                 domain.SubscriptionStatusPending,
			Provider:               domain.ProviderPayPal,
			ProviderSubscriptionID: "I-KNOWN",
			QueryLimit:             plan.QueryLimit,
			PriceCents:             plan.PriceCents,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		require.NoError(t, env.store.CreateSubscription(ctx, sub))

		resp := postWebhook(t, srv, "paypal",
			`{"id":"WH-3","event_type":"BILLING.SUBSCRIPTION.ACTIVATED","resource":{"id":"I-KNOWN"}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "applied", body["status"])

		got, err := env.store.GetSubscriptionByProviderRef(ctx, domain.ProviderPayPal, "I-KNOWN")
		require.NoError(t, err)
		assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	})

	t.Run("unhandled event type is acknowledged", func(t *testing.T) {
		srv, _ := newWebhookServer(t)
		resp := postWebhook(t, srv, "paypal",
			`{"id":"WH-2","event_type":"BILLING.PLAN.UPDATED","resource":{"id":"P-1"}}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
