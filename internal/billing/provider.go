// Package billing provides payment-provider integrations for subscription
// checkout and webhook event handling.
//
// Providers are selected by the explicit domain.ProviderName enum through a
// Registry; plan and limit data always come from the plan catalog, never
// from heuristics on provider price identifiers.
package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/domain"
)

// ErrBadSignature is returned when a webhook payload fails signature
// verification. The webhook endpoint answers these with a non-2xx status.
var ErrBadSignature = errors.New("billing: webhook signature verification failed")

// ErrUnhandledEvent is returned by ParseEvent for event types that do not
// map to a subscription lifecycle transition. These are acknowledged, not
// errors.
var ErrUnhandledEvent = errors.New("billing: event type not handled")

// CheckoutParams carries everything a provider needs to start a
// subscription purchase.
type CheckoutParams struct {
	UserID     uuid.UUID
	Email      string
	Plan       domain.PlanDefinition
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider-side result of starting a purchase.
type CheckoutSession struct {
	// ProviderSubscriptionID is the provider's reference for the new
	// subscription; later webhook events carry the same reference.
	ProviderSubscriptionID string
	// CheckoutURL is where the user completes payment.
	CheckoutURL string
}

// CheckoutProvider is the capability every payment provider implements.
type CheckoutProvider interface {
	// Name returns the provider's enum identity.
	Name() domain.ProviderName

	// CreateCheckoutSession starts a subscription purchase with the
	// provider. The call must respect ctx deadlines; on error no local
	// state may have been created by the caller.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// ParseEvent verifies the webhook signature and translates the payload
	// into a lifecycle event. Returns ErrBadSignature for verification
	// failures and ErrUnhandledEvent for event types outside the lifecycle.
	ParseEvent(ctx context.Context, payload []byte, header http.Header) (*domain.WebhookEvent, error)

	// SubscriptionStatus fetches the provider's current view of a
	// subscription, for the reconciliation poll.
	SubscriptionStatus(ctx context.Context, providerSubscriptionID string) (domain.SubscriptionStatus, error)
}

// Registry holds the configured providers keyed by enum name.
type Registry struct {
	providers map[domain.ProviderName]CheckoutProvider
}

// NewRegistry builds a registry from the configured providers. Providers
// left unconfigured (e.g., no API key in development) are simply absent.
func NewRegistry(providers ...CheckoutProvider) *Registry {
	r := &Registry{providers: make(map[domain.ProviderName]CheckoutProvider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Lookup returns the provider for the given name.
func (r *Registry) Lookup(name domain.ProviderName) (CheckoutProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the configured provider names.
func (r *Registry) Names() []domain.ProviderName {
	names := make([]domain.ProviderName, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
