package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/octorank/octorank/internal/domain"
)

// StripePriceConfig holds the Stripe price IDs for each sellable
// (plan, frequency) pair.
type StripePriceConfig struct {
	StarterMonthlyPriceID    string
	StarterAnnualPriceID     string
	RecruiterMonthlyPriceID  string
	RecruiterAnnualPriceID   string
	EnterpriseMonthlyPriceID string
	EnterpriseAnnualPriceID  string
}

// priceFor returns the configured price ID for a plan definition.
func (c StripePriceConfig) priceFor(plan domain.PlanID, freq domain.Frequency) string {
	monthly := freq == domain.FrequencyMonthly
	switch plan {
	case domain.PlanStarter:
		if monthly {
			return c.StarterMonthlyPriceID
		}
		return c.StarterAnnualPriceID
	case domain.PlanRecruiter:
		if monthly {
			return c.RecruiterMonthlyPriceID
		}
		return c.RecruiterAnnualPriceID
	case domain.PlanEnterprise:
		if monthly {
			return c.EnterpriseMonthlyPriceID
		}
		return c.EnterpriseAnnualPriceID
	}
	return ""
}

// StripeProvider implements CheckoutProvider against the Stripe API.
type StripeProvider struct {
	webhookSecret string
	prices        StripePriceConfig
}

// NewStripeProvider creates a Stripe-backed checkout provider.
//
// The secretKey authenticates Stripe API calls. The webhookSecret verifies
// incoming webhook signatures. All Stripe calls share the given timeout.
func NewStripeProvider(secretKey, webhookSecret string, prices StripePriceConfig, timeout time.Duration) *StripeProvider {
	stripe.Key = secretKey
	stripe.SetHTTPClient(&http.Client{Timeout: timeout})

	return &StripeProvider{
		webhookSecret: webhookSecret,
		prices:        prices,
	}
}

var _ CheckoutProvider = (*StripeProvider)(nil)

func (p *StripeProvider) Name() domain.ProviderName {
	return domain.ProviderStripe
}

// CreateCheckoutSession creates the subscription up front in incomplete
// state so its ID is known before payment completes; activation arrives
// via webhook once the first invoice is paid.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	priceID := p.prices.priceFor(params.Plan.PlanID, params.Plan.Frequency)
	if priceID == "" {
		return nil, fmt.Errorf("stripe: no price configured for plan %s/%s", params.Plan.PlanID, params.Plan.Frequency)
	}

	customerID, err := p.ensureCustomer(ctx, params.Email, params.UserID.String())
	if err != nil {
		return nil, err
	}

	subParams := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	subParams.Context = ctx
	subParams.AddExpand("latest_invoice.payment_intent")
	subParams.AddMetadata("user_id", params.UserID.String())
	subParams.AddMetadata("plan_id", string(params.Plan.PlanID))
	subParams.AddMetadata("frequency", string(params.Plan.Frequency))

	sub, err := subscription.New(subParams)
	if err != nil {
		return nil, fmt.Errorf("stripe create subscription: %w", err)
	}

	checkoutURL := params.SuccessURL
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		checkoutURL = fmt.Sprintf("%s?payment_intent=%s", params.SuccessURL, sub.LatestInvoice.PaymentIntent.ClientSecret)
	}

	return &CheckoutSession{
		ProviderSubscriptionID: sub.ID,
		CheckoutURL:            checkoutURL,
	}, nil
}

// ensureCustomer finds the Stripe customer for an email or creates one.
func (p *StripeProvider) ensureCustomer(ctx context.Context, email, userID string) (string, error) {
	listParams := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := customer.List(listParams)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("stripe list customers: %w", err)
	}

	createParams := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	createParams.Context = ctx
	createParams.AddMetadata("user_id", userID)

	c, err := customer.New(createParams)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

// ParseEvent verifies the Stripe-Signature header and maps the event to a
// subscription lifecycle transition.
func (p *StripeProvider) ParseEvent(_ context.Context, payload []byte, header http.Header) (*domain.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, header.Get("Stripe-Signature"), p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	switch event.Type {
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("stripe parse invoice: %w", err)
		}
		if invoice.Subscription == nil {
			return nil, ErrUnhandledEvent
		}
		return p.event(domain.EventPaymentCompleted, invoice.Subscription.ID, event), nil

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe parse subscription: %w", err)
		}
		switch sub.Status {
		case stripe.SubscriptionStatusActive:
			return p.event(domain.EventActivated, sub.ID, event), nil
		case stripe.SubscriptionStatusCanceled:
			return p.event(domain.EventCancelled, sub.ID, event), nil
		case stripe.SubscriptionStatusIncompleteExpired:
			return p.event(domain.EventExpired, sub.ID, event), nil
		}
		return nil, ErrUnhandledEvent

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe parse subscription: %w", err)
		}
		return p.event(domain.EventCancelled, sub.ID, event), nil
	}

	return nil, ErrUnhandledEvent
}

func (p *StripeProvider) event(t domain.EventType, ref string, ev stripe.Event) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		Provider:               domain.ProviderStripe,
		Type:                   t,
		ProviderSubscriptionID: ref,
		ProviderEventID:        ev.ID,
		Payload:                ev.Data.Raw,
	}
}

// SubscriptionStatus fetches the subscription from Stripe and maps its
// status into the local lifecycle.
func (p *StripeProvider) SubscriptionStatus(ctx context.Context, providerSubscriptionID string) (domain.SubscriptionStatus, error) {
	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx

	sub, err := subscription.Get(providerSubscriptionID, getParams)
	if err != nil {
		return "", fmt.Errorf("stripe get subscription: %w", err)
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusActive, nil
	case stripe.SubscriptionStatusCanceled:
		return domain.SubscriptionStatusCancelled, nil
	case stripe.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionStatusExpired, nil
	}
	return domain.SubscriptionStatusPending, nil
}
