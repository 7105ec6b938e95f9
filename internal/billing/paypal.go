package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/octorank/octorank/internal/domain"
)

// PayPalPlanConfig holds the PayPal billing plan IDs for each sellable
// (plan, frequency) pair.
type PayPalPlanConfig struct {
	StarterMonthlyPlanID    string
	StarterAnnualPlanID     string
	RecruiterMonthlyPlanID  string
	RecruiterAnnualPlanID   string
	EnterpriseMonthlyPlanID string
	EnterpriseAnnualPlanID  string
}

func (c PayPalPlanConfig) planFor(plan domain.PlanID, freq domain.Frequency) string {
	monthly := freq == domain.FrequencyMonthly
	switch plan {
	case domain.PlanStarter:
		if monthly {
			return c.StarterMonthlyPlanID
		}
		return c.StarterAnnualPlanID
	case domain.PlanRecruiter:
		if monthly {
			return c.RecruiterMonthlyPlanID
		}
		return c.RecruiterAnnualPlanID
	case domain.PlanEnterprise:
		if monthly {
			return c.EnterpriseMonthlyPlanID
		}
		return c.EnterpriseAnnualPlanID
	}
	return ""
}

// PayPalProvider implements CheckoutProvider against the PayPal REST API.
//
// There is no maintained PayPal Go SDK, so this is a thin client over
// net/http covering OAuth, billing subscriptions, and webhook signature
// verification.
type PayPalProvider struct {
	clientID  string
	secret    string
	baseURL   string
	webhookID string
	plans     PayPalPlanConfig
	client    *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPayPalProvider(clientID, secret, baseURL, webhookID string, plans PayPalPlanConfig, timeout time.Duration) *PayPalProvider {
	return &PayPalProvider{
		clientID:  clientID,
		secret:    secret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		webhookID: webhookID,
		plans:     plans,
		client:    &http.Client{Timeout: timeout},
	}
}

var _ CheckoutProvider = (*PayPalProvider)(nil)

func (p *PayPalProvider) Name() domain.ProviderName {
	return domain.ProviderPayPal
}

// token returns a cached OAuth access token, refreshing it when within a
// minute of expiry.
func (p *PayPalProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Until(p.tokenExpiry) > time.Minute {
		return p.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal oauth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("paypal oauth: status %d: %s", resp.StatusCode, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("paypal oauth decode: %w", err)
	}

	p.accessToken = tok.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return p.accessToken, nil
}

func (p *PayPalProvider) do(ctx context.Context, method, path string, body, out any) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("paypal %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("paypal decode: %w", err)
		}
	}
	return nil
}

// CreateCheckoutSession creates a billing subscription and returns the
// approval link the buyer must visit. The subscription stays pending until
// the ACTIVATED webhook arrives.
func (p *PayPalProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	planID := p.plans.planFor(params.Plan.PlanID, params.Plan.Frequency)
	if planID == "" {
		return nil, fmt.Errorf("paypal: no plan configured for %s/%s", params.Plan.PlanID, params.Plan.Frequency)
	}

	body := map[string]any{
		"plan_id":   planID,
		"custom_id": params.UserID.String(),
		"subscriber": map[string]any{
			"email_address": params.Email,
		},
		"application_context": map[string]any{
			"return_url":  params.SuccessURL,
			"cancel_url":  params.CancelURL,
			"user_action": "SUBSCRIBE_NOW",
		},
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := p.do(ctx, http.MethodPost, "/v1/billing/subscriptions", body, &created); err != nil {
		return nil, err
	}

	approveURL := ""
	for _, link := range created.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}
	if approveURL == "" {
		return nil, fmt.Errorf("paypal: subscription %s has no approve link", created.ID)
	}

	return &CheckoutSession{
		ProviderSubscriptionID: created.ID,
		CheckoutURL:            approveURL,
	}, nil
}

// ParseEvent verifies the webhook via PayPal's verification API (when a
// webhook ID is configured) and maps the event to a lifecycle transition.
func (p *PayPalProvider) ParseEvent(ctx context.Context, payload []byte, header http.Header) (*domain.WebhookEvent, error) {
	if p.webhookID != "" {
		if err := p.verifySignature(ctx, payload, header); err != nil {
			return nil, err
		}
	}

	var event struct {
		ID        string          `json:"id"`
		EventType string          `json:"event_type"`
		Resource  json.RawMessage `json:"resource"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("paypal parse event: %w", err)
	}

	var eventType domain.EventType
	ref := ""

	switch event.EventType {
	case "BILLING.SUBSCRIPTION.ACTIVATED":
		eventType = domain.EventActivated
	case "BILLING.SUBSCRIPTION.CANCELLED":
		eventType = domain.EventCancelled
	case "BILLING.SUBSCRIPTION.EXPIRED", "BILLING.SUBSCRIPTION.SUSPENDED":
		eventType = domain.EventExpired
	case "PAYMENT.SALE.COMPLETED":
		eventType = domain.EventPaymentCompleted
		var sale struct {
			BillingAgreementID string `json:"billing_agreement_id"`
		}
		if err := json.Unmarshal(event.Resource, &sale); err != nil {
			return nil, fmt.Errorf("paypal parse sale: %w", err)
		}
		ref = sale.BillingAgreementID
	default:
		return nil, ErrUnhandledEvent
	}

	if ref == "" {
		var resource struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Resource, &resource); err != nil {
			return nil, fmt.Errorf("paypal parse resource: %w", err)
		}
		ref = resource.ID
	}
	if ref == "" {
		return nil, ErrUnhandledEvent
	}

	return &domain.WebhookEvent{
		Provider:               domain.ProviderPayPal,
		Type:                   eventType,
		ProviderSubscriptionID: ref,
		ProviderEventID:        event.ID,
		Payload:                payload,
	}, nil
}

func (p *PayPalProvider) verifySignature(ctx context.Context, payload []byte, header http.Header) error {
	body := map[string]any{
		"auth_algo":         header.Get("Paypal-Auth-Algo"),
		"cert_url":          header.Get("Paypal-Cert-Url"),
		"transmission_id":   header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  header.Get("Paypal-Transmission-Sig"),
		"transmission_time": header.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body, &result); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("%w: verification status %q", ErrBadSignature, result.VerificationStatus)
	}
	return nil
}

// SubscriptionStatus fetches the subscription from PayPal and maps its
// status into the local lifecycle.
func (p *PayPalProvider) SubscriptionStatus(ctx context.Context, providerSubscriptionID string) (domain.SubscriptionStatus, error) {
	var sub struct {
		Status string `json:"status"`
	}
	if err := p.do(ctx, http.MethodGet, "/v1/billing/subscriptions/"+providerSubscriptionID, nil, &sub); err != nil {
		return "", err
	}

	switch sub.Status {
	case "ACTIVE":
		return domain.SubscriptionStatusActive, nil
	case "CANCELLED":
		return domain.SubscriptionStatusCancelled, nil
	case "EXPIRED", "SUSPENDED":
		return domain.SubscriptionStatusExpired, nil
	}
	return domain.SubscriptionStatusPending, nil
}
