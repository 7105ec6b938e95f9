// Package domain contains core business types and interfaces.
//
// This file defines the Subscription record, its lifecycle state machine,
// and the webhook event types that drive transitions. Subscriptions are
// created pending by checkout, transitioned only by the webhook reconciler,
// and never deleted (cancelled/expired records are retained for history).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProviderName identifies a payment provider. Providers are selected by
// explicit enum, never by string heuristics on payload fields.
type ProviderName string

const (
	ProviderStripe ProviderName = "stripe"
	ProviderPayPal ProviderName = "paypal"
)

// ValidProviderName reports whether the given string names a known provider.
func ValidProviderName(s string) (ProviderName, bool) {
	switch ProviderName(s) {
	case ProviderStripe, ProviderPayPal:
		return ProviderName(s), true
	}
	return "", false
}

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// IsTerminal reports whether the status admits no further transitions.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

// CanTransitionTo checks if the subscription may move to the target status.
//
// Valid transitions:
//   - pending -> active (activation / first payment)
//   - pending -> cancelled
//   - active  -> cancelled
//   - active  -> expired
//
// Webhook delivery is unordered, so validity is decided by this explicit
// table, never by comparing event timestamps.
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	switch target {
	case SubscriptionStatusActive:
		return s == SubscriptionStatusPending
	case SubscriptionStatusCancelled:
		return s == SubscriptionStatusPending || s == SubscriptionStatusActive
	case SubscriptionStatusExpired:
		return s == SubscriptionStatusActive
	}
	return false
}

// Subscription represents a user's purchase of a plan with a payment provider.
//
// QueryLimit and PriceCents are denormalized snapshots of the PlanDefinition
// at creation time: catalog changes must not alter already-sold subscriptions.
type Subscription struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	PlanID                 PlanID
	Frequency              Frequency
	Status                 SubscriptionStatus
	Provider               ProviderName
	ProviderSubscriptionID string // unique per provider
	QueryLimit             int
	PriceCents             int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NextBillingDate returns the projected next renewal from the creation time,
// stepping by the billing frequency until the result is in the future.
func (s *Subscription) NextBillingDate(now time.Time) time.Time {
	next := s.CreatedAt
	for !next.After(now) {
		if s.Frequency == FrequencyAnnually {
			next = next.AddDate(1, 0, 0)
		} else {
			next = next.AddDate(0, 1, 0)
		}
	}
	return next
}

// EventType classifies provider webhook events relevant to the lifecycle.
type EventType string

const (
	EventActivated        EventType = "activated"
	EventPaymentCompleted EventType = "payment_completed"
	EventCancelled        EventType = "cancelled"
	EventExpired          EventType = "expired"
)

// TargetStatus returns the subscription status this event drives toward.
func (t EventType) TargetStatus() (SubscriptionStatus, bool) {
	switch t {
	case EventActivated, EventPaymentCompleted:
		return SubscriptionStatusActive, true
	case EventCancelled:
		return SubscriptionStatusCancelled, true
	case EventExpired:
		return SubscriptionStatusExpired, true
	}
	return "", false
}

// WebhookEvent is a provider notification after signature verification and
// payload parsing. Events are transient: they are not persisted, so applying
// one must be idempotent on its own.
type WebhookEvent struct {
	Provider               ProviderName
	Type                   EventType
	ProviderSubscriptionID string
	ProviderEventID        string // provider-side id, for log correlation
	Payload                []byte
}

// ReconcileResult classifies the outcome of applying a webhook event.
type ReconcileResult string

const (
	ReconcileApplied ReconcileResult = "applied"
	ReconcileIgnored ReconcileResult = "ignored"
	ReconcileFailed  ReconcileResult = "failed"
)

// ReconcileOutcome is the result of the webhook reconciler for one event.
type ReconcileOutcome struct {
	Result ReconcileResult
	Reason string // set for ignored/failed outcomes
}
