package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/octorank/octorank/internal/billing"
	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/metrics"
	"github.com/octorank/octorank/internal/service"
	"github.com/octorank/octorank/internal/store"
)

// ReconcilePoller periodically re-checks provider-side status for
// subscriptions stuck in pending, covering webhooks that never arrived.
type ReconcilePoller struct {
	subs       store.SubscriptionStore
	providers  *billing.Registry
	reconciler service.ReconcilerService
	interval   time.Duration
	pendingAge time.Duration
	logger     *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewReconcilePoller creates a poller that runs every interval and
// inspects pending subscriptions older than pendingAge.
func NewReconcilePoller(
	subs store.SubscriptionStore,
	providers *billing.Registry,
	reconciler service.ReconcilerService,
	interval, pendingAge time.Duration,
	logger *slog.Logger,
) *ReconcilePoller {
	return &ReconcilePoller{
		subs:       subs,
		providers:  providers,
		reconciler: reconciler,
		interval:   interval,
		pendingAge: pendingAge,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the poll loop.
func (p *ReconcilePoller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
	p.logger.Info("reconcile poller started",
		"interval", p.interval,
		"pending_age", p.pendingAge,
	)
}

// Stop signals the loop to exit and waits for it.
func (p *ReconcilePoller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("reconcile poller stopped")
}

func (p *ReconcilePoller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.runOnce(ctx); err != nil {
				p.logger.Error("reconcile poll failed", "error", err)
				metrics.ReconcileRunsTotal.WithLabelValues("failed").Inc()
			} else {
				metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
			}
		}
	}
}

// runOnce inspects all stale pending subscriptions.
func (p *ReconcilePoller) runOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-p.pendingAge)
	pending, err := p.subs.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, sub := range pending {
		if err := p.reconcileOne(ctx, sub); err != nil {
			// One bad subscription must not starve the rest.
			p.logger.Warn("failed to reconcile pending subscription",
				"subscription_id", sub.ID,
				"provider", sub.Provider,
				"error", err,
			)
		}
	}
	return nil
}

func (p *ReconcilePoller) reconcileOne(ctx context.Context, sub *domain.Subscription) error {
	provider, ok := p.providers.Lookup(sub.Provider)
	if !ok {
		p.logger.Warn("pending subscription references unconfigured provider",
			"subscription_id", sub.ID,
			"provider", sub.Provider,
		)
		return nil
	}

	var status domain.SubscriptionStatus
	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		status, err = provider.SubscriptionStatus(ctx, sub.ProviderSubscriptionID)
		if err != nil {
			metrics.ProviderErrorsTotal.WithLabelValues(string(sub.Provider)).Inc()
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if status == domain.SubscriptionStatusPending {
		// Still waiting on the buyer. Nothing to apply.
		return nil
	}

	event := &domain.WebhookEvent{
		Provider:               sub.Provider,
		Type:                   eventForStatus(status),
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		ProviderEventID:        "reconcile-poll",
	}

	outcome, err := p.reconciler.ApplyEvent(ctx, event)
	if err != nil {
		return err
	}

	p.logger.Info("pending subscription reconciled",
		"subscription_id", sub.ID,
		"provider", sub.Provider,
		"provider_status", status,
		"result", outcome.Result,
	)
	return nil
}

// eventForStatus maps a provider-reported status to the lifecycle event
// that drives toward it.
func eventForStatus(status domain.SubscriptionStatus) domain.EventType {
	switch status {
	case domain.SubscriptionStatusActive:
		return domain.EventActivated
	case domain.SubscriptionStatusCancelled:
		return domain.EventCancelled
	default:
		return domain.EventExpired
	}
}
