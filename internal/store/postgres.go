package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/octorank/octorank/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// PostgresStore implements Store against PostgreSQL via database/sql with
// the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore on an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// =============================================================================
// Subscriptions
// =============================================================================

const subscriptionColumns = `id, user_id, plan_id, frequency, status, provider, provider_subscription_id, query_limit, price_cents, created_at, updated_at`

func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, frequency, status, provider, provider_subscription_id, query_limit, price_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.UserID, sub.PlanID, sub.Frequency, sub.Status,
		sub.Provider, sub.ProviderSubscriptionID, sub.QueryLimit, sub.PriceCents,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubscriptionByProviderRef(ctx context.Context, provider domain.ProviderName, ref string) (*domain.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE provider = $1 AND provider_subscription_id = $2`,
		provider, ref,
	)
	return scanSubscription(row)
}

func (s *PostgresStore) LatestActiveSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, domain.SubscriptionStatusActive,
	)
	return scanSubscription(row)
}

func (s *PostgresStore) LatestSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		userID,
	)
	return scanSubscription(row)
}

func (s *PostgresStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC`,
		domain.SubscriptionStatusPending, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStore) UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $1, updated_at = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Frequency, &sub.Status,
		&sub.Provider, &sub.ProviderSubscriptionID, &sub.QueryLimit, &sub.PriceCents,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &sub, nil
}

// =============================================================================
// Quota counters
// =============================================================================

// TryConsume performs the check-and-increment as a single conditional UPDATE
// so the ceiling check and the increment are one atomic statement. The
// preceding upsert only guarantees the row exists; it never increments.
func (s *PostgresStore) TryConsume(ctx context.Context, userID uuid.UUID, periodKey string, limit int) (domain.QuotaDecision, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_counters (user_id, period_key, consumed, query_limit)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id, period_key) DO NOTHING`,
		userID, periodKey, limit,
	)
	if err != nil {
		return domain.QuotaDecision{}, fmt.Errorf("ensure quota counter: %w", err)
	}

	var consumed int
	err = s.db.QueryRowContext(ctx, `
		UPDATE quota_counters
		SET consumed = consumed + 1, query_limit = $3
		WHERE user_id = $1 AND period_key = $2
		  AND ($3 = -1 OR consumed < $3)
		RETURNING consumed`,
		userID, periodKey, limit,
	).Scan(&consumed)
	if errors.Is(err, sql.ErrNoRows) {
		// Denied: read the counter for client display without mutating it.
		counter, err := s.GetCounter(ctx, userID, periodKey)
		if err != nil {
			return domain.QuotaDecision{}, err
		}
		return domain.QuotaDecision{Allowed: false, Consumed: counter.Consumed, Limit: limit}, nil
	}
	if err != nil {
		return domain.QuotaDecision{}, fmt.Errorf("consume quota: %w", err)
	}

	return domain.QuotaDecision{Allowed: true, Consumed: consumed, Limit: limit}, nil
}

func (s *PostgresStore) GetCounter(ctx context.Context, userID uuid.UUID, periodKey string) (*domain.QuotaCounter, error) {
	var counter domain.QuotaCounter
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, period_key, consumed, query_limit
		FROM quota_counters
		WHERE user_id = $1 AND period_key = $2`,
		userID, periodKey,
	).Scan(&counter.UserID, &counter.PeriodKey, &counter.Consumed, &counter.Limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quota counter: %w", err)
	}
	return &counter, nil
}

// =============================================================================
// Search history
// =============================================================================

func (s *PostgresStore) InsertSearch(ctx context.Context, userID uuid.UUID, username string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO searches (id, user_id, username, created_at)
		VALUES ($1, $2, $3, now())`,
		uuid.New(), userID, username,
	)
	if err != nil {
		return fmt.Errorf("insert search: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSearches(ctx context.Context, userID uuid.UUID, limit int) ([]domain.SearchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, username, created_at
		FROM searches
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	var records []domain.SearchRecord
	for rows.Next() {
		var rec domain.SearchRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
