package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/domain"
)

// MemoryStore is an in-memory Store for tests and development. All methods
// are safe for concurrent use; TryConsume holds the mutex across the
// check-and-increment so it matches the atomicity contract of the SQL
// implementation.
type MemoryStore struct {
	mu            sync.Mutex
	subscriptions map[uuid.UUID]*domain.Subscription
	counters      map[counterKey]*domain.QuotaCounter
	searches      []domain.SearchRecord
}

type counterKey struct {
	userID    uuid.UUID
	periodKey string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[uuid.UUID]*domain.Subscription),
		counters:      make(map[counterKey]*domain.QuotaCounter),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateSubscription(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.Provider == sub.Provider && existing.ProviderSubscriptionID == sub.ProviderSubscriptionID {
			return ErrDuplicate
		}
	}
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSubscriptionByProviderRef(_ context.Context, provider domain.ProviderName, ref string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscriptions {
		if sub.Provider == provider && sub.ProviderSubscriptionID == ref {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) LatestActiveSubscription(_ context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.latest(userID, func(sub *domain.Subscription) bool {
		return sub.Status == domain.SubscriptionStatusActive
	})
}

func (s *MemoryStore) LatestSubscription(_ context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.latest(userID, func(*domain.Subscription) bool { return true })
}

func (s *MemoryStore) latest(userID uuid.UUID, match func(*domain.Subscription) bool) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID != userID || !match(sub) {
			continue
		}
		if best == nil || sub.CreatedAt.After(best.CreatedAt) {
			best = sub
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *MemoryStore) ListPendingOlderThan(_ context.Context, cutoff time.Time) ([]*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subs []*domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.Status == domain.SubscriptionStatusPending && sub.CreatedAt.Before(cutoff) {
			cp := *sub
			subs = append(subs, &cp)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

func (s *MemoryStore) UpdateSubscriptionStatus(_ context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) TryConsume(_ context.Context, userID uuid.UUID, periodKey string, limit int) (domain.QuotaDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey{userID, periodKey}
	counter, ok := s.counters[key]
	if !ok {
		counter = &domain.QuotaCounter{UserID: userID, PeriodKey: periodKey, Limit: limit}
		s.counters[key] = counter
	}
	counter.Limit = limit

	if limit != domain.QueryLimitUnlimited && counter.Consumed >= limit {
		return domain.QuotaDecision{Allowed: false, Consumed: counter.Consumed, Limit: limit}, nil
	}
	counter.Consumed++
	return domain.QuotaDecision{Allowed: true, Consumed: counter.Consumed, Limit: limit}, nil
}

func (s *MemoryStore) GetCounter(_ context.Context, userID uuid.UUID, periodKey string) (*domain.QuotaCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[counterKey{userID, periodKey}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *counter
	return &cp, nil
}

func (s *MemoryStore) InsertSearch(_ context.Context, userID uuid.UUID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searches = append(s.searches, domain.SearchRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) ListSearches(_ context.Context, userID uuid.UUID, limit int) ([]domain.SearchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []domain.SearchRecord
	for i := len(s.searches) - 1; i >= 0 && len(records) < limit; i-- {
		if s.searches[i].UserID == userID {
			records = append(records, s.searches[i])
		}
	}
	return records, nil
}
