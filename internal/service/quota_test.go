package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/store"
)

func TestQuotaConsume(t *testing.T) {
	ctx := context.Background()
	freeTier := domain.Entitlement{Limit: 2, IsSubscriber: false}

	t.Run("allows up to the limit then denies", func(t *testing.T) {
		svc := NewQuotaService(store.NewMemoryStore(), testLogger())
		userID := uuid.New()

		for i := 1; i <= 2; i++ {
			decision, err := svc.Consume(ctx, userID, freeTier)
			require.NoError(t, err)
			assert.True(t, decision.Allowed)
			assert.Equal(t, i, decision.Consumed)
		}

		_, err := svc.Consume(ctx, userID, freeTier)
		require.Error(t, err)

		var qerr *domain.QuotaError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))
		assert.Equal(t, 2, qerr.Consumed)
		assert.Equal(t, 2, qerr.Limit)
		assert.Equal(t, 0, qerr.Remaining())
	})

	t.Run("denied attempt leaves counter unchanged", func(t *testing.T) {
		mem := store.NewMemoryStore()
		svc := NewQuotaService(mem, testLogger())
		userID := uuid.New()

		for i := 0; i < 5; i++ {
			svc.Consume(ctx, userID, freeTier)
		}

		counter, err := mem.GetCounter(ctx, userID, "lifetime")
		require.NoError(t, err)
		assert.Equal(t, 2, counter.Consumed)
	})

	t.Run("unlimited entitlement never denies", func(t *testing.T) {
		svc := NewQuotaService(store.NewMemoryStore(), testLogger())
		userID := uuid.New()
		unlimited := domain.Entitlement{
			Limit:        domain.QueryLimitUnlimited,
			IsSubscriber: true,
			PlanID:       domain.PlanEnterprise,
			Frequency:    domain.FrequencyMonthly,
		}

		for i := 0; i < 10; i++ {
			decision, err := svc.Consume(ctx, userID, unlimited)
			require.NoError(t, err)
			assert.True(t, decision.Allowed)
		}
	})
}

func TestQuotaUsage(t *testing.T) {
	ctx := context.Background()
	freeTier := domain.Entitlement{Limit: 2, IsSubscriber: false}

	t.Run("zero before any consumption", func(t *testing.T) {
		svc := NewQuotaService(store.NewMemoryStore(), testLogger())

		decision, err := svc.Usage(ctx, uuid.New(), freeTier)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 0, decision.Consumed)
		assert.Equal(t, 2, decision.Limit)
		assert.Equal(t, 2, decision.Remaining())
	})

	t.Run("does not mutate the counter", func(t *testing.T) {
		mem := store.NewMemoryStore()
		svc := NewQuotaService(mem, testLogger())
		userID := uuid.New()

		_, err := svc.Consume(ctx, userID, freeTier)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			decision, err := svc.Usage(ctx, userID, freeTier)
			require.NoError(t, err)
			assert.Equal(t, 1, decision.Consumed)
		}
	})

	t.Run("reports exhaustion", func(t *testing.T) {
		svc := NewQuotaService(store.NewMemoryStore(), testLogger())
		userID := uuid.New()

		svc.Consume(ctx, userID, freeTier)
		svc.Consume(ctx, userID, freeTier)

		decision, err := svc.Usage(ctx, userID, freeTier)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, 0, decision.Remaining())
	})
}
