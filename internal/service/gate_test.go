package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/scoring/mock"
	"github.com/octorank/octorank/internal/store"
)

func newGate(t *testing.T) (GateService, *mock.Oracle, *recorderSpy, store.Store) {
	t.Helper()
	mem := store.NewMemoryStore()
	oracle := mock.New()
	recorder := &recorderSpy{}
	gate := NewGateService(
		NewEntitlementService(mem, testLogger()),
		NewQuotaService(mem, testLogger()),
		oracle,
		recorder,
		testLogger(),
	)
	return gate, oracle, recorder, mem
}

func TestHandleScoreQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path returns score and counts", func(t *testing.T) {
		gate, oracle, recorder, _ := newGate(t)
		userID := uuid.New()

		result, err := gate.HandleScoreQuery(ctx, userID, "torvalds")
		require.NoError(t, err)

		assert.Equal(t, "torvalds", result.Score.Username)
		assert.Equal(t, 1, result.Decision.Consumed)
		assert.Equal(t, domain.FreeTierQueryLimit, result.Decision.Limit)
		assert.Equal(t, 1, oracle.ScoreCalls)
		assert.Equal(t, []string{"torvalds"}, recorder.recorded())
	})

	t.Run("exhausted quota never reaches the oracle", func(t *testing.T) {
		gate, oracle, _, _ := newGate(t)
		userID := uuid.New()

		for i := 0; i < domain.FreeTierQueryLimit; i++ {
			_, err := gate.HandleScoreQuery(ctx, userID, "torvalds")
			require.NoError(t, err)
		}

		_, err := gate.HandleScoreQuery(ctx, userID, "torvalds")
		require.Error(t, err)
		assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))
		assert.Equal(t, domain.FreeTierQueryLimit, oracle.ScoreCalls)
	})

	t.Run("oracle failure does not refund the unit", func(t *testing.T) {
		gate, oracle, recorder, mem := newGate(t)
		userID := uuid.New()

		oracle.ScoreError = domain.Upstream(errors.New("boom"), "scoring.Score", "scoring engine error")

		_, err := gate.HandleScoreQuery(ctx, userID, "torvalds")
		require.Error(t, err)
		assert.Equal(t, domain.EUPSTREAM, domain.ErrorCode(err))
		assert.Empty(t, recorder.recorded())

		counter, err := mem.GetCounter(ctx, userID, "lifetime")
		require.NoError(t, err)
		assert.Equal(t, 1, counter.Consumed)
	})

	t.Run("invalid usernames rejected before any spend", func(t *testing.T) {
		gate, oracle, _, mem := newGate(t)
		userID := uuid.New()

		for _, username := range []string{"", "-leading", "trailing-", "has--double", "has space", "way-too-long-for-a-github-username-over-39-chars"} {
			_, err := gate.HandleScoreQuery(ctx, userID, username)
			require.Error(t, err, "username %q", username)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		}
		assert.Zero(t, oracle.ScoreCalls)

		_, err := mem.GetCounter(ctx, userID, "lifetime")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestGateLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("reports standing without consuming", func(t *testing.T) {
		gate, _, _, _ := newGate(t)
		userID := uuid.New()

		for i := 0; i < 3; i++ {
			ent, decision, err := gate.Limits(ctx, userID)
			require.NoError(t, err)
			assert.False(t, ent.IsSubscriber)
			assert.Equal(t, 0, decision.Consumed)
			assert.True(t, decision.Allowed)
		}
	})

	t.Run("reflects subscriber entitlement", func(t *testing.T) {
		mem := store.NewMemoryStore()
		userID := uuid.New()
		_, err := seedSubscription(ctx, mem, userID, domain.SubscriptionStatusActive, domain.ProviderStripe, "sub_lim")
		require.NoError(t, err)

		gate := NewGateService(
			NewEntitlementService(mem, testLogger()),
			NewQuotaService(mem, testLogger()),
			mock.New(),
			nil,
			testLogger(),
		)

		ent, decision, err := gate.Limits(ctx, userID)
		require.NoError(t, err)
		assert.True(t, ent.IsSubscriber)
		assert.Equal(t, 100, decision.Limit)
	})
}
