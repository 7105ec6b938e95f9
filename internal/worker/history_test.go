package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octorank/octorank/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestHistoryRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("records queued entries", func(t *testing.T) {
		mem := store.NewMemoryStore()
		rec := NewHistoryRecorder(mem, 16, testLogger())
		rec.Start()

		userID := uuid.New()
		rec.Record(userID, "torvalds")
		rec.Record(userID, "bradfitz")

		rec.Stop()

		records, err := mem.ListSearches(ctx, userID, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		// Newest first.
		assert.Equal(t, "bradfitz", records[0].Username)
		assert.Equal(t, "torvalds", records[1].Username)
	})

	t.Run("drops instead of blocking when buffer is full", func(t *testing.T) {
		mem := store.NewMemoryStore()
		rec := NewHistoryRecorder(mem, 1, testLogger())
		// Not started: the buffer never drains.

		userID := uuid.New()
		done := make(chan struct{})
		go func() {
			for i := 0; i < 50; i++ {
				rec.Record(userID, "torvalds")
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Record blocked on a full buffer")
		}
	})

	t.Run("stop drains the buffer", func(t *testing.T) {
		mem := store.NewMemoryStore()
		rec := NewHistoryRecorder(mem, 16, testLogger())
		userID := uuid.New()

		// Queue before starting so entries sit in the buffer.
		rec.Record(userID, "torvalds")
		rec.Start()
		rec.Stop()

		records, err := mem.ListSearches(ctx, userID, 10)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}
