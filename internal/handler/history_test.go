package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octorank/octorank/internal/store"
)

func TestHistoryList(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		h := NewHistoryHandler(store.NewMemoryStore(), testLogger())
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/search-history", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns own searches newest first", func(t *testing.T) {
		mem := store.NewMemoryStore()
		userID := uuid.New()
		otherID := uuid.New()
		ctx := context.Background()
		require.NoError(t, mem.InsertSearch(ctx, userID, "torvalds"))
		require.NoError(t, mem.InsertSearch(ctx, userID, "bradfitz"))
		require.NoError(t, mem.InsertSearch(ctx, otherID, "rsc"))

		h := NewHistoryHandler(mem, testLogger())
		rec := httptest.NewRecorder()
		h.List(rec, authedRequest(http.MethodGet, "/api/search-history", "", userID))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Searches []struct {
				Username string `json:"username"`
			} `json:"searches"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Searches, 2)
		assert.Equal(t, "bradfitz", body.Searches[0].Username)
		assert.Equal(t, "torvalds", body.Searches[1].Username)
	})

	t.Run("honors limit parameter", func(t *testing.T) {
		mem := store.NewMemoryStore()
		userID := uuid.New()
		ctx := context.Background()
		for _, name := range []string{"a1", "b2", "c3"} {
			require.NoError(t, mem.InsertSearch(ctx, userID, name))
		}

		h := NewHistoryHandler(mem, testLogger())
		rec := httptest.NewRecorder()
		h.List(rec, authedRequest(http.MethodGet, "/api/search-history?limit=2", "", userID))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Searches []json.RawMessage `json:"searches"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Searches, 2)
	})

	t.Run("rejects bad limit", func(t *testing.T) {
		h := NewHistoryHandler(store.NewMemoryStore(), testLogger())
		rec := httptest.NewRecorder()
		h.List(rec, authedRequest(http.MethodGet, "/api/search-history?limit=zero", "", uuid.New()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		h := NewHistoryHandler(store.NewMemoryStore(), testLogger())
		rec := httptest.NewRecorder()
		h.List(rec, authedRequest(http.MethodGet, "/api/search-history", "", uuid.New()))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"searches":[]}`, rec.Body.String())
	})
}
