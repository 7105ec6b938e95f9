// Package worker contains background processing: the best-effort search
// history recorder and the pending-subscription reconciliation poll.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/store"
)

// insertTimeout bounds a single history insert so a slow database cannot
// back up the drain loop.
const insertTimeout = 5 * time.Second

type historyEntry struct {
	userID   uuid.UUID
	username string
}

// HistoryRecorder drains search history entries to the store off the
// request path. Recording is best-effort: when the buffer is full the
// entry is dropped and counted, never blocked on.
type HistoryRecorder struct {
	history store.HistoryStore
	entries chan historyEntry
	logger  *slog.Logger

	wg      sync.WaitGroup
	stopCh  chan struct{}
	dropped int64
	mu      sync.Mutex
}

// NewHistoryRecorder creates a recorder with the given buffer size.
// The recorder must be started with Start() and stopped with Stop().
func NewHistoryRecorder(history store.HistoryStore, bufferSize int, logger *slog.Logger) *HistoryRecorder {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &HistoryRecorder{
		history: history,
		entries: make(chan historyEntry, bufferSize),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Record enqueues a history entry without blocking. Entries are dropped
// when the buffer is full.
func (r *HistoryRecorder) Record(userID uuid.UUID, username string) {
	select {
	case r.entries <- historyEntry{userID: userID, username: username}:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.logger.Warn("search history entry dropped",
			"user_id", userID,
			"dropped_total", dropped,
		)
	}
}

// Start begins draining entries to the store.
func (r *HistoryRecorder) Start() {
	r.wg.Add(1)
	go r.run()
	r.logger.Info("history recorder started", "buffer", cap(r.entries))
}

// Stop drains buffered entries and waits for the loop to finish.
func (r *HistoryRecorder) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("history recorder stopped")
}

func (r *HistoryRecorder) run() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.entries:
			r.insert(entry)
		case <-r.stopCh:
			// Drain what is already buffered before exiting.
			for {
				select {
				case entry := <-r.entries:
					r.insert(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *HistoryRecorder) insert(entry historyEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := r.history.InsertSearch(ctx, entry.userID, entry.username); err != nil {
		// Best-effort log: the query itself already succeeded.
		r.logger.Warn("failed to record search history",
			"user_id", entry.userID,
			"error", err,
		)
	}
}
