package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
)

// History is the per-chat message buffer with the already-summarized
// cursor and the bounded snapshot history. Buffer and history bounds and
// the snapshot reuse window are read from the option registry on every
// operation. Commit is the only way the cursor advances.
type History struct {
	store repo.SnapshotStore
	opts  *Options
	now   func() time.Time

	mu     sync.Mutex
	states map[string]*domain.ChatSummaryState // chatID -> state
}

// NewHistory creates the buffer and loads persisted chat states.
func NewHistory(ctx context.Context, store repo.SnapshotStore, opts *Options) *History {
	states := make(map[string]*domain.ChatSummaryState)
	if _, err := store.Load(ctx, &states); err != nil {
		fmt.Printf("[History] Could not read message history, starting fresh: %v\n", err)
		states = make(map[string]*domain.ChatSummaryState)
	}
	for chatID, state := range states {
		if state == nil {
			states[chatID] = &domain.ChatSummaryState{}
		}
	}

	return &History{
		store: store,
		opts:  opts,
		now:   time.Now,
		states: states,
	}
}

// state returns the chat's state, creating it on first access.
// Caller holds the mutex.
func (h *History) state(chatID string) *domain.ChatSummaryState {
	s, ok := h.states[chatID]
	if !ok {
		s = &domain.ChatSummaryState{}
		h.states[chatID] = s
	}
	return s
}

// Record appends a message to the chat's buffer, trimming oldest entries
// beyond the configured bound.
func (h *History) Record(ctx context.Context, chatID string, msg domain.StoredMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state(chatID).Append(msg, h.opts.Get(domain.OptMessageBufferMaxPerChat))
	if err := h.store.Save(ctx, h.states); err != nil {
		return fmt.Errorf("save message history: %w", err)
	}
	return nil
}

// UpsertTranscript stores a transcript under its message id, replacing the
// voice placeholder recorded when the clip arrived.
func (h *History) UpsertTranscript(ctx context.Context, chatID string, msg domain.StoredMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state(chatID).Upsert(msg, h.opts.Get(domain.OptMessageBufferMaxPerChat))
	if err := h.store.Save(ctx, h.states); err != nil {
		return fmt.Errorf("save message history: %w", err)
	}
	return nil
}

// SummaryInput selects what a summarization would consume: the most recent
// limit unsummarized messages (oldest first) plus the latest snapshot if it
// is still within the reuse window.
func (h *History) SummaryInput(chatID string, limit int) ([]domain.StoredMessage, *domain.SummarySnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	unsummarized := h.state(chatID).Unsummarized()
	var messages []domain.StoredMessage
	if limit > 0 {
		if len(unsummarized) > limit {
			unsummarized = unsummarized[len(unsummarized)-limit:]
		}
		messages = unsummarized
	}

	return messages, h.freshSnapshot(chatID)
}

// RecentSummary returns the latest snapshot if it is younger than the
// reuse window, else nil. The snapshot itself is kept either way.
func (h *History) RecentSummary(chatID string) *domain.SummarySnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freshSnapshot(chatID)
}

// freshSnapshot applies the reuse window. Caller holds the mutex.
func (h *History) freshSnapshot(chatID string) *domain.SummarySnapshot {
	latest := h.state(chatID).LatestSnapshot()
	if latest == nil {
		return nil
	}

	maxAge := time.Duration(h.opts.Get(domain.OptSummaryReuseWindowMin)) * time.Minute
	if latest.Age(h.now()) > maxAge {
		return nil
	}
	snapshot := *latest
	return &snapshot
}

// Commit folds a completed summarization into the chat state: a new
// snapshot is cached, the cursor advances over the consumed messages and
// the buffer keeps only newer messages.
func (h *History) Commit(ctx context.Context, chatID, summary string, consumed []domain.StoredMessage) (domain.SummarySnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := h.state(chatID).ApplySummary(
		summary,
		consumed,
		h.now(),
		h.opts.Get(domain.OptSummaryHistoryMaxPerChat),
	)
	if err := h.store.Save(ctx, h.states); err != nil {
		return domain.SummarySnapshot{}, fmt.Errorf("save message history: %w", err)
	}
	return snapshot, nil
}

// Stats returns the buffer overview for the admin panel.
func (h *History) Stats(chatID string) domain.ChatStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.state(chatID)
	return domain.ChatStats{
		RecentMessages:          len(s.RecentMessages),
		CachedSummaries:         len(s.Summaries),
		LastSummarizedMessageID: s.LastSummarizedMessageID,
	}
}

// Reset clears the chat's buffer, snapshots and cursor.
func (h *History) Reset(ctx context.Context, chatID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.states, chatID)
	if err := h.store.Save(ctx, h.states); err != nil {
		return fmt.Errorf("save message history: %w", err)
	}
	return nil
}
