package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
)

// VoiceUsage is the per-chat daily transcription ledger. A chat's entry
// resets lazily the first time it is touched on a new UTC day; there is no
// scheduled sweep. The daily limit is read from the option registry on
// every call, never cached.
type VoiceUsage struct {
	store repo.SnapshotStore
	opts  *Options
	now   func() time.Time

	mu    sync.Mutex
	usage map[string]*domain.ChatUsage // chatID -> today's usage
}

// NewVoiceUsage creates the ledger and loads persisted usage.
// An unreadable file is logged and treated as empty.
func NewVoiceUsage(ctx context.Context, store repo.SnapshotStore, opts *Options) *VoiceUsage {
	usage := make(map[string]*domain.ChatUsage)
	if _, err := store.Load(ctx, &usage); err != nil {
		fmt.Printf("[VoiceUsage] Could not read usage file, starting fresh: %v\n", err)
		usage = make(map[string]*domain.ChatUsage)
	}

	return &VoiceUsage{
		store: store,
		opts:  opts,
		now:   time.Now,
		usage: usage,
	}
}

// entry returns today's record for the chat, resetting a stale one.
// Caller holds the mutex.
func (u *VoiceUsage) entry(chatID string) *domain.ChatUsage {
	day := domain.DayKey(u.now())
	e, ok := u.usage[chatID]
	if !ok || e.Date != day {
		e = &domain.ChatUsage{Date: day}
		u.usage[chatID] = e
	}
	return e
}

// CanConsume reports whether the chat still has transcription budget today
// and how many seconds remain.
func (u *VoiceUsage) CanConsume(chatID string) (allowed bool, remainingSeconds int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	limit := u.opts.Get(domain.OptDailyLimitSeconds)
	remaining := limit - u.entry(chatID).UsedSeconds
	if remaining < 0 {
		remaining = 0
	}
	return remaining > 0, remaining
}

// Record charges durationSeconds against today's budget, unconditionally.
// The clip that straddles the limit is charged in full; warning the user
// beforehand is the caller's responsibility.
func (u *VoiceUsage) Record(ctx context.Context, chatID string, durationSeconds int) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.entry(chatID).UsedSeconds += durationSeconds
	if err := u.store.Save(ctx, u.usage); err != nil {
		return fmt.Errorf("save voice usage: %w", err)
	}
	return nil
}

// Reset deletes the chat's ledger entry.
func (u *VoiceUsage) Reset(ctx context.Context, chatID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	delete(u.usage, chatID)
	if err := u.store.Save(ctx, u.usage); err != nil {
		return fmt.Errorf("save voice usage: %w", err)
	}
	return nil
}
