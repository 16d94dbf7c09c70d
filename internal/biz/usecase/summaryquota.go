package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
)

// Denial reasons for summary requests.
const (
	DenyReasonCooldown   = "cooldown"
	DenyReasonDailyLimit = "daily_limit"
)

// QuotaDecision is the outcome of a summary request admission.
type QuotaDecision struct {
	Allowed           bool
	Reason            string // cooldown or daily_limit when denied
	RetryAfterSeconds int    // set for cooldown denials
}

// SummaryQuota is the per-(chat,user) daily summary request ledger with a
// per-request cooldown. Admission and consumption are a single step: a
// caller that gets Allowed has already spent one unit. Entries reset lazily
// on the first touch of a new UTC day. Cooldown and cap are read from the
// option registry on every call.
type SummaryQuota struct {
	store repo.SnapshotStore
	opts  *Options
	now   func() time.Time

	mu    sync.Mutex
	usage map[string]*domain.SummaryUsageEntry // "chatID:userID" -> today's usage
}

// NewSummaryQuota creates the ledger and loads persisted usage.
func NewSummaryQuota(ctx context.Context, store repo.SnapshotStore, opts *Options) *SummaryQuota {
	usage := make(map[string]*domain.SummaryUsageEntry)
	if _, err := store.Load(ctx, &usage); err != nil {
		fmt.Printf("[SummaryQuota] Could not read usage file, starting fresh: %v\n", err)
		usage = make(map[string]*domain.SummaryUsageEntry)
	}

	return &SummaryQuota{
		store: store,
		opts:  opts,
		now:   time.Now,
		usage: usage,
	}
}

func quotaKey(chatID, userID string) string {
	return chatID + ":" + userID
}

// entry returns today's record for the pair, resetting a stale one.
// Caller holds the mutex.
func (q *SummaryQuota) entry(chatID, userID string) *domain.SummaryUsageEntry {
	key := quotaKey(chatID, userID)
	day := domain.DayKey(q.now())
	e, ok := q.usage[key]
	if !ok || e.Date != day {
		e = &domain.SummaryUsageEntry{Date: day}
		q.usage[key] = e
	}
	return e
}

// CheckAndConsume admits or denies one summary request. The cooldown is
// checked first, then the daily cap; on admission the counter and the
// last-request timestamp are updated and persisted in the same step.
func (q *SummaryQuota) CheckAndConsume(ctx context.Context, chatID, userID string) (QuotaDecision, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.entry(chatID, userID)
	now := q.now()
	cooldownMS := int64(q.opts.Get(domain.OptSummaryCooldownSeconds)) * 1000
	dailyLimit := q.opts.Get(domain.OptSummaryDailyLimitPerUser)

	if e.LastRequestAtMS > 0 {
		elapsedMS := now.UnixMilli() - e.LastRequestAtMS
		if elapsedMS < cooldownMS {
			retry := (cooldownMS - elapsedMS + 999) / 1000
			return QuotaDecision{
				Allowed:           false,
				Reason:            DenyReasonCooldown,
				RetryAfterSeconds: int(retry),
			}, nil
		}
	}

	if e.Count >= dailyLimit {
		return QuotaDecision{Allowed: false, Reason: DenyReasonDailyLimit}, nil
	}

	e.Count++
	e.LastRequestAtMS = now.UnixMilli()
	if err := q.store.Save(ctx, q.usage); err != nil {
		return QuotaDecision{}, fmt.Errorf("save summary usage: %w", err)
	}
	return QuotaDecision{Allowed: true}, nil
}

// ResetChat deletes every entry belonging to the chat.
func (q *SummaryQuota) ResetChat(ctx context.Context, chatID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	prefix := chatID + ":"
	for key := range q.usage {
		if strings.HasPrefix(key, prefix) {
			delete(q.usage, key)
		}
	}
	if err := q.store.Save(ctx, q.usage); err != nil {
		return fmt.Errorf("save summary usage: %w", err)
	}
	return nil
}

// ResetUser deletes the entry for one (chat,user) pair.
func (q *SummaryQuota) ResetUser(ctx context.Context, chatID, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.usage, quotaKey(chatID, userID))
	if err := q.store.Save(ctx, q.usage); err != nil {
		return fmt.Errorf("save summary usage: %w", err)
	}
	return nil
}
