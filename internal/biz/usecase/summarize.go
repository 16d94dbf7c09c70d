package usecase

import (
	"context"
	"fmt"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
)

// Requested message counts are clamped to [MinSummaryMessages, maxSummaryMessages].
const (
	MinSummaryMessages     = 5
	DefaultSummaryMessages = 25
)

// SummarizeStatus tells the caller how a summary request ended.
type SummarizeStatus int

const (
	// StatusSummarized means the external summarizer ran and the result
	// was committed.
	StatusSummarized SummarizeStatus = iota
	// StatusReused means a cached snapshot was returned without an
	// external call and without spending quota.
	StatusReused
	// StatusNothingToDo means no unsummarized messages and no fresh cache.
	StatusNothingToDo
	// StatusDenied means the request ledger refused the request.
	StatusDenied
)

// SummarizeResult is the outcome of running one summary request.
type SummarizeResult struct {
	Status       SummarizeStatus
	Snapshot     *domain.SummarySnapshot // set for Summarized and Reused
	MessageCount int                     // messages sent to the summarizer
	Denial       QuotaDecision           // set when Status is Denied
}

// Summarize coordinates one summary request across the buffer, the request
// ledger and the external summarizer.
type Summarize struct {
	history    *History
	quota      *SummaryQuota
	opts       *Options
	summarizer repo.Summarizer
}

// NewSummarize creates the orchestrator.
func NewSummarize(history *History, quota *SummaryQuota, opts *Options, summarizer repo.Summarizer) *Summarize {
	return &Summarize{
		history:    history,
		quota:      quota,
		opts:       opts,
		summarizer: summarizer,
	}
}

// ClampLimit normalizes a requested message count; values <= 0 select the
// default.
func (s *Summarize) ClampLimit(requested int) int {
	if requested <= 0 {
		requested = DefaultSummaryMessages
	}
	if max := s.opts.Get(domain.OptMaxSummaryMessages); requested > max {
		requested = max
	}
	if requested < MinSummaryMessages {
		requested = MinSummaryMessages
	}
	return requested
}

// Run executes one summary request for the chat. onAccepted, when non-nil,
// is called after quota admission with the number of messages about to be
// summarized, before the external call starts.
//
// A failed external call returns an error with the buffer and cursor
// untouched; the quota unit spent on admission is not refunded.
func (s *Summarize) Run(ctx context.Context, chatID, userID string, requestedLimit int, onAccepted func(messageCount int)) (*SummarizeResult, error) {
	limit := s.ClampLimit(requestedLimit)
	messages, previous := s.history.SummaryInput(chatID, limit)

	if len(messages) == 0 {
		if previous != nil {
			return &SummarizeResult{Status: StatusReused, Snapshot: previous}, nil
		}
		return &SummarizeResult{Status: StatusNothingToDo}, nil
	}

	decision, err := s.quota.CheckAndConsume(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return &SummarizeResult{Status: StatusDenied, Denial: decision}, nil
	}

	if onAccepted != nil {
		onAccepted(len(messages))
	}

	previousText := ""
	if previous != nil {
		previousText = previous.Summary
	}

	summary, err := s.summarizer.Summarize(ctx, messages, previousText)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	snapshot, err := s.history.Commit(ctx, chatID, summary, messages)
	if err != nil {
		return nil, err
	}

	return &SummarizeResult{
		Status:       StatusSummarized,
		Snapshot:     &snapshot,
		MessageCount: len(messages),
	}, nil
}
