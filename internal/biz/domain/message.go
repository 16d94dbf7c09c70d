package domain

import "time"

// StoredMessage is one summarizable unit of chat activity: a plain text
// message, a caption, or a placeholder/transcript for a voice clip.
type StoredMessage struct {
	MessageID int64     `json:"messageId"` // Unique within a chat, monotonically increasing
	Date      time.Time `json:"date"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
}

// SummarySnapshot is an immutable summary result covering all messages
// with id <= UptoMessageID.
type SummarySnapshot struct {
	CreatedAt     time.Time `json:"createdAt"`
	UptoMessageID int64     `json:"uptoMessageId"`
	MessageCount  int       `json:"messageCount"`
	Summary       string    `json:"summary"`
}

// Age returns how old the snapshot is at the given instant.
func (s *SummarySnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// ChatSummaryState holds the per-chat rolling message buffer, the cached
// summary history and the already-summarized cursor.
type ChatSummaryState struct {
	RecentMessages          []StoredMessage   `json:"recentMessages"`
	Summaries               []SummarySnapshot `json:"summaries"`
	LastSummarizedMessageID int64             `json:"lastSummarizedMessageId"`
}

// Append adds a message to the buffer and drops oldest entries beyond max.
func (s *ChatSummaryState) Append(msg StoredMessage, max int) {
	s.RecentMessages = append(s.RecentMessages, msg)
	s.trim(max)
}

// Upsert replaces the buffered message with the same id, or appends.
// Used when a transcript supersedes a voice placeholder.
func (s *ChatSummaryState) Upsert(msg StoredMessage, max int) {
	for i := range s.RecentMessages {
		if s.RecentMessages[i].MessageID == msg.MessageID {
			s.RecentMessages[i] = msg
			s.trim(max)
			return
		}
	}
	s.RecentMessages = append(s.RecentMessages, msg)
	s.trim(max)
}

func (s *ChatSummaryState) trim(max int) {
	if max > 0 && len(s.RecentMessages) > max {
		s.RecentMessages = s.RecentMessages[len(s.RecentMessages)-max:]
	}
}

// Unsummarized returns the buffered messages above the cursor, oldest first.
func (s *ChatSummaryState) Unsummarized() []StoredMessage {
	var out []StoredMessage
	for _, msg := range s.RecentMessages {
		if msg.MessageID > s.LastSummarizedMessageID {
			out = append(out, msg)
		}
	}
	return out
}

// LatestSnapshot returns the newest cached summary, or nil.
func (s *ChatSummaryState) LatestSnapshot() *SummarySnapshot {
	if len(s.Summaries) == 0 {
		return nil
	}
	return &s.Summaries[len(s.Summaries)-1]
}

// ApplySummary records a completed summarization: appends a snapshot,
// trims the snapshot history, advances the cursor to cover the consumed
// messages and filters the buffer down to newer messages. The cursor
// never moves backwards.
func (s *ChatSummaryState) ApplySummary(summary string, consumed []StoredMessage, now time.Time, maxHistory int) SummarySnapshot {
	upto := s.LastSummarizedMessageID
	for _, msg := range consumed {
		if msg.MessageID > upto {
			upto = msg.MessageID
		}
	}

	snapshot := SummarySnapshot{
		CreatedAt:     now,
		UptoMessageID: upto,
		MessageCount:  len(consumed),
		Summary:       summary,
	}
	s.Summaries = append(s.Summaries, snapshot)
	if maxHistory > 0 && len(s.Summaries) > maxHistory {
		s.Summaries = s.Summaries[len(s.Summaries)-maxHistory:]
	}

	s.LastSummarizedMessageID = upto
	kept := s.RecentMessages[:0]
	for _, msg := range s.RecentMessages {
		if msg.MessageID > upto {
			kept = append(kept, msg)
		}
	}
	s.RecentMessages = kept

	return snapshot
}

// ChatStats is the per-chat buffer overview shown in the admin panel.
type ChatStats struct {
	RecentMessages          int   `json:"recent_messages"`
	CachedSummaries         int   `json:"cached_summaries"`
	LastSummarizedMessageID int64 `json:"last_summarized_message_id"`
}
