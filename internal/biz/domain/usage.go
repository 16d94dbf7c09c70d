package domain

import "time"

// DayKey returns the calendar day for a usage record. Days are resolved
// in UTC so rollover does not depend on the host timezone.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ChatUsage is the per-chat transcription usage for one calendar day.
type ChatUsage struct {
	Date        string `json:"date"` // UTC day, "2006-01-02"
	UsedSeconds int    `json:"usedSeconds"`
}

// SummaryUsageEntry is the per-(chat,user) summary request usage for one
// calendar day. LastRequestAtMS is a millisecond Unix timestamp, zero when
// no request has been made today.
type SummaryUsageEntry struct {
	Date            string `json:"date"`
	Count           int    `json:"count"`
	LastRequestAtMS int64  `json:"lastRequestAt"`
}
