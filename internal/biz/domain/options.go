package domain

// Runtime option keys. Each option is an integer limit with a compiled
// default and inclusive bounds; admins can override values at runtime.
const (
	OptDailyLimitSeconds        = "dailyLimitSeconds"
	OptMaxSummaryMessages       = "maxSummaryMessages"
	OptSummaryCooldownSeconds   = "summaryCommandCooldownSeconds"
	OptSummaryDailyLimitPerUser = "summaryDailyLimitPerUser"
	OptSummaryReuseWindowMin    = "summaryReuseWindowMinutes"
	OptMessageBufferMaxPerChat  = "messageBufferMaxPerChat"
	OptSummaryHistoryMaxPerChat = "summaryHistoryMaxPerChat"
)

// OptionSpec describes one runtime option.
type OptionSpec struct {
	Key     string
	Default int
	Min     int
	Max     int
}

// OptionView is one row of the admin panel listing.
type OptionView struct {
	Key        string `json:"key"`
	Value      int    `json:"value"`
	Default    int    `json:"default"`
	Overridden bool   `json:"overridden"`
}
