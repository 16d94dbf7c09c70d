package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/usecase"
	"github.com/anthropics/feishu-voice-summary/internal/conf"
)

var summaryCmdRe = regexp.MustCompile(`^/summary(?:@\w+)?(?:\s+(\d+))?\s*$`)

// handleCommand dispatches slash commands
func (s *BotService) handleCommand(ctx context.Context, msg *IncomingMessage, text string) {
	switch {
	case summaryCmdRe.MatchString(text):
		s.handleSummary(ctx, msg, text)
	case text == "/limit":
		s.handleLimit(ctx, msg)
	case text == "/admin":
		s.handleAdmin(ctx, msg)
	case strings.HasPrefix(text, "/admin_set"):
		s.handleAdminSet(ctx, msg, text)
	case strings.HasPrefix(text, "/admin_reset"):
		s.handleAdminReset(ctx, msg, text)
	default:
		fmt.Printf("[Bot] Ignoring unknown command: %s\n", firstWord(text))
	}
}

// parseSummaryLimit extracts the optional message count from "/summary [N]".
// Returns 0 when no count was given.
func parseSummaryLimit(text string) int {
	m := summaryCmdRe.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// handleSummary runs the /summary command: a status reply once the request
// is admitted, then the result or the denial reason.
func (s *BotService) handleSummary(ctx context.Context, msg *IncomingMessage, text string) {
	requested := parseSummaryLimit(text)

	result, err := s.summarize.Run(ctx, msg.ChatID, msg.SenderID, requested, func(messageCount int) {
		s.reply(ctx, msg.MsgID, conf.Format(s.texts.Summary.Working, map[string]string{
			"count": strconv.Itoa(messageCount),
		}))
	})
	if err != nil {
		fmt.Printf("[Bot] Summary failed: %v\n", err)
		s.reply(ctx, msg.MsgID, s.texts.Summary.SummarizeError)
		return
	}

	switch result.Status {
	case usecase.StatusSummarized:
		header := conf.Format(s.texts.Summary.ResultHeader, map[string]string{
			"count": strconv.Itoa(result.MessageCount),
		})
		s.reply(ctx, msg.MsgID, header+"\n\n"+result.Snapshot.Summary)
	case usecase.StatusReused:
		s.reply(ctx, msg.MsgID, conf.Format(s.texts.Summary.Reused, map[string]string{
			"age":     formatAge(result.Snapshot.Age(time.Now())),
			"summary": result.Snapshot.Summary,
		}))
	case usecase.StatusNothingToDo:
		s.reply(ctx, msg.MsgID, s.texts.Summary.Nothing)
	case usecase.StatusDenied:
		switch result.Denial.Reason {
		case usecase.DenyReasonCooldown:
			s.reply(ctx, msg.MsgID, conf.Format(s.texts.Summary.Cooldown, map[string]string{
				"seconds": strconv.Itoa(result.Denial.RetryAfterSeconds),
			}))
		default:
			s.reply(ctx, msg.MsgID, s.texts.Summary.DailyLimit)
		}
	}
}

// handleLimit replies with the chat's transcription usage card
func (s *BotService) handleLimit(ctx context.Context, msg *IncomingMessage) {
	_, remaining := s.voiceUsage.CanConsume(msg.ChatID)
	limit := s.options.Get(domain.OptDailyLimitSeconds)
	used := limit - remaining

	s.reply(ctx, msg.MsgID, s.limitCard(used, limit))
}

// limitCard renders the usage progress card
func (s *BotService) limitCard(used, limit int) string {
	percent := 0
	if limit > 0 {
		percent = used * 100 / limit
	}
	if percent > 100 {
		percent = 100
	}

	var mood string
	switch {
	case used >= limit:
		mood = s.pick(s.texts.Limit.MoodOver)
	case percent >= 70:
		mood = s.pick(s.texts.Limit.MoodWarning)
	default:
		mood = s.pick(s.texts.Limit.MoodOK)
	}

	return fmt.Sprintf("%s\n%s %d%%\n%s / %s\n%s",
		s.texts.Limit.Header,
		progressBar(used, limit, 20),
		percent,
		formatSeconds(used),
		formatSeconds(limit),
		mood,
	)
}

// progressBar renders a fixed-width bar of filled and empty segments
func progressBar(used, limit, width int) string {
	filled := 0
	if limit > 0 {
		filled = used * width / limit
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// formatSeconds renders seconds as "MMm SSs" or "SSs"
func formatSeconds(sec int) string {
	if sec < 0 {
		sec = 0
	}
	if sec < 60 {
		return fmt.Sprintf("%ds", sec)
	}
	return fmt.Sprintf("%dm %02ds", sec/60, sec%60)
}

// formatAge renders a snapshot age as "Nm" or "Nh Nm"
func formatAge(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 1 {
		return "moments"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// isAdmin checks the sender against the configured admin open_id
func (s *BotService) isAdmin(openID string) bool {
	return s.adminOpenID != "" && openID == s.adminOpenID
}

// handleAdmin replies with the runtime options panel and chat stats
func (s *BotService) handleAdmin(ctx context.Context, msg *IncomingMessage) {
	if !s.isAdmin(msg.SenderID) {
		s.reply(ctx, msg.MsgID, s.texts.Admin.Denied)
		return
	}

	var b strings.Builder
	b.WriteString(s.texts.Admin.PanelHeader)
	b.WriteString("\n")
	for _, opt := range s.options.List() {
		marker := " "
		if opt.Overridden {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s = %d (default %d)\n", marker, opt.Key, opt.Value, opt.Default)
	}

	stats := s.history.Stats(msg.ChatID)
	fmt.Fprintf(&b, "\nThis chat: %d buffered, %d summaries, cursor %d\n",
		stats.RecentMessages, stats.CachedSummaries, stats.LastSummarizedMessageID)

	b.WriteString("\n")
	b.WriteString(s.texts.Admin.Usage)
	s.reply(ctx, msg.MsgID, b.String())
}

// handleAdminSet handles "/admin_set <key> <value>"
func (s *BotService) handleAdminSet(ctx context.Context, msg *IncomingMessage, text string) {
	if !s.isAdmin(msg.SenderID) {
		s.reply(ctx, msg.MsgID, s.texts.Admin.Denied)
		return
	}

	fields := strings.Fields(text)
	if len(fields) != 3 {
		s.reply(ctx, msg.MsgID, s.texts.Admin.Usage)
		return
	}
	key, rawValue := fields[1], fields[2]

	value, err := s.options.Set(ctx, key, rawValue)
	if err != nil {
		s.reply(ctx, msg.MsgID, s.optionError(err, key, rawValue))
		return
	}

	s.reply(ctx, msg.MsgID, conf.Format(s.texts.Admin.SetOK, map[string]string{
		"key":   key,
		"value": strconv.Itoa(value),
	}))
}

// optionError maps option registry errors to user-facing texts
func (s *BotService) optionError(err error, key, rawValue string) string {
	var rangeErr *usecase.OutOfRangeError
	switch {
	case errors.Is(err, usecase.ErrUnknownOption):
		return conf.Format(s.texts.Admin.UnknownKey, map[string]string{"key": key})
	case errors.Is(err, usecase.ErrInvalidNumber):
		return conf.Format(s.texts.Admin.InvalidValue, map[string]string{"value": rawValue})
	case errors.As(err, &rangeErr):
		return conf.Format(s.texts.Admin.OutOfRange, map[string]string{
			"key": key,
			"min": strconv.Itoa(rangeErr.Min),
			"max": strconv.Itoa(rangeErr.Max),
		})
	default:
		return err.Error()
	}
}

// handleAdminReset handles "/admin_reset <key>|all|summary_state|summary_usage [userId]|voice_usage"
func (s *BotService) handleAdminReset(ctx context.Context, msg *IncomingMessage, text string) {
	if !s.isAdmin(msg.SenderID) {
		s.reply(ctx, msg.MsgID, s.texts.Admin.Denied)
		return
	}

	fields := strings.Fields(text)
	if len(fields) < 2 {
		s.reply(ctx, msg.MsgID, s.texts.Admin.Usage)
		return
	}
	target := fields[1]

	var err error
	switch target {
	case "all":
		err = s.options.ResetAll(ctx)
	case "summary_state":
		err = s.history.Reset(ctx, msg.ChatID)
	case "summary_usage":
		if len(fields) >= 3 {
			err = s.quota.ResetUser(ctx, msg.ChatID, fields[2])
		} else {
			err = s.quota.ResetChat(ctx, msg.ChatID)
		}
	case "voice_usage":
		err = s.voiceUsage.Reset(ctx, msg.ChatID)
	default:
		err = s.options.Reset(ctx, target)
		if errors.Is(err, usecase.ErrUnknownOption) {
			s.reply(ctx, msg.MsgID, conf.Format(s.texts.Admin.UnknownKey, map[string]string{"key": target}))
			return
		}
	}
	if err != nil {
		fmt.Printf("[Bot] Admin reset failed: %v\n", err)
		s.reply(ctx, msg.MsgID, err.Error())
		return
	}

	s.reply(ctx, msg.MsgID, conf.Format(s.texts.Admin.ResetOK, map[string]string{"target": target}))
}

func firstWord(text string) string {
	if i := strings.IndexByte(text, ' '); i > 0 {
		return text[:i]
	}
	return text
}
