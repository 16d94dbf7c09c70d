package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
	"github.com/anthropics/feishu-voice-summary/internal/biz/usecase"
	"github.com/anthropics/feishu-voice-summary/internal/conf"
)

// nearLimitWarnSeconds triggers the low-budget warning after a clip leaves
// less than this much transcription time for the day.
const nearLimitWarnSeconds = 60

// MemberNames resolves chat member display names, keyed by open_id
type MemberNames interface {
	GetChatMembers(chatID string) (map[string]string, error)
}

// IncomingMessage is a normalized chat message handed to the bot service
type IncomingMessage struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, audio, media
	Content    string
	SenderID   string
	SenderName string
	CreateTime int64 // milliseconds Unix timestamp, used as the buffer message id
	FileKey    string
	DurationMS int
}

// BotService routes incoming messages: plain text is tracked in the chat
// buffer, voice clips go through the transcription pipeline and commands
// are dispatched to their handlers.
type BotService struct {
	messenger  repo.MessengerRepo
	members    MemberNames
	history    *usecase.History
	voiceUsage *usecase.VoiceUsage
	quota      *usecase.SummaryQuota
	options    *usecase.Options
	summarize  *usecase.Summarize
	transcribe *usecase.Transcribe
	texts      *conf.TextsConfig

	adminOpenID string

	// Member name cache, per chat
	namesMu  sync.Mutex
	names    map[string]map[string]string
	namesAt  map[string]time.Time
	namesTTL time.Duration

	rng *rand.Rand
}

// NewBotService creates the bot service
func NewBotService(
	messenger repo.MessengerRepo,
	members MemberNames,
	history *usecase.History,
	voiceUsage *usecase.VoiceUsage,
	quota *usecase.SummaryQuota,
	options *usecase.Options,
	summarize *usecase.Summarize,
	transcribe *usecase.Transcribe,
	texts *conf.TextsConfig,
	adminOpenID string,
) *BotService {
	return &BotService{
		messenger:   messenger,
		members:     members,
		history:     history,
		voiceUsage:  voiceUsage,
		quota:       quota,
		options:     options,
		summarize:   summarize,
		transcribe:  transcribe,
		texts:       texts,
		adminOpenID: adminOpenID,
		names:       make(map[string]map[string]string),
		namesAt:     make(map[string]time.Time),
		namesTTL:    10 * time.Minute,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// HandleMessage processes one incoming message
func (s *BotService) HandleMessage(ctx context.Context, msg *IncomingMessage) {
	if msg.SenderName == "" {
		msg.SenderName = s.senderName(msg.ChatID, msg.SenderID)
	}

	switch msg.MsgType {
	case "text":
		text := strings.TrimSpace(msg.Content)
		if strings.HasPrefix(text, "/") {
			s.handleCommand(ctx, msg, text)
			return
		}
		s.trackText(ctx, msg, msg.Content)
	case "audio":
		s.handleVoice(ctx, msg, "voice")
	case "media":
		s.handleVoice(ctx, msg, "video")
	}
}

// trackText records a plain message in the chat buffer. Commands never
// reach here.
func (s *BotService) trackText(ctx context.Context, msg *IncomingMessage, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	err := s.history.Record(ctx, msg.ChatID, domain.StoredMessage{
		MessageID: msg.CreateTime,
		Date:      time.UnixMilli(msg.CreateTime),
		UserID:    msg.SenderID,
		UserName:  msg.SenderName,
		Text:      text,
	})
	if err != nil {
		fmt.Printf("[Bot] Failed to track message: %v\n", err)
	}
}

// handleVoice runs one voice or video clip through the transcription flow:
// track a placeholder, check the daily budget, transcribe, reply with the
// transcript and warn when the budget runs low.
func (s *BotService) handleVoice(ctx context.Context, msg *IncomingMessage, kind string) {
	durationSec := (msg.DurationMS + 999) / 1000

	// Placeholder so the clip holds its place in the buffer even if
	// transcription is denied or fails
	s.trackText(ctx, msg, fmt.Sprintf("[%s %ds]", kind, durationSec))

	allowed, remaining := s.voiceUsage.CanConsume(msg.ChatID)
	if !allowed {
		s.reply(ctx, msg.MsgID, s.pick(s.texts.Voice.LimitExceeded))
		return
	}

	// The straddling clip is still transcribed and charged in full
	if durationSec > remaining {
		s.send(ctx, msg.ChatID, conf.Format(s.texts.Voice.NearLimit, map[string]string{
			"remaining": fmt.Sprintf("%d", remaining),
		}))
	}

	s.reply(ctx, msg.MsgID, s.pick(s.texts.Voice.Processing))

	text, err := s.transcribe.Run(ctx, usecase.VoiceClip{
		ChatID:          msg.ChatID,
		MsgID:           msg.MsgID,
		MessageID:       msg.CreateTime,
		FileKey:         msg.FileKey,
		DurationSeconds: durationSec,
		UserID:          msg.SenderID,
		UserName:        msg.SenderName,
		Date:            time.UnixMilli(msg.CreateTime),
	})
	if err != nil {
		fmt.Printf("[Bot] Transcription failed: %v\n", err)
		s.reply(ctx, msg.MsgID, s.texts.Voice.TranscribeError)
		return
	}

	s.reply(ctx, msg.MsgID, fmt.Sprintf("%s: %s", msg.SenderName, text))

	if left := remaining - durationSec; left > 0 && left < nearLimitWarnSeconds {
		s.send(ctx, msg.ChatID, conf.Format(s.texts.Voice.NearLimit, map[string]string{
			"remaining": fmt.Sprintf("%d", left),
		}))
	}
}

// senderName resolves a display name from the cached member list, falling
// back to a trimmed open_id.
func (s *BotService) senderName(chatID, openID string) string {
	if openID == "" {
		return "User"
	}

	s.namesMu.Lock()
	names, ok := s.names[chatID]
	fetchedAt := s.namesAt[chatID]
	s.namesMu.Unlock()

	if !ok || time.Since(fetchedAt) > s.namesTTL {
		fetched, err := s.members.GetChatMembers(chatID)
		if err != nil {
			fmt.Printf("[Bot] Failed to fetch chat members: %v\n", err)
		} else {
			s.namesMu.Lock()
			s.names[chatID] = fetched
			s.namesAt[chatID] = time.Now()
			s.namesMu.Unlock()
			names = fetched
		}
	}

	if name, ok := names[openID]; ok && name != "" {
		return name
	}
	if len(openID) > 8 {
		return "User-" + openID[len(openID)-6:]
	}
	return openID
}

// pick returns a random element of a non-empty text pool
func (s *BotService) pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[s.rng.Intn(len(pool))]
}

func (s *BotService) reply(ctx context.Context, msgID, text string) {
	if err := s.messenger.ReplyText(ctx, msgID, text); err != nil {
		fmt.Printf("[Bot] Failed to reply: %v\n", err)
	}
}

func (s *BotService) send(ctx context.Context, chatID, text string) {
	if err := s.messenger.SendText(ctx, chatID, text); err != nil {
		fmt.Printf("[Bot] Failed to send: %v\n", err)
	}
}
