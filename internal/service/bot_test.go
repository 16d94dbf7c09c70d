package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/usecase"
	"github.com/anthropics/feishu-voice-summary/internal/conf"
)

// memStore is an in-memory snapshot store
type memStore struct {
	data []byte
}

func (m *memStore) Load(ctx context.Context, v any) (bool, error) {
	if m.data == nil {
		return false, nil
	}
	return true, json.Unmarshal(m.data, v)
}

func (m *memStore) Save(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data = b
	return nil
}

// mockMessenger records outgoing messages
type mockMessenger struct {
	sent    []string
	replies []string
	audio   string
}

func (m *mockMessenger) SendText(ctx context.Context, chatID, text string) error {
	m.sent = append(m.sent, text)
	return nil
}

func (m *mockMessenger) ReplyText(ctx context.Context, msgID, text string) error {
	m.replies = append(m.replies, text)
	return nil
}

func (m *mockMessenger) DownloadAudio(ctx context.Context, msgID, fileKey string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.audio)), nil
}

// mockMembers resolves names from a fixed map
type mockMembers struct {
	names map[string]string
}

func (m *mockMembers) GetChatMembers(chatID string) (map[string]string, error) {
	return m.names, nil
}

// mockSummarizer returns a fixed summary
type mockSummarizer struct {
	calls  int
	result string
}

func (m *mockSummarizer) Summarize(ctx context.Context, messages []domain.StoredMessage, previousSummary string) (string, error) {
	m.calls++
	return m.result, nil
}

// mockTranscriber returns a fixed transcript
type mockTranscriber struct {
	result string
	err    error
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename, mimeType string) (string, error) {
	return m.result, m.err
}

type botFixture struct {
	svc        *BotService
	messenger  *mockMessenger
	summarizer *mockSummarizer
	history    *usecase.History
	options    *usecase.Options
}

func newBotFixture(t *testing.T, adminOpenID string) *botFixture {
	t.Helper()
	ctx := context.Background()

	options := usecase.NewOptions(ctx, &memStore{}, usecase.OptionDefaults{
		DailyLimitSeconds:        3600,
		SummaryCooldownSeconds:   0,
		SummaryDailyLimitPerUser: 30,
		SummaryReuseWindowMin:    30,
		MessageBufferMaxPerChat:  500,
		SummaryHistoryMaxPerChat: 12,
	})
	voiceUsage := usecase.NewVoiceUsage(ctx, &memStore{}, options)
	quota := usecase.NewSummaryQuota(ctx, &memStore{}, options)
	history := usecase.NewHistory(ctx, &memStore{}, options)

	messenger := &mockMessenger{audio: "audio-bytes"}
	summarizer := &mockSummarizer{result: "They talked about the release."}
	transcriber := &mockTranscriber{result: "hello from the voice message"}

	summarize := usecase.NewSummarize(history, quota, options, summarizer)
	transcribe := usecase.NewTranscribe(voiceUsage, history, transcriber, messenger)

	svc := NewBotService(
		messenger,
		&mockMembers{names: map[string]string{"ou_alice": "Alice"}},
		history,
		voiceUsage,
		quota,
		options,
		summarize,
		transcribe,
		conf.DefaultTextsConfig(),
		adminOpenID,
	)

	return &botFixture{
		svc:        svc,
		messenger:  messenger,
		summarizer: summarizer,
		history:    history,
		options:    options,
	}
}

func textMsg(id int64, sender, text string) *IncomingMessage {
	return &IncomingMessage{
		ChatID:     "oc_chat",
		MsgID:      fmt.Sprintf("om_%d", id),
		MsgType:    "text",
		Content:    text,
		SenderID:   sender,
		CreateTime: id,
	}
}

func TestTextMessagesAreTracked(t *testing.T) {
	f := newBotFixture(t, "")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, textMsg(1000, "ou_alice", "shipping on friday"))
	f.svc.HandleMessage(ctx, textMsg(1001, "ou_alice", "  "))

	stats := f.history.Stats("oc_chat")
	if stats.RecentMessages != 1 {
		t.Fatalf("expected 1 tracked message, got %d", stats.RecentMessages)
	}
}

func TestCommandsAreNotTracked(t *testing.T) {
	f := newBotFixture(t, "")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, textMsg(1000, "ou_alice", "/limit"))
	f.svc.HandleMessage(ctx, textMsg(1001, "ou_alice", "/unknown command"))

	stats := f.history.Stats("oc_chat")
	if stats.RecentMessages != 0 {
		t.Fatalf("commands must not enter the buffer, got %d messages", stats.RecentMessages)
	}
}

func TestSummaryCommand(t *testing.T) {
	f := newBotFixture(t, "")
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		f.svc.HandleMessage(ctx, textMsg(1000+i, "ou_alice", fmt.Sprintf("msg %d", i)))
	}
	f.svc.HandleMessage(ctx, textMsg(2000, "ou_alice", "/summary"))

	if f.summarizer.calls != 1 {
		t.Fatalf("expected one summarizer call, got %d", f.summarizer.calls)
	}
	// Working status + result
	if len(f.messenger.replies) != 2 {
		t.Fatalf("expected 2 replies, got %d: %v", len(f.messenger.replies), f.messenger.replies)
	}
	if !strings.Contains(f.messenger.replies[1], "They talked about the release.") {
		t.Fatalf("result reply missing summary: %q", f.messenger.replies[1])
	}

	stats := f.history.Stats("oc_chat")
	if stats.LastSummarizedMessageID != 1002 {
		t.Fatalf("cursor = %d, want 1002", stats.LastSummarizedMessageID)
	}
}

func TestSummaryCommandNothingToDo(t *testing.T) {
	f := newBotFixture(t, "")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, textMsg(2000, "ou_alice", "/summary"))

	if f.summarizer.calls != 0 {
		t.Fatal("summarizer must not run on an empty buffer")
	}
	if len(f.messenger.replies) != 1 || f.messenger.replies[0] != conf.DefaultTextsConfig().Summary.Nothing {
		t.Fatalf("unexpected replies: %v", f.messenger.replies)
	}
}

func TestVoiceMessageFlow(t *testing.T) {
	f := newBotFixture(t, "")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, &IncomingMessage{
		ChatID:     "oc_chat",
		MsgID:      "om_voice",
		MsgType:    "audio",
		SenderID:   "ou_alice",
		CreateTime: 5000,
		FileKey:    "file_abc",
		DurationMS: 12000,
	})

	// Processing status + transcript
	if len(f.messenger.replies) != 2 {
		t.Fatalf("expected 2 replies, got %d: %v", len(f.messenger.replies), f.messenger.replies)
	}
	if !strings.Contains(f.messenger.replies[1], "hello from the voice message") {
		t.Fatalf("transcript reply missing text: %q", f.messenger.replies[1])
	}
	if !strings.Contains(f.messenger.replies[1], "Alice") {
		t.Fatalf("transcript reply missing sender name: %q", f.messenger.replies[1])
	}

	// Placeholder replaced by transcript
	stats := f.history.Stats("oc_chat")
	if stats.RecentMessages != 1 {
		t.Fatalf("expected 1 buffered message, got %d", stats.RecentMessages)
	}
}

func TestVoiceMessageDeniedWhenBudgetExhausted(t *testing.T) {
	f := newBotFixture(t, "")
	ctx := context.Background()

	if _, err := f.options.Set(ctx, domain.OptDailyLimitSeconds, "60"); err != nil {
		t.Fatal(err)
	}

	clip := &IncomingMessage{
		ChatID: "oc_chat", MsgID: "om_v1", MsgType: "audio",
		SenderID: "ou_alice", CreateTime: 5000, FileKey: "f1", DurationMS: 70000,
	}
	f.svc.HandleMessage(ctx, clip)

	clip2 := *clip
	clip2.MsgID = "om_v2"
	clip2.CreateTime = 5001
	f.messenger.replies = nil
	f.svc.HandleMessage(ctx, &clip2)

	if len(f.messenger.replies) != 1 {
		t.Fatalf("expected only the denial reply, got %v", f.messenger.replies)
	}
	for _, candidate := range conf.DefaultTextsConfig().Voice.LimitExceeded {
		if f.messenger.replies[0] == candidate {
			return
		}
	}
	t.Fatalf("denial reply not from the limit pool: %q", f.messenger.replies[0])
}

func TestAdminDeniedForNonAdmin(t *testing.T) {
	f := newBotFixture(t, "ou_boss")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, textMsg(1, "ou_alice", "/admin"))

	if len(f.messenger.replies) != 1 || f.messenger.replies[0] != conf.DefaultTextsConfig().Admin.Denied {
		t.Fatalf("unexpected replies: %v", f.messenger.replies)
	}
}

func TestAdminDeniedWhenUnconfigured(t *testing.T) {
	f := newBotFixture(t, "")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, textMsg(1, "ou_alice", "/admin_set dailyLimitSeconds 120"))

	if f.options.Get(domain.OptDailyLimitSeconds) != 3600 {
		t.Fatal("option changed without a configured admin")
	}
}

func TestAdminSetAndReset(t *testing.T) {
	f := newBotFixture(t, "ou_boss")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, textMsg(1, "ou_boss", "/admin_set dailyLimitSeconds 120"))
	if got := f.options.Get(domain.OptDailyLimitSeconds); got != 120 {
		t.Fatalf("dailyLimitSeconds = %d, want 120", got)
	}

	f.svc.HandleMessage(ctx, textMsg(2, "ou_boss", "/admin_reset dailyLimitSeconds"))
	if got := f.options.Get(domain.OptDailyLimitSeconds); got != 3600 {
		t.Fatalf("dailyLimitSeconds after reset = %d, want 3600", got)
	}
}

func TestAdminSetOutOfRange(t *testing.T) {
	f := newBotFixture(t, "ou_boss")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, textMsg(1, "ou_boss", "/admin_set dailyLimitSeconds 30"))

	if got := f.options.Get(domain.OptDailyLimitSeconds); got != 3600 {
		t.Fatalf("out-of-range value must not stick, got %d", got)
	}
	if len(f.messenger.replies) != 1 || !strings.Contains(f.messenger.replies[0], "60") {
		t.Fatalf("expected range error mentioning the bounds, got %v", f.messenger.replies)
	}
}

func TestAdminResetSummaryState(t *testing.T) {
	f := newBotFixture(t, "ou_boss")
	ctx := context.Background()

	f.svc.HandleMessage(ctx, textMsg(1000, "ou_alice", "hello"))
	f.svc.HandleMessage(ctx, textMsg(1001, "ou_boss", "/admin_reset summary_state"))

	if stats := f.history.Stats("oc_chat"); stats.RecentMessages != 0 {
		t.Fatalf("buffer not cleared: %d messages", stats.RecentMessages)
	}
}
