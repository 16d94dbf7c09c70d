package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type mockTranscriber struct {
	text string
	err  error

	gotAudio string
	gotMime  string
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename, mimeType string) (string, error) {
	data, _ := io.ReadAll(audio)
	m.gotAudio = string(data)
	m.gotMime = mimeType
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

type mockMessenger struct {
	audio       string
	downloadErr error
	sent        []string
	replies     []string
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
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	return io.NopCloser(strings.NewReader(m.audio)), nil
}

func testClip() VoiceClip {
	return VoiceClip{
		ChatID:          "chat-1",
		MsgID:           "om_1",
		MessageID:       42,
		FileKey:         "file-key-1",
		DurationSeconds: 30,
		UserID:          "user-1",
		UserName:        "@alice",
		Date:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTranscribeRun(t *testing.T) {
	usage := newTestVoiceUsage(&memStore{})
	history := newTestHistory(&memStore{}, newTestOptions(&memStore{}))
	transcriber := &mockTranscriber{text: "hello world"}
	messenger := &mockMessenger{audio: "ogg-bytes"}
	uc := NewTranscribe(usage, history, transcriber, messenger)
	ctx := context.Background()

	// The clip was buffered as a placeholder when it arrived.
	if err := history.Record(ctx, "chat-1", msg(42, "[voice 30s]")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	text, err := uc.Run(ctx, testClip())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q", text)
	}
	if transcriber.gotAudio != "ogg-bytes" {
		t.Errorf("transcriber got %q", transcriber.gotAudio)
	}
	if transcriber.gotMime != "audio/ogg" {
		t.Errorf("mime = %q, want audio/ogg", transcriber.gotMime)
	}

	if _, remaining := usage.CanConsume("chat-1"); remaining != 3570 {
		t.Errorf("remaining = %d, want 3570", remaining)
	}

	messages, _ := history.SummaryInput("chat-1", 10)
	if len(messages) != 1 || messages[0].Text != "hello world" {
		t.Errorf("buffer = %v, want transcript in place of placeholder", messages)
	}
}

func TestTranscribeFailureChargesNothing(t *testing.T) {
	usage := newTestVoiceUsage(&memStore{})
	history := newTestHistory(&memStore{}, newTestOptions(&memStore{}))
	transcriber := &mockTranscriber{err: errors.New("whisper down")}
	messenger := &mockMessenger{audio: "ogg-bytes"}
	uc := NewTranscribe(usage, history, transcriber, messenger)

	_, err := uc.Run(context.Background(), testClip())
	if err == nil || !strings.Contains(err.Error(), "whisper down") {
		t.Fatalf("Run error = %v, want wrapped service error", err)
	}

	if _, remaining := usage.CanConsume("chat-1"); remaining != 3600 {
		t.Errorf("remaining = %d, want untouched 3600", remaining)
	}
}

func TestTranscribeDownloadFailure(t *testing.T) {
	usage := newTestVoiceUsage(&memStore{})
	history := newTestHistory(&memStore{}, newTestOptions(&memStore{}))
	uc := NewTranscribe(usage, history, &mockTranscriber{}, &mockMessenger{downloadErr: errors.New("gone")})

	_, err := uc.Run(context.Background(), testClip())
	if err == nil || !strings.Contains(err.Error(), "download audio") {
		t.Fatalf("Run error = %v, want download error", err)
	}
}
