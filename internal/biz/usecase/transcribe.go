package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
)

// VoiceClip describes one voice or video message to transcribe.
type VoiceClip struct {
	ChatID          string
	MsgID           string // transport message id, used to fetch the audio
	MessageID       int64  // buffer message id of the clip
	FileKey         string
	DurationSeconds int
	UserID          string
	UserName        string
	Date            time.Time
	MimeType        string
}

// Transcribe runs one admitted transcription: fetch the audio, call the
// external transcriber, charge the consumed seconds and store the
// transcript in the chat buffer in place of the voice placeholder.
//
// Admission (VoiceUsage.CanConsume) and the over-budget warning happen in
// the caller before the clip reaches this point; the straddling clip is
// still charged in full.
type Transcribe struct {
	usage       *VoiceUsage
	history     *History
	transcriber repo.Transcriber
	messenger   repo.MessengerRepo
}

// NewTranscribe creates the orchestrator.
func NewTranscribe(usage *VoiceUsage, history *History, transcriber repo.Transcriber, messenger repo.MessengerRepo) *Transcribe {
	return &Transcribe{
		usage:       usage,
		history:     history,
		transcriber: transcriber,
		messenger:   messenger,
	}
}

// Run downloads and transcribes the clip. On external failure nothing is
// charged and the buffer keeps the placeholder, so the clip can be retried.
func (t *Transcribe) Run(ctx context.Context, clip VoiceClip) (string, error) {
	audio, err := t.messenger.DownloadAudio(ctx, clip.MsgID, clip.FileKey)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	defer audio.Close()

	mime := clip.MimeType
	if mime == "" {
		mime = "audio/ogg"
	}
	text, err := t.transcriber.Transcribe(ctx, audio, clip.FileKey+".ogg", mime)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	if err := t.usage.Record(ctx, clip.ChatID, clip.DurationSeconds); err != nil {
		return "", err
	}

	date := clip.Date
	if date.IsZero() {
		date = time.Now()
	}
	err = t.history.UpsertTranscript(ctx, clip.ChatID, domain.StoredMessage{
		MessageID: clip.MessageID,
		Date:      date,
		UserID:    clip.UserID,
		UserName:  clip.UserName,
		Text:      text,
	})
	if err != nil {
		return "", err
	}

	return text, nil
}
