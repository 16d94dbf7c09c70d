package repo

import (
	"context"
	"io"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
)

// Summarizer is the external chat summarization service.
type Summarizer interface {
	// Summarize produces a summary of the given messages (oldest first).
	// previousSummary, when non-empty, is prior context the service should
	// update rather than replace.
	Summarize(ctx context.Context, messages []domain.StoredMessage, previousSummary string) (string, error)
}

// Transcriber is the external speech-to-text service.
type Transcriber interface {
	// Transcribe converts raw audio to plain text. No retry is performed.
	Transcribe(ctx context.Context, audio io.Reader, filename, mimeType string) (string, error)
}
