package data

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/feishu-voice-summary/internal/biz/domain"
	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"

	openai "github.com/sashabaranov/go-openai"
)

// SummarizerConfig configures the chat-completion summarizer.
type SummarizerConfig struct {
	Model           string
	SystemPrompt    string
	PreviousHeader  string // prefix for the prior-summary block
	NewBlockHeader  string // prefix for the new-messages block
}

// openaiSummarizer implements the summarizer collaborator on the OpenAI
// chat completion API.
type openaiSummarizer struct {
	client *openai.Client
	config SummarizerConfig
}

// NewSummarizer creates the summarizer repository.
func NewSummarizer(client *openai.Client, config SummarizerConfig) repo.Summarizer {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	return &openaiSummarizer{client: client, config: config}
}

// formatMessages renders messages oldest-first as "[timestamp] author: text".
func formatMessages(messages []domain.StoredMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			msg.Date.Format("2006-01-02T15:04:05Z07:00"), msg.UserName, msg.Text))
	}
	return strings.Join(lines, "\n")
}

func (s *openaiSummarizer) Summarize(ctx context.Context, messages []domain.StoredMessage, previousSummary string) (string, error) {
	var b strings.Builder
	if previousSummary != "" {
		b.WriteString(s.config.PreviousHeader)
		b.WriteString("\n")
		b.WriteString(previousSummary)
		b.WriteString("\n\n")
	}
	b.WriteString(s.config.NewBlockHeader)
	b.WriteString("\n\n")
	b.WriteString(formatMessages(messages))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.config.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("empty summary response from model")
	}
	return summary, nil
}

// openaiTranscriber implements the speech-to-text collaborator on the
// Whisper transcription API.
type openaiTranscriber struct {
	client *openai.Client
	model  string
}

// NewTranscriber creates the transcriber repository.
func NewTranscriber(client *openai.Client, model string) repo.Transcriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &openaiTranscriber{client: client, model: model}
}

func (t *openaiTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename, mimeType string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   audio,
		FilePath: filename,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("empty transcription response")
	}
	return resp.Text, nil
}
