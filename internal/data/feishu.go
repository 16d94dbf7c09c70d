package data

import (
	"context"
	"io"

	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"
	"github.com/anthropics/feishu-voice-summary/internal/infra/feishu"
)

// feishuMessenger adapts the Feishu client to the MessengerRepo interface
type feishuMessenger struct {
	client *feishu.Client
}

// NewFeishuMessenger creates a messenger repository backed by the Feishu client
func NewFeishuMessenger(client *feishu.Client) repo.MessengerRepo {
	return &feishuMessenger{client: client}
}

func (m *feishuMessenger) SendText(ctx context.Context, chatID, text string) error {
	return m.client.SendText(chatID, text)
}

func (m *feishuMessenger) ReplyText(ctx context.Context, msgID, text string) error {
	return m.client.ReplyText(msgID, text)
}

func (m *feishuMessenger) DownloadAudio(ctx context.Context, msgID, fileKey string) (io.ReadCloser, error) {
	return m.client.DownloadAudio(msgID, fileKey)
}
