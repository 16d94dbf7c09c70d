package repo

import (
	"context"
	"io"
)

// MessengerRepo is the chat transport boundary.
// Responsible for delivering replies and fetching media; all chat-platform
// details (mentions, reply threading) stay behind this interface.
type MessengerRepo interface {
	// SendText sends a text message to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// ReplyText sends a text message in reply to an existing message.
	ReplyText(ctx context.Context, msgID, text string) error

	// DownloadAudio fetches the audio payload of a voice message.
	// The caller must close the returned reader.
	DownloadAudio(ctx context.Context, msgID, fileKey string) (io.ReadCloser, error)
}
