package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, audio, media, image
	ChatType   string // p2p (private), group
	Content    string // Text content for text messages
	SenderID   string // Sender open_id
	SenderName string // Resolved display name, may be empty
	CreateTime int64  // Message creation time (milliseconds Unix timestamp from Feishu)

	// Audio/media fields
	FileKey    string
	DurationMS int
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and starts listening for messages
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Create Lark API client
	c.larkCli = lark.NewClient(c.appID, c.appSecret)

	// Register event handler
	// Note: Must return quickly so SDK can send ACK, otherwise Feishu will retry due to timeout
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			// Process message asynchronously, return immediately to let SDK send ACK
			go c.handleMessage(event)
			return nil
		})

	// Create WebSocket client
	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")

	// Start WebSocket (blocking)
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// handleMessage processes incoming Feishu messages
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	rawMsg := event.Event.Message
	if rawMsg == nil {
		return
	}

	// Filter out messages sent by the bot itself to prevent loops
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil {
		if *event.Event.Sender.SenderType == "app" {
			return
		}
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: *rawMsg.MessageType,
	}

	// Parse create time (milliseconds Unix timestamp)
	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}

	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}

	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil {
		if event.Event.Sender.SenderId.OpenId != nil {
			msg.SenderID = *event.Event.Sender.SenderId.OpenId
		}
	}

	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(*rawMsg.Content)
	case "audio":
		fileKey, durationMS := parseAudioContent(*rawMsg.Content)
		msg.FileKey = fileKey
		msg.DurationMS = durationMS
	case "media":
		fileKey, durationMS := parseMediaContent(*rawMsg.Content)
		msg.FileKey = fileKey
		msg.DurationMS = durationMS
	case "image":
		msg.Content = "[Image]"
	default:
		fmt.Printf("[Feishu] Ignoring message type: %s\n", msg.MsgType)
		return
	}

	fmt.Printf("[Feishu] Received %s from %s chat %s\n", msg.MsgType, msg.ChatType, msg.ChatID)

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// parseTextContent extracts text from a text message
func parseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return content
	}
	return parsed.Text
}

// parseAudioContent extracts the file key and duration of a voice message
func parseAudioContent(content string) (string, int) {
	var parsed struct {
		FileKey  string `json:"file_key"`
		Duration int    `json:"duration"` // milliseconds
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", 0
	}
	return parsed.FileKey, parsed.Duration
}

// parseMediaContent extracts the file key and duration of a video message
func parseMediaContent(content string) (string, int) {
	var parsed struct {
		FileKey  string `json:"file_key"`
		Duration int    `json:"duration"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", 0
	}
	return parsed.FileKey, parsed.Duration
}

// SendText sends a text message to a chat
func (c *Client) SendText(chatID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(context.Background(), req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// ReplyText sends a text message as a reply to an existing message
func (c *Client) ReplyText(msgID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewReplyMessageReqBuilder().
		MessageId(msgID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(context.Background(), req)
	if err != nil {
		return fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("reply message error: %s", resp.Msg)
	}
	return nil
}

// DownloadAudio fetches the audio payload of a voice message.
// The caller must close the returned reader.
func (c *Client) DownloadAudio(msgID, fileKey string) (io.ReadCloser, error) {
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(msgID).
		FileKey(fileKey).
		Type("file").
		Build()

	resp, err := c.larkCli.Im.MessageResource.Get(context.Background(), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get audio error: %s", resp.Msg)
	}

	return io.NopCloser(resp.File), nil
}

// GetChatMembers gets the list of members in a chat, for name resolution
func (c *Client) GetChatMembers(chatID string) (map[string]string, error) {
	req := larkim.NewGetChatMembersReqBuilder().
		ChatId(chatID).
		MemberIdType("open_id").
		PageSize(100).
		Build()

	resp, err := c.larkCli.Im.ChatMembers.Get(context.Background(), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat members: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
	}

	names := make(map[string]string)
	for _, item := range resp.Data.Items {
		if item.MemberId != nil && item.Name != nil {
			names[*item.MemberId] = *item.Name
		}
	}
	return names, nil
}
