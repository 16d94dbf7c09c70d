package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/feishu-voice-summary/internal/infra/feishu"
	"github.com/anthropics/feishu-voice-summary/internal/service"
)

// FeishuServer handles Feishu message processing
type FeishuServer struct {
	feishuClient *feishu.Client
	botSvc       *service.BotService

	// Message deduplication cache
	seenMsgsMu sync.RWMutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(feishuClient *feishu.Client, botSvc *service.BotService) *FeishuServer {
	return &FeishuServer{
		feishuClient: feishuClient,
		botSvc:       botSvc,
		seenMsgs:     make(map[string]time.Time),
	}
}

// Start starts the server
func (s *FeishuServer) Start() error {
	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start()
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.feishuClient.Stop()
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	// Message deduplication: Feishu redelivers events that are not ACKed
	// fast enough
	if s.isMessageSeen(msg.MsgID) {
		fmt.Printf("[Server] Duplicate message ignored: %s\n", msg.MsgID)
		return
	}
	s.markMessageSeen(msg.MsgID)

	s.botSvc.HandleMessage(context.Background(), &service.IncomingMessage{
		ChatID:     msg.ChatID,
		MsgID:      msg.MsgID,
		MsgType:    msg.MsgType,
		Content:    msg.Content,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		CreateTime: msg.CreateTime,
		FileKey:    msg.FileKey,
		DurationMS: msg.DurationMS,
	})
}

// isMessageSeen checks if a message has been processed
func (s *FeishuServer) isMessageSeen(msgID string) bool {
	s.seenMsgsMu.RLock()
	defer s.seenMsgsMu.RUnlock()
	_, exists := s.seenMsgs[msgID]
	return exists
}

// markMessageSeen marks a message as processed
func (s *FeishuServer) markMessageSeen(msgID string) {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	s.seenMsgs[msgID] = time.Now()

	// Clean up expired message records (older than 5 minutes)
	cutoff := time.Now().Add(-5 * time.Minute)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
}
