package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anthropics/feishu-voice-summary/internal/biz/usecase"
)

// OpsMCPServer exposes the bot's runtime options and ledgers as MCP tools,
// for operating the bot from an MCP-capable client over stdio.
type OpsMCPServer struct {
	server     *mcp.Server
	options    *usecase.Options
	history    *usecase.History
	voiceUsage *usecase.VoiceUsage
	quota      *usecase.SummaryQuota
}

// NewServer creates a new ops MCP server
func NewServer(options *usecase.Options, history *usecase.History, voiceUsage *usecase.VoiceUsage, quota *usecase.SummaryQuota) *OpsMCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "voice-summary-ops",
		Version: "v1.0.0",
	}, nil)

	s := &OpsMCPServer{
		server:     server,
		options:    options,
		history:    history,
		voiceUsage: voiceUsage,
		quota:      quota,
	}

	s.registerTools()

	return s
}

// Run serves MCP over the given transport until ctx is cancelled
func (s *OpsMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers all ops tools
func (s *OpsMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "options_list",
		Description: "List every runtime option with its effective value, default and whether it is overridden.",
	}, s.handleOptionsList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "option_set",
		Description: "Override a runtime option. The value is validated against the option's bounds and persisted.",
	}, s.handleOptionSet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "option_reset",
		Description: "Remove the override for one runtime option, or all of them when key is 'all'.",
	}, s.handleOptionReset)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chat_stats",
		Description: "Show a chat's buffer size, cached summary count and already-summarized cursor.",
	}, s.handleChatStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "voice_usage",
		Description: "Show a chat's remaining transcription seconds for today, or reset its ledger entry.",
	}, s.handleVoiceUsage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summary_quota_reset",
		Description: "Reset the summary request ledger for a chat, or for one user in it.",
	}, s.handleSummaryQuotaReset)
}

// OptionItem is one entry of the options_list output
type OptionItem struct {
	Key        string `json:"key"`
	Value      int    `json:"value"`
	Default    int    `json:"default"`
	Overridden bool   `json:"overridden"`
}

// OptionsListInput is empty - no input needed
type OptionsListInput struct{}

// OptionsListOutput contains every runtime option
type OptionsListOutput struct {
	Options []OptionItem `json:"options"`
}

func (s *OpsMCPServer) handleOptionsList(ctx context.Context, req *mcp.CallToolRequest, input OptionsListInput) (*mcp.CallToolResult, OptionsListOutput, error) {
	var out OptionsListOutput
	for _, opt := range s.options.List() {
		out.Options = append(out.Options, OptionItem{
			Key:        opt.Key,
			Value:      opt.Value,
			Default:    opt.Default,
			Overridden: opt.Overridden,
		})
	}
	return nil, out, nil
}

// OptionSetInput is the input for option_set
type OptionSetInput struct {
	Key   string `json:"key" jsonschema:"description=The option key, as shown by options_list"`
	Value string `json:"value" jsonschema:"description=The new value; fractions are truncated to an integer"`
}

// OptionSetOutput is the output for option_set
type OptionSetOutput struct {
	Success bool   `json:"success"`
	Value   int    `json:"value,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *OpsMCPServer) handleOptionSet(ctx context.Context, req *mcp.CallToolRequest, input OptionSetInput) (*mcp.CallToolResult, OptionSetOutput, error) {
	value, err := s.options.Set(ctx, input.Key, input.Value)
	if err != nil {
		return nil, OptionSetOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, OptionSetOutput{Success: true, Value: value}, nil
}

// OptionResetInput is the input for option_reset
type OptionResetInput struct {
	Key string `json:"key" jsonschema:"description=The option key to reset, or 'all' to clear every override"`
}

// OptionResetOutput is the output for option_reset
type OptionResetOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *OpsMCPServer) handleOptionReset(ctx context.Context, req *mcp.CallToolRequest, input OptionResetInput) (*mcp.CallToolResult, OptionResetOutput, error) {
	var err error
	if input.Key == "all" {
		err = s.options.ResetAll(ctx)
	} else {
		err = s.options.Reset(ctx, input.Key)
	}
	if err != nil {
		return nil, OptionResetOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, OptionResetOutput{Success: true}, nil
}

// ChatStatsInput names the chat to inspect
type ChatStatsInput struct {
	ChatID string `json:"chat_id" jsonschema:"description=The Feishu chat id"`
}

// ChatStatsOutput contains the chat's buffer overview
type ChatStatsOutput struct {
	RecentMessages          int   `json:"recentMessages"`
	CachedSummaries         int   `json:"cachedSummaries"`
	LastSummarizedMessageID int64 `json:"lastSummarizedMessageId"`
}

func (s *OpsMCPServer) handleChatStats(ctx context.Context, req *mcp.CallToolRequest, input ChatStatsInput) (*mcp.CallToolResult, ChatStatsOutput, error) {
	if input.ChatID == "" {
		return nil, ChatStatsOutput{}, fmt.Errorf("chat_id is required")
	}
	stats := s.history.Stats(input.ChatID)
	return nil, ChatStatsOutput{
		RecentMessages:          stats.RecentMessages,
		CachedSummaries:         stats.CachedSummaries,
		LastSummarizedMessageID: stats.LastSummarizedMessageID,
	}, nil
}

// VoiceUsageInput names the chat whose transcription ledger to inspect
type VoiceUsageInput struct {
	ChatID string `json:"chat_id" jsonschema:"description=The Feishu chat id"`
	Reset  bool   `json:"reset,omitempty" jsonschema:"description=When true, delete the chat's ledger entry for today"`
}

// VoiceUsageOutput contains the chat's remaining budget
type VoiceUsageOutput struct {
	Allowed          bool   `json:"allowed"`
	RemainingSeconds int    `json:"remainingSeconds"`
	Error            string `json:"error,omitempty"`
}

func (s *OpsMCPServer) handleVoiceUsage(ctx context.Context, req *mcp.CallToolRequest, input VoiceUsageInput) (*mcp.CallToolResult, VoiceUsageOutput, error) {
	if input.ChatID == "" {
		return nil, VoiceUsageOutput{}, fmt.Errorf("chat_id is required")
	}

	if input.Reset {
		if err := s.voiceUsage.Reset(ctx, input.ChatID); err != nil {
			return nil, VoiceUsageOutput{Error: err.Error()}, nil
		}
	}

	allowed, remaining := s.voiceUsage.CanConsume(input.ChatID)
	return nil, VoiceUsageOutput{Allowed: allowed, RemainingSeconds: remaining}, nil
}

// SummaryQuotaResetInput names the chat, and optionally the user, to reset
type SummaryQuotaResetInput struct {
	ChatID string `json:"chat_id" jsonschema:"description=The Feishu chat id"`
	UserID string `json:"user_id,omitempty" jsonschema:"description=When set, reset only this user's entry"`
}

// SummaryQuotaResetOutput is the output for summary_quota_reset
type SummaryQuotaResetOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *OpsMCPServer) handleSummaryQuotaReset(ctx context.Context, req *mcp.CallToolRequest, input SummaryQuotaResetInput) (*mcp.CallToolResult, SummaryQuotaResetOutput, error) {
	if input.ChatID == "" {
		return nil, SummaryQuotaResetOutput{}, fmt.Errorf("chat_id is required")
	}

	var err error
	if input.UserID != "" {
		err = s.quota.ResetUser(ctx, input.ChatID, input.UserID)
	} else {
		err = s.quota.ResetChat(ctx, input.ChatID)
	}
	if err != nil {
		return nil, SummaryQuotaResetOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, SummaryQuotaResetOutput{Success: true}, nil
}
