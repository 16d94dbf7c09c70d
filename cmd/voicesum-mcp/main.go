package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/anthropics/feishu-voice-summary/internal/biz/usecase"
	"github.com/anthropics/feishu-voice-summary/internal/conf"
	"github.com/anthropics/feishu-voice-summary/internal/data"
	"github.com/anthropics/feishu-voice-summary/mcpserver"
)

// voicesum-mcp exposes the bot's runtime options and usage ledgers as MCP
// tools over stdio. It opens the same snapshot stores as the bot, so it is
// meant to run against the bot's data directory while the bot is stopped,
// or against the sqlite backend.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()

	snapshots, err := data.NewSnapshots(&cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open snapshot stores: %v", err)
	}
	defer snapshots.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	options := usecase.NewOptions(ctx, snapshots.Settings, cfg.Options)
	voiceUsage := usecase.NewVoiceUsage(ctx, snapshots.VoiceUsage, options)
	quota := usecase.NewSummaryQuota(ctx, snapshots.SummaryUsage, options)
	history := usecase.NewHistory(ctx, snapshots.History, options)

	srv := mcpserver.NewServer(options, history, voiceUsage, quota)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
