package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/anthropics/feishu-voice-summary/internal/biz/usecase"
	"github.com/anthropics/feishu-voice-summary/internal/conf"
	"github.com/anthropics/feishu-voice-summary/internal/data"
	"github.com/anthropics/feishu-voice-summary/internal/infra/feishu"
	"github.com/anthropics/feishu-voice-summary/internal/server"
	"github.com/anthropics/feishu-voice-summary/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	snapshots, err := data.NewSnapshots(&cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open snapshot stores: %v", err)
	}
	defer snapshots.Close()

	ctx := context.Background()

	options := usecase.NewOptions(ctx, snapshots.Settings, cfg.Options)
	voiceUsage := usecase.NewVoiceUsage(ctx, snapshots.VoiceUsage, options)
	quota := usecase.NewSummaryQuota(ctx, snapshots.SummaryUsage, options)
	history := usecase.NewHistory(ctx, snapshots.History, options)

	openaiConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		openaiConfig.BaseURL = cfg.OpenAI.BaseURL
	}
	openaiClient := openai.NewClientWithConfig(openaiConfig)

	summarizer := data.NewSummarizer(openaiClient, data.SummarizerConfig{
		Model:          cfg.OpenAI.SummaryModel,
		SystemPrompt:   cfg.Texts.Summarizer.SystemPrompt,
		PreviousHeader: cfg.Texts.Summarizer.PreviousHeader,
		NewBlockHeader: cfg.Texts.Summarizer.NewBlockHeader,
	})
	transcriber := data.NewTranscriber(openaiClient, cfg.OpenAI.TranscriptionModel)

	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	messenger := data.NewFeishuMessenger(feishuClient)

	summarize := usecase.NewSummarize(history, quota, options, summarizer)
	transcribe := usecase.NewTranscribe(voiceUsage, history, transcriber, messenger)

	botSvc := service.NewBotService(
		messenger,
		feishuClient,
		history,
		voiceUsage,
		quota,
		options,
		summarize,
		transcribe,
		cfg.Texts,
		cfg.AdminOpenID,
	)

	srv := server.NewFeishuServer(feishuClient, botSvc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		srv.Stop()
		os.Exit(0)
	}()

	fmt.Println("Starting Feishu voice summary bot...")
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
