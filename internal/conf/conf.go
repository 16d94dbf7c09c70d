package conf

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/anthropics/feishu-voice-summary/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// OpenAI configuration (transcription + summarization)
	OpenAI OpenAIConfig

	// Storage configuration
	Store StoreConfig

	// Seed defaults for runtime options, overridable at runtime via /admin_set
	Options usecase.OptionDefaults

	// Admin open_id allowed to use /admin commands (optional)
	AdminOpenID string

	// Texts configuration (loaded from YAML)
	Texts *TextsConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// OpenAIConfig contains OpenAI configuration
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string // Optional, for proxies or compatible endpoints
	SummaryModel       string
	TranscriptionModel string
}

// StoreConfig contains persistence configuration
type StoreConfig struct {
	Backend string // "file" (default) or "sqlite"
	DataDir string // Directory for JSON snapshot files
	DBPath  string // SQLite database path when Backend is "sqlite"
}

// VoiceUsagePath returns the voice usage snapshot path for the file backend
func (s *StoreConfig) VoiceUsagePath() string {
	return filepath.Join(s.DataDir, "usage.json")
}

// SummaryUsagePath returns the summary quota snapshot path for the file backend
func (s *StoreConfig) SummaryUsagePath() string {
	return filepath.Join(s.DataDir, "summary-usage.json")
}

// HistoryPath returns the message history snapshot path for the file backend
func (s *StoreConfig) HistoryPath() string {
	return filepath.Join(s.DataDir, "message-history.json")
}

// SettingsPath returns the admin settings snapshot path for the file backend
func (s *StoreConfig) SettingsPath() string {
	return filepath.Join(s.DataDir, "admin-settings.json")
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	backend := os.Getenv("STORE_BACKEND")
	if backend == "" {
		backend = "file"
	}

	dbPath := os.Getenv("SQLITE_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "voice-summary.db")
	}

	summaryModel := os.Getenv("SUMMARY_MODEL")
	if summaryModel == "" {
		summaryModel = "gpt-4o-mini"
	}

	transcriptionModel := os.Getenv("TRANSCRIPTION_MODEL")
	if transcriptionModel == "" {
		transcriptionModel = "whisper-1"
	}

	// Load texts from YAML
	textsConfigPath := os.Getenv("TEXTS_CONFIG_PATH")
	textsConfig, _ := LoadTextsConfig(textsConfigPath)

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             os.Getenv("OPENAI_API_KEY"),
			BaseURL:            os.Getenv("OPENAI_BASE_URL"),
			SummaryModel:       summaryModel,
			TranscriptionModel: transcriptionModel,
		},
		Store: StoreConfig{
			Backend: backend,
			DataDir: dataDir,
			DBPath:  dbPath,
		},
		Options: usecase.OptionDefaults{
			DailyLimitSeconds:        envInt("DAILY_LIMIT_SECONDS", 3600),
			SummaryCooldownSeconds:   envInt("SUMMARY_COOLDOWN_SECONDS", 20),
			SummaryDailyLimitPerUser: envInt("SUMMARY_DAILY_LIMIT_PER_USER", 30),
			SummaryReuseWindowMin:    envInt("SUMMARY_REUSE_WINDOW_MINUTES", 30),
			MessageBufferMaxPerChat:  envInt("MESSAGE_BUFFER_MAX_PER_CHAT", 500),
			SummaryHistoryMaxPerChat: envInt("SUMMARY_HISTORY_MAX_PER_CHAT", 12),
		},
		AdminOpenID: os.Getenv("ADMIN_OPEN_ID"),
		Texts:       textsConfig,
		Debug:       os.Getenv("DEBUG") == "true",
	}
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.Store.Backend != "file" && c.Store.Backend != "sqlite" {
		return &ConfigError{Field: "STORE_BACKEND", Message: "must be \"file\" or \"sqlite\""}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
