package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TextsConfig contains all user-facing texts and prompts loaded from YAML
type TextsConfig struct {
	Summarizer SummarizerTexts `yaml:"summarizer"`
	Voice      VoiceTexts      `yaml:"voice"`
	Summary    SummaryTexts    `yaml:"summary"`
	Limit      LimitTexts      `yaml:"limit"`
	Admin      AdminTexts      `yaml:"admin"`
}

// SummarizerTexts contains the summarization prompts
type SummarizerTexts struct {
	SystemPrompt   string `yaml:"system_prompt"`
	PreviousHeader string `yaml:"previous_header"`
	NewBlockHeader string `yaml:"new_block_header"`
}

// VoiceTexts contains voice transcription texts
type VoiceTexts struct {
	Processing      []string `yaml:"processing"`
	LimitExceeded   []string `yaml:"limit_exceeded"`
	NearLimit       string   `yaml:"near_limit"`
	TranscribeError string   `yaml:"transcribe_error"`
}

// SummaryTexts contains /summary command texts
type SummaryTexts struct {
	Working       string `yaml:"working"`
	Nothing       string `yaml:"nothing"`
	Reused        string `yaml:"reused"`
	ResultHeader  string `yaml:"result_header"`
	Cooldown      string `yaml:"cooldown"`
	DailyLimit    string `yaml:"daily_limit"`
	SummarizeError string `yaml:"summarize_error"`
}

// LimitTexts contains /limit command texts
type LimitTexts struct {
	Header      string   `yaml:"header"`
	MoodOK      []string `yaml:"mood_ok"`
	MoodWarning []string `yaml:"mood_warning"`
	MoodOver    []string `yaml:"mood_over"`
}

// AdminTexts contains /admin command texts
type AdminTexts struct {
	Denied       string `yaml:"denied"`
	PanelHeader  string `yaml:"panel_header"`
	SetOK        string `yaml:"set_ok"`
	ResetOK      string `yaml:"reset_ok"`
	UnknownKey   string `yaml:"unknown_key"`
	InvalidValue string `yaml:"invalid_value"`
	OutOfRange   string `yaml:"out_of_range"`
	Usage        string `yaml:"usage"`
}

// LoadTextsConfig loads texts configuration from YAML file
func LoadTextsConfig(configPath string) (*TextsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/texts.yaml",
			"./configs/texts.yaml",
			"/etc/feishu-voice-summary/texts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "texts.yaml"))
		}
		if wd, err := os.Getwd(); err == nil {
			paths = append(paths, filepath.Join(wd, "configs", "texts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	var err error

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if data == nil {
		// Return default config if no file found
		fmt.Println("[Config] No texts.yaml found, using defaults")
		return DefaultTextsConfig(), nil
	}

	fmt.Printf("[Config] Loading texts from: %s\n", loadedPath)

	var config TextsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse texts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *TextsConfig) fillDefaults() {
	defaults := DefaultTextsConfig()

	if c.Summarizer.SystemPrompt == "" {
		c.Summarizer.SystemPrompt = defaults.Summarizer.SystemPrompt
	}
	if c.Summarizer.PreviousHeader == "" {
		c.Summarizer.PreviousHeader = defaults.Summarizer.PreviousHeader
	}
	if c.Summarizer.NewBlockHeader == "" {
		c.Summarizer.NewBlockHeader = defaults.Summarizer.NewBlockHeader
	}

	if len(c.Voice.Processing) == 0 {
		c.Voice.Processing = defaults.Voice.Processing
	}
	if len(c.Voice.LimitExceeded) == 0 {
		c.Voice.LimitExceeded = defaults.Voice.LimitExceeded
	}
	if c.Voice.NearLimit == "" {
		c.Voice.NearLimit = defaults.Voice.NearLimit
	}
	if c.Voice.TranscribeError == "" {
		c.Voice.TranscribeError = defaults.Voice.TranscribeError
	}

	if c.Summary.Working == "" {
		c.Summary.Working = defaults.Summary.Working
	}
	if c.Summary.Nothing == "" {
		c.Summary.Nothing = defaults.Summary.Nothing
	}
	if c.Summary.Reused == "" {
		c.Summary.Reused = defaults.Summary.Reused
	}
	if c.Summary.ResultHeader == "" {
		c.Summary.ResultHeader = defaults.Summary.ResultHeader
	}
	if c.Summary.Cooldown == "" {
		c.Summary.Cooldown = defaults.Summary.Cooldown
	}
	if c.Summary.DailyLimit == "" {
		c.Summary.DailyLimit = defaults.Summary.DailyLimit
	}
	if c.Summary.SummarizeError == "" {
		c.Summary.SummarizeError = defaults.Summary.SummarizeError
	}

	if c.Limit.Header == "" {
		c.Limit.Header = defaults.Limit.Header
	}
	if len(c.Limit.MoodOK) == 0 {
		c.Limit.MoodOK = defaults.Limit.MoodOK
	}
	if len(c.Limit.MoodWarning) == 0 {
		c.Limit.MoodWarning = defaults.Limit.MoodWarning
	}
	if len(c.Limit.MoodOver) == 0 {
		c.Limit.MoodOver = defaults.Limit.MoodOver
	}

	if c.Admin.Denied == "" {
		c.Admin.Denied = defaults.Admin.Denied
	}
	if c.Admin.PanelHeader == "" {
		c.Admin.PanelHeader = defaults.Admin.PanelHeader
	}
	if c.Admin.SetOK == "" {
		c.Admin.SetOK = defaults.Admin.SetOK
	}
	if c.Admin.ResetOK == "" {
		c.Admin.ResetOK = defaults.Admin.ResetOK
	}
	if c.Admin.UnknownKey == "" {
		c.Admin.UnknownKey = defaults.Admin.UnknownKey
	}
	if c.Admin.InvalidValue == "" {
		c.Admin.InvalidValue = defaults.Admin.InvalidValue
	}
	if c.Admin.OutOfRange == "" {
		c.Admin.OutOfRange = defaults.Admin.OutOfRange
	}
	if c.Admin.Usage == "" {
		c.Admin.Usage = defaults.Admin.Usage
	}
}

// Format replaces {{name}} placeholders in template with the given values
func Format(template string, values map[string]string) string {
	out := template
	for name, value := range values {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}

// DefaultTextsConfig returns the default texts configuration
func DefaultTextsConfig() *TextsConfig {
	return &TextsConfig{
		Summarizer: SummarizerTexts{
			SystemPrompt: `You are a chat conversation summarizer. Summarize the messages into a short digest.

Requirements:
1. Keep key information: who said what important things, topics discussed, decisions made, unresolved questions
2. Use third-person description and mention speakers by name
3. Keep it under 200 words
4. If the conversation is simple or has no important content, make it shorter
5. Output the summary directly, no prefix like "Summary:" needed`,
			PreviousHeader: "[Earlier summary - for context]",
			NewBlockHeader: "[New messages to summarize]",
		},
		Voice: VoiceTexts{
			Processing: []string{
				"Transcribing your voice message...",
				"Listening carefully...",
				"Turning speech into text...",
			},
			LimitExceeded: []string{
				"This chat has used up today's transcription time. Try again tomorrow.",
				"Out of transcription minutes for today. The clock resets at midnight UTC.",
			},
			NearLimit:       "Heads up: only {{remaining}}s of transcription time left today.",
			TranscribeError: "Could not transcribe that voice message, sorry.",
		},
		Summary: SummaryTexts{
			Working:      "Summarizing the last {{count}} messages...",
			Nothing:      "Nothing new to summarize yet.",
			Reused:       "Here is a recent summary (from {{age}} ago):\n\n{{summary}}",
			ResultHeader: "Summary of the last {{count}} messages:",
			Cooldown:     "Easy there. Try /summary again in {{seconds}}s.",
			DailyLimit:   "You have hit today's summary limit for this chat.",
			SummarizeError: "Summarization failed, please try again later.",
		},
		Limit: LimitTexts{
			Header: "Today's transcription usage:",
			MoodOK: []string{
				"Plenty of room left.",
				"All good, keep talking.",
			},
			MoodWarning: []string{
				"Getting close to the limit.",
				"Running low on minutes.",
			},
			MoodOver: []string{
				"That's all for today.",
				"Tank is empty until tomorrow.",
			},
		},
		Admin: AdminTexts{
			Denied:       "You are not allowed to use admin commands.",
			PanelHeader:  "Runtime options (* = overridden):",
			SetOK:        "{{key}} = {{value}}",
			ResetOK:      "Reset: {{target}}",
			UnknownKey:   "Unknown option: {{key}}",
			InvalidValue: "Not a number: {{value}}",
			OutOfRange:   "{{key}} must be between {{min}} and {{max}}",
			Usage: `Admin commands:
/admin - show this panel
/admin_set <key> <value> - override an option
/admin_reset <key>|all|summary_state|summary_usage [userId]|voice_usage - reset an option or chat data`,
		},
	}
}
