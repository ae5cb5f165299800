package chat

import (
	"time"

	"belgaum-backend/internal/config"
)

// Settings is the conversation policy applied by every orchestrator.
type Settings struct {
	MaxInputLength   int
	HistoryRetention time.Duration

	InactivityNudge time.Duration
	MaxNudges       int
	DisconnectGrace time.Duration
	// Inactivity is ignored until the transcript holds this many user messages.
	MinUserMessagesForNudge int

	WelcomeMessage    string
	NudgeMessage      string
	DisconnectMessage string

	SystemPrompt        string
	SummarizationPrompt string
	Temperature         float64
	MaxResponseTokens   int
	SummaryMaxTokens    int

	HandOffPhone   string
	AuditTimeout   time.Duration
	HandOffTimeout time.Duration
}

// SettingsFromConfig builds Settings from the loaded configuration. An empty
// systemPrompt selects DefaultSystemPrompt.
func SettingsFromConfig(cfg *config.Config, systemPrompt string) Settings {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return Settings{
		MaxInputLength:          cfg.Chat.MaxInputLength,
		HistoryRetention:        cfg.Chat.HistoryDuration(),
		InactivityNudge:         cfg.Chat.InactivityNudge(),
		MaxNudges:               cfg.Chat.MaxNudges,
		DisconnectGrace:         cfg.Chat.DisconnectGrace(),
		MinUserMessagesForNudge: 3,
		WelcomeMessage:          cfg.Chat.WelcomeMessage,
		NudgeMessage:            cfg.Chat.NudgeMessage,
		DisconnectMessage:       cfg.Chat.DisconnectMessage,
		SystemPrompt:            systemPrompt,
		SummarizationPrompt:     cfg.Chat.SummarizationPrompt,
		Temperature:             cfg.LLM.Temperature,
		MaxResponseTokens:       cfg.LLM.MaxResponseTokens,
		SummaryMaxTokens:        cfg.LLM.SummaryMaxTokens,
		HandOffPhone:            cfg.Chat.HandOffPhone,
		AuditTimeout:            10 * time.Second,
		HandOffTimeout:          30 * time.Second,
	}
}
