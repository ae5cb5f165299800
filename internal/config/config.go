package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	DefaultWelcomeMessage = "Greetings! Welcome to Belgaum.ai.\n\n" +
		"We are Strategic AI Orchestrators specialized in:\n" +
		"• Building sovereign AI architectures for total ownership.\n" +
		"• Deploying sub-second RAG and agentic workflows.\n" +
		"• Scaling enterprise intelligence through expert-led training.\n\n" +
		"How can we help you build the future today?"

	DefaultNudgeMessage = "Are you still with us? If you're ready to deep-dive into your requirements, " +
		"let's connect immediately on WhatsApp for an expert consultation.\n\n[OFFER_WHATSAPP]"

	DefaultDisconnectMessage = "We haven't heard from you in a while, so we're closing this chat. " +
		"Your conversation has been cleared. Reach out again anytime!"

	DefaultSummarizationPrompt = "Summarize the user's specific questions and requirements from the conversation " +
		"into one concise sentence. The summary MUST start with the exact phrase 'I am enquiring about' " +
		"followed by the summarized user input. Output ONLY the summary text."
)

type Config struct {
	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	Env         string `env:"ENV" envDefault:"development"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// Database
	DatabaseURL      string `env:"DATABASE_URL,required"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// Redis
	RedisURL string `env:"REDIS_URL,required"`

	// JWT
	JWTSecret string `env:"JWT_SECRET,required"`

	// Message store
	MessageStoreDriver string `env:"MESSAGE_STORE_DRIVER" envDefault:"redis"`
	SQLitePath         string `env:"MESSAGE_STORE_SQLITE_PATH" envDefault:"./data/messages.db"`

	// Audit
	AuditLogDir  string `env:"AUDIT_LOG_DIR" envDefault:"./chat_history_logs"`
	AuditWorkers int    `env:"AUDIT_WORKERS" envDefault:"2"`

	// reCAPTCHA (falls back to Google's public test key)
	RecaptchaSecret    string `env:"RECAPTCHA_SECRET_KEY" envDefault:"6LeIxAcTAAAAAGG-vFI1TnRWxMZNFuojJ4WifJWe"`
	RecaptchaVerifyURL string `env:"RECAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`

	// SMTP
	SMTPHost           string `env:"SMTP_HOST"`
	SMTPPort           string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser           string `env:"SMTP_USER"`
	SMTPPass           string `env:"SMTP_PASS"`
	SMTPFrom           string `env:"SMTP_FROM" envDefault:"noreply@belgaum.ai"`
	ContactNotifyEmail string `env:"CONTACT_NOTIFY_EMAIL"`

	// Admin
	AdminUsername     string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	LLM  LLMConfig
	Chat ChatConfig
}

// LLMConfig selects and tunes the upstream text-generation provider.
type LLMConfig struct {
	Provider           string  `env:"LLM_PROVIDER" envDefault:"gemini"`
	OpenAIAPIKey       string  `env:"OPENAI_API_KEY"`
	OpenAIModel        string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIEndpoint     string  `env:"OPENAI_ENDPOINT" envDefault:"https://api.openai.com/v1/chat/completions"`
	GeminiAPIKey       string  `env:"GEMINI_API_KEY"`
	GeminiModel        string  `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiEndpoint     string  `env:"GEMINI_ENDPOINT" envDefault:"https://generativelanguage.googleapis.com/v1beta/models"`
	Temperature        float64 `env:"LLM_TEMPERATURE" envDefault:"0.2"`
	MaxResponseTokens  int     `env:"LLM_MAX_RESPONSE_TOKENS" envDefault:"500"`
	SummaryMaxTokens   int     `env:"LLM_SUMMARY_MAX_TOKENS" envDefault:"150"`
	ConcurrentRequests int     `env:"LLM_CONCURRENT_REQUESTS" envDefault:"5"`
	SystemPromptPath   string  `env:"SYSTEM_PROMPT_PATH"`
}

// ChatConfig holds the chat widget policy. Durations are whole seconds.
type ChatConfig struct {
	MaxInputLength         int    `env:"CHAT_MAX_INPUT_LENGTH" envDefault:"250"`
	HistoryDurationSeconds int    `env:"CHAT_HISTORY_DURATION" envDefault:"259200"`
	InactivityNudgeSeconds int    `env:"CHAT_INACTIVITY_NUDGE_SECONDS" envDefault:"300"`
	MaxNudges              int    `env:"CHAT_MAX_NUDGES" envDefault:"2"`
	DisconnectGraceSeconds int    `env:"CHAT_DISCONNECT_GRACE_SECONDS" envDefault:"5"`
	HistorySweepSeconds    int    `env:"CHAT_HISTORY_SWEEP_SECONDS" envDefault:"3600"`
	WelcomeMessage         string `env:"CHAT_WELCOME_MESSAGE"`
	NudgeMessage           string `env:"CHAT_NUDGE_MESSAGE"`
	DisconnectMessage      string `env:"CHAT_DISCONNECT_MESSAGE"`
	SummarizationPrompt    string `env:"CHAT_SUMMARIZATION_PROMPT"`
	HandOffPhone           string `env:"CHAT_HANDOFF_PHONE" envDefault:"919845507313"`
}

func (c ChatConfig) HistoryDuration() time.Duration {
	return time.Duration(c.HistoryDurationSeconds) * time.Second
}

func (c ChatConfig) InactivityNudge() time.Duration {
	return time.Duration(c.InactivityNudgeSeconds) * time.Second
}

func (c ChatConfig) DisconnectGrace() time.Duration {
	return time.Duration(c.DisconnectGraceSeconds) * time.Second
}

// HistorySweepInterval is how often expired history is swept across all
// clients. Zero disables the sweep.
func (c ChatConfig) HistorySweepInterval() time.Duration {
	return time.Duration(c.HistorySweepSeconds) * time.Second
}

// Load reads configuration from the environment, loading a .env file first if one exists.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Chat.WelcomeMessage = orDefault(c.Chat.WelcomeMessage, DefaultWelcomeMessage)
	c.Chat.NudgeMessage = orDefault(c.Chat.NudgeMessage, DefaultNudgeMessage)
	c.Chat.DisconnectMessage = orDefault(c.Chat.DisconnectMessage, DefaultDisconnectMessage)
	c.Chat.SummarizationPrompt = orDefault(c.Chat.SummarizationPrompt, DefaultSummarizationPrompt)
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.MessageStoreDriver = strings.ToLower(strings.TrimSpace(c.MessageStoreDriver))
}

// Validate checks enumerations and numeric ranges.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or gemini, got %q", c.LLM.Provider)
	}
	switch c.MessageStoreDriver {
	case "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("MESSAGE_STORE_DRIVER must be redis, sqlite or memory, got %q", c.MessageStoreDriver)
	}
	if c.Chat.MaxInputLength <= 0 {
		return fmt.Errorf("CHAT_MAX_INPUT_LENGTH must be > 0")
	}
	if c.Chat.MaxNudges < 1 {
		return fmt.Errorf("CHAT_MAX_NUDGES must be >= 1")
	}
	if c.Chat.HistoryDurationSeconds <= 0 || c.Chat.InactivityNudgeSeconds <= 0 || c.Chat.DisconnectGraceSeconds < 0 {
		return fmt.Errorf("chat durations must be positive")
	}
	if c.Chat.HistorySweepSeconds < 0 {
		return fmt.Errorf("CHAT_HISTORY_SWEEP_SECONDS must be >= 0")
	}
	// go-openai omits a zero temperature from the request, so upstream would
	// silently use its own default.
	if c.LLM.Temperature <= 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be > 0 and <= 2, got %v", c.LLM.Temperature)
	}
	if c.LLM.ConcurrentRequests <= 0 {
		return fmt.Errorf("LLM_CONCURRENT_REQUESTS must be > 0")
	}
	if c.AuditWorkers <= 0 {
		return fmt.Errorf("AUDIT_WORKERS must be > 0")
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SystemPrompt returns the prompt file contents when SYSTEM_PROMPT_PATH is set.
// An empty string means the built-in prompt should be used.
func (c *Config) SystemPrompt() (string, error) {
	if c.LLM.SystemPromptPath == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.LLM.SystemPromptPath)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	return string(b), nil
}

func orDefault(val, defaultVal string) string {
	if strings.TrimSpace(val) == "" {
		return defaultVal
	}
	return val
}
