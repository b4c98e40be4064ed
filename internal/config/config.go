// Package config loads and validates tutorbot configuration from an optional
// YAML file, a .env file and the process environment.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config is the root configuration for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	AI        AIConfig        `mapstructure:"ai"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Session   SessionConfig   `mapstructure:"session"`
	Upload    UploadConfig    `mapstructure:"upload"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type TelegramConfig struct {
	Token         string `mapstructure:"token"          validate:"required"`
	AdminUserID   int64  `mapstructure:"admin_user_id"  validate:"gte=0"`
	WebhookURL    string `mapstructure:"webhook_url"    validate:"omitempty,url"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// AIConfig selects and tunes the AI provider. Empty key lists leave the bot
// running with every AI feature answering Messages.AIUnavailable.
type AIConfig struct {
	Provider          string   `mapstructure:"provider"           validate:"omitempty,oneof=gemini groq"`
	GeminiKeys        []string `mapstructure:"gemini_keys"`
	GeminiModel       string   `mapstructure:"gemini_model"       validate:"required"`
	GeminiBaseURL     string   `mapstructure:"gemini_base_url"    validate:"omitempty,url"`
	GroqKeys          []string `mapstructure:"groq_keys"`
	GroqBaseURL       string   `mapstructure:"groq_base_url"      validate:"required,url"`
	GroqModel         string   `mapstructure:"groq_model"         validate:"required"`
	GroqVisionModel   string   `mapstructure:"groq_vision_model"  validate:"required"`
	GroqWhisperModel  string   `mapstructure:"groq_whisper_model" validate:"required"`
	Temperature       float32  `mapstructure:"temperature"        validate:"min=0,max=2"`
	SystemInstruction string   `mapstructure:"system_instruction"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=10m"`
	PollInterval   time.Duration `mapstructure:"poll_interval"   validate:"min=100ms"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"    validate:"min=1s"`
	MaxRetries     int           `mapstructure:"max_retries"     validate:"min=0,max=10"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MaxPDFChars    int           `mapstructure:"max_pdf_chars"   validate:"min=1000"`
}

type DatabaseConfig struct {
	// URL is a postgres:// DSN or a SQLite file path.
	URL           string        `mapstructure:"url"             validate:"required"`
	MaxLogContent int           `mapstructure:"max_log_content" validate:"min=1"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"  validate:"min=1"`
	LogRetention  time.Duration `mapstructure:"log_retention"`
}

type SessionConfig struct {
	MaxTurns            int           `mapstructure:"max_turns" validate:"min=1,max=100"`
	MaxUsers            int           `mapstructure:"max_users" validate:"min=0"`
	TTL                 time.Duration `mapstructure:"ttl"`
	RecordFailedReplies bool          `mapstructure:"record_failed_replies"`
}

type UploadConfig struct {
	MaxFileSize int64  `mapstructure:"max_file_size" validate:"min=1"`
	TempDir     string `mapstructure:"temp_dir"`
}

type HTTPConfig struct {
	Port       int    `mapstructure:"port" validate:"min=1,max=65535"`
	AdminToken string `mapstructure:"admin_token"`
}

type BroadcastConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gt=0"`
	Burst         int     `mapstructure:"burst"           validate:"min=1"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" validate:"gt=0"`
	Burst             int     `mapstructure:"burst"               validate:"min=1"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig schedules one registered task with a cron expression (seconds
// field optional).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds every user-facing reply text.
type MessagesConfig struct {
	Welcome           string `mapstructure:"welcome"            validate:"required"`
	Help              string `mapstructure:"help"               validate:"required"`
	HistoryReset      string `mapstructure:"history_reset"      validate:"required"`
	Unauthorized      string `mapstructure:"unauthorized"       validate:"required"`
	AIUnavailable     string `mapstructure:"ai_unavailable"     validate:"required"`
	AIError           string `mapstructure:"ai_error"           validate:"required"`
	KeysExhausted     string `mapstructure:"keys_exhausted"     validate:"required"`
	KeysExhaustedWait string `mapstructure:"keys_exhausted_wait" validate:"required"`
	Timeout           string `mapstructure:"timeout"            validate:"required"`
	Processing        string `mapstructure:"processing"         validate:"required"`
	ProcessingPercent string `mapstructure:"processing_percent" validate:"required"`
	ProcessingTimeout string `mapstructure:"processing_timeout" validate:"required"`
	ProcessingFailed  string `mapstructure:"processing_failed"  validate:"required"`
	FileTooLarge      string `mapstructure:"file_too_large"     validate:"required"`
	UnsupportedType   string `mapstructure:"unsupported_type"   validate:"required"`
	VisionUnavailable string `mapstructure:"vision_unavailable" validate:"required"`
	DownloadFailed    string `mapstructure:"download_failed"    validate:"required"`
	EmptyReply        string `mapstructure:"empty_reply"        validate:"required"`
	EmptyTranscript   string `mapstructure:"empty_transcript"   validate:"required"`
	RateLimited       string `mapstructure:"rate_limited"       validate:"required"`
	Stats             string `mapstructure:"stats"              validate:"required"`
	BroadcastUsage    string `mapstructure:"broadcast_usage"    validate:"required"`
	BroadcastStarted  string `mapstructure:"broadcast_started"  validate:"required"`
	BroadcastDone     string `mapstructure:"broadcast_done"     validate:"required"`
	LogsCleared       string `mapstructure:"logs_cleared"       validate:"required"`
	GeneralError      string `mapstructure:"general_error"      validate:"required"`
}
