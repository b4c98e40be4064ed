package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix prefixes the automatic environment binding of every key, e.g.
// TUTORBOT_SESSION_MAX_TURNS for session.max_turns.
const EnvPrefix = "TUTORBOT"

// envAliases binds the plain variable names used by hosting platforms.
var envAliases = map[string][]string{
	"telegram.token":         {"BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
	"telegram.admin_user_id": {"ADMIN_USER_ID", "ADMIN_ID"},
	"telegram.webhook_url":   {"WEBHOOK_URL"},
	"ai.provider":            {"AI_PROVIDER"},
	"ai.gemini_keys":         {"GEMINI_API_KEYS", "GEMINI_API_KEY"},
	"ai.groq_keys":           {"GROQ_API_KEYS", "GROQ_API_KEY"},
	"database.url":           {"DATABASE_URL"},
	"http.port":              {"PORT"},
	"http.admin_token":       {"HTTP_ADMIN_TOKEN"},
}

// LoadConfig builds the configuration from defaults, the YAML file at path (if
// it exists), a .env file in the working directory (if present) and the
// environment, then validates it.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		bindArgs := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(bindArgs...); err != nil {
			return nil, fmt.Errorf("%w: failed to bind env for %s: %w", ErrConfiguration, key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%w: failed to read %s: %w", ErrConfiguration, path, err)
			}
			slog.Debug("Configuration file loaded", "path", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to stat %s: %w", ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrConfiguration, err)
	}

	cfg.normalize()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return cfg, nil
}

// normalize cleans key lists and resolves the provider when it was not set.
func (c *Config) normalize() {
	c.AI.GeminiKeys = splitKeys(c.AI.GeminiKeys)
	c.AI.GroqKeys = splitKeys(c.AI.GroqKeys)
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))

	if c.AI.Provider == "" {
		switch {
		case len(c.AI.GeminiKeys) > 0:
			c.AI.Provider = "gemini"
		case len(c.AI.GroqKeys) > 0:
			c.AI.Provider = "groq"
		default:
			c.AI.Provider = "gemini"
		}
	}
}

// ProviderKeys returns the keys configured for the selected provider.
func (c *AIConfig) ProviderKeys() []string {
	if c.Provider == "groq" {
		return c.GroqKeys
	}
	return c.GeminiKeys
}

// IsAdmin reports whether userID is the configured admin. A zero admin id
// disables admin commands.
func (c *TelegramConfig) IsAdmin(userID int64) bool {
	return c.AdminUserID != 0 && userID == c.AdminUserID
}

// splitKeys flattens comma-separated entries and drops blanks.
func splitKeys(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, k := range strings.Split(entry, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}
