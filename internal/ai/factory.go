package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/session"
)

// NewClient returns the client for the configured provider. Without keys it
// returns a client whose every call fails with ErrUnavailable, so the bot
// keeps running and answers with a fixed apology.
func NewClient(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (Client, error) {
	if len(cfg.ProviderKeys()) == 0 {
		logger.Warn("No AI API keys configured, AI features are disabled", "provider", cfg.Provider)
		return Unavailable(cfg.Provider), nil
	}

	logger.Info("Initializing AI client", "provider", cfg.Provider)
	switch cfg.Provider {
	case geminiProvider:
		return NewGeminiClient(ctx, cfg, clockwork.NewRealClock(), logger)
	case groqProvider:
		return NewGroqClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.Provider)
	}
}

type unavailableClient struct {
	provider string
}

// Unavailable returns a Client that rejects every request with ErrUnavailable.
func Unavailable(provider string) Client {
	return unavailableClient{provider: provider}
}

func (u unavailableClient) Provider() string { return u.provider }

func (unavailableClient) GenerateReply(context.Context, []session.Turn, string) (string, error) {
	return "", ErrUnavailable
}

func (unavailableClient) AnalyzeImage(context.Context, []byte, string, string) (string, error) {
	return "", ErrUnavailable
}

func (unavailableClient) AnalyzeFile(context.Context, LocalFile, string, ProgressFunc) (string, error) {
	return "", ErrUnavailable
}

func (unavailableClient) Transcribe(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}
