package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/session"
)

const (
	groqProvider = "groq"
	// groqMaxImageBytes is the API's limit for base64-encoded images.
	groqMaxImageBytes = 4 << 20
)

// groqClient uses Groq's OpenAI-compatible API. Groq cannot read uploaded
// documents or video, so PDFs are converted to text locally and audio is
// transcribed before being explained.
type groqClient struct {
	keys              *KeyRing
	clients           []*openai.Client
	log               *slog.Logger
	model             string
	visionModel       string
	whisperModel      string
	temperature       float32
	systemInstruction string
	maxPDFChars       int
	caller            caller
	inlineLimit       int64
}

// NewGroqClient creates a Groq client for every configured key.
func NewGroqClient(cfg config.AIConfig, logger *slog.Logger) (Client, error) {
	log := logger.With("component", "groq_client")
	ring := NewKeyRing(groqProvider, cfg.GroqKeys, logger)
	if ring.Len() == 0 {
		return nil, fmt.Errorf("at least one groq API key is required")
	}

	clients := make([]*openai.Client, 0, ring.Len())
	for _, key := range ring.Keys() {
		aiConfig := openai.DefaultConfig(key)
		aiConfig.BaseURL = strings.TrimSuffix(cfg.GroqBaseURL, "/")
		clients = append(clients, openai.NewClientWithConfig(aiConfig))
	}

	instruction := cfg.SystemInstruction
	if instruction == "" {
		instruction = DefaultSystemInstruction
	}

	log.Info("Groq client initialized", "model", cfg.GroqModel, "vision_model", cfg.GroqVisionModel, "keys", ring.Len())
	return &groqClient{
		keys:              ring,
		clients:           clients,
		log:               log,
		model:             cfg.GroqModel,
		visionModel:       cfg.GroqVisionModel,
		whisperModel:      cfg.GroqWhisperModel,
		temperature:       cfg.Temperature,
		systemInstruction: instruction,
		maxPDFChars:       cfg.MaxPDFChars,
		caller:            newCaller(groqProvider, cfg, log),
		inlineLimit:       groqMaxImageBytes,
	}, nil
}

func (c *groqClient) Provider() string { return groqProvider }

func (c *groqClient) GenerateReply(ctx context.Context, history []session.Turn, prompt string) (string, error) {
	c.log.DebugContext(ctx, "Generating reply", "history_turns", len(history))

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.systemInstruction})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == session.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	return c.complete(ctx, "reply", c.model, messages)
}

func (c *groqClient) AnalyzeImage(ctx context.Context, data []byte, mimeType, caption string) (string, error) {
	if len(data) == 0 || mimeType == "" {
		return "", fmt.Errorf("image data and MIME type are required for analysis")
	}
	c.log.DebugContext(ctx, "Analyzing image", "size", len(data), "mime_type", mimeType)
	if int64(len(data)) > c.inlineLimit {
		return "", &TooLargeError{Size: int64(len(data)), Limit: c.inlineLimit}
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: c.systemInstruction},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: withCaption(ImagePrompt, caption)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto}},
			},
		},
	}
	return c.complete(ctx, "image", c.visionModel, messages)
}

func (c *groqClient) AnalyzeFile(ctx context.Context, file LocalFile, caption string, _ ProgressFunc) (string, error) {
	switch file.Kind {
	case KindImage:
		if info, err := os.Stat(file.Path); err == nil && info.Size() > c.inlineLimit {
			return "", &TooLargeError{Size: info.Size(), Limit: c.inlineLimit}
		}
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read image %s: %w", file.Path, err)
		}
		return c.AnalyzeImage(ctx, data, file.MIMEType, caption)

	case KindPDF:
		text, err := ExtractPDFText(file.Path, c.maxPDFChars)
		if err != nil {
			return "", err
		}
		return c.GenerateReply(ctx, nil, withCaption(ExtractedTextPrompt+text, caption))

	case KindAudio:
		transcript, err := c.Transcribe(ctx, file.Path, file.MIMEType)
		if err != nil {
			return "", err
		}
		if transcript == "" {
			return "", fmt.Errorf("%w: empty transcript", ErrEmptyResponse)
		}
		return c.GenerateReply(ctx, nil, withCaption(TranscriptPrompt+transcript, caption))
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, file.Kind)
}

func (c *groqClient) Transcribe(ctx context.Context, path, _ string) (string, error) {
	var transcript string
	err := c.keys.Do(ctx, func(ctx context.Context, slot int, _ string) error {
		return c.caller.call(ctx, "transcribe", func(ctx context.Context) error {
			resp, err := c.clients[slot].CreateTranscription(ctx, openai.AudioRequest{
				Model:    c.whisperModel,
				FilePath: path,
			})
			if err != nil {
				return err
			}
			transcript = strings.TrimSpace(resp.Text)
			return nil
		})
	})
	return transcript, err
}

func (c *groqClient) complete(ctx context.Context, operation, model string, messages []openai.ChatCompletionMessage) (string, error) {
	var reply string
	err := c.keys.Do(ctx, func(ctx context.Context, slot int, _ string) error {
		return c.caller.call(ctx, operation, func(ctx context.Context) error {
			resp, err := c.clients[slot].CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       model,
				Messages:    messages,
				Temperature: c.temperature,
			})
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return ErrEmptyResponse
			}
			reply = strings.TrimSpace(resp.Choices[0].Message.Content)
			if reply == "" {
				return ErrEmptyResponse
			}
			return nil
		})
	})
	return reply, err
}
