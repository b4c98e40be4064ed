package ai

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"google.golang.org/genai"

	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/session"
)

const (
	geminiProvider     = "gemini"
	fileCleanupTimeout = 15 * time.Second
	// maxInlineBytes keeps inline request bodies under the API's 20 MB cap.
	maxInlineBytes = 18 << 20
)

// geminiBackend is the slice of the genai API used with one key.
type geminiBackend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	UploadFile(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

type genaiBackend struct {
	client *genai.Client
}

func (g genaiBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, cfg)
}

func (g genaiBackend) UploadFile(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error) {
	return g.client.Files.UploadFromPath(ctx, path, cfg)
}

func (g genaiBackend) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return g.client.Files.Get(ctx, name, nil)
}

func (g genaiBackend) DeleteFile(ctx context.Context, name string) error {
	_, err := g.client.Files.Delete(ctx, name, nil)
	return err
}

// geminiClient talks to the Gemini API with one backend per API key.
// Uploaded files belong to the key that uploaded them, so a rotation during
// AnalyzeFile uploads the file again with the next key.
type geminiClient struct {
	keys          *KeyRing
	backends      []geminiBackend
	log           *slog.Logger
	model         string
	contentConfig *genai.GenerateContentConfig
	caller        caller
	poll          PollConfig
	clock         clockwork.Clock
	// inlineLimit is the largest payload sent inside a request; bigger
	// images go through the Files API.
	inlineLimit int64
}

// NewGeminiClient creates a Gemini client for every configured key.
func NewGeminiClient(ctx context.Context, cfg config.AIConfig, clock clockwork.Clock, logger *slog.Logger) (Client, error) {
	ring := NewKeyRing(geminiProvider, cfg.GeminiKeys, logger)
	if ring.Len() == 0 {
		return nil, fmt.Errorf("at least one gemini API key is required")
	}

	backends := make([]geminiBackend, 0, ring.Len())
	for i, key := range ring.Keys() {
		gi, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      key,
			Backend:     genai.BackendGeminiAPI,
			HTTPOptions: genai.HTTPOptions{BaseURL: cfg.GeminiBaseURL},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client for key %d: %w", i, err)
		}
		backends = append(backends, genaiBackend{client: gi})
	}

	c := newGeminiClient(cfg, ring, backends, clock, logger)
	c.log.Info("Gemini client initialized", "model", cfg.GeminiModel, "keys", ring.Len())
	return c, nil
}

// newGeminiClient builds the client around one backend per key in ring.
func newGeminiClient(cfg config.AIConfig, ring *KeyRing, backends []geminiBackend, clock clockwork.Clock, logger *slog.Logger) *geminiClient {
	log := logger.With("component", "gemini_client")

	temperature := cfg.Temperature
	instruction := cfg.SystemInstruction
	if instruction == "" {
		instruction = DefaultSystemInstruction
	}
	baseCfg := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
		},
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &geminiClient{
		keys:          ring,
		backends:      backends,
		log:           log,
		model:         cfg.GeminiModel,
		contentConfig: baseCfg,
		caller:        newCaller(geminiProvider, cfg, log),
		poll:          PollConfig{Interval: cfg.PollInterval, Timeout: cfg.PollTimeout},
		clock:         clock,
		inlineLimit:   maxInlineBytes,
	}
}

func (c *geminiClient) Provider() string { return geminiProvider }

func (c *geminiClient) GenerateReply(ctx context.Context, history []session.Turn, prompt string) (string, error) {
	c.log.DebugContext(ctx, "Generating reply", "history_turns", len(history))

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == session.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	var reply string
	err := c.keys.Do(ctx, func(ctx context.Context, slot int, _ string) error {
		var err error
		reply, err = c.generate(ctx, c.backends[slot], "reply", contents)
		return err
	})
	return reply, err
}

func (c *geminiClient) AnalyzeImage(ctx context.Context, data []byte, mimeType, caption string) (string, error) {
	if len(data) == 0 || mimeType == "" {
		return "", fmt.Errorf("image data and MIME type are required for analysis")
	}
	c.log.DebugContext(ctx, "Analyzing image", "size", len(data), "mime_type", mimeType)

	if int64(len(data)) > c.inlineLimit {
		return c.analyzeLargeImage(ctx, data, mimeType, caption)
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(withCaption(ImagePrompt, caption)),
	}, genai.RoleUser)}

	var reply string
	err := c.keys.Do(ctx, func(ctx context.Context, slot int, _ string) error {
		var err error
		reply, err = c.generate(ctx, c.backends[slot], "image", contents)
		return err
	})
	return reply, err
}

// analyzeLargeImage spools an image too big to inline and sends it through
// the Files API.
func (c *geminiClient) analyzeLargeImage(ctx context.Context, data []byte, mimeType, caption string) (string, error) {
	ext := ".img"
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		ext = exts[0]
	}
	f, err := os.CreateTemp("", "gemini-image-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to spool image: %w", err)
	}
	defer os.Remove(f.Name())

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to spool image: %w", err)
	}

	c.log.InfoContext(ctx, "Image exceeds inline limit, uploading", "size", len(data), "limit", c.inlineLimit)
	return c.analyzeUploaded(ctx, LocalFile{Path: f.Name(), MIMEType: mimeType, Kind: KindImage}, withCaption(ImagePrompt, caption), nil)
}

func (c *geminiClient) AnalyzeFile(ctx context.Context, file LocalFile, caption string, progress ProgressFunc) (string, error) {
	if file.Kind == KindImage {
		info, err := os.Stat(file.Path)
		if err != nil {
			return "", fmt.Errorf("failed to stat image %s: %w", file.Path, err)
		}
		if info.Size() > c.inlineLimit {
			return c.analyzeUploaded(ctx, file, withCaption(ImagePrompt, caption), progress)
		}
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read image %s: %w", file.Path, err)
		}
		return c.AnalyzeImage(ctx, data, file.MIMEType, caption)
	}
	return c.analyzeUploaded(ctx, file, filePrompt(file.Kind, caption), progress)
}

// analyzeUploaded uploads file with the current key, waits until the API has
// processed it and asks the prompt about it. The upload is deleted on return.
func (c *geminiClient) analyzeUploaded(ctx context.Context, file LocalFile, prompt string, progress ProgressFunc) (string, error) {
	var reply string
	err := c.keys.Do(ctx, func(ctx context.Context, slot int, _ string) error {
		backend := c.backends[slot]

		uploaded, err := c.upload(ctx, backend, file)
		if err != nil {
			return err
		}
		defer c.deleteFile(ctx, backend, uploaded.Name)

		if err := WaitForRemoteProcessing(ctx, uploaded.Name, c.fileState(backend), progress, c.poll, c.clock, c.log); err != nil {
			return err
		}

		mimeType := uploaded.MIMEType
		if mimeType == "" {
			mimeType = file.MIMEType
		}
		contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(uploaded.URI, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser)}

		reply, err = c.generate(ctx, backend, string(file.Kind), contents)
		return err
	})
	return reply, err
}

func (c *geminiClient) Transcribe(ctx context.Context, path, mimeType string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat audio %s: %w", path, err)
	}
	if info.Size() > c.inlineLimit {
		return "", &TooLargeError{Size: info.Size(), Limit: c.inlineLimit}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read audio %s: %w", path, err)
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText("Transcribe this recording word for word in its original language. Reply with the transcript only."),
	}, genai.RoleUser)}

	var transcript string
	err = c.keys.Do(ctx, func(ctx context.Context, slot int, _ string) error {
		var err error
		transcript, err = c.generate(ctx, c.backends[slot], "transcribe", contents)
		return err
	})
	return strings.TrimSpace(transcript), err
}

func (c *geminiClient) upload(ctx context.Context, backend geminiBackend, file LocalFile) (*genai.File, error) {
	start := time.Now()
	uploaded, err := backend.UploadFile(ctx, file.Path, &genai.UploadFileConfig{
		MIMEType:    file.MIMEType,
		DisplayName: filepath.Base(file.Path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(file.Path), err)
	}
	c.log.InfoContext(ctx, "File uploaded", "name", uploaded.Name, "mime_type", uploaded.MIMEType, "state", uploaded.State, "duration", time.Since(start))
	return uploaded, nil
}

func (c *geminiClient) fileState(backend geminiBackend) StateFunc {
	return func(ctx context.Context, name string) (RemoteState, error) {
		f, err := backend.GetFile(ctx, name)
		if err != nil {
			return StatePending, err
		}
		state := remoteStateOf(f.State)
		if state == StateFailed && f.Error != nil {
			c.log.WarnContext(ctx, "Remote file failed", "name", name, "reason", f.Error.Message)
		}
		return state, nil
	}
}

// remoteStateOf maps a Files API state onto the poller's states.
func remoteStateOf(state genai.FileState) RemoteState {
	switch state {
	case genai.FileStateActive:
		return StateActive
	case genai.FileStateFailed:
		return StateFailed
	default:
		return StatePending
	}
}

// deleteFile removes an uploaded file even when ctx is already cancelled.
func (c *geminiClient) deleteFile(ctx context.Context, backend geminiBackend, name string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fileCleanupTimeout)
	defer cancel()
	if err := backend.DeleteFile(delCtx, name); err != nil {
		c.log.WarnContext(ctx, "Failed to delete uploaded file", "name", name, "error", err)
		return
	}
	c.log.DebugContext(ctx, "Deleted uploaded file", "name", name)
}

func (c *geminiClient) generate(ctx context.Context, backend geminiBackend, operation string, contents []*genai.Content) (string, error) {
	var resp *genai.GenerateContentResponse
	err := c.caller.call(ctx, operation, func(ctx context.Context) error {
		var err error
		resp, err = backend.GenerateContent(ctx, c.model, contents, c.contentConfig)
		return err
	})
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, operation, resp)
}

func (c *geminiClient) extractText(ctx context.Context, operation string, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.WarnContext(ctx, "Gemini request blocked", "operation", operation, "reason", reason)
		return "", fmt.Errorf("%w: blocked by safety filter: %s", ErrEmptyResponse, reason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 {
			finishReason = string(resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response has no text", "operation", operation, "finish_reason", finishReason)
		return "", ErrEmptyResponse
	}
	return text, nil
}
