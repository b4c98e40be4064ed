// Package ai integrates the generative AI providers (Gemini and Groq) used to
// answer study questions about text, images, documents and media.
package ai

import (
	"context"
	"strings"

	"github.com/tutorbot/tutorbot/internal/session"
)

// MediaKind classifies an uploaded file by how providers must treat it.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindPDF   MediaKind = "pdf"
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// LocalFile is a downloaded Telegram file waiting to be analyzed.
type LocalFile struct {
	Path     string
	MIMEType string
	Kind     MediaKind
}

// Client defines the AI operations used by the bot handlers.
type Client interface {
	// Provider returns the provider name, e.g. "gemini".
	Provider() string

	// GenerateReply answers prompt given the user's previous turns.
	GenerateReply(ctx context.Context, history []session.Turn, prompt string) (string, error)

	// AnalyzeImage explains an inline image, optionally guided by caption.
	AnalyzeImage(ctx context.Context, data []byte, mimeType, caption string) (string, error)

	// AnalyzeFile explains a document, audio or video file. progress receives
	// completion estimates while the provider processes the upload.
	AnalyzeFile(ctx context.Context, file LocalFile, caption string, progress ProgressFunc) (string, error)

	// Transcribe converts an audio file to text.
	Transcribe(ctx context.Context, path, mimeType string) (string, error)
}

// KindFromMIME maps a MIME type to a media kind. ok is false for types no
// provider accepts.
func KindFromMIME(mimeType string) (MediaKind, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch {
	case mimeType == "application/pdf":
		return KindPDF, true
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage, true
	case strings.HasPrefix(mimeType, "audio/"), mimeType == "application/ogg":
		return KindAudio, true
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo, true
	}
	return "", false
}

func filePrompt(kind MediaKind, caption string) string {
	var base string
	switch kind {
	case KindPDF:
		base = DocumentPrompt
	case KindAudio:
		base = AudioPrompt
	case KindVideo:
		base = VideoPrompt
	default:
		base = ImagePrompt
	}
	return withCaption(base, caption)
}

func withCaption(base, caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return base
	}
	return base + "\n\n" + CaptionHeader + caption
}
