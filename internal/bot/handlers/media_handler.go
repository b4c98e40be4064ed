package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tutorbot/tutorbot/internal/ai"
	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/logger"
	"github.com/tutorbot/tutorbot/internal/session"
)

// mediaHandler explains photos, documents, audio and video.
type mediaHandler struct {
	deps HandlerDeps
}

// mediaRequest describes one uploaded file to analyze.
type mediaRequest struct {
	fileID   string
	fileName string
	fileSize int64
	mimeType string
	kind     ai.MediaKind
	logType  database.LogType
}

func (h mediaHandler) handlePhoto(ctx context.Context, b *bot.Bot, msg *models.Message) {
	var best models.PhotoSize
	bestQuality := 0
	for _, photo := range msg.Photo {
		if quality := photo.Width * photo.Height; quality > bestQuality {
			bestQuality = quality
			best = photo
		}
	}

	h.analyze(ctx, b, msg, mediaRequest{
		fileID:   best.FileID,
		fileSize: int64(best.FileSize),
		kind:     ai.KindImage,
		logType:  database.LogPhoto,
	})
}

func (h mediaHandler) handleDocument(ctx context.Context, b *bot.Bot, msg *models.Message) {
	doc := msg.Document
	mimeType := doc.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(doc.FileName))); byExt != "" {
			mimeType = byExt
		}
	}

	req := mediaRequest{
		fileID:   doc.FileID,
		fileName: doc.FileName,
		fileSize: int64(doc.FileSize),
		mimeType: mimeType,
		logType:  database.LogDocument,
	}
	kind, ok := ai.KindFromMIME(mimeType)
	if !ok {
		log := logger.FromContext(ctx, h.deps.Logger).With("handler", "media")
		log.InfoContext(ctx, "Unsupported document type", "chat_id", msg.Chat.ID, "mime_type", mimeType, "file_name", doc.FileName)
		SaveLogWithRetry(ctx, h.deps, msg.From.ID, database.LogDocument, describeUpload(req, msg.Caption))
		sendText(ctx, b, log, msg.Chat.ID, h.deps.Config.Messages.UnsupportedType)
		return
	}
	req.kind = kind
	if kind == ai.KindPDF {
		req.logType = database.LogPDF
	}
	h.analyze(ctx, b, msg, req)
}

func (h mediaHandler) handleAudio(ctx context.Context, b *bot.Bot, msg *models.Message) {
	a := msg.Audio
	h.analyze(ctx, b, msg, mediaRequest{
		fileID:   a.FileID,
		fileName: a.FileName,
		fileSize: int64(a.FileSize),
		mimeType: a.MimeType,
		kind:     ai.KindAudio,
		logType:  database.LogAudio,
	})
}

func (h mediaHandler) handleVideo(ctx context.Context, b *bot.Bot, msg *models.Message) {
	v := msg.Video
	h.analyze(ctx, b, msg, mediaRequest{
		fileID:   v.FileID,
		fileName: v.FileName,
		fileSize: int64(v.FileSize),
		mimeType: v.MimeType,
		kind:     ai.KindVideo,
		logType:  database.LogVideo,
	})
}

func (h mediaHandler) analyze(ctx context.Context, b *bot.Bot, msg *models.Message, req mediaRequest) {
	deps := h.deps
	log := logger.FromContext(ctx, deps.Logger).With("handler", "media", "kind", req.kind)
	ctx = logger.WithContext(ctx, log)
	chatID := msg.Chat.ID
	userID := msg.From.ID

	log.InfoContext(ctx, "Handling media message", "chat_id", chatID, "user_id", userID,
		"mime_type", req.mimeType, "file_size", req.fileSize)
	SaveLogWithRetry(ctx, deps, userID, req.logType, describeUpload(req, msg.Caption))

	maxSize := deps.Config.Upload.MaxFileSize
	if req.fileSize > maxSize {
		log.InfoContext(ctx, "File too large", "chat_id", chatID, "file_size", req.fileSize, "max_size", maxSize)
		sendText(ctx, b, log, chatID, fileTooLargeText(deps, maxSize))
		return
	}

	var (
		reply string
		err   error
	)
	if req.kind == ai.KindImage {
		reply, err = h.analyzeImage(ctx, b, msg, req)
	} else {
		reply, err = h.analyzeFile(ctx, b, msg, req)
	}
	if err != nil {
		if errors.Is(err, errDownload) {
			return
		}
		replyWithError(ctx, b, deps, chatID, userID, "", err, req.kind == ai.KindImage)
		return
	}

	deps.Sessions.Append(userID,
		session.Turn{Role: session.RoleUser, Content: describeUpload(req, msg.Caption)},
		session.Turn{Role: session.RoleModel, Content: reply},
	)
	if err := SendChunkedReply(ctx, b, deps, chatID, msg.ID, reply); err != nil {
		log.ErrorContext(ctx, "Reply was not fully delivered", "error", err, "chat_id", chatID)
	}
}

// errDownload marks a failure that has already been reported to the user.
var errDownload = errors.New("download failed")

func (h mediaHandler) analyzeImage(ctx context.Context, b *bot.Bot, msg *models.Message, req mediaRequest) (string, error) {
	deps := h.deps
	sendTyping(ctx, b, msg.Chat.ID)

	data, detected, err := DownloadBytes(ctx, b, deps.httpClient(), req.fileID, deps.Config.Upload.MaxFileSize)
	if err != nil {
		reportDownloadError(ctx, b, deps, msg.Chat.ID, err)
		return "", errDownload
	}
	mimeType := req.mimeType
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = detected
	}

	aiCtx, cancel := context.WithTimeout(ctx, aiBudget(deps.Config.AI, false))
	defer cancel()
	return deps.AI.AnalyzeImage(aiCtx, data, mimeType, msg.Caption)
}

func (h mediaHandler) analyzeFile(ctx context.Context, b *bot.Bot, msg *models.Message, req mediaRequest) (string, error) {
	deps := h.deps
	log := logger.FromContext(ctx, deps.Logger)

	status := sendStatus(ctx, b, deps, msg.Chat.ID, msg.ID)
	defer status.Delete(ctx)

	path, err := DownloadToTemp(ctx, b, deps.httpClient(), req.fileID, deps.Config.Upload.TempDir, tempPattern(req), deps.Config.Upload.MaxFileSize)
	if err != nil {
		reportDownloadError(ctx, b, deps, msg.Chat.ID, err)
		return "", errDownload
	}
	defer removeTemp(ctx, log, path)

	mimeType := req.mimeType
	if mimeType == "" {
		mimeType = defaultMIME(req.kind)
	}

	aiCtx, cancel := context.WithTimeout(ctx, aiBudget(deps.Config.AI, true))
	defer cancel()
	return deps.AI.AnalyzeFile(aiCtx, ai.LocalFile{Path: path, MIMEType: mimeType, Kind: req.kind}, msg.Caption, status.Progress)
}

// describeUpload is the log and history text for an uploaded file.
func describeUpload(req mediaRequest, caption string) string {
	desc := "[" + string(req.logType)
	if req.fileName != "" {
		desc += ": " + req.fileName
	}
	desc += "]"
	if caption = strings.TrimSpace(caption); caption != "" {
		desc += " " + caption
	}
	return desc
}

func tempPattern(req mediaRequest) string {
	ext := strings.ToLower(filepath.Ext(req.fileName))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(req.mimeType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return string(req.kind) + "-*" + ext
}

func defaultMIME(kind ai.MediaKind) string {
	switch kind {
	case ai.KindPDF:
		return "application/pdf"
	case ai.KindAudio:
		return "audio/mpeg"
	case ai.KindVideo:
		return "video/mp4"
	}
	return "application/octet-stream"
}

func fileTooLargeText(deps HandlerDeps, maxSize int64) string {
	return fmt.Sprintf(deps.Config.Messages.FileTooLarge, maxSize/(1024*1024))
}

func reportDownloadError(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, err error) {
	log := logger.FromContext(ctx, deps.Logger)
	log.ErrorContext(ctx, "File download failed", "error", err, "chat_id", chatID)
	if errors.Is(err, errFileTooLarge) {
		sendText(ctx, b, log, chatID, fileTooLargeText(deps, deps.Config.Upload.MaxFileSize))
		return
	}
	sendText(ctx, b, log, chatID, deps.Config.Messages.DownloadFailed)
}

func removeTemp(ctx context.Context, log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WarnContext(ctx, "Failed to remove temp file", "path", path, "error", err)
	}
}
