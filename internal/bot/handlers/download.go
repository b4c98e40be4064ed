package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const fileDownloadTimeout = 2 * time.Minute

// errFileTooLarge is returned when a download exceeds the configured limit.
var errFileTooLarge = errors.New("file exceeds size limit")

// openTelegramFile resolves fileID and starts the HTTP download. The caller
// must close the returned body.
func openTelegramFile(ctx context.Context, b *bot.Bot, client *http.Client, fileID string, maxSize int64) (*models.File, io.ReadCloser, error) {
	if fileID == "" {
		return nil, nil, fmt.Errorf("empty fileID provided for download")
	}
	if ctx.Err() != nil {
		return nil, nil, fmt.Errorf("context cancelled before file download: %w", ctx.Err())
	}

	fileObj, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get file info from Telegram: %w", err)
	}
	if fileObj.FilePath == "" {
		return nil, nil, fmt.Errorf("empty file path returned from Telegram for file ID %s", fileID)
	}
	if maxSize > 0 && int64(fileObj.FileSize) > maxSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", errFileTooLarge, fileObj.FileSize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(fileObj), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP request for file %s: %w", fileObj.FilePath, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download file %s: %w", fileObj.FilePath, err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("unexpected status code %d downloading %s: %s", resp.StatusCode, fileObj.FilePath, string(bodyBytes))
	}
	return fileObj, resp.Body, nil
}

// DownloadBytes downloads a Telegram file into memory and detects its MIME type.
func DownloadBytes(ctx context.Context, b *bot.Bot, client *http.Client, fileID string, maxSize int64) (data []byte, mimeType string, err error) {
	downloadCtx, cancel := context.WithTimeout(ctx, fileDownloadTimeout)
	defer cancel()

	_, body, err := openTelegramFile(downloadCtx, b, client, fileID, maxSize)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if closeErr := body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	data, err = io.ReadAll(io.LimitReader(body, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file data: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", errFileTooLarge
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("received empty file data for %s", fileID)
	}

	return data, http.DetectContentType(data), nil
}

// DownloadToTemp streams a Telegram file into a new file under dir and returns
// its path. The caller removes the file.
func DownloadToTemp(ctx context.Context, b *bot.Bot, client *http.Client, fileID, dir, pattern string, maxSize int64) (path string, err error) {
	downloadCtx, cancel := context.WithTimeout(ctx, fileDownloadTimeout)
	defer cancel()

	_, body, err := openTelegramFile(downloadCtx, b, client, fileID, maxSize)
	if err != nil {
		return "", err
	}
	defer body.Close()

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close temp file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	n, err := io.Copy(f, io.LimitReader(body, maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if n > maxSize {
		return "", errFileTooLarge
	}
	if n == 0 {
		return "", fmt.Errorf("received empty file data for %s", fileID)
	}
	return f.Name(), nil
}
