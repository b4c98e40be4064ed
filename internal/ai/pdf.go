package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/tutorbot/tutorbot/internal/text"
)

// ExtractPDFText returns the plain text of the PDF at path, page by page, cut
// to at most maxChars characters. Pages that fail to decode are skipped.
func ExtractPDFText(path string, maxChars int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(strings.TrimSpace(content))
		sb.WriteString("\n\n")
		if maxChars > 0 && utf8.RuneCountInString(sb.String()) >= maxChars {
			break
		}
	}

	extracted := strings.TrimSpace(sb.String())
	if extracted == "" {
		return "", fmt.Errorf("%w: no extractable text in pdf", ErrUnsupported)
	}
	if maxChars > 0 {
		extracted = text.Truncate(extracted, maxChars)
	}
	return extracted, nil
}
