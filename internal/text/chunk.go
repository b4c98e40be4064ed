// Package text contains helpers for shaping generated text before it is sent
// to Telegram.
package text

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is Telegram's per-message character limit.
const MaxMessageLength = 4096

// SplitIntoMessageSegments splits s into segments of at most limit characters,
// breaking on line boundaries where possible. Lines longer than limit are cut
// into hard chunks. Segments are trimmed and empty ones dropped, so an empty or
// whitespace-only input yields no segments. A non-positive limit falls back to
// MaxMessageLength.
func SplitIntoMessageSegments(s string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}

	segments := []string{}
	var buf strings.Builder
	bufLen := 0

	emit := func(seg string) {
		if seg = strings.TrimSpace(seg); seg != "" {
			segments = append(segments, seg)
		}
	}
	flush := func() {
		emit(buf.String())
		buf.Reset()
		bufLen = 0
	}

	for _, line := range strings.SplitAfter(s, "\n") {
		if line == "" {
			continue
		}
		content := strings.TrimRight(line, "\r\n")
		contentLen := utf8.RuneCountInString(content)

		if contentLen > limit {
			flush()
			for _, chunk := range hardSplit(content, limit) {
				emit(chunk)
			}
			continue
		}

		// The trailing terminator of the last buffered line is trimmed on
		// flush, so only the content has to fit.
		if bufLen+contentLen > limit {
			flush()
		}
		buf.WriteString(line)
		bufLen += utf8.RuneCountInString(line)
	}
	flush()

	return segments
}

// hardSplit cuts s into consecutive chunks of at most limit runes.
func hardSplit(s string, limit int) []string {
	var chunks []string
	runes := []rune(s)
	for start := 0; start < len(runes); start += limit {
		end := min(start+limit, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Truncate shortens s to at most maxLen runes. It never splits a multi-byte
// character.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
