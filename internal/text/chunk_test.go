package text_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tutorbot/tutorbot/internal/text"
)

func TestSplitIntoMessageSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		limit    int
		expected []string
	}{
		{
			name:     "Empty input",
			input:    "",
			limit:    10,
			expected: []string{},
		},
		{
			name:     "Only newlines",
			input:    "\n\n\n\n",
			limit:    10,
			expected: []string{},
		},
		{
			name:     "Short input is trimmed",
			input:    "  hello world \n",
			limit:    100,
			expected: []string{"hello world"},
		},
		{
			name:     "Line exactly at limit is kept whole",
			input:    "abcdefghij",
			limit:    10,
			expected: []string{"abcdefghij"},
		},
		{
			name:     "Line exactly at limit with terminator",
			input:    "abcdefghij\nklm",
			limit:    10,
			expected: []string{"abcdefghij", "klm"},
		},
		{
			name:     "Lines packed until limit",
			input:    "aaa\nbbb\nccc\nddd",
			limit:    8,
			expected: []string{"aaa\nbbb", "ccc\nddd"},
		},
		{
			name:     "Long line is hard split after flushing buffer",
			input:    "hi\n" + strings.Repeat("x", 12) + "\nbye",
			limit:    5,
			expected: []string{"hi", "xxxxx", "xxxxx", "xx", "bye"},
		},
		{
			name:     "Multibyte characters counted as runes",
			input:    "مرحبا بك",
			limit:    5,
			expected: []string{"مرحبا", "بك"},
		},
		{
			name:     "Non-positive limit uses default",
			input:    "hello",
			limit:    0,
			expected: []string{"hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := text.SplitIntoMessageSegments(tt.input, tt.limit)
			if len(got) != len(tt.expected) {
				t.Fatalf("SplitIntoMessageSegments() returned %d segments %q, want %d %q", len(got), got, len(tt.expected), tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("segment %d = %q, want %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func sampleInputs() []string {
	return []string{
		"",
		"one line",
		"first\nsecond\nthird",
		strings.Repeat("word ", 300),
		strings.Repeat("paragraph with some words\n\n", 50),
		strings.Repeat("z", 1000) + "\n" + strings.Repeat("short\n", 40),
		"  leading and trailing  \n\n  spaces  \n",
		"\r\nwindows\r\nline endings\r\n",
		strings.Repeat("سطر عربي قصير\n", 80),
	}
}

func TestSplitIntoMessageSegments_NeverExceedsLimit(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{1, 2, 7, 16, 64, 333, 4096} {
		for _, input := range sampleInputs() {
			for i, seg := range text.SplitIntoMessageSegments(input, limit) {
				if n := utf8.RuneCountInString(seg); n > limit {
					t.Errorf("limit %d: segment %d has length %d", limit, i, n)
				}
				if seg == "" {
					t.Errorf("limit %d: segment %d is empty", limit, i)
				}
			}
		}
	}
}

func TestSplitIntoMessageSegments_ShortInputIsSingleTrimmedSegment(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"hello", " \n padded \n ", "a\nb\nc", "   "} {
		got := text.SplitIntoMessageSegments(input, 64)
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			if len(got) != 0 {
				t.Errorf("input %q: got %q, want no segments", input, got)
			}
			continue
		}
		if len(got) != 1 || got[0] != trimmed {
			t.Errorf("input %q: got %q, want [%q]", input, got, trimmed)
		}
	}
}

func TestSplitIntoMessageSegments_PreservesContent(t *testing.T) {
	t.Parallel()

	squash := func(s string) string { return strings.Join(strings.Fields(s), "") }

	for _, limit := range []int{3, 10, 50, 4096} {
		for _, input := range sampleInputs() {
			segments := text.SplitIntoMessageSegments(input, limit)
			if got, want := squash(strings.Join(segments, "")), squash(input); got != want {
				t.Errorf("limit %d: content changed\n got: %q\nwant: %q", limit, got, want)
			}
		}
	}
}

func TestSplitIntoMessageSegments_HardSplitLongLine(t *testing.T) {
	t.Parallel()

	const limit = 20
	line := strings.Repeat("k", 2*limit+5)

	got := text.SplitIntoMessageSegments(line, limit)
	if len(got) < 3 {
		t.Fatalf("got %d segments, want at least 3", len(got))
	}
	for i := 0; i < 2; i++ {
		if len(got[i]) != limit {
			t.Errorf("segment %d has length %d, want %d", i, len(got[i]), limit)
		}
	}
}

func TestSplitIntoMessageSegments_Idempotent(t *testing.T) {
	t.Parallel()

	const limit = 1 << 20
	for _, input := range sampleInputs() {
		first := text.SplitIntoMessageSegments(input, limit)
		second := text.SplitIntoMessageSegments(strings.Join(first, "\n"), limit)
		if strings.Join(first, "\x00") != strings.Join(second, "\x00") {
			t.Errorf("re-splitting changed result for %q: %q vs %q", input, first, second)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"مرحبا", 2, "مر"},
		{"anything", 0, ""},
	}

	for _, tt := range tests {
		if got := text.Truncate(tt.input, tt.max); got != tt.expected {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.expected)
		}
	}
}
