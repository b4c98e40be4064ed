package ai_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorbot/tutorbot/internal/ai"
)

// buildPDF returns a one-page PDF showing each line in Helvetica. An empty
// lines list yields a page without text.
func buildPDF(lines ...string) []byte {
	var content bytes.Buffer
	if len(lines) > 0 {
		content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td\n")
		for i, line := range lines {
			if i > 0 {
				content.WriteString("T*\n")
			}
			fmt.Fprintf(&content, "(%s) Tj\n", line)
		}
		content.WriteString("ET\n")
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

func writePDF(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF(lines...), 0o600))
	return path
}

func TestExtractPDFText(t *testing.T) {
	t.Parallel()

	path := writePDF(t, "Chapter 1: Thermodynamics", "Energy is conserved")

	got, err := ai.ExtractPDFText(path, 1000)
	require.NoError(t, err)
	assert.Contains(t, got, "Chapter 1: Thermodynamics")
	assert.Contains(t, got, "Energy is conserved")
}

func TestExtractPDFText_Truncates(t *testing.T) {
	t.Parallel()

	path := writePDF(t, "Mitochondria are the powerhouse of the cell and produce ATP")

	got, err := ai.ExtractPDFText(path, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, utf8.RuneCountInString(got))
	assert.Equal(t, "Mitochondria are the", got)
}

func TestExtractPDFText_NoText(t *testing.T) {
	t.Parallel()

	_, err := ai.ExtractPDFText(writePDF(t), 1000)
	require.ErrorIs(t, err, ai.ErrUnsupported)
}

func TestExtractPDFText_NotAPDF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some plain text, not a pdf"), 0o600))

	_, err := ai.ExtractPDFText(path, 1000)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ai.ErrUnsupported)
}
