package web

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateTextUnderLimit(t *testing.T) {
	assert.Equal(t, "ciao", truncateText("ciao", 10))
	assert.Equal(t, "ciao", truncateText("ciao", 4))
}

func TestTruncateTextKeepsRuneBoundary(t *testing.T) {
	// "è" is two bytes; a byte-index cut at 4 would land mid-rune.
	out := truncateText("cosè il modem", 4)

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "cos", out)
}

func TestTruncateTextAccentedPage(t *testing.T) {
	text := strings.Repeat("città più è già ", 200)

	for limit := 1; limit <= 64; limit++ {
		out := truncateText(text, limit)
		assert.True(t, utf8.ValidString(out), "limit %d produced invalid UTF-8", limit)
		assert.LessOrEqual(t, len(out), limit)
	}
}

func TestFormatResultsEmpty(t *testing.T) {
	assert.Equal(t, NoResultsMessage, FormatResults(nil))
}

func TestFormatResultsNumbersEntries(t *testing.T) {
	out := FormatResults([]SearchResult{
		{Title: "Guida modem", URL: "https://example.com/a", Content: "Riavvia il modem."},
		{Title: "Assistenza", URL: "https://example.com/b", Content: "Contatta il supporto."},
	})

	assert.Contains(t, out, "[1] Guida modem")
	assert.Contains(t, out, "[2] Assistenza")
	assert.Contains(t, out, "https://example.com/b")
}
