package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestValidText(t *testing.T) {
	t.Parallel()

	require.True(t, ValidText(""))
	require.True(t, ValidText("café ☕"))
	require.False(t, ValidText("bad\xff"))
	require.False(t, ValidText("nul\x00byte"))
}

func TestSanitizeTitle(t *testing.T) {
	t.Parallel()

	t.Run("removes control and zero-width characters", func(t *testing.T) {
		require.Equal(t, "Buy milk", SanitizeTitle("  Buy\u200B\x00 milk\u200D "))
	})

	t.Run("collapses line breaks into spaces", func(t *testing.T) {
		require.Equal(t, "first second", SanitizeTitle("first\r\nsecond"))
	})

	t.Run("can sanitize to empty", func(t *testing.T) {
		require.Empty(t, SanitizeTitle("\u200B\uFEFF"))
	})

	t.Run("truncates by runes", func(t *testing.T) {
		actual := SanitizeTitle(strings.Repeat("é", 600))
		require.True(t, utf8.ValidString(actual))
		require.Equal(t, maxTitleRunes, utf8.RuneCountInString(actual))
	})
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "line one\n\tline two", SanitizeText(" line one\r\n\tline\u2060 two\x07 "))
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	require.Equal(t, `50\% off\_now \\ later`, EscapeLike(`50% off_now \ later`))
	require.Equal(t, "plain", EscapeLike("plain"))
}
