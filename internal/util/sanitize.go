package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxTitleRunes = 500

// SanitizeTitle strips control and invisible characters, collapses the result
// to a single trimmed line and truncates it to a sane length.
func SanitizeTitle(raw string) string {
	cleaned := strings.Join(strings.Fields(stripInvisible(raw, false)), " ")

	// Truncate by runes (not bytes) to avoid splitting multi-byte characters.
	runes := []rune(cleaned)
	if len(runes) > maxTitleRunes {
		runes = runes[:maxTitleRunes]
	}

	return string(runes)
}

// SanitizeText strips control and invisible characters but keeps line breaks
// and tabs, which are meaningful in free-form descriptions.
func SanitizeText(raw string) string {
	return strings.TrimSpace(stripInvisible(raw, true))
}

// ValidText reports whether raw can be sent to Postgres as text: valid UTF-8
// without NUL bytes.
func ValidText(raw string) bool {
	return utf8.ValidString(raw) && !strings.ContainsRune(raw, 0)
}

// EscapeLike escapes the LIKE/ILIKE wildcards in a user supplied search term so
// it matches literally. The query must declare ESCAPE '\'.
func EscapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

func stripInvisible(raw string, keepLayout bool) string {
	builder := strings.Builder{}
	builder.Grow(len(raw))

	for _, char := range raw {
		if keepLayout && (char == '\n' || char == '\t') {
			builder.WriteRune(char)
			continue
		}
		if char == '\r' {
			continue
		}
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			if !keepLayout && unicode.IsSpace(char) {
				builder.WriteRune(' ')
			}
			continue
		}

		builder.WriteRune(char)
	}

	return builder.String()
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\uFEFF', // Zero-Width No-Break Space / BOM
		'\uFFF9', // Interlinear Annotation Anchor
		'\uFFFA', // Interlinear Annotation Separator
		'\uFFFB': // Interlinear Annotation Terminator
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
