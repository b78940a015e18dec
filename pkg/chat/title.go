package chat

import (
	"strings"
	"unicode"
)

const (
	maxTitleLength  = 50
	titlePrefixLen  = 47
	minTitleWordCut = 20
	titleEllipsis   = "..."
)

// GenerateTitle derives a session title from the first user message.
func GenerateTitle(text string) string {
	text = strings.TrimSpace(text)

	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		case isTitleRune(r):
			b.WriteRune(r)
		default:
			// dropped runes do not end a whitespace run
			continue
		}
		inSpace = false
	}
	title := b.String()

	if len(title) <= maxTitleLength {
		return title
	}
	prefix := title[:titlePrefixLen]
	if idx := strings.LastIndexByte(prefix, ' '); idx > minTitleWordCut {
		return prefix[:idx] + titleEllipsis
	}
	return prefix + titleEllipsis
}

// isTitleRune reports whether r survives title sanitizing: ASCII word
// characters plus a handful of punctuation marks.
func isTitleRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	case r == '-', r == '?', r == '!', r == '.':
		return true
	}
	return false
}
