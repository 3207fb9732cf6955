package views

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Names, profiles and message bodies come from remote peers and are drawn
// as-is, so anything that could move the cursor, reorder text or split an
// emoji across cells is removed before rendering.

// sanitizeText cleans a multi-line body. Newlines survive, tabs become a
// single space and invalid UTF-8 is replaced.
func sanitizeText(s string) string {
	return sanitize(s, false)
}

// sanitizeLine cleans a value shown on one line, such as a peer name or a
// title. Line breaks collapse to a space.
func sanitizeLine(s string) string {
	return strings.TrimSpace(sanitize(s, true))
}

func sanitize(s string, oneLine bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
			b.WriteRune(utf8.RuneError)
		case r == '\n':
			if oneLine {
				b.WriteByte(' ')
			} else {
				b.WriteByte('\n')
			}
		case r == '\t':
			b.WriteByte(' ')
		case dropRune(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dropRune(r rune) bool {
	switch {
	// C0/C1 controls, including ESC and CR.
	case unicode.IsControl(r):
		return true
	// Bidi embeddings, overrides and isolates.
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069:
		return true
	// Skin tone modifiers render as a second glyph in tcell.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	// Zero width joiner.
	case r == 0x200D:
		return true
	// Variation selectors and their supplement.
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
