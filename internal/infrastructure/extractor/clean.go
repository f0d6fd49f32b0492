package extractor

import (
	"strings"
	"unicode"
)

// Normalize flattens extraction artifacts before chunking: control characters
// go, horizontal whitespace runs collapse to one space, and blank-line runs
// collapse to a single paragraph break.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	newlines := 0
	pendingSpace := false
	wroteAny := false

	flushParagraph := func() {
		if !wroteAny {
			newlines = 0
			return
		}
		switch {
		case newlines == 1:
			b.WriteByte('\n')
		case newlines > 1:
			b.WriteString("\n\n")
		}
		newlines = 0
	}

	for _, r := range text {
		switch {
		case r == '\n':
			newlines++
			pendingSpace = false
		case r == '\r':
			// CRLF handled by the \n that follows.
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r):
			// Skip stray control bytes from PDF streams.
		default:
			flushParagraph()
			if pendingSpace && wroteAny && newlines == 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			wroteAny = true
		}
	}

	return b.String()
}
