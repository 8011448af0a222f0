package parser

import (
	"regexp"
	"strings"
)

var (
	hyphenBreak   = regexp.MustCompile(`([\p{L}\p{N}_])-\n([\p{L}\p{N}_])`)
	newlineRunOf3 = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text. Words hyphenated across a line break are
// merged, single newlines become spaces, double newlines are kept as
// paragraph breaks and longer runs collapse to one paragraph break.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = joinSingleNewlines(text)
	return newlineRunOf3.ReplaceAllString(text, "\n\n")
}

// joinSingleNewlines replaces every newline that has no newline neighbour
// with a space.
func joinSingleNewlines(text string) string {
	if !strings.Contains(text, "\n") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			prev := i > 0 && text[i-1] == '\n'
			next := i+1 < len(text) && text[i+1] == '\n'
			if !prev && !next {
				b.WriteByte(' ')
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
