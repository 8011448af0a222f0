package retrieval

import (
	"strings"
	"unicode"
)

// Words ignored when checking passages for verbatim hits. Question words are
// included since a standalone question almost always starts with one.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "were": true, "to": true, "of": true, "and": true, "or": true,
	"in": true, "that": true, "have": true, "has": true, "it": true, "for": true,
	"not": true, "on": true, "with": true, "as": true, "you": true, "do": true,
	"does": true, "at": true, "this": true, "but": true, "by": true, "from": true,
	"what": true, "which": true, "who": true, "when": true, "where": true,
	"why": true, "how": true, "about": true, "their": true, "they": true,
}

// significantWords lowercases text, splits it on anything that is not a
// letter or digit, and drops stop words.
func significantWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, word := range fields {
		if !stopWords[word] {
			words = append(words, word)
		}
	}
	return words
}

// containsAllQueryWords reports whether every significant word of query
// appears in passage. A query with no significant words never matches.
func containsAllQueryWords(passage, query string) bool {
	queryWords := significantWords(query)
	if len(queryWords) == 0 {
		return false
	}

	present := make(map[string]bool)
	for _, word := range significantWords(passage) {
		present[word] = true
	}
	for _, word := range queryWords {
		if !present[word] {
			return false
		}
	}
	return true
}
