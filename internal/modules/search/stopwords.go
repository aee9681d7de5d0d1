package search

import (
	"strings"
	"unicode"
)

// stopwords are function words that carry no lexical signal in a report query.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "tell": true, "near": true, "around": true, "over": true,
	"any": true, "some": true, "there": true, "like": true, "just": true,
	"very": true, "all": true, "anyone": true, "else": true, "other": true,
}

var interrogatives = map[string]bool{
	"who": true, "what": true, "when": true, "where": true, "why": true,
	"how": true, "which": true, "is": true, "are": true, "was": true,
	"were": true, "do": true, "does": true, "did": true, "can": true,
	"could": true, "has": true, "have": true, "should": true, "would": true,
	"will": true, "anyone": true,
}

// words splits text into lower-case letter/digit runs, keeping duplicates.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// contentWords drops stopwords and single-letter tokens, keeping order and duplicates.
func contentWords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, w := range tokens {
		if len([]rune(w)) < 2 || stopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}
