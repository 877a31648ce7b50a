package index

import (
	"strings"
	"unicode"
)

// Relevance buckets. The exact constants are a replaceable strategy; the
// contract is the ordering: phrase > all words > any word > substring.
const (
	scorePhrase    = 1.0
	scoreAllWords  = 0.8
	scoreAnyWord   = 0.5
	scoreSubstring = 0.3
)

// snippetMax bounds the matched-context snippet length.
const snippetMax = 160

// scoreDocument ranks one document against a tokenized query and locates
// the matched snippet. A zero score means no match at all.
func scoreDocument(phrase string, words []string, title, body string) (score float64, snippet string, line int) {
	text := strings.ToLower(title + "\n" + body)

	switch {
	case len(words) > 1 && strings.Contains(text, phrase):
		score = scorePhrase
	default:
		tokens := tokenSet(text)
		matched := 0
		for _, w := range words {
			if _, ok := tokens[w]; ok {
				matched++
			}
		}
		switch {
		case matched == len(words) && len(words) > 1:
			score = scoreAllWords
		case matched >= 1:
			score = scoreAnyWord
		case anySubstring(text, words):
			score = scoreSubstring
		default:
			return 0, "", 0
		}
	}

	snippet, line = locateSnippet(body, phrase, words)
	if snippet == "" {
		snippet = clip(title)
	}
	return score, snippet, line
}

// locateSnippet finds the first body line containing the phrase, or failing
// that any query word, and returns it with its 1-based line number.
func locateSnippet(body, phrase string, words []string) (string, int) {
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lower := strings.ToLower(l)
		if phrase != "" && strings.Contains(lower, phrase) {
			return clip(strings.TrimSpace(l)), i + 1
		}
	}
	for i, l := range lines {
		lower := strings.ToLower(l)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return clip(strings.TrimSpace(l)), i + 1
			}
		}
	}
	return "", 0
}

func clip(s string) string {
	if len(s) <= snippetMax {
		return s
	}
	return s[:snippetMax] + "..."
}

// tokenSet splits lowered text into alphanumeric words.
func tokenSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[tok] = struct{}{}
	}
	return out
}

func anySubstring(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
