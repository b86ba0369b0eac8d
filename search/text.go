package search

import "strings"

// Stop words to filter out when checking for verbatim matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "does": true, "at": true, "this": true,
	"but": true, "by": true, "from": true, "what": true, "which": true, "how": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// containsAllQueryWords checks if all query words (after filtering) appear in the document
func containsAllQueryWords(document, query string) bool {
	queryWords := tokenizeAndFilter(query)
	if len(queryWords) == 0 {
		return false
	}

	docWordSet := make(map[string]bool)
	for _, word := range tokenizeAndFilter(document) {
		docWordSet[word] = true
	}

	for _, qWord := range queryWords {
		if !docWordSet[qWord] {
			return false
		}
	}
	return true
}

// summarize returns the first sentence of text, capped at maxRunes.
func summarize(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		text = text[:i+1]
	}
	r := []rune(text)
	if len(r) > maxRunes {
		return strings.TrimSpace(string(r[:maxRunes])) + "..."
	}
	return text
}

// dropOverlap removes the longest prefix of cur (up to window words) that
// repeats the tail of prev.
func dropOverlap(prev, cur string, window int) string {
	p := strings.Fields(prev)
	c := strings.Fields(cur)
	for k := min(window, len(p), len(c)); k > 0; k-- {
		if equalWords(p[len(p)-k:], c[:k]) {
			return strings.Join(c[k:], " ")
		}
	}
	return cur
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
