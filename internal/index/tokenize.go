package index

import "strings"

// stopwords are excluded from indexing and queries. Short function words
// only; domain terms stay in.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "been": true, "were": true, "they": true,
	"this": true, "that": true, "with": true, "from": true, "will": true,
	"would": true, "there": true, "their": true, "what": true, "about": true,
	"which": true, "when": true, "your": true, "said": true, "each": true,
	"she": true, "how": true, "them": true, "than": true, "then": true,
	"its": true, "also": true, "into": true, "only": true, "other": true,
	"some": true, "such": true, "more": true, "any": true, "these": true,
	"may": true, "must": true, "shall": true, "should": true, "per": true,
	"please": true, "enter": true, "provide": true,
}

// Tokenize lowercases text and splits it into index terms: alphanumeric
// runs longer than two characters, stopwords removed.
func Tokenize(text string) []string {
	var terms []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 2 {
			t := b.String()
			if !stopwords[t] {
				terms = append(terms, t)
			}
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return terms
}

// SplitSentences breaks text on sentence punctuation and newlines. Blank
// pieces are dropped.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if piece := strings.TrimSpace(text[start:i]); piece != "" {
				out = append(out, piece)
			}
			start = i + 1
		}
	}
	if piece := strings.TrimSpace(text[start:]); piece != "" {
		out = append(out, piece)
	}
	return out
}
