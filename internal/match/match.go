// Package match resolves free-text field labels to ranked fact suggestions.
//
// Resolution runs in three tiers. A label whose tokens hit exactly one fact
// type's trigger set resolves directly at the highest confidence. Labels
// hitting several trigger sets, or only broader context words, resolve at a
// middle tier. Labels hitting nothing fall back to scoring stored fact
// snippets against the label with the search index's term statistics, at the
// lowest tier. Tier values are fixed constants, not learned scores; identical
// inputs always produce identical suggestions in identical order.
package match

import (
	"sort"
	"strings"
	"time"

	"github.com/morepork/factfill/internal/facttype"
	"github.com/morepork/factfill/internal/store"
)

// Tiers holds the confidence value assigned at each resolution tier.
type Tiers struct {
	Direct   float64 `yaml:"direct"`
	Inferred float64 `yaml:"inferred"`
	Fallback float64 `yaml:"fallback"`
}

// DefaultTiers returns the standard tier values.
func DefaultTiers() Tiers {
	return Tiers{Direct: 0.95, Inferred: 0.80, Fallback: 0.60}
}

// Field describes one target form field to resolve.
type Field struct {
	// Label is the field's visible label or question text.
	Label string `json:"label"`
	// ContextHint optionally carries surrounding context such as the form's
	// domain ("tenders.example.co.nz"); used only to reorder
	// jurisdiction-specific candidates.
	ContextHint string `json:"context_hint,omitempty"`
}

// Suggestion is one ranked answer for a field.
type Suggestion struct {
	Type        facttype.Type `json:"fact_type"`
	Value       string        `json:"value"`
	RawSnippet  string        `json:"raw_snippet,omitempty"`
	Confidence  float64       `json:"confidence"`
	Rationale   string        `json:"rationale"`
	Secondary   bool          `json:"secondary,omitempty"`
	FactID      int64         `json:"fact_id"`
	ExtractedAt time.Time     `json:"extracted_at"`

	score float64 // fallback relevance, ranking only
}

// Searcher scores arbitrary text against a query. Satisfied by the search
// index.
type Searcher interface {
	Score(query, text string) float64
}

// contextWords map broad label words to the group of fact types they could
// mean. Consulted only when no trigger keyword hits; always resolves at the
// inferred tier.
var contextWords = map[string][]facttype.Type{
	"business":  {facttype.BusinessName, facttype.AddressBusiness},
	"company":   {facttype.BusinessName, facttype.IdentifierCompany},
	"contact":   {facttype.ContactEmail, facttype.ContactPhone, facttype.TeamContact},
	"insurance": {facttype.PublicLiability, facttype.ProfIndemnity},
	"financial": {facttype.AnnualTurnover, facttype.Profit, facttype.Assets},
	"number": {
		facttype.IdentifierNZBN, facttype.IdentifierABN, facttype.IdentifierACN,
		facttype.IdentifierCompany, facttype.IdentifierCharity, facttype.IdentifierGST,
	},
	"registration": {
		facttype.IdentifierNZBN, facttype.IdentifierABN,
		facttype.IdentifierCompany, facttype.IdentifierCharity,
	},
}

// maxFallback caps how many fallback suggestions one field gets.
const maxFallback = 5

// Engine resolves fields against a subject's stored facts.
type Engine struct {
	tiers Tiers
}

// NewEngine returns an engine with the given tier values; zero values fall
// back to the defaults.
func NewEngine(tiers Tiers) *Engine {
	def := DefaultTiers()
	if tiers.Direct <= 0 {
		tiers.Direct = def.Direct
	}
	if tiers.Inferred <= 0 {
		tiers.Inferred = def.Inferred
	}
	if tiers.Fallback <= 0 {
		tiers.Fallback = def.Fallback
	}
	return &Engine{tiers: tiers}
}

// resolved is one fact type the label resolved to before fact lookup.
type resolved struct {
	typ        facttype.Type
	confidence float64
	rationale  string
}

// Suggest returns ranked suggestions for one field from the subject's facts.
// An empty result is a valid outcome, not an error.
func (e *Engine) Suggest(field Field, facts []*store.Fact, search Searcher) []Suggestion {
	label := normalizeLabel(field.Label)
	if label == "" {
		return nil
	}

	resolvedTypes := e.resolve(label)
	var suggestions []Suggestion
	for _, r := range resolvedTypes {
		suggestions = append(suggestions, expand(r, facts)...)
	}

	// The search fallback never overrides a trigger or context resolution,
	// even one that found no stored facts.
	if len(resolvedTypes) == 0 && search != nil {
		suggestions = e.fallback(label, facts, search)
	}

	rankSuggestions(suggestions, hintJurisdiction(field.ContextHint))
	return suggestions
}

// resolve maps a normalized label to fact types via trigger keywords, then
// context words. Phrase triggers are more specific than single-word ones:
// when any phrase hits, single-word hits are discarded ("Email Address" is
// an email field, not an address field).
func (e *Engine) resolve(label string) []resolved {
	tokens := map[string]bool{}
	for _, t := range strings.Fields(label) {
		tokens[t] = true
	}
	padded := " " + label + " "

	type hit struct {
		typ     facttype.Type
		trigger string
		phrase  bool
	}
	var hits []hit
	phraseHits := 0
	for _, info := range facttype.All() {
		best := hit{typ: info.Type}
		for _, trig := range info.Triggers {
			if strings.ContainsRune(trig, ' ') {
				if strings.Contains(padded, " "+trig+" ") && (!best.phrase || len(trig) > len(best.trigger)) {
					best.trigger, best.phrase = trig, true
				}
			} else if tokens[trig] && best.trigger == "" {
				best.trigger = trig
			}
		}
		if best.trigger != "" {
			hits = append(hits, best)
			if best.phrase {
				phraseHits++
			}
		}
	}

	if phraseHits > 0 {
		kept := hits[:0]
		for _, h := range hits {
			if h.phrase {
				kept = append(kept, h)
			}
		}
		hits = kept
	}

	if len(hits) > 0 {
		conf := e.tiers.Direct
		if len(hits) > 1 {
			conf = e.tiers.Inferred
		}
		out := make([]resolved, len(hits))
		for i, h := range hits {
			out[i] = resolved{typ: h.typ, confidence: conf, rationale: "trigger:" + h.trigger}
		}
		return out
	}

	// No trigger hit: try broad context words.
	words := make([]string, 0, len(contextWords))
	for word := range contextWords {
		words = append(words, word)
	}
	sort.Strings(words)

	var out []resolved
	seen := map[facttype.Type]bool{}
	for _, word := range words {
		if !tokens[word] {
			continue
		}
		for _, typ := range contextWords[word] {
			if seen[typ] {
				continue
			}
			seen[typ] = true
			out = append(out, resolved{typ: typ, confidence: e.tiers.Inferred, rationale: "context:" + word})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].typ < out[j].typ })
	return out
}

// expand turns one resolved type into suggestions from stored facts.
// Multi-valued types yield the most recent entry as the top suggestion and
// the rest of the collection as secondaries.
func expand(r resolved, facts []*store.Fact) []Suggestion {
	var matched []*store.Fact
	for _, f := range facts {
		if f.Type == r.typ {
			matched = append(matched, f)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ExtractedAt.Equal(matched[j].ExtractedAt) {
			return matched[i].ExtractedAt.After(matched[j].ExtractedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	out := make([]Suggestion, len(matched))
	for i, f := range matched {
		out[i] = Suggestion{
			Type:        f.Type,
			Value:       f.Value,
			RawSnippet:  f.RawSnippet,
			Confidence:  r.confidence,
			Rationale:   r.rationale,
			Secondary:   i > 0,
			FactID:      f.ID,
			ExtractedAt: f.ExtractedAt,
		}
	}
	return out
}

// fallback scores every stored fact's snippet (or value) against the label
// and keeps the best-scoring ones at the lowest tier.
func (e *Engine) fallback(label string, facts []*store.Fact, search Searcher) []Suggestion {
	var out []Suggestion
	for _, f := range facts {
		text := f.RawSnippet
		if text == "" {
			text = f.Value
		}
		score := search.Score(label, text)
		if score <= 0 {
			continue
		}
		out = append(out, Suggestion{
			Type:        f.Type,
			Value:       f.Value,
			RawSnippet:  f.RawSnippet,
			Confidence:  e.tiers.Fallback,
			Rationale:   "search-fallback",
			FactID:      f.ID,
			ExtractedAt: f.ExtractedAt,
			score:       score,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].FactID < out[j].FactID
	})
	if len(out) > maxFallback {
		out = out[:maxFallback]
	}
	for i := range out {
		out[i].Secondary = i > 0
	}
	return out
}

// rankSuggestions orders suggestions by confidence, then jurisdiction fit,
// then relevance, then recency, then fact type. The jurisdiction hint only
// reorders within a tier; it never changes a confidence value.
func rankSuggestions(s []Suggestion, hint facttype.Jurisdiction) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i], s[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if hint != facttype.JurisdictionAny {
			pa, pb := jurisdictionPenalty(a.Type, hint), jurisdictionPenalty(b.Type, hint)
			if pa != pb {
				return pa < pb
			}
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.ExtractedAt.Equal(b.ExtractedAt) {
			return a.ExtractedAt.After(b.ExtractedAt)
		}
		return a.Type < b.Type
	})
}

// jurisdictionPenalty ranks a type against the hint: 0 for matching or
// jurisdiction-free types, 1 for foreign ones.
func jurisdictionPenalty(typ facttype.Type, hint facttype.Jurisdiction) int {
	info, ok := facttype.Lookup(typ)
	if !ok || info.Jurisdiction == facttype.JurisdictionAny || info.Jurisdiction == hint {
		return 0
	}
	return 1
}

// hintJurisdiction extracts a jurisdiction from a context hint such as a
// site domain (".co.nz") or a plain country token.
func hintJurisdiction(hint string) facttype.Jurisdiction {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return facttype.JurisdictionAny
	}
	switch {
	case strings.HasSuffix(h, ".nz"), strings.Contains(h, ".nz/"), h == "nz", h == "new zealand":
		return facttype.JurisdictionNZ
	case strings.HasSuffix(h, ".au"), strings.Contains(h, ".au/"), h == "au", h == "australia":
		return facttype.JurisdictionAU
	}
	return facttype.JurisdictionAny
}

// normalizeLabel lowercases the label and collapses every non-alphanumeric
// run to a single space.
func normalizeLabel(label string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(label) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			space = false
		} else if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
