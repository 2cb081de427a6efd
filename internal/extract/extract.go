// Package extract turns raw document text into typed fact candidates.
//
// The pipeline applies an ordered list of pattern rules per fact type:
// keyword proximity plus a shape constraint (e.g. "13 digits, possibly
// space-separated, near the token NZBN"). No rule matching is an expected
// outcome, not an error. Extraction is deterministic: identical input text
// always yields an identical candidate set, so re-extraction on reload never
// silently changes previously accepted values.
package extract

import (
	"sort"
	"strings"

	"github.com/morepork/factfill/internal/facttype"
)

// Candidate is a fact proposed by the pipeline before merging.
type Candidate struct {
	Type   facttype.Type `json:"type"`
	Value  string        `json:"value"`       // normalized per type
	Raw    string        `json:"raw_snippet"` // verbatim matched text, for audit
	Offset int           `json:"offset"`      // byte offset of the match in the document
	Rule   string        `json:"rule"`        // name of the rule that fired
}

// Result holds one extraction run's output.
type Result struct {
	DocID      string      `json:"doc_id"`
	Candidates []Candidate `json:"candidates"`
}

// Empty reports whether the run produced no candidates ("no facts
// extracted" — a valid outcome, not a failure).
func (r Result) Empty() bool {
	return len(r.Candidates) == 0
}

// Pipeline holds the compiled rule set. Safe for concurrent use; rules are
// pure functions over the input text.
type Pipeline struct {
	rules []rule
}

// NewPipeline compiles all registered extraction rules.
func NewPipeline() *Pipeline {
	return &Pipeline{rules: initRules()}
}

// Extract runs every rule over the text and returns the candidate set.
// A blank document yields an empty result.
func (p *Pipeline) Extract(docID, text string) Result {
	result := Result{DocID: docID}
	if strings.TrimSpace(text) == "" {
		return result
	}

	// Per-type state: singular types keep only their first (highest-priority
	// rule, earliest occurrence) match; multi-valued types keep every
	// occurrence, deduped by normalized value.
	singularDone := map[facttype.Type]bool{}
	seenMulti := map[facttype.Type]map[string]bool{}

	for _, r := range p.rules {
		singular := facttype.IsSingular(r.typ)
		if singular && singularDone[r.typ] {
			continue
		}

		for _, m := range r.matches(text) {
			value := facttype.NormalizeValue(r.typ, m.value)
			if value == "" || !r.accept(value) {
				continue
			}

			if singular {
				result.Candidates = append(result.Candidates, Candidate{
					Type: r.typ, Value: value, Raw: m.raw, Offset: m.offset, Rule: r.name,
				})
				singularDone[r.typ] = true
				break
			}

			seen := seenMulti[r.typ]
			if seen == nil {
				seen = map[string]bool{}
				seenMulti[r.typ] = seen
			}
			key := strings.ToLower(value)
			if seen[key] {
				continue
			}
			seen[key] = true
			result.Candidates = append(result.Candidates, Candidate{
				Type: r.typ, Value: value, Raw: m.raw, Offset: m.offset, Rule: r.name,
			})
		}
	}

	// Stable output order: by offset, then type, then rule name.
	sort.Slice(result.Candidates, func(i, j int) bool {
		a, b := result.Candidates[i], result.Candidates[j]
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Rule < b.Rule
	})

	return result
}
