// Package index provides an in-memory TF-IDF index over ingested documents.
//
// The index backs two things: free-text passage search over document text,
// and relevance scoring of stored fact snippets against a field label when
// no fact type matches directly. It is rebuilt from the document store after
// every ingest; readers always see a complete snapshot, never a half-built
// one.
package index

import (
	"math"
	"sort"
	"strings"
	"sync/atomic"
)

// Doc is one document handed to Build.
type Doc struct {
	ID        string
	SubjectID string
	Text      string
}

// Hit is one passage search result.
type Hit struct {
	DocID     string  `json:"doc_id"`
	SubjectID string  `json:"subject_id"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
}

type indexedDoc struct {
	id        string
	subjectID string
	text      string
	tf        map[string]float64 // term -> frequency / doc length
}

// snapshot is one immutable build of the index.
type snapshot struct {
	docs []indexedDoc
	df   map[string]int // term -> number of docs containing it
	n    int
}

// Index is a TF-IDF index with atomically swapped snapshots. Build replaces
// the whole snapshot; Search and Score read whichever snapshot is current.
type Index struct {
	snap atomic.Value // *snapshot
}

// New returns an empty index.
func New() *Index {
	idx := &Index{}
	idx.snap.Store(&snapshot{df: map[string]int{}})
	return idx
}

// Build replaces the index contents with the given documents.
func (x *Index) Build(docs []Doc) {
	snap := &snapshot{df: map[string]int{}, n: len(docs)}
	for _, d := range docs {
		terms := Tokenize(d.Text)
		tf := map[string]float64{}
		for _, t := range terms {
			tf[t]++
		}
		if len(terms) > 0 {
			for t := range tf {
				tf[t] /= float64(len(terms))
				snap.df[t]++
			}
		}
		snap.docs = append(snap.docs, indexedDoc{
			id: d.ID, subjectID: d.SubjectID, text: d.Text, tf: tf,
		})
	}
	x.snap.Store(snap)
}

// DocCount returns the number of indexed documents.
func (x *Index) DocCount() int {
	return x.current().n
}

func (x *Index) current() *snapshot {
	return x.snap.Load().(*snapshot)
}

// idf uses add-one smoothing so terms absent from the corpus still score
// zero rather than negatively.
func (s *snapshot) idf(term string) float64 {
	df := s.df[term]
	if df == 0 {
		return 0
	}
	return math.Log(float64(s.n+1) / float64(df+1))
}

// Search ranks documents against the query and returns up to limit hits,
// each with a best-sentence snippet. Ties break on document id so repeated
// searches rank identically.
func (x *Index) Search(query string, limit int) []Hit {
	if limit <= 0 {
		limit = 10
	}
	snap := x.current()
	terms := Tokenize(query)
	if len(terms) == 0 || snap.n == 0 {
		return nil
	}

	var hits []Hit
	for _, d := range snap.docs {
		score := 0.0
		for _, t := range terms {
			score += d.tf[t] * snap.idf(t)
		}
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{
			DocID:     d.id,
			SubjectID: d.subjectID,
			Score:     score,
			Snippet:   snap.bestSentence(d.text, terms),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Score rates arbitrary text against a query using the corpus's term
// statistics. Used to rank stored fact snippets against a field label when
// nothing matched by type.
func (x *Index) Score(query, text string) float64 {
	snap := x.current()
	queryTerms := Tokenize(query)
	textTerms := Tokenize(text)
	if len(queryTerms) == 0 || len(textTerms) == 0 {
		return 0
	}

	present := map[string]bool{}
	for _, t := range textTerms {
		present[t] = true
	}

	score := 0.0
	matched := 0
	for _, t := range queryTerms {
		if !present[t] {
			continue
		}
		matched++
		if idf := snap.idf(t); idf > 0 {
			score += idf
		} else {
			// Term unseen in the corpus: count the overlap with unit weight.
			score += 1
		}
	}
	if matched == 0 {
		return 0
	}
	return score / float64(len(queryTerms))
}

// bestSentence returns the highest-scoring sentence of text for the query
// terms, falling back to the opening of the document.
func (s *snapshot) bestSentence(text string, terms []string) string {
	sentences := SplitSentences(text)
	best := ""
	bestScore := 0.0
	for _, sent := range sentences {
		present := map[string]bool{}
		for _, t := range Tokenize(sent) {
			present[t] = true
		}
		score := 0.0
		for _, t := range terms {
			if present[t] {
				score += s.idf(t) + 1
			}
		}
		if score > bestScore {
			bestScore = score
			best = sent
		}
	}
	if best == "" && len(sentences) > 0 {
		best = sentences[0]
	}
	return truncate(strings.TrimSpace(best), 240)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
