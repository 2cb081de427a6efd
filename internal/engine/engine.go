// Package engine wires extraction, storage, search and matching into the
// public operations: ingest a document, suggest values for form fields,
// read a profile.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/morepork/factfill/internal/extract"
	"github.com/morepork/factfill/internal/facttype"
	"github.com/morepork/factfill/internal/index"
	"github.com/morepork/factfill/internal/match"
	"github.com/morepork/factfill/internal/store"
)

// DefaultProfileTTL bounds how long a subject's facts are served from cache
// after an external process writes to the same database file.
const DefaultProfileTTL = 5 * time.Minute

// Options configures the engine.
type Options struct {
	Tiers      match.Tiers
	ProfileTTL time.Duration
}

// Engine is the facade over the full pipeline. Safe for concurrent use.
type Engine struct {
	store    store.Store
	pipeline *extract.Pipeline
	matcher  *match.Engine
	profiles *gocache.Cache

	// indexes holds one search index per subject, each swapped atomically
	// on rebuild.
	indexes sync.Map // subjectID -> *index.Index
}

// New builds an engine over an opened store and warms the search indexes
// from the stored documents.
func New(ctx context.Context, st store.Store, opts Options) (*Engine, error) {
	if opts.ProfileTTL <= 0 {
		opts.ProfileTTL = DefaultProfileTTL
	}
	e := &Engine{
		store:    st,
		pipeline: extract.NewPipeline(),
		matcher:  match.NewEngine(opts.Tiers),
		profiles: gocache.New(opts.ProfileTTL, 2*opts.ProfileTTL),
	}

	subjects, err := st.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subjects for index warmup: %w", err)
	}
	for _, subjectID := range subjects {
		if err := e.rebuildIndex(ctx, subjectID); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ExtractAndMerge ingests one document for a subject: stores the raw text,
// extracts fact candidates, merges them, and rebuilds the subject's search
// index. Returns the per-field outcome report. A document with no
// extractable facts merges an empty batch and still enters the corpus.
func (e *Engine) ExtractAndMerge(ctx context.Context, subjectID, docID, text string, clearMissing bool) (*store.OutcomeReport, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject id is required")
	}

	doc := &store.Document{DocID: docID, SubjectID: subjectID, Content: text}
	if err := e.store.AddDocument(ctx, doc); err != nil {
		return nil, err
	}

	result := e.pipeline.Extract(doc.DocID, text)
	incoming := make([]store.Incoming, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		incoming = append(incoming, store.Incoming{
			Type:         c.Type,
			Value:        c.Value,
			RawSnippet:   c.Raw,
			SourceDoc:    result.DocID,
			SourceOffset: c.Offset,
		})
	}

	report, err := e.store.MergeCandidates(ctx, subjectID, incoming, clearMissing)
	if err != nil {
		return nil, err
	}

	e.profiles.Delete(subjectID)
	if err := e.rebuildIndex(ctx, subjectID); err != nil {
		return nil, err
	}
	return report, nil
}

// Suggest resolves one field label for a subject.
func (e *Engine) Suggest(ctx context.Context, subjectID string, field match.Field) ([]match.Suggestion, error) {
	facts, err := e.subjectFacts(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return e.matcher.Suggest(field, facts, e.subjectIndex(subjectID)), nil
}

// SuggestBatch resolves a list of detected form fields in one call,
// returning one suggestion list per field, in field order.
func (e *Engine) SuggestBatch(ctx context.Context, subjectID string, fields []match.Field) ([][]match.Suggestion, error) {
	facts, err := e.subjectFacts(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	idx := e.subjectIndex(subjectID)

	out := make([][]match.Suggestion, len(fields))
	for i, f := range fields {
		out[i] = e.matcher.Suggest(f, facts, idx)
	}
	return out, nil
}

// Profile is a subject's facts grouped for display: one value per singular
// type, a collection per multi-valued type. Types unknown to the registry
// land in Collections.
type Profile struct {
	SubjectID   string                     `json:"subject_id"`
	Values      map[facttype.Type]string   `json:"values"`
	Collections map[facttype.Type][]string `json:"collections"`
}

// GetFacts returns the subject's profile view.
func (e *Engine) GetFacts(ctx context.Context, subjectID string) (*Profile, error) {
	facts, err := e.subjectFacts(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		SubjectID:   subjectID,
		Values:      map[facttype.Type]string{},
		Collections: map[facttype.Type][]string{},
	}
	for _, f := range facts {
		if facttype.IsSingular(f.Type) {
			p.Values[f.Type] = f.Value
		} else {
			p.Collections[f.Type] = append(p.Collections[f.Type], f.Value)
		}
	}
	return p, nil
}

// PutFact writes one manually entered value through the merge writer.
func (e *Engine) PutFact(ctx context.Context, subjectID string, typ facttype.Type, value string) (*store.FieldOutcome, error) {
	fo, err := e.store.PutFact(ctx, subjectID, typ, value)
	if err != nil {
		return nil, err
	}
	e.profiles.Delete(subjectID)
	return fo, nil
}

// Facts returns the subject's raw fact rows with provenance.
func (e *Engine) Facts(ctx context.Context, subjectID string) ([]*store.Fact, error) {
	return e.subjectFacts(ctx, subjectID)
}

// Events returns the subject's most recent merge events.
func (e *Engine) Events(ctx context.Context, subjectID string, limit int) ([]*store.MergeEvent, error) {
	return e.store.Events(ctx, subjectID, limit)
}

// SearchDocuments runs a passage search over the subject's document corpus.
func (e *Engine) SearchDocuments(subjectID, query string, limit int) []index.Hit {
	return e.subjectIndex(subjectID).Search(query, limit)
}

// Stats returns store counts.
func (e *Engine) Stats(ctx context.Context) (*store.StoreStats, error) {
	return e.store.Stats(ctx)
}

// ListSubjects returns every known subject id.
func (e *Engine) ListSubjects(ctx context.Context) ([]string, error) {
	return e.store.ListSubjects(ctx)
}

// subjectFacts serves facts from the TTL cache, loading on miss.
func (e *Engine) subjectFacts(ctx context.Context, subjectID string) ([]*store.Fact, error) {
	if cached, ok := e.profiles.Get(subjectID); ok {
		return cached.([]*store.Fact), nil
	}
	facts, err := e.store.FactsBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	e.profiles.Set(subjectID, facts, gocache.DefaultExpiration)
	return facts, nil
}

// subjectIndex returns the subject's search index, creating an empty one on
// first use.
func (e *Engine) subjectIndex(subjectID string) *index.Index {
	if idx, ok := e.indexes.Load(subjectID); ok {
		return idx.(*index.Index)
	}
	idx, _ := e.indexes.LoadOrStore(subjectID, index.New())
	return idx.(*index.Index)
}

// rebuildIndex rebuilds one subject's index from the stored documents.
// Readers see the old snapshot until the new one is complete.
func (e *Engine) rebuildIndex(ctx context.Context, subjectID string) error {
	docs, err := e.store.DocumentsBySubject(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("loading documents for index rebuild: %w", err)
	}
	indexed := make([]index.Doc, 0, len(docs))
	for _, d := range docs {
		indexed = append(indexed, index.Doc{ID: d.DocID, SubjectID: d.SubjectID, Text: d.Content})
	}
	e.subjectIndex(subjectID).Build(indexed)
	return nil
}
