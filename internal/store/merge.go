package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/morepork/factfill/internal/facttype"
)

// Outcome classifies what the merge did with one field.
type Outcome string

const (
	OutcomeAdded     Outcome = "added"     // no prior value, candidate stored
	OutcomeUpdated   Outcome = "updated"   // singular value replaced
	OutcomeUnchanged Outcome = "unchanged" // candidate equals the stored value
	OutcomeSkipped   Outcome = "skipped"   // stored value kept, candidate absent or unusable
	OutcomeCleared   Outcome = "cleared"   // stored value removed (clear-missing mode)
)

// Incoming is one extracted candidate handed to the merge writer. Value must
// already be normalized for its type.
type Incoming struct {
	Type         facttype.Type
	Value        string
	RawSnippet   string
	SourceDoc    string
	SourceOffset int
}

// FieldOutcome records what happened to one fact during a merge.
type FieldOutcome struct {
	Type     facttype.Type `json:"type"`
	Outcome  Outcome       `json:"outcome"`
	OldValue string        `json:"old_value,omitempty"`
	NewValue string        `json:"new_value,omitempty"`
}

// OutcomeReport summarizes one merge batch.
type OutcomeReport struct {
	SubjectID string         `json:"subject_id"`
	Fields    []FieldOutcome `json:"fields"`
	Added     int            `json:"added"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	Skipped   int            `json:"skipped"`
	Cleared   int            `json:"cleared"`
}

func (r *OutcomeReport) record(fo FieldOutcome) {
	r.Fields = append(r.Fields, fo)
	switch fo.Outcome {
	case OutcomeAdded:
		r.Added++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeCleared:
		r.Cleared++
	}
}

// MergeCandidates applies one batch of extracted candidates to a subject's
// facts in a single transaction.
//
// Singular types keep exactly one row: a differing candidate replaces the
// stored value (the old value is preserved in the merge log, never lost
// silently). Multi-valued types are append-only unions keyed by normalized
// value. Types absent from the registry are treated as multi-valued so facts
// written by newer builds are never overwritten.
//
// With clearMissing set, singular fields that have a stored value but no
// incoming candidate are deleted; without it they are left alone and
// reported as skipped. Multi-valued facts are never cleared.
//
// Merges for the same subject are serialized; the report lists field
// outcomes in a deterministic order (registry order, then incoming order
// for unknown types).
func (s *SQLiteStore) MergeCandidates(ctx context.Context, subjectID string, incoming []Incoming, clearMissing bool) (*OutcomeReport, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject id is required")
	}

	mu := s.lockSubject(subjectID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.EnsureSubject(ctx, subjectID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer tx.Rollback()

	// Load the subject's current facts grouped by type.
	existing := map[facttype.Type][]*Fact{}
	rows, err := tx.QueryContext(ctx, `
		SELECT id, subject_id, fact_type, value, value_norm, raw_snippet, source_doc, source_offset, extracted_at
		FROM facts WHERE subject_id = ? ORDER BY id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("loading facts for %q: %w", subjectID, err)
	}
	current, err := scanFacts(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	for _, f := range current {
		existing[f.Type] = append(existing[f.Type], f)
	}

	// Group incoming candidates by type, preserving order. Extraction emits
	// at most one candidate per singular type; if a caller hands us more,
	// the first wins and the rest are reported skipped.
	incomingByType := map[facttype.Type][]Incoming{}
	var typeOrder []facttype.Type
	for _, in := range incoming {
		if _, ok := incomingByType[in.Type]; !ok {
			typeOrder = append(typeOrder, in.Type)
		}
		incomingByType[in.Type] = append(incomingByType[in.Type], in)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	report := &OutcomeReport{SubjectID: subjectID}

	apply := func(typ facttype.Type) error {
		cands := incomingByType[typ]
		have := existing[typ]

		if facttype.IsSingular(typ) {
			return s.mergeSingular(ctx, tx, subjectID, typ, cands, have, clearMissing, now, report)
		}
		return s.mergeMulti(ctx, tx, subjectID, typ, cands, have, now, report)
	}

	// Registry types first, in registry order, so reports read consistently;
	// then any unknown types in incoming order. Stored-only unknown types
	// need no visit: they are multi-valued, so the clear pass never touches
	// them.
	visited := map[facttype.Type]bool{}
	for _, info := range facttype.All() {
		if len(incomingByType[info.Type]) == 0 && len(existing[info.Type]) == 0 {
			continue
		}
		visited[info.Type] = true
		if err := apply(info.Type); err != nil {
			return nil, err
		}
	}
	for _, typ := range typeOrder {
		if visited[typ] {
			continue
		}
		visited[typ] = true
		if err := apply(typ); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE subjects SET updated_at = ? WHERE subject_id = ?", now, subjectID); err != nil {
		return nil, fmt.Errorf("touching subject %q: %w", subjectID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing merge: %w", err)
	}
	return report, nil
}

func (s *SQLiteStore) mergeSingular(ctx context.Context, tx *sql.Tx, subjectID string, typ facttype.Type, cands []Incoming, have []*Fact, clearMissing bool, now string, report *OutcomeReport) error {
	var old *Fact
	if len(have) > 0 {
		old = have[0]
	}

	if len(cands) == 0 {
		if old == nil {
			return nil
		}
		if !clearMissing {
			report.record(FieldOutcome{Type: typ, Outcome: OutcomeSkipped, OldValue: old.Value})
			return logEvent(ctx, tx, subjectID, typ, OutcomeSkipped, old.Value, "")
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM facts WHERE id = ?", old.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", typ, err)
		}
		report.record(FieldOutcome{Type: typ, Outcome: OutcomeCleared, OldValue: old.Value})
		return logEvent(ctx, tx, subjectID, typ, OutcomeCleared, old.Value, "")
	}

	in := cands[0]
	for _, extra := range cands[1:] {
		report.record(FieldOutcome{Type: typ, Outcome: OutcomeSkipped, NewValue: extra.Value})
	}

	norm := normKey(in.Value)
	switch {
	case old == nil:
		if err := insertFact(ctx, tx, subjectID, in, norm, now); err != nil {
			return err
		}
		report.record(FieldOutcome{Type: typ, Outcome: OutcomeAdded, NewValue: in.Value})
		return logEvent(ctx, tx, subjectID, typ, OutcomeAdded, "", in.Value)

	case normKey(old.Value) == norm:
		report.record(FieldOutcome{Type: typ, Outcome: OutcomeUnchanged, OldValue: old.Value})
		return nil

	default:
		_, err := tx.ExecContext(ctx, `
			UPDATE facts
			SET value = ?, value_norm = ?, raw_snippet = ?, source_doc = ?, source_offset = ?, extracted_at = ?
			WHERE id = ?`,
			in.Value, norm, in.RawSnippet, in.SourceDoc, in.SourceOffset, now, old.ID)
		if err != nil {
			return fmt.Errorf("updating %s: %w", typ, err)
		}
		report.record(FieldOutcome{Type: typ, Outcome: OutcomeUpdated, OldValue: old.Value, NewValue: in.Value})
		return logEvent(ctx, tx, subjectID, typ, OutcomeUpdated, old.Value, in.Value)
	}
}

func (s *SQLiteStore) mergeMulti(ctx context.Context, tx *sql.Tx, subjectID string, typ facttype.Type, cands []Incoming, have []*Fact, now string, report *OutcomeReport) error {
	haveNorm := map[string]bool{}
	for _, f := range have {
		haveNorm[normKey(f.Value)] = true
	}

	for _, in := range cands {
		norm := normKey(in.Value)
		if haveNorm[norm] {
			report.record(FieldOutcome{Type: typ, Outcome: OutcomeUnchanged, OldValue: in.Value})
			continue
		}
		haveNorm[norm] = true
		if err := insertFact(ctx, tx, subjectID, in, norm, now); err != nil {
			return err
		}
		report.record(FieldOutcome{Type: typ, Outcome: OutcomeAdded, NewValue: in.Value})
		if err := logEvent(ctx, tx, subjectID, typ, OutcomeAdded, "", in.Value); err != nil {
			return err
		}
	}
	return nil
}

func insertFact(ctx context.Context, tx *sql.Tx, subjectID string, in Incoming, norm, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO facts (subject_id, fact_type, value, value_norm, raw_snippet, source_doc, source_offset, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		subjectID, string(in.Type), in.Value, norm, in.RawSnippet, in.SourceDoc, in.SourceOffset, now)
	if err != nil {
		return fmt.Errorf("inserting %s fact: %w", in.Type, err)
	}
	return nil
}

func logEvent(ctx context.Context, tx *sql.Tx, subjectID string, typ facttype.Type, outcome Outcome, oldValue, newValue string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO merge_events (subject_id, fact_type, outcome, old_value, new_value)
		VALUES (?, ?, ?, ?, ?)`,
		subjectID, string(typ), string(outcome), oldValue, newValue)
	if err != nil {
		return fmt.Errorf("logging merge event: %w", err)
	}
	return nil
}

// PutFact writes one manually entered value. The value is normalized for
// its type and merged like an extracted candidate: singular types upsert,
// multi-valued types append. The source is recorded as "manual".
func (s *SQLiteStore) PutFact(ctx context.Context, subjectID string, typ facttype.Type, value string) (*FieldOutcome, error) {
	norm := facttype.NormalizeValue(typ, value)
	if norm == "" {
		return nil, fmt.Errorf("value %q normalizes to empty for type %s", value, typ)
	}

	report, err := s.MergeCandidates(ctx, subjectID, []Incoming{{
		Type:       typ,
		Value:      norm,
		RawSnippet: value,
		SourceDoc:  "manual",
	}}, false)
	if err != nil {
		return nil, err
	}
	for i := range report.Fields {
		if report.Fields[i].Type == typ {
			return &report.Fields[i], nil
		}
	}
	return nil, fmt.Errorf("merge produced no outcome for %s", typ)
}

// normKey is the dedup/comparison key for a normalized value.
func normKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
