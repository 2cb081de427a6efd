package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeLayouts covers the formats the store writes ("datetime('now')" in SQL
// defaults, RFC3339 from Go code).
var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// EnsureSubject creates the subject row if it does not exist.
func (s *SQLiteStore) EnsureSubject(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO subjects (subject_id) VALUES (?) ON CONFLICT(subject_id) DO NOTHING",
		subjectID)
	if err != nil {
		return fmt.Errorf("ensuring subject %q: %w", subjectID, err)
	}
	return nil
}

// ListSubjects returns all subject ids in creation order.
func (s *SQLiteStore) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT subject_id FROM subjects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing subjects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning subject: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// FactsBySubject returns every fact for the subject, ordered by fact type
// then extraction time (newest first within a type) then id. The ordering is
// total, so identical stores always list identically.
func (s *SQLiteStore) FactsBySubject(ctx context.Context, subjectID string) ([]*Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, fact_type, value, value_norm, raw_snippet, source_doc, source_offset, extracted_at
		FROM facts
		WHERE subject_id = ?
		ORDER BY fact_type, extracted_at DESC, id`,
		subjectID)
	if err != nil {
		return nil, fmt.Errorf("querying facts for %q: %w", subjectID, err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

func scanFacts(rows *sql.Rows) ([]*Fact, error) {
	var out []*Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFact(rows *sql.Rows) (*Fact, error) {
	var f Fact
	var valueNorm, extractedAt string
	if err := rows.Scan(&f.ID, &f.SubjectID, &f.Type, &f.Value, &valueNorm,
		&f.RawSnippet, &f.SourceDoc, &f.SourceOffset, &extractedAt); err != nil {
		return nil, fmt.Errorf("scanning fact: %w", err)
	}
	f.ExtractedAt = parseTime(extractedAt)
	return &f, nil
}

// RemoveFact deletes one fact by id. Removing a nonexistent fact is not an
// error.
func (s *SQLiteStore) RemoveFact(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM facts WHERE id = ?", id); err != nil {
		return fmt.Errorf("removing fact %d: %w", id, err)
	}
	return nil
}

// Events returns the most recent merge events for a subject, newest first.
func (s *SQLiteStore) Events(ctx context.Context, subjectID string, limit int) ([]*MergeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, fact_type, outcome, old_value, new_value, created_at
		FROM merge_events
		WHERE subject_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying merge events for %q: %w", subjectID, err)
	}
	defer rows.Close()

	var out []*MergeEvent
	for rows.Next() {
		var e MergeEvent
		var createdAt string
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.FactType, &e.Outcome,
			&e.OldValue, &e.NewValue, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning merge event: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
