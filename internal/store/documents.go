package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddDocument stores one ingested document's raw text. A missing DocID is
// assigned; re-ingesting an existing DocID replaces the stored content.
func (s *SQLiteStore) AddDocument(ctx context.Context, d *Document) error {
	if d == nil {
		return fmt.Errorf("document is required")
	}
	if d.SubjectID == "" {
		return fmt.Errorf("document subject id is required")
	}
	if d.DocID == "" {
		d.DocID = uuid.NewString()
	}
	if d.IngestedAt.IsZero() {
		d.IngestedAt = time.Now().UTC()
	}

	if err := s.EnsureSubject(ctx, d.SubjectID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, subject_id, content, ingested_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			subject_id = excluded.subject_id,
			content = excluded.content,
			ingested_at = excluded.ingested_at`,
		d.DocID, d.SubjectID, d.Content, d.IngestedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storing document %q: %w", d.DocID, err)
	}
	return nil
}

// DocumentsBySubject returns the subject's documents, oldest first.
func (s *SQLiteStore) DocumentsBySubject(ctx context.Context, subjectID string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, subject_id, content, ingested_at
		FROM documents
		WHERE subject_id = ?
		ORDER BY ingested_at, doc_id`,
		subjectID)
	if err != nil {
		return nil, fmt.Errorf("querying documents for %q: %w", subjectID, err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		var d Document
		var ingestedAt string
		if err := rows.Scan(&d.DocID, &d.SubjectID, &d.Content, &ingestedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.IngestedAt = parseTime(ingestedAt)
		out = append(out, &d)
	}
	return out, rows.Err()
}
