package store

import "fmt"

// migrate creates the schema if missing and applies idempotent evolutions.
// Every statement is safe to re-run against an existing database.
func (s *SQLiteStore) migrate() error {
	// facts.fact_type deliberately has no CHECK constraint: rows written by a
	// newer build with a wider type vocabulary must survive being read (and
	// merged around) by an older build.
	schema := `
CREATE TABLE IF NOT EXISTS subjects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id TEXT NOT NULL,
	fact_type TEXT NOT NULL,
	value TEXT NOT NULL,
	value_norm TEXT NOT NULL,
	raw_snippet TEXT NOT NULL DEFAULT '',
	source_doc TEXT NOT NULL DEFAULT '',
	source_offset INTEGER NOT NULL DEFAULT 0,
	extracted_at TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE(subject_id, fact_type, value_norm),
	FOREIGN KEY (subject_id) REFERENCES subjects(subject_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_facts_subject ON facts(subject_id);
CREATE INDEX IF NOT EXISTS idx_facts_subject_type ON facts(subject_id, fact_type);

CREATE TABLE IF NOT EXISTS documents (
	doc_id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	content TEXT NOT NULL,
	ingested_at TEXT NOT NULL DEFAULT (datetime('now')),
	FOREIGN KEY (subject_id) REFERENCES subjects(subject_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_subject ON documents(subject_id);

CREATE TABLE IF NOT EXISTS merge_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id TEXT NOT NULL,
	fact_type TEXT NOT NULL,
	outcome TEXT NOT NULL,
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_merge_events_subject ON merge_events(subject_id, created_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	// Evolution: raw_snippet and source_offset were added after the first
	// release. ALTER TABLE fails if the column already exists, which is fine.
	evolutions := []string{
		"ALTER TABLE facts ADD COLUMN raw_snippet TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE facts ADD COLUMN source_offset INTEGER NOT NULL DEFAULT 0",
	}
	for _, stmt := range evolutions {
		s.db.Exec(stmt)
	}

	return nil
}
