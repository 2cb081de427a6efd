// Package store provides the SQLite storage layer for factfill.
//
// All profile data lives in a single SQLite database file:
// - Subjects (one row per company profile)
// - Extracted facts with provenance (raw snippet, source document, offset)
// - Raw ingested document texts, kept so the search index can be rebuilt
// - An append-only merge event log recording every field-level change
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/morepork/factfill/internal/facttype"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.factfill/factfill.db"

// Subject is one profile that facts are attributed to.
type Subject struct {
	ID        int64
	SubjectID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fact is a single typed, normalized value attributed to a subject.
type Fact struct {
	ID           int64
	SubjectID    string
	Type         facttype.Type
	Value        string // normalized per type
	RawSnippet   string // verbatim matched text, for audit
	SourceDoc    string
	SourceOffset int
	ExtractedAt  time.Time
}

// Document is one ingested document's raw text.
type Document struct {
	DocID      string
	SubjectID  string
	Content    string
	IngestedAt time.Time
}

// MergeEvent is one entry in the append-only merge log.
type MergeEvent struct {
	ID        int64
	SubjectID string
	FactType  facttype.Type
	Outcome   Outcome
	OldValue  string
	NewValue  string
	CreatedAt time.Time
}

// StoreStats holds observability counts for the store.
type StoreStats struct {
	SubjectCount  int64
	FactCount     int64
	DocumentCount int64
	EventCount    int64
	DBSizeBytes   int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the storage interface consumed by the engine.
type Store interface {
	// Subjects
	EnsureSubject(ctx context.Context, subjectID string) error
	ListSubjects(ctx context.Context) ([]string, error)

	// Facts
	MergeCandidates(ctx context.Context, subjectID string, incoming []Incoming, clearMissing bool) (*OutcomeReport, error)
	PutFact(ctx context.Context, subjectID string, typ facttype.Type, value string) (*FieldOutcome, error)
	FactsBySubject(ctx context.Context, subjectID string) ([]*Fact, error)
	RemoveFact(ctx context.Context, id int64) error

	// Documents
	AddDocument(ctx context.Context, d *Document) error
	DocumentsBySubject(ctx context.Context, subjectID string) ([]*Document, error)

	// Observability
	Events(ctx context.Context, subjectID string, limit int) ([]*MergeEvent, error)
	Stats(ctx context.Context) (*StoreStats, error)

	Close() error
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string

	// subjectLocks serializes merges per subject. Merges for different
	// subjects proceed independently; two overlapping batches for the same
	// subject never interleave.
	subjectLocks sync.Map // subjectID -> *sync.Mutex
}

// NewStore opens (and if needed creates) the database.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ExpandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.DBPath == ":memory:" {
		// Each pooled connection to ":memory:" would get its own empty
		// database; pin the pool to one connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// lockSubject returns the mutex guarding writes for one subject.
func (s *SQLiteStore) lockSubject(subjectID string) *sync.Mutex {
	mu, _ := s.subjectLocks.LoadOrStore(subjectID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Stats returns row counts and database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}
	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM subjects", &stats.SubjectCount},
		{"SELECT COUNT(*) FROM facts", &stats.FactCount},
		{"SELECT COUNT(*) FROM documents", &stats.DocumentCount},
		{"SELECT COUNT(*) FROM merge_events", &stats.EventCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}

	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = fi.Size()
		}
	}
	return stats, nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
