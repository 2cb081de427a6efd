package store

import (
	"context"
	"testing"

	"github.com/morepork/factfill/internal/facttype"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureSubjectIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.EnsureSubject(ctx, "acme"); err != nil {
			t.Fatalf("EnsureSubject run %d: %v", i, err)
		}
	}

	subjects, err := s.ListSubjects(ctx)
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(subjects) != 1 || subjects[0] != "acme" {
		t.Errorf("subjects = %v, want [acme]", subjects)
	}
}

func TestEnsureSubjectEmptyID(t *testing.T) {
	s := newTestStore(t)
	if err := s.EnsureSubject(context.Background(), ""); err == nil {
		t.Error("expected error for empty subject id")
	}
}

func TestAddDocumentAssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &Document{SubjectID: "acme", Content: "NZBN: 9429 041 398 978"}
	if err := s.AddDocument(ctx, d); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if d.DocID == "" {
		t.Fatal("expected a generated doc id")
	}

	docs, err := s.DocumentsBySubject(ctx, "acme")
	if err != nil {
		t.Fatalf("DocumentsBySubject: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != d.Content {
		t.Errorf("documents = %+v", docs)
	}
}

func TestAddDocumentReplacesContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddDocument(ctx, &Document{DocID: "d1", SubjectID: "acme", Content: "v1"}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := s.AddDocument(ctx, &Document{DocID: "d1", SubjectID: "acme", Content: "v2"}); err != nil {
		t.Fatalf("AddDocument (replace): %v", err)
	}

	docs, err := s.DocumentsBySubject(ctx, "acme")
	if err != nil {
		t.Fatalf("DocumentsBySubject: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "v2" {
		t.Errorf("documents = %+v, want single doc with v2", docs)
	}
}

func TestPutFactSingularUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fo, err := s.PutFact(ctx, "acme", facttype.ContactEmail, "Office@Example.NZ")
	if err != nil {
		t.Fatalf("PutFact: %v", err)
	}
	if fo.Outcome != OutcomeAdded {
		t.Errorf("first put outcome = %s, want added", fo.Outcome)
	}

	fo, err = s.PutFact(ctx, "acme", facttype.ContactEmail, "new@example.nz")
	if err != nil {
		t.Fatalf("PutFact (second): %v", err)
	}
	if fo.Outcome != OutcomeUpdated || fo.OldValue != "office@example.nz" {
		t.Errorf("second put outcome = %+v, want updated from office@example.nz", fo)
	}

	facts, err := s.FactsBySubject(ctx, "acme")
	if err != nil {
		t.Fatalf("FactsBySubject: %v", err)
	}
	if len(facts) != 1 || facts[0].Value != "new@example.nz" {
		t.Errorf("facts = %+v, want single updated email", facts)
	}
	if facts[0].SourceDoc != "manual" {
		t.Errorf("source doc = %q, want manual", facts[0].SourceDoc)
	}
}

func TestPutFactRejectsEmptyValue(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.PutFact(context.Background(), "acme", facttype.AnnualTurnover, "no digits"); err == nil {
		t.Error("expected error for value that normalizes to empty")
	}
}

func TestRemoveFact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.PutFact(ctx, "acme", facttype.Certification, "Site Safe"); err != nil {
		t.Fatalf("PutFact: %v", err)
	}
	facts, err := s.FactsBySubject(ctx, "acme")
	if err != nil || len(facts) != 1 {
		t.Fatalf("FactsBySubject = %v, %v", facts, err)
	}

	id := facts[0].ID
	if err := s.RemoveFact(ctx, id); err != nil {
		t.Fatalf("RemoveFact: %v", err)
	}
	facts, err = s.FactsBySubject(ctx, "acme")
	if err != nil {
		t.Fatalf("FactsBySubject after remove: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("facts after remove = %+v, want none", facts)
	}

	// Removing again is a no-op.
	if err := s.RemoveFact(ctx, id); err != nil {
		t.Errorf("RemoveFact on missing id: %v", err)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddDocument(ctx, &Document{SubjectID: "acme", Content: "x"}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if _, err := s.PutFact(ctx, "acme", facttype.BusinessName, "Acme Ltd"); err != nil {
		t.Fatalf("PutFact: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.SubjectCount != 1 || stats.FactCount != 1 || stats.DocumentCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.EventCount == 0 {
		t.Error("expected at least one merge event")
	}
}
