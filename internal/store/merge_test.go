package store

import (
	"context"
	"testing"

	"github.com/morepork/factfill/internal/facttype"
)

func mergeOutcomes(report *OutcomeReport) map[facttype.Type]Outcome {
	out := map[facttype.Type]Outcome{}
	for _, fo := range report.Fields {
		out[fo.Type] = fo.Outcome
	}
	return out
}

func TestMergeFirstBatchAdds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	report, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.BusinessName, Value: "Acme Ltd", SourceDoc: "d1"},
		{Type: facttype.IdentifierNZBN, Value: "9429041398978", RawSnippet: "NZBN: 9429 041 398 978", SourceDoc: "d1", SourceOffset: 10},
	}, false)
	if err != nil {
		t.Fatalf("MergeCandidates: %v", err)
	}
	if report.Added != 2 || report.Updated != 0 || report.Cleared != 0 {
		t.Errorf("report = %+v, want 2 added", report)
	}

	facts, err := s.FactsBySubject(ctx, "acme")
	if err != nil {
		t.Fatalf("FactsBySubject: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %+v", facts)
	}
	for _, f := range facts {
		if f.Type == facttype.IdentifierNZBN {
			if f.RawSnippet != "NZBN: 9429 041 398 978" || f.SourceOffset != 10 {
				t.Errorf("provenance not stored: %+v", f)
			}
		}
	}
}

// A second document mentioning only some fields must not disturb the rest.
func TestMergeNonDestructive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.BusinessName, Value: "Acme Ltd"},
		{Type: facttype.IdentifierNZBN, Value: "9429041398978"},
		{Type: facttype.ContactEmail, Value: "office@acme.nz"},
	}, false)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}

	report, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.ContactEmail, Value: "sales@acme.nz"},
	}, false)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	got := mergeOutcomes(report)
	if got[facttype.ContactEmail] != OutcomeUpdated {
		t.Errorf("email outcome = %s, want updated", got[facttype.ContactEmail])
	}
	if got[facttype.BusinessName] != OutcomeSkipped || got[facttype.IdentifierNZBN] != OutcomeSkipped {
		t.Errorf("absent singular fields should be skipped, got %v", got)
	}

	facts, _ := s.FactsBySubject(ctx, "acme")
	values := map[facttype.Type]string{}
	for _, f := range facts {
		values[f.Type] = f.Value
	}
	if values[facttype.BusinessName] != "Acme Ltd" {
		t.Errorf("business name was disturbed: %q", values[facttype.BusinessName])
	}
	if values[facttype.IdentifierNZBN] != "9429041398978" {
		t.Errorf("NZBN was disturbed: %q", values[facttype.IdentifierNZBN])
	}
	if values[facttype.ContactEmail] != "sales@acme.nz" {
		t.Errorf("email = %q, want sales@acme.nz", values[facttype.ContactEmail])
	}
}

func TestMergeIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []Incoming{
		{Type: facttype.BusinessName, Value: "Acme Ltd"},
		{Type: facttype.Certification, Value: "Site Safe"},
	}
	if _, err := s.MergeCandidates(ctx, "acme", batch, false); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	report, err := s.MergeCandidates(ctx, "acme", batch, false)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if report.Added != 0 || report.Updated != 0 || report.Cleared != 0 {
		t.Errorf("re-merge must change nothing: %+v", report)
	}
	if report.Unchanged != 2 {
		t.Errorf("unchanged = %d, want 2", report.Unchanged)
	}

	facts, _ := s.FactsBySubject(ctx, "acme")
	if len(facts) != 2 {
		t.Errorf("re-merge duplicated facts: %+v", facts)
	}
}

func TestMergeMultiValuedAppendsAndDedupes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.Certification, Value: "Class 4 License"},
	}, false); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	report, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.Certification, Value: "class 4 license"}, // same, case-folded
		{Type: facttype.Certification, Value: "Site Safe Certification"},
	}, false)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if report.Added != 1 || report.Unchanged != 1 {
		t.Errorf("report = %+v, want 1 added 1 unchanged", report)
	}

	facts, _ := s.FactsBySubject(ctx, "acme")
	if len(facts) != 2 {
		t.Errorf("certifications = %+v, want 2 distinct entries", facts)
	}
}

func TestMergeClearMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.BusinessName, Value: "Acme Ltd"},
		{Type: facttype.ContactEmail, Value: "office@acme.nz"},
		{Type: facttype.Certification, Value: "Site Safe"},
	}, false); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	report, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.BusinessName, Value: "Acme Ltd"},
	}, true)
	if err != nil {
		t.Fatalf("clear-missing merge: %v", err)
	}

	got := mergeOutcomes(report)
	if got[facttype.ContactEmail] != OutcomeCleared {
		t.Errorf("email outcome = %s, want cleared", got[facttype.ContactEmail])
	}

	facts, _ := s.FactsBySubject(ctx, "acme")
	byType := map[facttype.Type]int{}
	for _, f := range facts {
		byType[f.Type]++
	}
	if byType[facttype.ContactEmail] != 0 {
		t.Error("email should be cleared")
	}
	if byType[facttype.BusinessName] != 1 {
		t.Error("business name should survive")
	}
	// Multi-valued facts are never cleared.
	if byType[facttype.Certification] != 1 {
		t.Error("certifications must survive clear-missing")
	}
}

// Rows written with fact types this build does not know must be preserved
// and never overwritten by a merge.
func TestMergeUnknownTypePreserved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	future := facttype.Type("carbon-rating")
	if _, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: future, Value: "A+"},
	}, false); err != nil {
		t.Fatalf("merge with unknown type: %v", err)
	}

	// Clear-missing batch without the unknown type: it must survive.
	if _, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.BusinessName, Value: "Acme Ltd"},
	}, true); err != nil {
		t.Fatalf("clear-missing merge: %v", err)
	}

	// A new value for the unknown type appends instead of replacing.
	if _, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: future, Value: "B"},
	}, false); err != nil {
		t.Fatalf("second unknown-type merge: %v", err)
	}

	facts, _ := s.FactsBySubject(ctx, "acme")
	var futureValues []string
	for _, f := range facts {
		if f.Type == future {
			futureValues = append(futureValues, f.Value)
		}
	}
	if len(futureValues) != 2 {
		t.Errorf("unknown-type values = %v, want both A+ and B", futureValues)
	}
}

func TestMergeLogsEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.ContactEmail, Value: "a@acme.nz"},
	}, false); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if _, err := s.MergeCandidates(ctx, "acme", []Incoming{
		{Type: facttype.ContactEmail, Value: "b@acme.nz"},
	}, false); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	events, err := s.Events(ctx, "acme", 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %+v, want 2", events)
	}
	// Newest first.
	if events[0].Outcome != OutcomeUpdated || events[0].OldValue != "a@acme.nz" || events[0].NewValue != "b@acme.nz" {
		t.Errorf("update event = %+v", events[0])
	}
	if events[1].Outcome != OutcomeAdded || events[1].NewValue != "a@acme.nz" {
		t.Errorf("add event = %+v", events[1])
	}
}

func TestMergeEmptyBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	report, err := s.MergeCandidates(ctx, "acme", nil, false)
	if err != nil {
		t.Fatalf("MergeCandidates with empty batch: %v", err)
	}
	if len(report.Fields) != 0 {
		t.Errorf("empty batch produced outcomes: %+v", report)
	}
}
