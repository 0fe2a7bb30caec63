package reconcile

import (
	"testing"

	"github.com/kverner/storymark/internal/annotation"
	"github.com/kverner/storymark/internal/parse"
)

func intPtr(n int) *int { return &n }

func newStore(t *testing.T, annotations ...annotation.Annotation) *annotation.MemStore {
	t.Helper()
	store := annotation.NewMemStore(annotation.Vocabulary{"Plot Points"})
	for _, a := range annotations {
		if _, err := store.Add(a); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return store
}

func TestMergeNoteProtectsUserContent(t *testing.T) {
	t.Parallel()

	store := newStore(t, annotation.Annotation{
		ID:           "ann-1",
		Text:         "some text",
		DetailedNote: "user wrote this",
	})

	result := New(store).Merge([]parse.GeneratedRecord{{
		Kind:     parse.KindNote,
		ID:       "ann-1",
		Brief:    annotation.Value("generated brief"),
		Detailed: annotation.Value("generated detail"),
	}})

	if result.Accepted != 1 {
		t.Fatalf("Accepted = %d, want 1", result.Accepted)
	}

	a, _ := store.Get("ann-1")
	if a.DetailedNote != "user wrote this" {
		t.Errorf("DetailedNote = %q, user content was overwritten", a.DetailedNote)
	}
	if a.BriefNote != "generated brief" {
		t.Errorf("BriefNote = %q, empty field was not filled", a.BriefNote)
	}

	out := result.Outcomes[0]
	if len(out.ProtectedFields) != 1 || out.ProtectedFields[0] != "detailed_note" {
		t.Errorf("ProtectedFields = %v, want [detailed_note]", out.ProtectedFields)
	}
	if len(out.AppliedFields) != 1 || out.AppliedFields[0] != "brief_note" {
		t.Errorf("AppliedFields = %v, want [brief_note]", out.AppliedFields)
	}
}

func TestMergeNoteIdempotent(t *testing.T) {
	t.Parallel()

	store := newStore(t, annotation.Annotation{ID: "ann-1", Text: "t"})
	engine := New(store)

	records := []parse.GeneratedRecord{{
		Kind:  parse.KindNote,
		ID:    "ann-1",
		Brief: annotation.Value("first pass"),
	}}

	engine.Merge(records)
	// A second merge targets a now-populated field and must not change it.
	records[0].Brief = annotation.Value("second pass")
	result := engine.Merge(records)

	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	a, _ := store.Get("ann-1")
	if a.BriefNote != "first pass" {
		t.Errorf("BriefNote = %q, want first pass", a.BriefNote)
	}
}

func TestMergeNoteSkipSentinel(t *testing.T) {
	t.Parallel()

	store := newStore(t, annotation.Annotation{
		ID:        "ann-1",
		Text:      "t",
		BriefNote: "existing brief",
	})

	// Two records for the same annotation: one explicitly skips the brief
	// field, one carries a real detailed note.
	result := New(store).Merge([]parse.GeneratedRecord{
		{Kind: parse.KindNote, ID: "ann-1", Brief: annotation.ExplicitSkip(), Detailed: annotation.ExplicitSkip()},
		{Kind: parse.KindNote, ID: "ann-1", Brief: annotation.ExplicitSkip(), Detailed: annotation.Value("a real detailed note")},
	})

	a, _ := store.Get("ann-1")
	if a.BriefNote != "existing brief" {
		t.Errorf("BriefNote = %q, want existing brief", a.BriefNote)
	}
	if a.DetailedNote != "a real detailed note" {
		t.Errorf("DetailedNote = %q, want the generated note", a.DetailedNote)
	}

	if result.Accepted != 1 || result.Skipped != 1 {
		t.Errorf("Accepted = %d Skipped = %d, want 1 and 1", result.Accepted, result.Skipped)
	}
}

func TestMergeCreation(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	result := New(store).Merge([]parse.GeneratedRecord{{
		Kind:                parse.KindCreation,
		Text:                "verbatim segment",
		PrimaryCategory:     "Plot Points",
		SecondaryCategories: []string{"Character Moments"},
		BriefNote:           "brief",
		DetailedNote:        "detail",
	}})

	if result.Accepted != 1 {
		t.Fatalf("Accepted = %d, want 1 (reasons: %v)", result.Accepted, result.Reasons)
	}

	createdID := result.Outcomes[0].CreatedID
	if createdID == "" {
		t.Fatal("no CreatedID recorded")
	}
	a, ok := store.Get(createdID)
	if !ok {
		t.Fatal("created annotation not in store")
	}
	if a.Text != "verbatim segment" || a.PrimaryCategory != "Plot Points" {
		t.Errorf("created annotation = %+v", a)
	}
	if a.HasOrder() {
		t.Error("new annotation has a storyboard position")
	}
}

func TestMergeOrderingShiftsPastDividerSlots(t *testing.T) {
	t.Parallel()

	store := newStore(t,
		annotation.Annotation{ID: "a", Text: "first"},
		annotation.Annotation{ID: "b", Text: "second"},
		annotation.Annotation{ID: "c", Text: "third"},
		annotation.Annotation{ID: "div", Text: "Act One", Divider: true, Order: intPtr(5)},
	)

	result := New(store).Merge([]parse.GeneratedRecord{
		{Kind: parse.KindOrdering, ID: "a", Order: 0},
		{Kind: parse.KindOrdering, ID: "b", Order: 1},
		{Kind: parse.KindOrdering, ID: "c", Order: 2},
	})

	if result.Accepted != 3 {
		t.Fatalf("Accepted = %d, want 3 (reasons: %v)", result.Accepted, result.Reasons)
	}

	want := map[string]int{"a": 6, "b": 7, "c": 8}
	for id, order := range want {
		a, _ := store.Get(id)
		if a.OrderValue() != order {
			t.Errorf("annotation %q order = %d, want %d", id, a.OrderValue(), order)
		}
	}
}

func TestMergeOrderingNoDividers(t *testing.T) {
	t.Parallel()

	store := newStore(t, annotation.Annotation{ID: "a", Text: "first"})
	New(store).Merge([]parse.GeneratedRecord{
		{Kind: parse.KindOrdering, ID: "a", Order: 3, Header: "Tonal Shift"},
	})

	a, _ := store.Get("a")
	if a.OrderValue() != 3 {
		t.Errorf("order = %d, want 3 (no shift without dividers)", a.OrderValue())
	}
	if a.Header != "Tonal Shift" {
		t.Errorf("Header = %q, want Tonal Shift", a.Header)
	}
}

func TestMergeOrderingOverwritesExistingOrder(t *testing.T) {
	t.Parallel()

	store := newStore(t, annotation.Annotation{ID: "a", Text: "t", Order: intPtr(9)})
	New(store).Merge([]parse.GeneratedRecord{
		{Kind: parse.KindOrdering, ID: "a", Order: 0},
	})

	a, _ := store.Get("a")
	if a.OrderValue() != 0 {
		t.Errorf("order = %d, want 0 (ordering writes are unconditional)", a.OrderValue())
	}
}

func TestMergeDividerCreation(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	result := New(store).Merge([]parse.GeneratedRecord{{
		Kind:  parse.KindDivider,
		Title: "The Journey Begins",
		Order: 5,
		Color: "#d7ffb8",
	}})

	if result.Accepted != 1 {
		t.Fatalf("Accepted = %d, want 1", result.Accepted)
	}
	a, ok := store.Get(result.Outcomes[0].CreatedID)
	if !ok {
		t.Fatal("divider not in store")
	}
	if !a.Divider || a.Text != "The Journey Begins" || a.Color != "#d7ffb8" || a.OrderValue() != 5 {
		t.Errorf("divider = %+v", a)
	}
}

func TestMergeDividerShiftsPastExistingDividers(t *testing.T) {
	t.Parallel()

	store := newStore(t,
		annotation.Annotation{ID: "a", Text: "scene"},
		annotation.Annotation{ID: "act1", Text: "Act One", Divider: true, Order: intPtr(5)},
	)

	// The new divider's slot overlaps the reserved one; it must be shifted
	// with the same offset as the ordering record so both land past slot 5.
	result := New(store).Merge([]parse.GeneratedRecord{
		{Kind: parse.KindDivider, Title: "Act Two", Order: 5, Color: "#d7ffb8"},
		{Kind: parse.KindOrdering, ID: "a", Order: 6},
	})

	if result.Accepted != 2 {
		t.Fatalf("Accepted = %d, want 2 (reasons: %v)", result.Accepted, result.Reasons)
	}

	created, ok := store.Get(result.Outcomes[0].CreatedID)
	if !ok {
		t.Fatal("divider not in store")
	}
	if created.OrderValue() != 11 {
		t.Errorf("new divider order = %d, want 11", created.OrderValue())
	}

	occupied := map[int]string{}
	for _, a := range store.List(nil) {
		if !a.HasOrder() {
			continue
		}
		if prev, clash := occupied[a.OrderValue()]; clash {
			t.Errorf("order %d held by both %q and %q", a.OrderValue(), prev, a.ID)
		}
		occupied[a.OrderValue()] = a.ID
	}

	moved, _ := store.Get("a")
	if moved.OrderValue() != 12 {
		t.Errorf("annotation order = %d, want 12", moved.OrderValue())
	}
}

func TestMergeRejectsMissingAnnotation(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	result := New(store).Merge([]parse.GeneratedRecord{
		{Kind: parse.KindNote, ID: "gone", Brief: annotation.Value("x")},
		{Kind: parse.KindOrdering, ID: "gone", Order: 0},
	})

	if result.Rejected != 2 {
		t.Fatalf("Rejected = %d, want 2", result.Rejected)
	}
	if len(result.Reasons) != 2 {
		t.Errorf("Reasons = %v, want two entries", result.Reasons)
	}
	for _, out := range result.Outcomes {
		if out.Disposition != Rejected || out.Reason == "" {
			t.Errorf("outcome = %+v, want rejected with reason", out)
		}
	}
}

func TestMergeReferenceIsVerificationOnly(t *testing.T) {
	t.Parallel()

	store := newStore(t, annotation.Annotation{ID: "a", Text: "t"})
	before, _ := store.Get("a")

	result := New(store).Merge([]parse.GeneratedRecord{
		{Kind: parse.KindReference, ID: "a"},
	})

	if result.Accepted != 1 {
		t.Errorf("Accepted = %d, want 1", result.Accepted)
	}
	after, _ := store.Get("a")
	if after.BriefNote != before.BriefNote || after.OrderValue() != before.OrderValue() {
		t.Error("reference record mutated the annotation")
	}
}
