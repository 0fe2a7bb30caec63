package annotation

import (
	"os"
	"path/filepath"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestParseField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw       string
		wantSkip  bool
		wantUnset bool
		wantValue string
	}{
		{raw: "", wantUnset: true},
		{raw: "SKIP", wantSkip: true},
		{raw: "skip", wantSkip: true},
		{raw: "None", wantSkip: true},
		{raw: "none", wantSkip: true},
		{raw: "a real note", wantValue: "a real note"},
		{raw: "skipped the intro", wantValue: "skipped the intro"},
	}

	for _, tt := range tests {
		f := ParseField(tt.raw)
		if f.IsSkip() != tt.wantSkip {
			t.Errorf("ParseField(%q).IsSkip() = %v, want %v", tt.raw, f.IsSkip(), tt.wantSkip)
		}
		if f.IsUnset() != tt.wantUnset {
			t.Errorf("ParseField(%q).IsUnset() = %v, want %v", tt.raw, f.IsUnset(), tt.wantUnset)
		}
		if v, ok := f.Get(); ok && v != tt.wantValue {
			t.Errorf("ParseField(%q).Get() = %q, want %q", tt.raw, v, tt.wantValue)
		}
	}
}

func TestMemStore_AddAssignsID(t *testing.T) {
	t.Parallel()

	s := NewMemStore(Vocabulary{"Comedy"})
	a, err := s.Add(Annotation{Text: "hello"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.ID == "" {
		t.Fatal("Add left ID empty")
	}
	if _, ok := s.Get(a.ID); !ok {
		t.Fatalf("Get(%q) missed after Add", a.ID)
	}
}

func TestMemStore_DuplicateID(t *testing.T) {
	t.Parallel()

	s := NewMemStore(nil)
	if _, err := s.Add(Annotation{ID: "a1"}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := s.Add(Annotation{ID: "a1"}); err != ErrDuplicateID {
		t.Fatalf("second Add err = %v, want ErrDuplicateID", err)
	}
}

func TestMemStore_UpdateUnknownID(t *testing.T) {
	t.Parallel()

	s := NewMemStore(nil)
	if err := s.Update(Annotation{ID: "ghost"}); err != ErrNotFound {
		t.Fatalf("Update err = %v, want ErrNotFound", err)
	}
}

func TestMemStore_ListPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	s := NewMemStore(nil)
	for _, id := range []string{"c", "a", "b"} {
		if _, err := s.Add(Annotation{ID: id}); err != nil {
			t.Fatalf("Add(%q): %v", id, err)
		}
	}

	ids := s.IDs()
	want := []string{"c", "a", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
}

func TestMemStore_SnapshotsDoNotAlias(t *testing.T) {
	t.Parallel()

	s := NewMemStore(nil)
	stored, err := s.Add(Annotation{
		ID:                  "a1",
		SecondaryCategories: []string{"Comedy"},
		Tags:                []string{"intro"},
		Order:               intPtr(3),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Mutating the returned copy must not leak into the store.
	stored.SecondaryCategories[0] = "Drama"
	stored.Tags[0] = "outro"
	*stored.Order = 99

	got, _ := s.Get("a1")
	if got.SecondaryCategories[0] != "Comedy" {
		t.Errorf("secondary category mutated through snapshot: %q", got.SecondaryCategories[0])
	}
	if got.Tags[0] != "intro" {
		t.Errorf("tag mutated through snapshot: %q", got.Tags[0])
	}
	if *got.Order != 3 {
		t.Errorf("order mutated through snapshot: %d", *got.Order)
	}
}

func TestFilters(t *testing.T) {
	t.Parallel()

	s := NewMemStore(nil)
	mustAdd := func(a Annotation) {
		t.Helper()
		if _, err := s.Add(a); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	mustAdd(Annotation{ID: "content", Text: "x", BriefNote: "done", DetailedNote: "done"})
	mustAdd(Annotation{ID: "bare", Text: "y"})
	mustAdd(Annotation{ID: "div", Divider: true})

	if got := len(s.List(nil)); got != 3 {
		t.Fatalf("List(nil) = %d annotations, want 3", got)
	}
	if got := len(s.List(ContentOnly)); got != 2 {
		t.Fatalf("List(ContentOnly) = %d annotations, want 2", got)
	}

	missing := s.List(WithoutNotes)
	if len(missing) != 1 || missing[0].ID != "bare" {
		t.Fatalf("List(WithoutNotes) = %v, want just 'bare'", missing)
	}
}

func TestLoadSaveFile_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "collection.json")

	src := NewMemStore(Vocabulary{"Comedy", "Drama"})
	if _, err := src.Add(Annotation{
		ID:              "a1",
		Text:            "and then everything went sideways",
		PrimaryCategory: "Comedy",
		BriefNote:       "the turning point",
		Order:           intPtr(0),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := src.Add(Annotation{ID: "d1", Divider: true, Color: "#ff0000", Order: intPtr(1)}); err != nil {
		t.Fatalf("Add divider: %v", err)
	}

	if err := SaveFile(path, src); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !got.Vocabulary().Contains("Drama") {
		t.Errorf("vocabulary lost on round trip: %v", got.Vocabulary())
	}
	a, ok := got.Get("a1")
	if !ok {
		t.Fatal("annotation a1 lost on round trip")
	}
	if a.BriefNote != "the turning point" || a.OrderValue() != 0 {
		t.Errorf("a1 fields lost: %+v", a)
	}
	d, ok := got.Get("d1")
	if !ok || !d.Divider || d.Color != "#ff0000" {
		t.Errorf("divider lost on round trip: %+v", d)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadFile_MalformedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestSaveFile_ReplacesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "collection.json")
	if err := os.WriteFile(path, []byte(`{"categories":[],"annotations":[]}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := NewMemStore(Vocabulary{"Comedy"})
	if err := SaveFile(path, s); err != nil {
		t.Fatalf("SaveFile over existing: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !got.Vocabulary().Contains("Comedy") {
		t.Errorf("replacement content not written: %v", got.Vocabulary())
	}
}
