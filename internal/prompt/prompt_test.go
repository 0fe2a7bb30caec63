package prompt

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kverner/storymark/internal/annotation"
)

var testVocab = annotation.Vocabulary{"Character Moments", "Plot Points", "World Building"}

func intPtr(n int) *int { return &n }

func TestAnnotationPrompt(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testVocab)
	got, err := b.Annotation("the transcript text", Options{Selectivity: SelectivityVerySelective})
	if err != nil {
		t.Fatalf("Annotation: %v", err)
	}

	for _, want := range []string{
		"[[ANNOTATION :: PRIMARY_CATEGORY :: SECONDARY_CATEGORIES :: EXACT_TEXT_SEGMENT :: BRIEF_NOTE :: DETAILED_NOTE]]",
		"- Character Moments\n- Plot Points\n- World Building",
		"the transcript text",
		"Very Selective",
		"copied EXACTLY",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("annotation prompt missing %q", want)
		}
	}
}

func TestAnnotationPromptFatalConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewBuilder(nil).Annotation("text", Options{}); !errors.Is(err, ErrNoVocabulary) {
		t.Errorf("empty vocabulary: err = %v, want ErrNoVocabulary", err)
	}
	if _, err := NewBuilder(testVocab).Annotation("   ", Options{}); !errors.Is(err, ErrNoDocument) {
		t.Errorf("blank document: err = %v, want ErrNoDocument", err)
	}
}

func TestContextSizeGate(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testVocab, WithMaxContextChars(10))
	document := "this document is longer than ten characters"

	_, err := b.Annotation(document, Options{})
	var sizeErr *ContextSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("err = %v, want *ContextSizeError", err)
	}
	if sizeErr.Size != len(document) || sizeErr.Limit != 10 {
		t.Errorf("ContextSizeError = %+v, want Size %d Limit 10", sizeErr, len(document))
	}

	// Confirmation lets the oversized document through.
	if _, err := b.Annotation(document, Options{ConfirmLargeContext: true}); err != nil {
		t.Errorf("confirmed oversize context: %v", err)
	}
}

func TestNotesPromptEligibility(t *testing.T) {
	t.Parallel()

	annotations := []annotation.Annotation{
		{ID: "id-needs-both", Text: "first", PrimaryCategory: "Plot Points"},
		{ID: "id-complete", Text: "second", BriefNote: "done", DetailedNote: "also done"},
		{ID: "id-divider", Divider: true},
		{ID: "id-partial", Text: "third", BriefNote: "has brief"},
	}

	b := NewBuilder(testVocab)
	got, err := b.Notes(annotations, "", Options{GenerateCommentary: true, CommentaryLength: 2})
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}

	if !strings.Contains(got, "ID: id-needs-both") || !strings.Contains(got, "ID: id-partial") {
		t.Error("notes prompt missing eligible annotation IDs")
	}
	if strings.Contains(got, "id-complete") {
		t.Error("notes prompt included a fully annotated record")
	}
	if strings.Contains(got, "id-divider") {
		t.Error("notes prompt included a divider")
	}
	if !strings.Contains(got, "[[NOTES :: ANNOTATION_ID :: BRIEF_NOTES :: DETAILED_NOTES]]") {
		t.Error("notes prompt missing the response grammar")
	}
	if !strings.Contains(got, "1-2 sentences maximum") {
		t.Error("notes prompt missing the commentary length instruction")
	}
	if !strings.Contains(got, "Has existing notes: No") || !strings.Contains(got, "Has existing notes: Yes") {
		t.Error("notes prompt missing note-presence flags")
	}
}

func TestNotesPromptCommentaryDisabled(t *testing.T) {
	t.Parallel()

	annotations := []annotation.Annotation{{ID: "x", Text: "t"}}
	got, err := NewBuilder(testVocab).Notes(annotations, "", Options{})
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if !strings.Contains(got, "[[NOTES :: ANNOTATION_ID :: BRIEF_NOTES :: SKIP]]") {
		t.Error("disabled commentary did not pin the detailed field to SKIP")
	}
}

func TestNotesPromptNoEligible(t *testing.T) {
	t.Parallel()

	annotations := []annotation.Annotation{
		{ID: "a", Text: "t", BriefNote: "b", DetailedNote: "d"},
	}
	if _, err := NewBuilder(testVocab).Notes(annotations, "", Options{}); !errors.Is(err, ErrNoAnnotations) {
		t.Errorf("err = %v, want ErrNoAnnotations", err)
	}
}

func TestStoryboardPrompt(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("w", 300)
	annotations := []annotation.Annotation{
		{ID: "aaa", Text: "short text", Favorite: true, Tags: []string{"opening"}, PrimaryCategory: "Plot Points"},
		{ID: "bbb", Text: long},
		{ID: "div", Text: "Section", Divider: true, Order: intPtr(5)},
	}

	got, err := NewBuilder(testVocab).Storyboard(annotations, "", Options{
		UseDividers:   true,
		UseHeaders:    true,
		TargetSeconds: 90,
	})
	if err != nil {
		t.Fatalf("Storyboard: %v", err)
	}

	if !strings.Contains(got, `aaa: "short text" [note`) && !strings.Contains(got, `aaa: "short text" [favorite`) {
		t.Error("storyboard prompt missing serialized annotation")
	}
	if !strings.Contains(got, "favorite: true") {
		t.Error("storyboard prompt missing favorite flag")
	}
	if strings.Contains(got, "div:") {
		t.Error("storyboard prompt included a divider")
	}
	if !strings.Contains(got, long[:storyboardTextLimit]+"...") {
		t.Error("long annotation text not truncated")
	}
	if strings.Contains(got, long) {
		t.Error("storyboard prompt embedded the full long text")
	}
	if !strings.Contains(got, "annotation-id-here :: Order#0") {
		t.Error("storyboard prompt missing the ordering grammar")
	}
	if !strings.Contains(got, `DIVIDER :: "Section Name" :: Order#X :: #color`) {
		t.Error("storyboard prompt missing the divider grammar")
	}
	if !strings.Contains(got, `HEADER :: "Production Note"`) {
		t.Error("storyboard prompt missing the header grammar")
	}
	if !strings.Contains(got, "#fff4c9") {
		t.Error("storyboard prompt missing the divider palette")
	}
	if !strings.Contains(got, "1:30 (approximately 300 words)") {
		t.Error("storyboard prompt missing the length target")
	}
}

func TestStoryboardPromptOptionalGrammarsOmitted(t *testing.T) {
	t.Parallel()

	annotations := []annotation.Annotation{{ID: "aaa", Text: "text"}}
	got, err := NewBuilder(testVocab).Storyboard(annotations, "", Options{})
	if err != nil {
		t.Fatalf("Storyboard: %v", err)
	}
	if strings.Contains(got, "DIVIDER ::") {
		t.Error("divider grammar present despite UseDividers=false")
	}
	if strings.Contains(got, "HEADER ::") {
		t.Error("header grammar present despite UseHeaders=false")
	}
}

func TestChatPrompt(t *testing.T) {
	t.Parallel()

	annotations := []annotation.Annotation{
		{ID: "e5ef45de-a6dd-47e7-9a85-ed10fe13a187", Text: "quoted", PrimaryCategory: "Plot Points", Tags: []string{"key"}},
		{ID: "divider-id", Divider: true},
	}

	got, err := NewBuilder(testVocab).Chat(annotations, "", "where does the journey start?", Options{
		TranscriptTitle: "Interview",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	for _, want := range []string{
		"ANNOTATIONS AVAILABLE (1 total):",
		"ID: e5ef45de-a6dd-47e7-9a85-ed10fe13a187",
		"Tags: #key",
		"USER QUESTION: where does the journey start?",
		"[[ANNOTATION_ID]]",
		"Title: Interview",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("chat prompt missing %q", want)
		}
	}
	if strings.Contains(got, "divider-id") {
		t.Error("chat prompt included a divider")
	}

	if _, err := NewBuilder(testVocab).Chat(annotations, "", "  ", Options{}); err == nil {
		t.Error("blank query accepted")
	}
}

func TestWordBudget(t *testing.T) {
	t.Parallel()

	annotations := []annotation.Annotation{
		{Text: "one two three"},
		{Text: "four five"},
		{Text: "ignored words here", Divider: true},
	}
	if got := CountWords(annotations); got != 5 {
		t.Errorf("CountWords = %d, want 5", got)
	}
	if got := EstimateSeconds(200); got != 60 {
		t.Errorf("EstimateSeconds(200) = %d, want 60", got)
	}
}

func TestStoryboardTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	// 70 three-byte runes put the byte limit inside a rune.
	longText := strings.Repeat("世", 70)
	got := serializeForStoryboard([]annotation.Annotation{
		{ID: "a", Text: longText},
	})

	if !strings.Contains(got, "...") {
		t.Fatal("long text was not truncated")
	}
	if !utf8.ValidString(got) {
		t.Error("storyboard serialization produced invalid UTF-8")
	}
	if strings.Contains(got, "�") {
		t.Error("storyboard serialization contains a replacement character")
	}
}
