// Package prompt assembles model prompts from annotation state.
//
// One parameterised Builder covers the four request kinds the application
// makes: generating new annotations from a transcript, backfilling missing
// notes, organising a storyboard and answering free-form questions. Each
// prompt embeds a strict output grammar the response must follow; the parse
// package owns the matching grammars on the way back.
//
// The builder serialises only the fields a task needs and never leaks
// internal state. Divider annotations are structural and are always excluded
// from model context.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kverner/storymark/internal/annotation"
)

// Grammar selects the output record shape a prompt instructs the model to
// produce and the parser later expects.
type Grammar int

const (
	// GrammarAnnotation creates new annotations from transcript text.
	GrammarAnnotation Grammar = iota
	// GrammarNotes backfills missing brief and detailed notes.
	GrammarNotes
	// GrammarStoryboard assigns storyboard ordering, dividers and headers.
	GrammarStoryboard
	// GrammarChat answers questions, referencing annotations by ID.
	GrammarChat
)

// String returns the grammar name for logs and diagnostics.
func (g Grammar) String() string {
	switch g {
	case GrammarAnnotation:
		return "annotation"
	case GrammarNotes:
		return "notes"
	case GrammarStoryboard:
		return "storyboard"
	case GrammarChat:
		return "chat"
	default:
		return fmt.Sprintf("grammar(%d)", int(g))
	}
}

// Selectivity controls how many records the model is asked to return.
type Selectivity int

const (
	// SelectivityBalanced requests strong narrative beats with key
	// supporting details. The default.
	SelectivityBalanced Selectivity = iota
	// SelectivityVerySelective requests only the most essential moments.
	SelectivityVerySelective
	// SelectivityComplete requests as many records as the full story needs.
	SelectivityComplete
)

func (s Selectivity) guidance() string {
	switch s {
	case SelectivityVerySelective:
		return "Very Selective - Only the most compelling and essential story moments"
	case SelectivityComplete:
		return "Complete Story - As many annotations as necessary to tell the full story with setup, context, and highlights"
	default:
		return "Balanced - Strong narrative beats with key supporting details"
	}
}

// TranscriptKind selects task instructions tailored to the source material.
type TranscriptKind int

const (
	// KindVideoProject treats the transcript as video editing source.
	KindVideoProject TranscriptKind = iota
	// KindBookArticle treats the transcript as book or article text.
	KindBookArticle
)

func (k TranscriptKind) String() string {
	if k == KindBookArticle {
		return "book/article"
	}
	return "video editing project"
}

// DividerColors is the palette the storyboard grammar offers for divider
// records.
var DividerColors = []string{"#fff4c9", "#d7ffb8", "#ffcccb", "#e6ccff", "#ccf2ff"}

// DefaultMaxContextChars is the document size above which embedding the full
// transcript requires explicit caller confirmation.
const DefaultMaxContextChars = 500_000

// Prompt construction errors. All of these are fatal configuration failures:
// they abort before any model call is made.
var (
	// ErrNoVocabulary indicates no category vocabulary is configured.
	ErrNoVocabulary = errors.New("prompt: no category vocabulary configured")

	// ErrNoDocument indicates no transcript text is available.
	ErrNoDocument = errors.New("prompt: no document text available")

	// ErrNoAnnotations indicates the task has no eligible annotations to
	// work on.
	ErrNoAnnotations = errors.New("prompt: no eligible annotations")
)

// ContextSizeError reports that embedding the full document would exceed the
// configured character threshold. It is a confirmation gate, not a hard
// limit: callers may retry with ConfirmLargeContext set after asking the
// user.
type ContextSizeError struct {
	Size  int
	Limit int
}

func (e *ContextSizeError) Error() string {
	return fmt.Sprintf("prompt: document of %d characters exceeds the %d character context limit", e.Size, e.Limit)
}

// Options are the behavioural knobs threaded into prompt construction.
// The zero value is usable: balanced selectivity, no full-document context,
// unbounded commentary.
type Options struct {
	// Selectivity controls how many records to request. Annotation grammar
	// only.
	Selectivity Selectivity

	// IncludeFullContext embeds the full document text. Notes, storyboard
	// and chat grammars; the annotation grammar always embeds the document.
	IncludeFullContext bool

	// ConfirmLargeContext acknowledges a previous [ContextSizeError] and
	// lets an oversized document through.
	ConfirmLargeContext bool

	// GenerateCommentary asks for detailed notes as well as brief notes.
	// Notes grammar only.
	GenerateCommentary bool

	// CommentaryLength caps generated commentary at 1, 2 or 3 sentences;
	// 0 means unbounded. Notes grammar only.
	CommentaryLength int

	// TranscriptKind tailors the task instructions to the source material.
	TranscriptKind TranscriptKind

	// TranscriptTitle and TranscriptDescription identify the source
	// material to the model.
	TranscriptTitle       string
	TranscriptDescription string

	// AdditionalContext is free-form background the user supplies.
	AdditionalContext string

	// TargetFilter restricts note generation to annotations matching the
	// user's criteria; non-matching annotations are omitted from the
	// response entirely.
	TargetFilter string

	// Purpose is the user's stated goal for an annotation-generation run.
	Purpose string

	// UserNotes are the user's goals for a storyboard run.
	UserNotes string

	// UseDividers and UseHeaders enable the storyboard grammar's divider
	// and header record forms.
	UseDividers bool
	UseHeaders  bool

	// TargetSeconds caps the storyboard at a spoken duration; 0 disables
	// the length constraint. Word budget assumes 200 words per minute.
	TargetSeconds int
}

// Builder assembles prompts against a fixed category vocabulary. Vocabulary
// and filter state are injected at construction, never discovered at build
// time.
type Builder struct {
	vocab           annotation.Vocabulary
	maxContextChars int
}

// BuilderOption configures a [Builder].
type BuilderOption func(*Builder)

// WithMaxContextChars overrides the full-document size gate.
func WithMaxContextChars(n int) BuilderOption {
	return func(b *Builder) { b.maxContextChars = n }
}

// NewBuilder returns a Builder for the given category vocabulary.
func NewBuilder(vocab annotation.Vocabulary, opts ...BuilderOption) *Builder {
	b := &Builder{
		vocab:           append(annotation.Vocabulary(nil), vocab...),
		maxContextChars: DefaultMaxContextChars,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CheckContextSize reports whether document fits under the configured
// threshold, returning a [ContextSizeError] when it does not.
func (b *Builder) CheckContextSize(document string) error {
	if len(document) > b.maxContextChars {
		return &ContextSizeError{Size: len(document), Limit: b.maxContextChars}
	}
	return nil
}

func (b *Builder) gateContext(document string, o Options) error {
	if o.ConfirmLargeContext {
		return nil
	}
	return b.CheckContextSize(document)
}

// Annotation builds the prompt that asks the model to select new annotation
// spans from document. The full document is always embedded, so the size
// gate always applies.
func (b *Builder) Annotation(document string, o Options) (string, error) {
	if len(b.vocab) == 0 {
		return "", ErrNoVocabulary
	}
	if strings.TrimSpace(document) == "" {
		return "", ErrNoDocument
	}
	if err := b.gateContext(document, o); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("You are creating a compelling story from this transcript. Select segments that work together to build engagement, emotional connection, and a complete narrative journey.\n\n")

	fmt.Fprintf(&sb, "SELECTIVITY REQUIREMENT: %s\n\n", o.Selectivity.guidance())
	sb.WriteString("The selectivity level determines the FOCUS and COMPLETENESS of your selection. Very Selective means only the most essential moments. Balanced means key narrative beats with supporting details. Complete Story means include whatever is needed for a full narrative.\n\n")
	sb.WriteString("Prioritize narrative coherence over individual segment perfection, but respect the selectivity requirement above.\n\n")

	sb.WriteString("PURPOSE & GUIDANCE:\n")
	if o.Purpose != "" {
		sb.WriteString(o.Purpose)
	} else {
		sb.WriteString("Focus on creating an engaging story that connects with the audience emotionally and shows transformation.")
	}
	sb.WriteString("\n\n")

	sb.WriteString("AVAILABLE CATEGORIES:\n")
	for _, c := range b.vocab {
		fmt.Fprintf(&sb, "- %s\n", c)
	}
	sb.WriteString("\n")

	sb.WriteString("TRANSCRIPT TO ANALYZE:\n")
	sb.WriteString(document)
	sb.WriteString("\n\n")

	sb.WriteString("FORMAT YOUR RESPONSE EXACTLY LIKE THIS:\n")
	sb.WriteString("[[ANNOTATION :: PRIMARY_CATEGORY :: SECONDARY_CATEGORIES :: EXACT_TEXT_SEGMENT :: BRIEF_NOTE :: DETAILED_NOTE]]\n\n")

	sb.WriteString("FIELD EXPLANATIONS:\n")
	sb.WriteString("- PRIMARY_CATEGORY: Main category from the available list\n")
	sb.WriteString("- SECONDARY_CATEGORIES: Optional comma-separated additional categories (or \"none\" if not applicable)\n")
	sb.WriteString("- EXACT_TEXT_SEGMENT: Text copied exactly as it appears\n")
	sb.WriteString("- BRIEF_NOTE: 3-6 words describing content\n")
	sb.WriteString("- DETAILED_NOTE: 1-2 sentences explaining narrative value and context\n\n")

	sb.WriteString(verbatimCopyRules)
	sb.WriteString("\n")

	sb.WriteString("OTHER REQUIREMENTS:\n")
	sb.WriteString("- Primary category must be from the available categories list\n")
	sb.WriteString("- Secondary categories (if any) must also be from the available categories list\n")
	sb.WriteString("- Brief notes should be very concise (3-6 words max)\n")
	sb.WriteString("- Detailed notes should explain why this segment is valuable\n\n")

	sb.WriteString("Only provide annotations in the specified format. No additional text or explanations.")

	return sb.String(), nil
}

// verbatimCopyRules is the in-band defense for the exact-substring invariant.
// The hard gate is the text match at parse time; these instructions exist to
// keep the model from failing it.
const verbatimCopyRules = `CRITICAL TEXT MATCHING REQUIREMENTS:
The system uses automated text matching to find and highlight your selected segments in the transcript. This means:

- Text segments MUST be copied EXACTLY as they appear in the transcript
- NO truncation, ellipsis (...), or "shortening" allowed ANYWHERE - not at the beginning, middle, or end
- NO paraphrasing or rewording
- Include ALL punctuation, capitalization, and spacing exactly
- The entire text segment must be present in the transcript word-for-word
- Copy complete sentences from start to finish - no partial sentences

If text matching fails, the annotation will be skipped. Every character must match perfectly.
`

// Notes builds the prompt that asks the model to backfill missing notes on
// the given annotations. Eligible annotations are those missing at least one
// note field; dividers are excluded.
func (b *Builder) Notes(annotations []annotation.Annotation, document string, o Options) (string, error) {
	eligible := eligibleForNotes(annotations)
	if len(eligible) == 0 {
		return "", ErrNoAnnotations
	}
	if o.IncludeFullContext {
		if strings.TrimSpace(document) == "" {
			return "", ErrNoDocument
		}
		if err := b.gateContext(document, o); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are generating notes and commentary for annotations in a %s.\n\n", o.TranscriptKind)

	writeTranscriptInfo(&sb, o)

	if o.IncludeFullContext {
		sb.WriteString("FULL TRANSCRIPT CONTEXT:\n")
		sb.WriteString(document)
		sb.WriteString("\n\n")
	}

	sb.WriteString("ANNOTATIONS TO ANALYZE:\n")
	for i, a := range eligible {
		fmt.Fprintf(&sb, "ANNOTATION %d:\n", i+1)
		fmt.Fprintf(&sb, "Category: %s\n", a.PrimaryCategory)
		fmt.Fprintf(&sb, "Tags: %s\n", orNone(strings.Join(a.Tags, ", ")))
		fmt.Fprintf(&sb, "Text: %s\n", a.Text)
		fmt.Fprintf(&sb, "ID: %s\n", a.ID)
		fmt.Fprintf(&sb, "Has existing notes: %s\n", yesNo(a.BriefNote != ""))
		fmt.Fprintf(&sb, "Has existing commentary: %s\n\n", yesNo(a.DetailedNote != ""))
	}

	sb.WriteString("INSTRUCTIONS:\n")
	if o.IncludeFullContext {
		sb.WriteString("Analyze each annotation within the context of the full transcript to understand its narrative purpose and how it connects to the broader story.\n\n")
	} else {
		sb.WriteString("Analyze each annotation text independently to determine its content value and purpose.\n\n")
	}

	sb.WriteString(kindInstructions(o.TranscriptKind))
	sb.WriteString("\n")

	if o.TargetFilter != "" {
		sb.WriteString("TARGET SPECIFIC ANNOTATIONS ONLY:\n")
		fmt.Fprintf(&sb, "Only target and add notes/commentary to annotations that match the following criteria:\n%q\n\n", o.TargetFilter)
		sb.WriteString("IMPORTANT: Only generate notes/commentary for annotations that clearly match these criteria. Do NOT respond at all for annotations that don't fit - simply omit them from your response entirely.\n\n")
	}

	if o.GenerateCommentary {
		if instr := commentaryLengthInstruction(o.CommentaryLength); instr != "" {
			sb.WriteString(instr)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("CRITICAL RULES:\n")
	sb.WriteString("1. ONLY generate fields that are missing for each annotation\n")
	sb.WriteString("2. If an annotation already has notes, DO NOT generate new notes for it\n")
	sb.WriteString("3. If an annotation already has commentary, DO NOT generate new commentary for it\n")
	sb.WriteString("4. Check the \"Has existing notes\" and \"Has existing commentary\" fields for each annotation\n\n")

	sb.WriteString("FORMAT YOUR RESPONSE EXACTLY LIKE THIS:\n")
	if o.GenerateCommentary {
		sb.WriteString("[[NOTES :: ANNOTATION_ID :: BRIEF_NOTES :: DETAILED_NOTES]]\n\n")
	} else {
		sb.WriteString("[[NOTES :: ANNOTATION_ID :: BRIEF_NOTES :: SKIP]]\n\n")
	}

	sb.WriteString("FIELD EXPLANATIONS:\n")
	sb.WriteString("- ANNOTATION_ID: The exact ID from the annotation data (copy exactly)\n")
	sb.WriteString("- BRIEF_NOTES: Brief identifier (3-6 words). Use \"SKIP\" if the annotation already has notes or doesn't match targeting criteria.\n")
	if o.GenerateCommentary {
		sb.WriteString("- DETAILED_NOTES: Commentary/analysis. Use \"SKIP\" if the annotation already has commentary or doesn't match targeting criteria.\n\n")
	} else {
		sb.WriteString("- DETAILED_NOTES: Always use \"SKIP\" since commentary generation is disabled.\n\n")
	}

	sb.WriteString("Only provide notes in the specified format. No additional text or explanations.")

	return sb.String(), nil
}

// Storyboard builds the prompt that asks the model to arrange annotations
// into a narrative order, optionally inserting dividers and headers.
func (b *Builder) Storyboard(annotations []annotation.Annotation, document string, o Options) (string, error) {
	serialized := serializeForStoryboard(annotations)
	if serialized == "" {
		return "", ErrNoAnnotations
	}
	if o.IncludeFullContext {
		if strings.TrimSpace(document) == "" {
			return "", ErrNoDocument
		}
		if err := b.gateContext(document, o); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	sb.WriteString("You are organizing transcript annotations into a coherent narrative script.\n\n")

	if o.TargetSeconds > 0 {
		words := targetWordCount(o.TargetSeconds)
		fmt.Fprintf(&sb, "SCRIPT LENGTH TARGET: %s (approximately %d words)\n\n", formatDuration(o.TargetSeconds), words)
		sb.WriteString("IMPORTANT: Select annotations to match the target duration. You can use fewer annotations than available to meet the length requirement.\n\n")
	}

	if o.IncludeFullContext {
		sb.WriteString("CONTEXT - Full transcript for reference:\n")
		sb.WriteString(document)
		sb.WriteString("\n\n")
	}

	sb.WriteString("AVAILABLE ANNOTATIONS TO ORGANIZE:\n")
	sb.WriteString("Each annotation includes: ID, quoted text, and metadata (notes, favorite status, tags, categories).\n\n")
	sb.WriteString(serialized)
	sb.WriteString("\n")

	sb.WriteString("GOALS AND NOTES:\n")
	if o.UserNotes != "" {
		sb.WriteString(o.UserNotes)
	} else {
		sb.WriteString("No specific goals provided - create a logical narrative flow")
	}
	sb.WriteString("\n\n")

	sb.WriteString("TASK: Create a logical narrative flow. Consider:\n")
	sb.WriteString("- Opening hooks and context setting\n")
	sb.WriteString("- Natural topic transitions\n")
	sb.WriteString("- Building to key moments\n")
	sb.WriteString("- Strong conclusions\n")
	sb.WriteString("- Pay special attention to favorited annotations (favorite: true) as key moments\n")
	sb.WriteString("- Use category information to group related content\n\n")

	if o.UseHeaders {
		sb.WriteString("HEADERS: You can add production notes to annotations for editing guidance. Use sparingly - only when they would genuinely help with production. Examples: \"Tonal Shift\", \"Pause\", \"Music swells\", \"Energy builds\", \"Natural break\".\n\n")
	}
	if o.UseDividers {
		sb.WriteString("DIVIDERS: Create section breaks by adding new divider objects. Use this format:\n")
		sb.WriteString("DIVIDER :: \"Section Name\" :: Order#X :: #color\n\n")
		fmt.Fprintf(&sb, "Available colors: %s\n\n", strings.Join(DividerColors, ", "))
	}

	sb.WriteString("RESPONSE FORMAT:\n")
	sb.WriteString("Respond with one of these per line:\n\n")
	sb.WriteString("For annotations (MOST COMMON):\n")
	sb.WriteString("annotation-id-here :: Order#0\n\n")
	if o.UseHeaders {
		sb.WriteString("For annotations with headers (use sparingly):\n")
		sb.WriteString("annotation-id-here :: Order#1 :: HEADER :: \"Production Note\"\n\n")
	}
	if o.UseDividers {
		sb.WriteString("For dividers:\n")
		sb.WriteString("DIVIDER :: \"Section Name\" :: Order#X :: #color\n\n")
	}

	sb.WriteString("Use actual annotation IDs from the list above. You don't need to use all annotations - only include the ones that fit the narrative.\n")
	sb.WriteString("Do not include any explanations, comments, or other text.")

	return sb.String(), nil
}

// Chat builds the prompt for a free-form question over the annotation
// collection. Responses reference annotations as [[ANNOTATION_ID]].
func (b *Builder) Chat(annotations []annotation.Annotation, document, query string, o Options) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("prompt: empty query")
	}
	if o.IncludeFullContext {
		if strings.TrimSpace(document) == "" {
			return "", ErrNoDocument
		}
		if err := b.gateContext(document, o); err != nil {
			return "", err
		}
	}

	content := filterContent(annotations)

	var sb strings.Builder
	sb.WriteString("You are an assistant helping users analyze and find specific annotations from their text analysis work.\n\n")

	writeTranscriptInfo(&sb, o)

	fmt.Fprintf(&sb, "ANNOTATIONS AVAILABLE (%d total):\n", len(content))
	if len(content) == 0 {
		sb.WriteString("No annotations available.\n")
	}
	for i, a := range content {
		fmt.Fprintf(&sb, "Annotation %d:\n", i+1)
		fmt.Fprintf(&sb, "ID: %s\n", a.ID)
		fmt.Fprintf(&sb, "Category: %s\n", a.PrimaryCategory)
		if len(a.SecondaryCategories) > 0 {
			fmt.Fprintf(&sb, "Secondary Categories: %s\n", strings.Join(a.SecondaryCategories, ", "))
		}
		if len(a.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: %s\n", hashTags(a.Tags))
		}
		if a.BriefNote != "" {
			fmt.Fprintf(&sb, "Brief Notes: %s\n", a.BriefNote)
		}
		if a.DetailedNote != "" {
			fmt.Fprintf(&sb, "Detailed Notes: %s\n", a.DetailedNote)
		}
		fmt.Fprintf(&sb, "Text: %s\n\n", a.Text)
	}

	if o.IncludeFullContext {
		sb.WriteString("FULL TRANSCRIPT CONTEXT:\n")
		sb.WriteString(document)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("Note: Full transcript context not included.\n\n")
	}

	fmt.Fprintf(&sb, "USER QUESTION: %s\n\n", query)

	sb.WriteString("RESPONSE INSTRUCTIONS:\n")
	sb.WriteString("1. Analyze the user's question and find relevant annotations\n")
	sb.WriteString("2. When referencing specific annotations, use the format [[ANNOTATION_ID]] where ANNOTATION_ID is the EXACT ID from the annotation list above\n")
	sb.WriteString("3. Be helpful and specific in your analysis\n")
	sb.WriteString("4. If you can't find exact matches, suggest the closest alternatives\n")
	sb.WriteString("5. For each annotation reference, provide brief reasoning explaining why it matches\n\n")

	sb.WriteString("CRITICAL ANNOTATION ID RULES:\n")
	sb.WriteString("- ONLY use annotation IDs that appear EXACTLY in the \"ANNOTATIONS AVAILABLE\" list above\n")
	sb.WriteString("- Do NOT make up IDs, use short IDs, or modify existing IDs\n")
	sb.WriteString("- If you reference an annotation, copy its FULL ID exactly from the list\n\n")

	sb.WriteString("Respond naturally and helpfully to the user's question.")

	return sb.String(), nil
}

// eligibleForNotes returns content annotations missing at least one note
// field, in input order.
func eligibleForNotes(annotations []annotation.Annotation) []annotation.Annotation {
	var out []annotation.Annotation
	for _, a := range annotations {
		if annotation.WithoutNotes(a) {
			out = append(out, a)
		}
	}
	return out
}

func filterContent(annotations []annotation.Annotation) []annotation.Annotation {
	var out []annotation.Annotation
	for _, a := range annotations {
		if annotation.ContentOnly(a) {
			out = append(out, a)
		}
	}
	return out
}

// storyboardTextLimit truncates long annotation texts in storyboard context;
// the model only needs enough text to recognise the segment.
const storyboardTextLimit = 200

// truncateText shortens s to at most n bytes without splitting a multi-byte
// rune at the cut.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func serializeForStoryboard(annotations []annotation.Annotation) string {
	var sb strings.Builder
	for _, a := range annotations {
		if a.Divider || a.Text == "" {
			continue
		}

		text := truncateText(a.Text, storyboardTextLimit)

		var meta []string
		if a.BriefNote != "" {
			meta = append(meta, "note: "+a.BriefNote)
		}
		meta = append(meta, fmt.Sprintf("favorite: %t", a.Favorite))
		if len(a.Tags) > 0 {
			meta = append(meta, "tags: "+strings.Join(a.Tags, ", "))
		}
		if a.PrimaryCategory != "" {
			meta = append(meta, "category: "+a.PrimaryCategory)
		}
		if len(a.SecondaryCategories) > 0 {
			meta = append(meta, "secondary-category: "+strings.Join(a.SecondaryCategories, ", "))
		}

		fmt.Fprintf(&sb, "%s: %q [%s]\n\n", a.ID, text, strings.Join(meta, "; "))
	}
	return sb.String()
}

func writeTranscriptInfo(sb *strings.Builder, o Options) {
	sb.WriteString("TRANSCRIPT INFORMATION:\n")
	fmt.Fprintf(sb, "Title: %s\n", orNotSpecified(o.TranscriptTitle))
	fmt.Fprintf(sb, "Description: %s\n", orNotSpecified(o.TranscriptDescription))
	if o.AdditionalContext != "" {
		fmt.Fprintf(sb, "Additional Context: %s\n", o.AdditionalContext)
	}
	sb.WriteString("\n")
}

func kindInstructions(k TranscriptKind) string {
	if k == KindBookArticle {
		return `This is a BOOK/ARTICLE transcript.

For notes: Create brief passage identifiers that help readers quickly skim and locate relevant content.
For commentary: Provide analysis, explanation, and scholarly context for deeper understanding.
`
	}
	return `This is a VIDEO EDITING PROJECT transcript.

For notes: Create brief identifiers (3-6 words) that help editors quickly understand each segment's purpose.
For commentary: Focus on narrative value, emotional impact, and how each segment contributes to the story arc.
`
}

func commentaryLengthInstruction(n int) string {
	switch n {
	case 1:
		return "Restrict commentary to exactly 1 sentence."
	case 2:
		return "Restrict commentary to 1-2 sentences maximum."
	case 3:
		return "Restrict commentary to 1-3 sentences maximum."
	default:
		return "No length restriction for commentary."
	}
}

// wordsPerMinute is the speaking rate assumed when converting a duration
// target into a word budget.
const wordsPerMinute = 200

func targetWordCount(seconds int) int {
	return seconds * wordsPerMinute / 60
}

// CountWords returns the whitespace-delimited word count of the non-divider
// annotation texts, for duration estimates.
func CountWords(annotations []annotation.Annotation) int {
	total := 0
	for _, a := range annotations {
		if a.Divider {
			continue
		}
		total += len(strings.Fields(a.Text))
	}
	return total
}

// EstimateSeconds converts a word count into spoken seconds at the assumed
// speaking rate.
func EstimateSeconds(words int) int {
	return words * 60 / wordsPerMinute
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func orNotSpecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func hashTags(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "#" + t
	}
	return strings.Join(parts, ", ")
}
