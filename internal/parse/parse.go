// Package parse extracts typed records from free-form model output.
//
// One parameterised Parser covers the four response grammars: bracketed
// annotation-creation blocks, bracketed note blocks, line-oriented
// storyboard orderings and inline chat references. Parsing never fails on
// malformed input; bad records are skipped and reported as per-record
// rejections with a reason, so a caller can always explain what was dropped
// and why.
//
// Validation runs against injected referential state: known annotation IDs,
// the category vocabulary and the source document. Identifier and category
// near-misses go through the fuzzy package; content text never does.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kverner/storymark/internal/annotation"
	"github.com/kverner/storymark/internal/fuzzy"
	"github.com/kverner/storymark/internal/textmatch"
)

// Kind identifies the shape of a parsed record.
type Kind int

const (
	// KindCreation is a new-annotation record from the creation grammar.
	KindCreation Kind = iota
	// KindNote is a note-backfill record.
	KindNote
	// KindOrdering assigns a storyboard position to an existing annotation.
	KindOrdering
	// KindDivider creates a new storyboard divider.
	KindDivider
	// KindReference is an inline annotation reference from a chat response.
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindCreation:
		return "creation"
	case KindNote:
		return "note"
	case KindOrdering:
		return "ordering"
	case KindDivider:
		return "divider"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reason classifies why a record was rejected.
type Reason string

const (
	ReasonMalformed          Reason = "malformed record"
	ReasonIdentifierNotFound Reason = "identifier not found"
	ReasonCategoryNotFound   Reason = "category not found"
	ReasonTextNotFound       Reason = "text not found in source"
)

// GeneratedRecord is an intermediate, validated record extracted from model
// output. Which fields are populated depends on Kind. Raw always carries the
// source block the record was parsed from.
type GeneratedRecord struct {
	Kind Kind
	Raw  string

	// ID references an existing annotation (note, ordering, reference
	// kinds). Always a verified member of the known ID set; Corrected
	// reports whether fuzzy resolution was needed to get there.
	ID        string
	Corrected bool

	// Creation fields.
	PrimaryCategory     string
	SecondaryCategories []string
	Text                string
	BriefNote           string
	DetailedNote        string

	// Note fields, sentinel-aware.
	Brief    annotation.Field
	Detailed annotation.Field

	// Ordering and divider fields.
	Order  int
	Header string
	Title  string
	Color  string
}

// Rejection explains one dropped record.
type Rejection struct {
	Raw    string
	Reason Reason
	Detail string

	// Hint is a "did you mean" suggestion for identifier and category
	// misses, advisory only.
	Hint string
}

func (r Rejection) String() string {
	s := fmt.Sprintf("%s: %s", r.Reason, r.Detail)
	if r.Hint != "" {
		s += fmt.Sprintf(" (closest: %q)", r.Hint)
	}
	return s
}

// Result is the outcome of one parse pass.
type Result struct {
	Records    []GeneratedRecord
	Rejections []Rejection
}

// Parser validates extracted records against referential state.
type Parser struct {
	vocab       annotation.Vocabulary
	ids         []string
	document    string
	resolver    *fuzzy.Resolver
	minIDLength int
}

// Option configures a [Parser].
type Option func(*Parser)

// WithResolver replaces the default fuzzy resolver.
func WithResolver(r *fuzzy.Resolver) Option {
	return func(p *Parser) { p.resolver = r }
}

// WithMinIDLength overrides the minimum identifier length for fuzzy
// resolution. Candidates at or below the minimum are rejected on an exact
// miss without consulting the resolver; short strings are too ambiguous to
// match safely.
func WithMinIDLength(n int) Option {
	return func(p *Parser) { p.minIDLength = n }
}

// DefaultMinIDLength is the identifier length a candidate must exceed before
// fuzzy resolution is attempted.
const DefaultMinIDLength = 6

// NewParser returns a Parser bound to the given referential state. The ID
// slice order is the fuzzy tie-break order; callers pass insertion order.
func NewParser(vocab annotation.Vocabulary, ids []string, document string, opts ...Option) *Parser {
	p := &Parser{
		vocab:       append(annotation.Vocabulary(nil), vocab...),
		ids:         append([]string(nil), ids...),
		document:    document,
		resolver:    fuzzy.New(),
		minIDLength: DefaultMinIDLength,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var (
	// annotationBlockRe matches a complete bracketed creation record. The
	// text field is the only one allowed to contain colons.
	annotationBlockRe = regexp.MustCompile(`\[\[ANNOTATION\s*::\s*([^:]+?)\s*::\s*([^:]+?)\s*::\s*(.+?)\s*::\s*([^:]+?)\s*::\s*([^\]]+?)\]\]`)

	// annotationSpanRe captures a whole creation block for newline
	// normalisation before field extraction.
	annotationSpanRe = regexp.MustCompile(`\[\[ANNOTATION([^\]]*?)\]\]`)

	notesBlockRe = regexp.MustCompile(`\[\[NOTES\s*::\s*([^:]+?)\s*::\s*([^:]+?)\s*::\s*([^\]]+?)\]\]`)

	referenceRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

	headerHTMLRe = regexp.MustCompile(`<b[^>]*>([^<]+)</b>`)
)

// Annotations parses creation-grammar output. Embedded newlines inside a
// record block are joined to spaces first; the grammar is line-insensitive
// and models wrap long records freely.
func (p *Parser) Annotations(raw string) Result {
	normalized := annotationSpanRe.ReplaceAllStringFunc(raw, func(block string) string {
		block = strings.ReplaceAll(block, "\n", " ")
		return strings.ReplaceAll(block, "  ", " ")
	})

	var result Result
	matches := annotationBlockRe.FindAllStringSubmatch(normalized, -1)
	for _, m := range matches {
		block := m[0]
		primary := strings.TrimSpace(m[1])
		secondary := strings.TrimSpace(m[2])
		text := strings.TrimSpace(m[3])
		brief := strings.TrimSpace(m[4])
		detailed := strings.TrimSpace(m[5])

		resolvedPrimary, ok := p.resolveCategory(primary)
		if !ok {
			result.Rejections = append(result.Rejections, Rejection{
				Raw:    block,
				Reason: ReasonCategoryNotFound,
				Detail: fmt.Sprintf("primary category %q is not in the vocabulary", primary),
				Hint:   p.categoryHint(primary),
			})
			continue
		}

		if !textmatch.IsExactSubstring(text, p.document) {
			result.Rejections = append(result.Rejections, Rejection{
				Raw:    block,
				Reason: ReasonTextNotFound,
				Detail: fmt.Sprintf("text segment %q does not occur verbatim in the source document", truncate(text, 100)),
			})
			continue
		}

		result.Records = append(result.Records, GeneratedRecord{
			Kind:                KindCreation,
			Raw:                 block,
			PrimaryCategory:     resolvedPrimary,
			SecondaryCategories: p.resolveSecondaries(secondary, resolvedPrimary),
			Text:                text,
			BriefNote:           brief,
			DetailedNote:        detailed,
		})
	}

	p.reportTruncatedBlocks(raw, "[[ANNOTATION", len(matches), &result)
	return result
}

// Notes parses note-grammar output. Brief and detailed fields are
// sentinel-aware: "SKIP" and "none" are recognised before any matching.
func (p *Parser) Notes(raw string) Result {
	var result Result
	matches := notesBlockRe.FindAllStringSubmatch(raw, -1)
	for _, m := range matches {
		block := m[0]
		id := strings.TrimSpace(m[1])

		resolved, corrected, ok := p.resolveID(id)
		if !ok {
			result.Rejections = append(result.Rejections, p.identifierRejection(block, id))
			continue
		}

		result.Records = append(result.Records, GeneratedRecord{
			Kind:      KindNote,
			Raw:       block,
			ID:        resolved,
			Corrected: corrected,
			Brief:     annotation.ParseField(strings.TrimSpace(m[2])),
			Detailed:  annotation.ParseField(strings.TrimSpace(m[3])),
		})
	}

	p.reportTruncatedBlocks(raw, "[[NOTES", len(matches), &result)
	return result
}

// Storyboard parses the line-oriented ordering grammar. Lines without the
// field delimiter are prose and ignored; lines with the delimiter that fail
// to parse are rejected with a reason.
func (p *Parser) Storyboard(raw string) Result {
	var result Result
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if !strings.Contains(line, "::") {
			continue
		}

		parts := strings.Split(line, "::")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		if parts[0] == "DIVIDER" {
			p.parseDivider(line, parts, &result)
			continue
		}
		p.parseOrdering(line, parts, &result)
	}
	return result
}

func (p *Parser) parseDivider(line string, parts []string, result *Result) {
	if len(parts) < 4 {
		result.Rejections = append(result.Rejections, Rejection{
			Raw:    line,
			Reason: ReasonMalformed,
			Detail: "divider line needs a name, an order and a color",
		})
		return
	}

	order, err := parseOrder(parts[2])
	if err != nil {
		result.Rejections = append(result.Rejections, Rejection{
			Raw:    line,
			Reason: ReasonMalformed,
			Detail: fmt.Sprintf("bad divider order %q", parts[2]),
		})
		return
	}

	result.Records = append(result.Records, GeneratedRecord{
		Kind:  KindDivider,
		Raw:   line,
		Title: strings.Trim(parts[1], `"`),
		Order: order,
		Color: parts[3],
	})
}

func (p *Parser) parseOrdering(line string, parts []string, result *Result) {
	if len(parts) < 2 {
		result.Rejections = append(result.Rejections, Rejection{
			Raw:    line,
			Reason: ReasonMalformed,
			Detail: "ordering line needs an annotation ID and an order",
		})
		return
	}

	id := parts[0]
	resolved, corrected, ok := p.resolveID(id)
	if !ok {
		result.Rejections = append(result.Rejections, p.identifierRejection(line, id))
		return
	}

	order, err := parseOrder(parts[1])
	if err != nil {
		result.Rejections = append(result.Rejections, Rejection{
			Raw:    line,
			Reason: ReasonMalformed,
			Detail: fmt.Sprintf("bad order %q", parts[1]),
		})
		return
	}

	header := ""
	if len(parts) >= 4 && parts[2] == "HEADER" {
		header = cleanHeader(strings.Trim(parts[3], `"`))
	}

	result.Records = append(result.Records, GeneratedRecord{
		Kind:      KindOrdering,
		Raw:       line,
		ID:        resolved,
		Corrected: corrected,
		Order:     order,
		Header:    header,
	})
}

// References extracts [[ANNOTATION_ID]] references from a chat response and
// resolves each against the known ID set. References never mutate anything;
// the records exist so the caller can render verified links.
func (p *Parser) References(raw string) Result {
	var result Result
	for _, m := range referenceRe.FindAllStringSubmatch(raw, -1) {
		block := m[0]
		id := strings.TrimSpace(m[1])

		resolved, corrected, ok := p.resolveID(id)
		if !ok {
			result.Rejections = append(result.Rejections, p.identifierRejection(block, id))
			continue
		}

		result.Records = append(result.Records, GeneratedRecord{
			Kind:      KindReference,
			Raw:       block,
			ID:        resolved,
			Corrected: corrected,
		})
	}
	return result
}

// resolveID matches a candidate against the known ID set: exact first, then
// fuzzy, but only when the candidate is long enough to match unambiguously.
func (p *Parser) resolveID(id string) (resolved string, corrected, ok bool) {
	for _, known := range p.ids {
		if known == id {
			return id, false, true
		}
	}
	if len(id) > p.minIDLength {
		if match, _, ok := p.resolver.BestMatch(id, p.ids); ok {
			return match, true, true
		}
	}
	return "", false, false
}

func (p *Parser) resolveCategory(name string) (string, bool) {
	if p.vocab.Contains(name) {
		return name, true
	}
	if match, _, ok := p.resolver.BestCategory(name, p.vocab); ok {
		return match, true
	}
	return "", false
}

// resolveSecondaries parses the comma-separated secondary category field.
// The "none" sentinel yields an empty set. Unresolvable names and duplicates
// of the primary are dropped; a bad secondary never rejects the record.
func (p *Parser) resolveSecondaries(raw, primary string) []string {
	if strings.EqualFold(raw, "none") || strings.EqualFold(raw, "skip") {
		return nil
	}

	var out []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		resolved, ok := p.resolveCategory(name)
		if !ok || resolved == primary {
			continue
		}
		out = append(out, resolved)
	}
	return out
}

func (p *Parser) identifierRejection(raw, id string) Rejection {
	r := Rejection{
		Raw:    raw,
		Reason: ReasonIdentifierNotFound,
		Detail: fmt.Sprintf("no annotation with ID %q", truncate(id, 40)),
	}
	if len(id) <= p.minIDLength {
		r.Detail += fmt.Sprintf(" (too short for fuzzy resolution, minimum %d characters)", p.minIDLength+1)
		return r
	}
	if hint, ok := fuzzy.Nearest(id, p.ids); ok {
		r.Hint = hint
	}
	return r
}

func (p *Parser) categoryHint(name string) string {
	hint, _ := fuzzy.Nearest(name, p.vocab)
	return hint
}

// reportTruncatedBlocks flags record openers that the block pattern never
// matched, typically a response truncated mid-record with an unterminated
// bracket.
func (p *Parser) reportTruncatedBlocks(raw, opener string, matched int, result *Result) {
	opened := strings.Count(raw, opener)
	if opened <= matched {
		return
	}
	idx := strings.LastIndex(raw, opener)
	result.Rejections = append(result.Rejections, Rejection{
		Raw:    truncate(raw[idx:], 120),
		Reason: ReasonMalformed,
		Detail: "unterminated or malformed record block",
	})
}

func parseOrder(s string) (int, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "Order#"))
	return strconv.Atoi(s)
}

// cleanHeader strips HTML the model occasionally wraps header notes in.
func cleanHeader(header string) string {
	if strings.HasPrefix(header, "<div>") && strings.HasSuffix(header, "</div>") {
		if m := headerHTMLRe.FindStringSubmatch(header); m != nil {
			return m[1]
		}
	}
	return header
}

// truncate shortens s to at most n bytes, backing up so the cut never
// splits a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
