// Package annotation provides the annotation data model shared by the
// storymark AI pipeline: the Annotation record itself, the closed category
// vocabulary, a tagged field type that replaces "SKIP"/"none" string
// sentinels, and an in-memory store with an injectable filter predicate.
//
// The annotation collection is owned by the surrounding application; the AI
// core reads filtered snapshots to build prompts and writes back only
// through the reconcile package. All store operations are safe for
// concurrent use.
package annotation

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Annotation is a user-created highlight over a source document.
type Annotation struct {
	// ID is an opaque unique identifier, stable and referenced by model
	// output. Immutable after creation.
	ID string `json:"id"`

	// Text is the exact verbatim substring of the source document this
	// annotation highlights. It must be findable byte-for-byte in the
	// document at creation time; downstream search and highlighting depend
	// on exact alignment.
	Text string `json:"text"`

	// PrimaryCategory is the main category, a member of the configured
	// vocabulary.
	PrimaryCategory string `json:"primary_category"`

	// SecondaryCategories are optional additional vocabulary members.
	SecondaryCategories []string `json:"secondary_categories,omitempty"`

	// BriefNote is a short free-text label (target 3-6 words). User-authored
	// content here is never overwritten by generated content.
	BriefNote string `json:"brief_note,omitempty"`

	// DetailedNote is a longer free-text commentary (one or more sentences).
	// Same non-overwrite protection as BriefNote.
	DetailedNote string `json:"detailed_note,omitempty"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`

	// Favorite marks the annotation as particularly important; surfaced to
	// the model as a storyboard ranking hint.
	Favorite bool `json:"favorite,omitempty"`

	// Divider marks a structural separator rather than content. Dividers are
	// excluded from model context and from model-driven edits; their order
	// values act as reserved storyboard slots.
	Divider bool `json:"divider,omitempty"`

	// Color is the display colour of a divider.
	Color string `json:"color,omitempty"`

	// Header is an optional production note attached during storyboard
	// organisation ("Tonal Shift", "Music swells", ...).
	Header string `json:"header,omitempty"`

	// Order is the position in the storyboard arrangement. Sparse: nil means
	// the annotation has not been placed.
	Order *int `json:"order,omitempty"`
}

// HasOrder reports whether the annotation has been placed in the storyboard.
func (a *Annotation) HasOrder() bool { return a.Order != nil }

// OrderValue returns the storyboard position, or -1 when unplaced.
func (a *Annotation) OrderValue() int {
	if a.Order == nil {
		return -1
	}
	return *a.Order
}

// NewID returns a fresh annotation identifier.
func NewID() string { return uuid.NewString() }

// Vocabulary is the closed, ordered set of configured category names. Order
// matters: fuzzy resolution breaks ties by first occurrence.
type Vocabulary []string

// Contains reports whether name is an exact member of the vocabulary.
func (v Vocabulary) Contains(name string) bool {
	return slices.Contains(v, name)
}

// Field is the tagged-variant value for a single annotation field extracted
// from model output. It distinguishes three states that a raw string cannot:
// the model said nothing (unset), the model supplied a value, or the model
// explicitly declined to touch the field (the "SKIP"/"none" sentinel).
type Field struct {
	state fieldState
	value string
}

type fieldState uint8

const (
	fieldUnset fieldState = iota
	fieldValue
	fieldSkip
)

// Unset returns a Field carrying no information.
func Unset() Field { return Field{} }

// Value returns a Field carrying an explicit value.
func Value(s string) Field { return Field{state: fieldValue, value: s} }

// ExplicitSkip returns a Field for which the model explicitly declined to
// provide a value.
func ExplicitSkip() Field { return Field{state: fieldSkip} }

// ParseField classifies a raw, already-trimmed string from model output.
// The sentinel values "SKIP" and "none" (case-insensitive) become an
// explicit skip; an empty string is unset; anything else is a value.
// Sentinel recognition runs before any matching logic, per the response
// contract.
func ParseField(raw string) Field {
	switch strings.ToLower(raw) {
	case "":
		return Unset()
	case "skip", "none":
		return ExplicitSkip()
	default:
		return Value(raw)
	}
}

// IsUnset reports whether the field carries no information.
func (f Field) IsUnset() bool { return f.state == fieldUnset }

// IsSkip reports whether the model explicitly declined the field.
func (f Field) IsSkip() bool { return f.state == fieldSkip }

// Get returns the field value and whether one is present.
func (f Field) Get() (string, bool) {
	return f.value, f.state == fieldValue
}

// String renders the field for diagnostics.
func (f Field) String() string {
	switch f.state {
	case fieldValue:
		return f.value
	case fieldSkip:
		return "<skip>"
	default:
		return "<unset>"
	}
}
