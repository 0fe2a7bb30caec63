package annotation

import "errors"

// Store errors.
var (
	// ErrNotFound is returned when no annotation with the given ID exists.
	ErrNotFound = errors.New("annotation: not found")

	// ErrDuplicateID is returned when adding an annotation whose ID already
	// exists in the store.
	ErrDuplicateID = errors.New("annotation: duplicate id")
)

// FilterFunc is a predicate over annotations. The surrounding application
// injects its active view filter so the AI core only sees what the user
// sees; a nil FilterFunc admits everything.
type FilterFunc func(Annotation) bool

// Store is the mutable annotation collection the AI core borrows from the
// surrounding application. Reads return copies; the collection is mutated
// only through Add and Update, and the reconcile package is the only AI-side
// caller of those.
//
// Iteration order is the insertion order of the collection. This is a
// contract, not an implementation detail: fuzzy identifier resolution breaks
// ties by first occurrence.
type Store interface {
	// List returns a snapshot of annotations admitted by filter, in
	// insertion order. A nil filter admits everything.
	List(filter FilterFunc) []Annotation

	// Get returns the annotation with the given ID.
	Get(id string) (Annotation, bool)

	// IDs returns all annotation IDs in insertion order.
	IDs() []string

	// Add inserts a new annotation. An empty ID is assigned a fresh one.
	// Returns the stored annotation.
	Add(a Annotation) (Annotation, error)

	// Update replaces the annotation with a matching ID.
	Update(a Annotation) error

	// Vocabulary returns the closed, ordered category vocabulary.
	Vocabulary() Vocabulary
}

// ContentOnly is a FilterFunc admitting non-divider annotations. Dividers
// are structural and never enter model context.
func ContentOnly(a Annotation) bool { return !a.Divider }

// WithoutNotes admits content annotations missing at least one note field,
// the candidates for note backfill.
func WithoutNotes(a Annotation) bool {
	return !a.Divider && (a.BriefNote == "" || a.DetailedNote == "")
}
