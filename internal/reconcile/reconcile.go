// Package reconcile merges validated generated records into the annotation
// collection under a non-destructive policy.
//
// This is the only place the AI core writes annotation state. The merge is
// field-level and idempotent: user-authored note content is never
// overwritten, creation is atomic per record, and ordering writes are
// renumbered around reserved divider slots. Every record gets an
// individually attributable outcome so a caller can explain what happened to
// each one.
package reconcile

import (
	"fmt"

	"github.com/kverner/storymark/internal/annotation"
	"github.com/kverner/storymark/internal/parse"
)

// Disposition is the final fate of one record.
type Disposition int

const (
	// Applied means at least one field was written (or, for references,
	// the record was verified).
	Applied Disposition = iota
	// Skipped means every targeted field was protected or explicitly
	// skipped, so nothing was written.
	Skipped
	// Rejected means the record failed a referential check at merge time.
	Rejected
)

func (d Disposition) String() string {
	switch d {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Outcome is the attributable result for one record.
type Outcome struct {
	Record      parse.GeneratedRecord
	Disposition Disposition

	// AppliedFields names the annotation fields this record wrote.
	AppliedFields []string

	// ProtectedFields names the fields the record targeted but that
	// already held user content and were left untouched.
	ProtectedFields []string

	// CreatedID is the identifier of a newly created annotation or
	// divider.
	CreatedID string

	// Reason explains a rejection.
	Reason string
}

// Result summarises one merge. Counts and reasons aggregate the per-record
// outcomes.
type Result struct {
	Accepted int
	Skipped  int
	Rejected int

	Outcomes []Outcome
	Reasons  []string
}

func (r *Result) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Disposition {
	case Applied:
		r.Accepted++
	case Skipped:
		r.Skipped++
	case Rejected:
		r.Rejected++
		r.Reasons = append(r.Reasons, o.Reason)
	}
}

// Engine merges parsed records into a store.
type Engine struct {
	store annotation.Store
}

// New returns an Engine bound to the given store.
func New(store annotation.Store) *Engine {
	return &Engine{store: store}
}

// Merge applies records to the store and reports the per-record outcomes.
// It never fails as a whole; individual records are rejected with a reason.
func (e *Engine) Merge(records []parse.GeneratedRecord) Result {
	var result Result

	// Every order in this merge, divider or annotation, is shifted by the
	// same offset past divider slots that existed before the merge, so the
	// response lands as one block after the existing structure.
	shift := e.orderShift()

	for _, rec := range records {
		switch rec.Kind {
		case parse.KindNote:
			result.record(e.mergeNote(rec))
		case parse.KindCreation:
			result.record(e.mergeCreation(rec))
		case parse.KindOrdering:
			result.record(e.mergeOrdering(rec, shift))
		case parse.KindDivider:
			result.record(e.mergeDivider(rec, shift))
		case parse.KindReference:
			// References are verification-only; nothing to write.
			result.record(Outcome{Record: rec, Disposition: Applied})
		default:
			result.record(Outcome{
				Record:      rec,
				Disposition: Rejected,
				Reason:      fmt.Sprintf("unknown record kind %v", rec.Kind),
			})
		}
	}
	return result
}

// orderShift returns the offset added to incoming ordering assignments:
// one past the highest order held by an existing divider, or zero when no
// divider holds an order.
func (e *Engine) orderShift() int {
	shift := 0
	for _, a := range e.store.List(nil) {
		if a.Divider && a.HasOrder() && a.OrderValue()+1 > shift {
			shift = a.OrderValue() + 1
		}
	}
	return shift
}

// mergeNote writes note fields under the protection policy: only into empty
// fields, and never from an explicit skip.
func (e *Engine) mergeNote(rec parse.GeneratedRecord) Outcome {
	out := Outcome{Record: rec}

	a, ok := e.store.Get(rec.ID)
	if !ok {
		out.Disposition = Rejected
		out.Reason = fmt.Sprintf("annotation %q no longer exists", rec.ID)
		return out
	}

	if v, present := rec.Brief.Get(); present {
		if a.BriefNote == "" {
			a.BriefNote = v
			out.AppliedFields = append(out.AppliedFields, "brief_note")
		} else {
			out.ProtectedFields = append(out.ProtectedFields, "brief_note")
		}
	}
	if v, present := rec.Detailed.Get(); present {
		if a.DetailedNote == "" {
			a.DetailedNote = v
			out.AppliedFields = append(out.AppliedFields, "detailed_note")
		} else {
			out.ProtectedFields = append(out.ProtectedFields, "detailed_note")
		}
	}

	if len(out.AppliedFields) == 0 {
		out.Disposition = Skipped
		return out
	}

	if err := e.store.Update(a); err != nil {
		out.AppliedFields = nil
		out.Disposition = Rejected
		out.Reason = fmt.Sprintf("update %q: %v", rec.ID, err)
		return out
	}
	out.Disposition = Applied
	return out
}

// mergeCreation constructs a brand-new annotation. Validation already
// happened at parse time; creation is atomic, with a fresh identifier and
// no storyboard position.
func (e *Engine) mergeCreation(rec parse.GeneratedRecord) Outcome {
	out := Outcome{Record: rec}

	created, err := e.store.Add(annotation.Annotation{
		ID:                  annotation.NewID(),
		Text:                rec.Text,
		PrimaryCategory:     rec.PrimaryCategory,
		SecondaryCategories: rec.SecondaryCategories,
		BriefNote:           rec.BriefNote,
		DetailedNote:        rec.DetailedNote,
	})
	if err != nil {
		out.Disposition = Rejected
		out.Reason = fmt.Sprintf("create annotation: %v", err)
		return out
	}

	out.Disposition = Applied
	out.AppliedFields = []string{"annotation"}
	out.CreatedID = created.ID
	return out
}

// mergeOrdering writes the storyboard position unconditionally; ordering is
// AI-owned once the user accepts a storyboard run. The incoming order is
// shifted past reserved divider slots.
func (e *Engine) mergeOrdering(rec parse.GeneratedRecord, shift int) Outcome {
	out := Outcome{Record: rec}

	a, ok := e.store.Get(rec.ID)
	if !ok {
		out.Disposition = Rejected
		out.Reason = fmt.Sprintf("annotation %q no longer exists", rec.ID)
		return out
	}
	if a.Divider {
		out.Disposition = Rejected
		out.Reason = fmt.Sprintf("annotation %q is a divider and cannot be reordered", rec.ID)
		return out
	}

	order := shift + rec.Order
	a.Order = &order
	out.AppliedFields = append(out.AppliedFields, "order")
	if rec.Header != "" {
		a.Header = rec.Header
		out.AppliedFields = append(out.AppliedFields, "header")
	}

	if err := e.store.Update(a); err != nil {
		out.AppliedFields = nil
		out.Disposition = Rejected
		out.Reason = fmt.Sprintf("update %q: %v", rec.ID, err)
		return out
	}
	out.Disposition = Applied
	return out
}

// mergeDivider creates a new structural divider. Its slot is shifted past
// reserved divider slots with the same offset as ordering writes, so a new
// divider cannot land on one that already exists.
func (e *Engine) mergeDivider(rec parse.GeneratedRecord, shift int) Outcome {
	out := Outcome{Record: rec}

	order := shift + rec.Order
	created, err := e.store.Add(annotation.Annotation{
		ID:      annotation.NewID(),
		Text:    rec.Title,
		Divider: true,
		Color:   rec.Color,
		Order:   &order,
	})
	if err != nil {
		out.Disposition = Rejected
		out.Reason = fmt.Sprintf("create divider: %v", err)
		return out
	}

	out.Disposition = Applied
	out.AppliedFields = []string{"divider"}
	out.CreatedID = created.ID
	return out
}
