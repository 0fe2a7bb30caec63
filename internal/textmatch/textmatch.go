// Package textmatch validates that a candidate text span is an exact
// substring of a reference document.
//
// Matching is deliberately strict: case-sensitive, whitespace-sensitive, no
// normalisation. The consuming search and highlight systems require byte-exact
// alignment, so a generated annotation whose text cannot be found verbatim is
// rejected outright. Identifiers and categories get fuzzy resolution; content
// text never does, since an approximate match would corrupt highlight
// positions.
package textmatch

import "strings"

// IsExactSubstring reports whether candidate occurs verbatim in document.
// An empty candidate never matches.
func IsExactSubstring(candidate, document string) bool {
	if candidate == "" {
		return false
	}
	return strings.Contains(document, candidate)
}

// Position returns the byte offset of the first verbatim occurrence of
// candidate in document, or -1 when absent. Used for diagnostics and for
// ordering newly created annotations by document position.
func Position(candidate, document string) int {
	if candidate == "" {
		return -1
	}
	return strings.Index(document, candidate)
}
