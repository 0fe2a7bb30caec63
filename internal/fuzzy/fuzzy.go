// Package fuzzy resolves approximately-reproduced strings from model output
// against known sets of annotation identifiers and category names.
//
// Language models reliably truncate, re-case or lightly mangle identifiers
// they were asked to copy verbatim. The resolver tolerates that without
// opening the door to cross-talk between records: scoring is containment
// first, then character-set overlap damped by a length penalty, and anything
// at or below the acceptance threshold is rejected rather than guessed.
//
// Content text is never resolved fuzzily; that gate lives in the textmatch
// package.
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the minimum similarity a candidate must strictly
// exceed to be accepted.
const DefaultThreshold = 0.3

// containmentScore is the fixed similarity assigned when one normalised
// string contains the other. It comfortably clears the threshold, so a
// truncated identifier always resolves to its full form.
const containmentScore = 0.8

// Resolver matches model-emitted strings against a known set.
type Resolver struct {
	threshold float64
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithThreshold overrides the acceptance threshold. Matches must score
// strictly above it.
func WithThreshold(t float64) Option {
	return func(r *Resolver) { r.threshold = t }
}

// New returns a Resolver with the given options applied.
func New(opts ...Option) *Resolver {
	r := &Resolver{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Similarity scores how closely a and b resemble each other, in [0, 1].
// Both are lowercased first. If either contains the other the score is a
// fixed 0.8. Otherwise the score is the Jaccard overlap of their character
// sets, damped by a length penalty so that short strings sharing an alphabet
// with long ones do not score well.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containmentScore
	}

	setA := charSet(a)
	setB := charSet(b)

	intersection := 0
	for ch := range setA {
		if setB[ch] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	jaccard := float64(intersection) / float64(union)

	lenA := utf8.RuneCountInString(a)
	lenB := utf8.RuneCountInString(b)
	maxLen := lenA
	if lenB > maxLen {
		maxLen = lenB
	}
	diff := lenA - lenB
	if diff < 0 {
		diff = -diff
	}
	lengthPenalty := 1 - float64(diff)/float64(maxLen)

	return jaccard * lengthPenalty
}

// CategorySimilarity scores two category names by word overlap rather than
// character overlap, so "Character Moments" and "character moment detail"
// score on shared words. Containment still short-circuits.
func CategorySimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containmentScore
	}

	wordsA := wordSet(a)
	wordsB := wordSet(b)

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// BestMatch returns the candidate most similar to target, provided its score
// strictly exceeds the threshold. Ties break toward the earlier candidate:
// a later candidate replaces the front-runner only with a strictly greater
// score. The boolean reports whether any candidate was accepted.
func (r *Resolver) BestMatch(target string, candidates []string) (string, float64, bool) {
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		if score := Similarity(target, c); score > bestScore {
			best = c
			bestScore = score
		}
	}
	if bestScore <= r.threshold {
		return "", bestScore, false
	}
	return best, bestScore, true
}

// BestCategory resolves a model-emitted category name against the configured
// vocabulary. If either normalised name contains the other the candidate is
// returned immediately; otherwise word-overlap scoring applies with the same
// strictly-above-threshold acceptance and first-wins tie-breaking as
// [Resolver.BestMatch].
func (r *Resolver) BestCategory(target string, vocabulary []string) (string, float64, bool) {
	normTarget := strings.ToLower(strings.TrimSpace(target))
	if normTarget == "" {
		return "", 0, false
	}

	best := ""
	bestScore := 0.0
	for _, c := range vocabulary {
		normC := strings.ToLower(strings.TrimSpace(c))
		if normC == normTarget {
			return c, 1, true
		}
		if strings.Contains(normTarget, normC) || strings.Contains(normC, normTarget) {
			return c, containmentScore, true
		}
		if score := CategorySimilarity(target, c); score > bestScore {
			best = c
			bestScore = score
		}
	}
	if bestScore <= r.threshold {
		return "", bestScore, false
	}
	return best, bestScore, true
}

// Nearest returns the candidate with the highest Jaro-Winkler similarity to
// target, for "did you mean" hints in rejection diagnostics. It applies no
// threshold and never resolves anything; the returned name is advisory only.
func Nearest(target string, candidates []string) (string, bool) {
	best := ""
	bestScore := -1.0
	for _, c := range candidates {
		score := matchr.JaroWinkler(strings.ToLower(target), strings.ToLower(c), true)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best, best != ""
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, ch := range s {
		set[ch] = true
	}
	return set
}

func wordSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, w := range fields {
		set[w] = true
	}
	return set
}
