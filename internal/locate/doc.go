// Package locate finds the span of page words holding a known abstract.
//
// Three strategies are tried in order: a verbatim substring search, a
// Levenshtein near-match search with a configurable budget (15 edits by
// default) and an approximate search anchored at the leftmost admissible
// start (5 edits). Character hits are widened to whole words, and a hit
// covering every word of the page is rejected.
package locate
