package chunk

import "unicode/utf8"

// BreakFinder picks where a chunk should end.
type BreakFinder interface {
	// FindBreakPoint scans words[from] down to words[to] (from >= to) and
	// returns the index of the last word to keep, or -1 if none qualifies.
	FindBreakPoint(words []string, from, to int) int
}

// PunctuationBreakFinder breaks after words ending in . ! ? or ;.
// It is a heuristic, not a sentence parser.
type PunctuationBreakFinder struct{}

var _ BreakFinder = PunctuationBreakFinder{}

// FindBreakPoint implements BreakFinder.
func (PunctuationBreakFinder) FindBreakPoint(words []string, from, to int) int {
	from = min(from, len(words)-1)
	to = max(to, 0)
	for i := from; i >= to; i-- {
		r, _ := utf8.DecodeLastRuneInString(words[i])
		switch r {
		case '.', '!', '?', ';':
			return i
		}
	}
	return -1
}
