package chunk

import (
	"fmt"
	"strings"
)

// Issue is one rule broken by one chunk.
type Issue struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ValidationError reports every issue found so upstream transcript defects
// can be traced to specific chunks.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d issue(s)", ErrChunkValidationFailed, len(e.Issues))
	for _, is := range e.Issues {
		fmt.Fprintf(&b, "; chunk %d: %s", is.Index, is.Reason)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrChunkValidationFailed }

// Indices returns the distinct chunk indices with issues, in order.
func (e *ValidationError) Indices() []int {
	var out []int
	for _, is := range e.Issues {
		if len(out) == 0 || out[len(out)-1] != is.Index {
			out = append(out, is.Index)
		}
	}
	return out
}

// Validate checks a chunk sequence against opts. The final chunk is exempt
// from the MinWords floor only. It returns nil or a *ValidationError.
func Validate(chunks []TextChunk, opts Options) error {
	var issues []Issue
	add := func(i int, format string, args ...any) {
		issues = append(issues, Issue{Index: i, Reason: fmt.Sprintf(format, args...)})
	}

	for i, c := range chunks {
		if c.Index != i {
			add(i, "index %d out of sequence", c.Index)
		}
		if strings.TrimSpace(c.Text) == "" {
			add(i, "empty text")
		}
		if n := len(strings.Fields(c.Text)); n != c.WordCount {
			add(i, "word count %d does not match text (%d words)", c.WordCount, n)
		}
		if c.WordCount > opts.MaxWords {
			add(i, "word count %d above max %d", c.WordCount, opts.MaxWords)
		}
		if i < len(chunks)-1 && c.WordCount < opts.MinWords {
			add(i, "word count %d below min %d", c.WordCount, opts.MinWords)
		}
		if c.Start < 0 {
			add(i, "negative start %.3f", c.Start)
		}
		if c.End < c.Start {
			add(i, "end %.3f before start %.3f", c.End, c.Start)
		}
		if i > 0 && c.Start < chunks[i-1].Start {
			add(i, "start %.3f before previous chunk start %.3f", c.Start, chunks[i-1].Start)
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
