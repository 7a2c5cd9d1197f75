// Package transcript defines the timestamped transcript consumed by the
// chunker and produced by transcription collaborators.
//
// All times are float64 seconds from the start of the source video.
// Values are treated as immutable: helpers return new values.
package transcript

import (
	"fmt"
	"slices"
	"strings"
)

// Word is a word-level timing inside a segment.
// Confidence is 0 when the engine does not report it.
type Word struct {
	Text       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Segment is the transcription engine's native unit of timestamped text.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Transcript is the full output of transcribing one video.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// WordCount returns the number of whitespace-separated words across segments.
func (t Transcript) WordCount() int {
	n := 0
	for _, s := range t.Segments {
		n += len(strings.Fields(s.Text))
	}
	return n
}

// Clone returns a deep copy.
func (t Transcript) Clone() Transcript {
	out := t
	out.Segments = make([]Segment, len(t.Segments))
	for i, s := range t.Segments {
		s.Words = slices.Clone(s.Words)
		out.Segments[i] = s
	}
	return out
}

// shift returns a copy of s moved by offset seconds with a new ID.
func (s Segment) shift(offset float64, id int) Segment {
	s.ID = id
	s.Start += offset
	s.End += offset
	words := make([]Word, len(s.Words))
	for i, w := range s.Words {
		w.Start += offset
		w.End += offset
		words[i] = w
	}
	if len(words) == 0 {
		words = nil
	}
	s.Words = words
	return s
}

// Merge joins transcripts of consecutive audio pieces. offsets[i] is where
// part i starts in the source; segment times are shifted by it and IDs are
// renumbered densely. The first non-empty language wins.
func Merge(parts []Transcript, offsets []float64) (Transcript, error) {
	if len(parts) != len(offsets) {
		return Transcript{}, fmt.Errorf("merge: %d parts but %d offsets", len(parts), len(offsets))
	}

	var out Transcript
	texts := make([]string, 0, len(parts))
	for i, p := range parts {
		if out.Language == "" {
			out.Language = p.Language
		}
		if txt := strings.TrimSpace(p.Text); txt != "" {
			texts = append(texts, txt)
		}
		for _, s := range p.Segments {
			out.Segments = append(out.Segments, s.shift(offsets[i], len(out.Segments)))
		}
		out.Duration = max(out.Duration, offsets[i]+p.Duration)
	}
	out.Text = strings.Join(texts, " ")
	return out, nil
}

// ---------------------------------------------------------------------------
// Ordering checks
// ---------------------------------------------------------------------------

// overlapTolerance absorbs the rounding engines apply to segment bounds.
const overlapTolerance = 0.5

// OrderError lists every ordering problem found by Check.
type OrderError struct {
	Problems []string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformed, strings.Join(e.Problems, "; "))
}

func (e *OrderError) Unwrap() error { return ErrMalformed }

// Check verifies that segments are in source order: end >= start, starts
// non-decreasing, and no overlap beyond a small tolerance.
func Check(t Transcript) error {
	var problems []string
	for i, s := range t.Segments {
		if s.Start < 0 {
			problems = append(problems, fmt.Sprintf("segment %d starts before 0 (%.3f)", i, s.Start))
		}
		if s.End < s.Start {
			problems = append(problems, fmt.Sprintf("segment %d ends before it starts (%.3f < %.3f)", i, s.End, s.Start))
		}
		if i == 0 {
			continue
		}
		prev := t.Segments[i-1]
		if s.Start < prev.Start {
			problems = append(problems, fmt.Sprintf("segment %d starts before segment %d", i, i-1))
		} else if s.Start < prev.End-overlapTolerance {
			problems = append(problems, fmt.Sprintf("segment %d overlaps segment %d by %.3fs", i, i-1, prev.End-s.Start))
		}
	}
	if len(problems) > 0 {
		return &OrderError{Problems: problems}
	}
	return nil
}
