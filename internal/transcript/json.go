package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// document is the on-disk shape. It is a superset of OpenAI's verbose_json
// response, whose word timings arrive in a flat top-level list.
type document struct {
	Transcript
	Words []Word `json:"words,omitempty"`
}

// Decode reads a transcript, in this package's format or as raw Whisper
// verbose_json. Flat word timings are attached to the segment they fall in
// and the language is normalized.
func Decode(r io.Reader) (Transcript, error) {
	var doc document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}

	t := doc.Transcript
	if len(doc.Words) > 0 {
		t.Segments = AttachWords(t.Segments, doc.Words)
	}
	if t.Text == "" {
		parts := make([]string, 0, len(t.Segments))
		for _, s := range t.Segments {
			parts = append(parts, strings.TrimSpace(s.Text))
		}
		t.Text = strings.Join(parts, " ")
	}
	if code, err := Normalize(t.Language); err == nil {
		t.Language = code
	}
	return t, nil
}

// Load decodes the transcript file at path and checks its segment order.
func Load(path string) (Transcript, error) {
	f, err := os.Open(path) // #nosec G304 -- path is provided by the user on the command line
	if err != nil {
		return Transcript{}, err
	}
	defer func() { _ = f.Close() }()
	t, err := Decode(f)
	if err != nil {
		return Transcript{}, err
	}
	if err := Check(t); err != nil {
		return Transcript{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Encode writes t as indented JSON.
func Encode(w io.Writer, t Transcript) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// AttachWords distributes flat word timings over segments by start time.
// A word belongs to the last segment starting at or before it. Segments
// that already carry words keep them.
func AttachWords(segments []Segment, words []Word) []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	if len(out) == 0 {
		return out
	}

	seg := 0
	for _, w := range words {
		for seg+1 < len(out) && out[seg+1].Start <= w.Start {
			seg++
		}
		if len(segments[seg].Words) > 0 {
			continue
		}
		out[seg].Words = append(out[seg].Words, w)
	}
	return out
}
