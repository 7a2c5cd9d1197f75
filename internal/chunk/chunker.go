// Package chunk turns a timestamped transcript into word-bounded,
// overlapping text chunks that end on sentence boundaries where possible.
package chunk

import (
	"log/slog"
	"strings"

	"github.com/alnah/go-vidindex/internal/transcript"
)

// TextChunk is a retrieval unit. Start and End are the bounds, in source
// seconds, of the first and last transcript segments contributing words.
type TextChunk struct {
	Index     int     `json:"index"`
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	WordCount int     `json:"word_count"`
	// Overlap is how many leading words repeat the previous chunk's tail.
	Overlap int `json:"overlap"`
}

// Chunker splits transcripts according to fixed Options.
// It holds no per-call state and is safe for concurrent use.
type Chunker struct {
	opts   Options
	finder BreakFinder
	logger *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithBreakFinder replaces the punctuation heuristic.
func WithBreakFinder(f BreakFinder) Option {
	return func(c *Chunker) {
		if f != nil {
			c.finder = f
		}
	}
}

// WithLogger sets the logger receiving input-quality warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chunker) {
		if l != nil {
			c.logger = l
		}
	}
}

// New validates opts and returns a Chunker. Invalid options fail here,
// never at first use.
func New(opts Options, o ...Option) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Chunker{
		opts:   opts,
		finder: PunctuationBreakFinder{},
		logger: slog.Default().With("component", "chunk"),
	}
	for _, opt := range o {
		opt(c)
	}
	return c, nil
}

// Options returns the bounds the chunker was built with.
func (c *Chunker) Options() Options { return c.opts }

// word is one buffered word and the segment it came from.
type word struct {
	text string
	seg  int
}

// run is the state of one Chunk call.
type run struct {
	c      *Chunker
	t      transcript.Transcript
	buf    []word
	seeded int // leading words of buf already emitted as overlap
	out    []TextChunk
}

// Chunk splits t into TextChunks with dense indices starting at 0.
// Every chunk but the last holds between MinWords and MaxWords words; the
// last never exceeds MaxWords.
func (c *Chunker) Chunk(t transcript.Transcript) []TextChunk {
	r := &run{c: c, t: t}
	for si, seg := range t.Segments {
		for _, w := range strings.Fields(seg.Text) {
			r.buf = append(r.buf, word{text: w, seg: si})
		}
		for len(r.buf) >= c.opts.TargetWords || len(r.buf) > c.opts.MaxWords {
			r.cut()
		}
	}
	r.flush()
	return r.out
}

// cut emits the head of the buffer and reseeds it with the overlap.
func (r *run) cut() {
	opts := r.c.opts
	n := len(r.buf)
	end := min(opts.MaxWords, n)

	words := make([]string, end)
	for i := range end {
		words[i] = r.buf[i].text
	}

	at := min(opts.TargetWords, end)
	from := end - 1
	to := max(opts.MinWords, end-breakSearchWindow)
	if i := r.c.finder.FindBreakPoint(words, from, to); i >= to && i <= from {
		at = i + 1
	}

	r.emit(r.buf[:at])

	keep := at - opts.OverlapWords
	next := make([]word, n-keep)
	copy(next, r.buf[keep:])
	r.buf = next
	r.seeded = opts.OverlapWords
}

// flush emits what is left unless it is only overlap already emitted.
func (r *run) flush() {
	if len(r.buf) <= r.seeded {
		return
	}
	words := r.buf
	if len(words) > r.c.opts.MaxWords {
		r.c.logger.Warn("final chunk truncated to max words",
			"words", len(words), "max", r.c.opts.MaxWords)
		words = words[:r.c.opts.MaxWords]
	}
	r.emit(words)
}

func (r *run) emit(words []word) {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.text
	}

	first := r.t.Segments[words[0].seg]
	last := r.t.Segments[words[len(words)-1].seg]
	start, end := first.Start, last.End
	index := len(r.out)
	if end < start {
		r.c.logger.Warn("chunk end precedes start, clamping",
			"index", index, "start", start, "end", end,
			"first_segment", first.ID, "last_segment", last.ID)
		end = start
	}

	overlap := 0
	if index > 0 {
		overlap = min(r.seeded, len(words))
	}

	r.out = append(r.out, TextChunk{
		Index:     index,
		Text:      strings.Join(texts, " "),
		Start:     start,
		End:       end,
		WordCount: len(words),
		Overlap:   overlap,
	})
}
