package chunk

import "fmt"

// Defaults sized for embedding models with an 8K-token input window.
const (
	DefaultTargetWords  = 750
	DefaultMinWords     = 500
	DefaultMaxWords     = 1000
	DefaultOverlapWords = 100
)

// breakSearchWindow bounds how far back from the effective end a sentence
// boundary is looked for.
const breakSearchWindow = 100

// Options bounds chunk sizes in words.
type Options struct {
	TargetWords  int `yaml:"target_words" json:"target_words"`
	MinWords     int `yaml:"min_words" json:"min_words"`
	MaxWords     int `yaml:"max_words" json:"max_words"`
	OverlapWords int `yaml:"overlap_words" json:"overlap_words"`
}

// DefaultOptions returns 750/500/1000/100.
func DefaultOptions() Options {
	return Options{
		TargetWords:  DefaultTargetWords,
		MinWords:     DefaultMinWords,
		MaxWords:     DefaultMaxWords,
		OverlapWords: DefaultOverlapWords,
	}
}

// Validate checks the ordering constraints between the bounds.
func (o Options) Validate() error {
	switch {
	case o.MinWords <= 0 || o.TargetWords <= 0 || o.MaxWords <= 0:
		return fmt.Errorf("%w: word bounds must be positive (min=%d target=%d max=%d)",
			ErrConfigInvalid, o.MinWords, o.TargetWords, o.MaxWords)
	case o.OverlapWords < 0:
		return fmt.Errorf("%w: overlap %d is negative", ErrConfigInvalid, o.OverlapWords)
	case o.MinWords > o.TargetWords:
		return fmt.Errorf("%w: min %d > target %d", ErrConfigInvalid, o.MinWords, o.TargetWords)
	case o.TargetWords > o.MaxWords:
		return fmt.Errorf("%w: target %d > max %d", ErrConfigInvalid, o.TargetWords, o.MaxWords)
	case o.OverlapWords >= o.MinWords:
		return fmt.Errorf("%w: overlap %d >= min %d", ErrConfigInvalid, o.OverlapWords, o.MinWords)
	}
	return nil
}
