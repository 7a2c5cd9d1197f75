package audio

import "errors"

// ErrExtractionUnavailable indicates the ffmpeg/ffprobe toolchain is not installed.
// It is fatal and never retried.
var ErrExtractionUnavailable = errors.New("audio extraction unavailable")

// ErrExtractionFailed indicates ffmpeg failed or did not produce the expected output.
var ErrExtractionFailed = errors.New("audio extraction failed")

// ErrSplitFailed indicates a segment could not be cut from the source audio.
var ErrSplitFailed = errors.New("audio split failed")

// ErrDurationProbeFailed indicates ffprobe returned no usable duration.
var ErrDurationProbeFailed = errors.New("duration probe failed")

// ErrFileNotFound indicates the specified input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrOutputExists indicates a file already occupies the extraction output path.
var ErrOutputExists = errors.New("audio output already exists")
