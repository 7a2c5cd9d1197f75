package ffmpeg

import "errors"

// ErrNotFound indicates ffmpeg or ffprobe could not be located.
var ErrNotFound = errors.New("ffmpeg toolchain not found")

// ErrTimeout is returned when a command does not exit before its deadline.
var ErrTimeout = errors.New("ffmpeg command timed out")
