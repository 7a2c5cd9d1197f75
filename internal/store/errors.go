package store

import "errors"

// ErrNotFound indicates no video is stored under the requested id.
var ErrNotFound = errors.New("video not found")
