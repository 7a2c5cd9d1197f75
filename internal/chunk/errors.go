package chunk

import "errors"

// ErrConfigInvalid indicates Options that violate
// MinWords <= TargetWords <= MaxWords or OverlapWords < MinWords.
var ErrConfigInvalid = errors.New("chunking config invalid")

// ErrChunkValidationFailed indicates chunks that break size, timestamp, or
// ordering rules. The concrete error is a *ValidationError.
var ErrChunkValidationFailed = errors.New("chunk validation failed")
