package transcript

import "errors"

// ErrInvalidLanguage indicates a language code or name that cannot be resolved.
var ErrInvalidLanguage = errors.New("invalid language code")

// ErrMalformed indicates a transcript whose segments violate time ordering.
var ErrMalformed = errors.New("malformed transcript")
