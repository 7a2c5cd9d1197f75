package transcribe

import "errors"

// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
var ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

// ErrTranscriptionFailed wraps every failure returned by TranscribeAll.
var ErrTranscriptionFailed = errors.New("transcription failed")
