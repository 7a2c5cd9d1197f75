package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
	ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")

	// ErrConflictingFlags indicates flags that cannot be combined.
	ErrConflictingFlags = errors.New("conflicting flags")
)

// Environment variable names read by commands.
const (
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvEmbeddingToken = "VIDINDEX_EMBEDDING_TOKEN"
)
