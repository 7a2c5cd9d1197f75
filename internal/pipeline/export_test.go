package pipeline

import "github.com/alnah/go-vidindex/internal/audio"

// WithFileOps replaces file removal so tests can observe cleanup.
func WithFileOps(remove func(string) error, cleanup func([]audio.Chunk, string) error) Option {
	return func(o *Orchestrator) {
		o.remove = remove
		o.cleanupChunks = cleanup
	}
}
