package cli

import (
	"errors"
	"fmt"
)

// Embedding provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"
)

// Provider represents a validated embedding provider.
// Zero value is invalid and must not be used.
// Use ParseProvider to create from user input, or the pre-parsed constants.
type Provider struct {
	name string
}

// Compile-time interface compliance check.
var _ fmt.Stringer = Provider{}

// ErrInvalidProvider indicates an invalid provider name was specified.
var ErrInvalidProvider = errors.New("invalid provider")

// Pre-parsed provider constants for use in code.
var (
	OpenAIProvider     = Provider{name: ProviderOpenAI}
	CompatibleProvider = Provider{name: ProviderCompatible}
)

// validProviders contains the set of valid provider names.
var validProviders = map[string]bool{
	ProviderOpenAI:     true,
	ProviderCompatible: true,
}

// ParseProvider validates and parses a provider name string.
// Empty input returns the zero Provider, meaning "pick from config".
func ParseProvider(s string) (Provider, error) {
	if s == "" {
		return Provider{}, nil
	}
	if !validProviders[s] {
		return Provider{}, fmt.Errorf("unknown provider %q (use 'openai' or 'compatible'): %w", s, ErrInvalidProvider)
	}
	return Provider{name: s}, nil
}

// String returns the provider name string.
// Returns empty string for zero value.
func (p Provider) String() string {
	return p.name
}

// IsZero returns true if no provider was chosen.
func (p Provider) IsZero() bool {
	return p.name == ""
}

// IsCompatible returns true for an OpenAI-compatible host.
func (p Provider) IsCompatible() bool {
	return p.name == ProviderCompatible
}

// OrDefault returns p, or the provider implied by an embedding host: a
// configured host selects CompatibleProvider, no host selects OpenAIProvider.
func (p Provider) OrDefault(embeddingHost string) Provider {
	if !p.IsZero() {
		return p
	}
	if embeddingHost != "" {
		return CompatibleProvider
	}
	return OpenAIProvider
}
