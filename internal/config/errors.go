package config

import "errors"

var (
	// ErrInvalidKey indicates a key that cannot be stored in the config file.
	ErrInvalidKey = errors.New("invalid config key")
	// ErrInvalidValue indicates a value a known key cannot take.
	ErrInvalidValue = errors.New("invalid config value")
	// ErrInvalidSyntax indicates a config line that is not key=value.
	ErrInvalidSyntax = errors.New("invalid config syntax")
	// ErrNotDirectory indicates an output path that exists but is a file.
	ErrNotDirectory = errors.New("not a directory")
	// ErrNotWritable indicates an output directory we cannot write to.
	ErrNotWritable = errors.New("directory not writable")
)
