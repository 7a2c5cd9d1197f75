package config

import (
	"bufio"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Config keys.
const (
	KeyOutputDir      = "output-dir"
	KeyDBPath         = "db-path"
	KeyCache          = "cache"
	KeyCacheDir       = "cache-dir"
	KeyRedisAddr      = "redis-addr"
	KeyEmbeddingModel = "embedding-model"
	KeyEmbeddingHost  = "embedding-host"
)

// Environment variable fallbacks.
const (
	EnvOutputDir      = "VIDINDEX_OUTPUT_DIR"
	EnvDBPath         = "VIDINDEX_DB_PATH"
	EnvCache          = "VIDINDEX_CACHE"
	EnvCacheDir       = "VIDINDEX_CACHE_DIR"
	EnvRedisAddr      = "VIDINDEX_REDIS_ADDR"
	EnvEmbeddingModel = "VIDINDEX_EMBEDDING_MODEL"
	EnvEmbeddingHost  = "VIDINDEX_EMBEDDING_HOST"
)

// Cache backends accepted by the cache key.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheBadger = "badger"
	CacheRedis  = "redis"
)

// appName names the configuration directory.
const appName = "go-vidindex"

// Config holds user configuration loaded from ~/.config/go-vidindex/config.
// Empty fields mean "use the default" and are filled by Load.
type Config struct {
	OutputDir      string
	DBPath         string
	Cache          string
	CacheDir       string
	RedisAddr      string
	EmbeddingModel string
	// EmbeddingHost selects an OpenAI-compatible host instead of OpenAI.
	EmbeddingHost string
}

// Keys lists every settable key, in display order.
func Keys() []string {
	return []string{KeyOutputDir, KeyDBPath, KeyCache, KeyCacheDir, KeyRedisAddr, KeyEmbeddingModel, KeyEmbeddingHost}
}

// binding ties a key to its env fallback and Config field.
type binding struct {
	key, env string
	field    func(*Config) *string
}

var bindings = []binding{
	{KeyOutputDir, EnvOutputDir, func(c *Config) *string { return &c.OutputDir }},
	{KeyDBPath, EnvDBPath, func(c *Config) *string { return &c.DBPath }},
	{KeyCache, EnvCache, func(c *Config) *string { return &c.Cache }},
	{KeyCacheDir, EnvCacheDir, func(c *Config) *string { return &c.CacheDir }},
	{KeyRedisAddr, EnvRedisAddr, func(c *Config) *string { return &c.RedisAddr }},
	{KeyEmbeddingModel, EnvEmbeddingModel, func(c *Config) *string { return &c.EmbeddingModel }},
	{KeyEmbeddingHost, EnvEmbeddingHost, func(c *Config) *string { return &c.EmbeddingHost }},
}

// EnvFor returns the environment variable backing key, or "" for an
// unknown key.
func EnvFor(key string) string {
	for _, b := range bindings {
		if b.key == key {
			return b.env
		}
	}
	return ""
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/go-vidindex.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// path returns the full path to the config file.
func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// Load reads the configuration file and environment variables, then fills
// defaults. Precedence: config file values, then environment variable
// fallbacks, then defaults. A missing file is not an error.
func Load() (Config, error) {
	var cfg Config

	p, err := path()
	if err != nil {
		return cfg, err
	}

	data, err := parseFile(p)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	for _, b := range bindings {
		v := data[b.key]
		if v == "" {
			v = os.Getenv(b.env)
		}
		*b.field(&cfg) = v
	}

	if err := cfg.fillDefaults(filepath.Dir(p)); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults(configDir string) error {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(configDir, "vidindex.db")
	}
	if c.Cache == "" {
		c.Cache = CacheBadger
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(configDir, "cache")
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	c.DBPath = ExpandPath(c.DBPath)
	c.CacheDir = ExpandPath(c.CacheDir)
	return ValidateValue(KeyCache, c.Cache)
}

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// ValidateValue rejects unknown keys and values a key cannot take.
func ValidateValue(key, value string) error {
	switch key {
	case KeyCache:
		switch value {
		case CacheNone, CacheMemory, CacheBadger, CacheRedis:
			return nil
		}
		return fmt.Errorf("%w: cache %q (expected %s, %s, %s or %s)", ErrInvalidValue, value, CacheNone, CacheMemory, CacheBadger, CacheRedis)
	case KeyEmbeddingHost:
		if value != "" && !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("%w: embedding-host %q (expected http:// or https:// URL)", ErrInvalidValue, value)
		}
		return nil
	case KeyOutputDir, KeyDBPath, KeyCacheDir, KeyRedisAddr, KeyEmbeddingModel:
		return nil
	}
	return fmt.Errorf("%w: unknown key %q (valid keys: %s)", ErrInvalidKey, key, strings.Join(Keys(), ", "))
}

// parseFile reads a key=value config file.
// Format: one key=value per line, # comments, empty lines ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w at line %d: %q", ErrInvalidSyntax, lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		data[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return data, nil
}

// Save writes a single key=value to the config file.
// Creates the config directory and file if they don't exist.
// Preserves existing key=value pairs but discards comments.
func Save(key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	p, err := path()
	if err != nil {
		return err
	}

	// Ensure config directory exists.
	d := filepath.Dir(p)
	if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	// Read existing config (if any).
	existing, _ := parseFile(p)
	if existing == nil {
		existing = make(map[string]string)
	}

	// Update value.
	existing[key] = value

	// Write back.
	return writeFile(p, existing)
}

// writeFile writes the config map to a file.
func writeFile(p string, data map[string]string) error {
	// #nosec G302 G304 -- config file with standard permissions, path from home dir
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, key := range slices.Sorted(maps.Keys(data)) {
		value := data[key]
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	return nil
}

// Get reads a single value from the config file.
// Returns empty string if the key doesn't exist.
func Get(key string) (string, error) {
	p, err := path()
	if err != nil {
		return "", err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	return data[key], nil
}

// List returns all config values as a map.
func List() (map[string]string, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	return data, nil
}

// ResolveOutputPath resolves the final output path using the following precedence:
//  1. If output is absolute, use it as-is
//  2. If output is relative and outputDir is set, join them
//  3. If output is empty, use defaultName in outputDir (or cwd if no outputDir)
//
// outputDir can come from config or flag.
// All paths are cleaned using filepath.Clean to normalize separators and remove redundant elements.
func ResolveOutputPath(output, outputDir, defaultName string) string {
	// Case 1: Explicit absolute path - use as-is.
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}

	// Case 2: Explicit relative path - combine with outputDir if set.
	if output != "" {
		if outputDir != "" {
			return filepath.Clean(filepath.Join(outputDir, output))
		}
		return filepath.Clean(output)
	}

	// Case 3: No output specified - use default name.
	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	}
	return filepath.Clean(defaultName)
}

// EnsureOutputDir checks that d can be used as output-dir, creating it
// when missing.
func EnsureOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}

	d = ExpandPath(d)

	// Check if path exists.
	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			// Directory doesn't exist - try to create it.
			if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	// Check if it's a directory.
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, d)
	}

	// Check if writable by attempting to create a temp file.
	testFile := filepath.Join(d, ".go-vidindex-write-test")
	f, err := os.Create(testFile) // #nosec G304 -- path is constructed from validated dir
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotWritable, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(testFile)
		return fmt.Errorf("%w: %w", ErrNotWritable, err)
	}
	_ = os.Remove(testFile) // Best effort cleanup, ignore error

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}

// Dir returns the configuration directory path (exported for testing).
func Dir() (string, error) {
	return dir()
}

// ParseFile reads a key=value config file (exported for testing).
func ParseFile(p string) (map[string]string, error) {
	return parseFile(p)
}
