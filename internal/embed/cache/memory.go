package cache

import (
	"context"
	"slices"
	"sync"
)

// Memory is a map-backed cache for a single process.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]float32
}

// NewMemory returns an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]float32)}
}

// Get returns a copy of the vector stored under key.
func (c *Memory) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return slices.Clone(v), ok, nil
}

// Set stores a copy of vec under key.
func (c *Memory) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = slices.Clone(vec)
	return nil
}

// Len returns the number of stored vectors.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
