// Package cache provides embedding vector stores: in-process, on-disk
// Badger, and shared Redis. None of them expire entries.
package cache
