package interfaces

import "errors"

var (
	// ErrKeyNotFound is returned when a cache key does not exist or has expired.
	ErrKeyNotFound = errors.New("key not found")

	// ErrJobNotFound is returned when no job exists for the given ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrCacheCorrupted is returned when a stored value fails to deserialize.
	// Callers treat it as a cache miss; the storage layer deletes the entry.
	ErrCacheCorrupted = errors.New("cache entry corrupted")
)
