package providers

import (
	"context"
)

// CacheProvider is the byte-oriented cache behind the geocode lookups. The
// in-memory translation cache is a separate structure with its own eviction
// semantics and does not implement this interface.
type CacheProvider interface {
	// Get retrieves a value; a miss returns an error
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL in seconds
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error
}
