package cache

import (
	"context"
	"fmt"
	"time"
)

// EnrichmentCache stores raw enrichment payloads keyed by request fingerprint,
// so repeated audits of the same sales page do not call the model again.
type EnrichmentCache struct {
	kv  KeyValue
	ttl time.Duration
}

// NewEnrichmentCache creates a new EnrichmentCache.
func NewEnrichmentCache(kv KeyValue, ttl time.Duration) *EnrichmentCache {
	return &EnrichmentCache{kv: kv, ttl: ttl}
}

func (c *EnrichmentCache) key(fingerprint string) string {
	return fmt.Sprintf("enrichment:%s", fingerprint)
}

// Get returns the cached payload or ErrCacheMiss.
func (c *EnrichmentCache) Get(ctx context.Context, fingerprint string) ([]byte, error) {
	v, err := c.kv.Get(ctx, c.key(fingerprint))
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// Set stores the payload until the configured TTL elapses.
func (c *EnrichmentCache) Set(ctx context.Context, fingerprint string, payload []byte) error {
	return c.kv.Set(ctx, c.key(fingerprint), string(payload), c.ttl)
}
