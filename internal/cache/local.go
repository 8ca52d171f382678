package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/garimpo_api/internal/models"
	"github.com/GTDGit/garimpo_api/internal/utils"
)

// CollectionKey is the well-known name of the local collection document.
const CollectionKey = "garimpo_fallback"

// LocalCache keeps the whole product collection as one JSON document, newest first.
// Every mutation rewrites the full document.
type LocalCache struct {
	backend DocumentBackend
	mu      sync.Mutex
}

// NewLocalCache creates a LocalCache over the given backend.
func NewLocalCache(backend DocumentBackend) *LocalCache {
	return &LocalCache{backend: backend}
}

// List returns the cached collection in stored order.
func (c *LocalCache) List(ctx context.Context) ([]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Upsert replaces the product with the same id in place, or prepends it when new.
func (c *LocalCache) Upsert(ctx context.Context, p *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	products, err := c.load(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range products {
		if products[i].ID == p.ID {
			products[i] = p.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		products = append([]models.Product{p.Clone()}, products...)
	}
	return c.save(ctx, products)
}

// Delete removes the product with id. Unknown ids are a no-op.
func (c *LocalCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	products, err := c.load(ctx)
	if err != nil {
		return err
	}

	kept := products[:0]
	for _, p := range products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return c.save(ctx, kept)
}

// Replace overwrites the document with a fresh snapshot.
func (c *LocalCache) Replace(ctx context.Context, products []models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, products)
}

// load decodes record by record so one corrupt entry is skipped instead of
// poisoning the whole collection.
func (c *LocalCache) load(ctx context.Context) ([]models.Product, error) {
	data, found, err := c.backend.Load(ctx, CollectionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", utils.ErrLocalCache, err)
	}
	if !found || len(data) == 0 {
		return []models.Product{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Msg("local cache document is malformed, starting empty")
		return []models.Product{}, nil
	}

	products := make([]models.Product, 0, len(raw))
	for i, item := range raw {
		var p models.Product
		if err := json.Unmarshal(item, &p); err != nil || p.ID == "" {
			log.Warn().Err(err).Int("index", i).Msg("skipping malformed local cache record")
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (c *LocalCache) save(ctx context.Context, products []models.Product) error {
	if products == nil {
		products = []models.Product{}
	}
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", utils.ErrLocalCache, err)
	}
	if err := c.backend.Save(ctx, CollectionKey, data); err != nil {
		return fmt.Errorf("%w: save: %v", utils.ErrLocalCache, err)
	}
	return nil
}
