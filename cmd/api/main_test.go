package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/garimpo_api/internal/cache"
	"github.com/GTDGit/garimpo_api/internal/config"
)

func TestRun_ReturnsStartupErrorAfterOpeningResources(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Port:       "0",
		Env:        "test",
		Storage:    "cloud",
		LocalCache: config.LocalCacheConfig{Backend: "sqlite", Path: dir},
	}

	err := run(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record store initialization failed")

	// the cache opened before the failure was released and is usable again
	backend, err := cache.NewBackend(&cfg.LocalCache, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if closer, ok := backend.(interface{ Close() error }); ok {
			closer.Close()
		}
	})
	require.NoError(t, backend.Save(context.Background(), cache.CollectionKey, []byte(`[]`)))
}
