package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Resyncer replays writes that only reached the local cache.
type Resyncer interface {
	Resync(ctx context.Context) (int, error)
}

// Reloader refreshes in-memory state from the store.
type Reloader interface {
	Load(ctx context.Context) error
}

// SchemaEnsurer prepares the remote schema once the database is reachable.
type SchemaEnsurer interface {
	Ensure(ctx context.Context) (bool, error)
}

// ResyncWorker periodically pushes pending local writes to the remote store.
type ResyncWorker struct {
	store    Resyncer
	catalog  Reloader
	schema   SchemaEnsurer
	interval time.Duration
}

// NewResyncWorker constructs a ResyncWorker. catalog may be nil.
func NewResyncWorker(store Resyncer, catalog Reloader, interval time.Duration) *ResyncWorker {
	return &ResyncWorker{
		store:    store,
		catalog:  catalog,
		interval: interval,
	}
}

// SetSchema makes each run prepare the remote schema before replaying writes.
func (w *ResyncWorker) SetSchema(schema SchemaEnsurer) {
	w.schema = schema
}

// Start begins the periodic resync loop and listens for context cancellation.
// A non-positive interval disables the worker.
func (w *ResyncWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		log.Info().Msg("Resync worker disabled")
		return
	}
	log.Info().Dur("interval", w.interval).Msg("Starting resync worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Resync worker stopped")
			return
		}
	}
}

func (w *ResyncWorker) run(ctx context.Context) {
	migrated := false
	if w.schema != nil {
		var err error
		migrated, err = w.schema.Ensure(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Remote schema not ready, will retry")
			return
		}
	}

	start := time.Now()
	applied, err := w.store.Resync(ctx)
	if err != nil {
		log.Warn().Err(err).Int("applied", applied).Msg("Resync incomplete, will retry")
		return
	}
	if applied == 0 && !migrated {
		return
	}

	if applied > 0 {
		log.Info().Int("applied", applied).Dur("duration", time.Since(start)).Msg("Pending writes synced to remote store")
	}
	if w.catalog != nil {
		if err := w.catalog.Load(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to reload catalog after resync")
		}
	}
}
