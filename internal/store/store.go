// Package store exposes one record store over either the remote database or the
// local fallback cache. The strategy is fixed at construction.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/garimpo_api/internal/cache"
	"github.com/GTDGit/garimpo_api/internal/config"
	"github.com/GTDGit/garimpo_api/internal/models"
	"github.com/GTDGit/garimpo_api/internal/utils"
)

// Store is the uniform contract regardless of backing medium.
type Store interface {
	List(ctx context.Context) ([]models.Product, error)
	Upsert(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
}

// Remote is the remote relational store.
type Remote interface {
	Store
	Ping(ctx context.Context) error
}

// Local is the local fallback cache.
type Local interface {
	Store
	Replace(ctx context.Context, products []models.Product) error
}

// UnavailableError reports a remote failure that was absorbed by the local cache.
// The operation's data is safe locally; the caller should notify the user.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remote store unavailable during %s, saved locally: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *UnavailableError) Unwrap() []error {
	return []error{utils.ErrStoreUnavailable, e.Err}
}

// Status is a snapshot of the adapter state.
type Status struct {
	Strategy config.StorageStrategy `json:"strategy"`
	Degraded bool                   `json:"degraded"`
	Pending  int                    `json:"pending"`
}

// Adapter implements Store for one StorageStrategy.
type Adapter struct {
	strategy config.StorageStrategy
	remote   Remote
	local    Local
	outbox   *cache.Outbox

	// writeMu orders remote writes against outbox replay.
	writeMu sync.Mutex

	mu       sync.RWMutex
	degraded bool
}

// NewAdapter builds the adapter. remote and outbox are required only for the remote strategy.
func NewAdapter(strategy config.StorageStrategy, remote Remote, local Local, outbox *cache.Outbox) (*Adapter, error) {
	if local == nil {
		return nil, errors.New("local cache is required")
	}
	if strategy == config.StorageRemote && (remote == nil || outbox == nil) {
		return nil, errors.New("remote strategy requires a remote store and an outbox")
	}
	if strategy != config.StorageRemote && strategy != config.StorageLocal {
		return nil, fmt.Errorf("unknown storage strategy %q", strategy)
	}
	return &Adapter{strategy: strategy, remote: remote, local: local, outbox: outbox}, nil
}

// Strategy returns the strategy chosen at startup.
func (a *Adapter) Strategy() config.StorageStrategy {
	return a.strategy
}

// List returns all records newest first. When the remote fails, the local snapshot is
// returned together with an *UnavailableError.
func (a *Adapter) List(ctx context.Context) ([]models.Product, error) {
	if a.strategy == config.StorageLocal {
		return a.local.List(ctx)
	}

	products, err := a.remote.List(ctx)
	if err != nil {
		a.setDegraded(true)
		log.Warn().Err(err).Msg("remote list failed, serving local snapshot")
		local, lerr := a.local.List(ctx)
		if lerr != nil {
			return nil, errors.Join(&UnavailableError{Op: "list", Err: err}, lerr)
		}
		return local, &UnavailableError{Op: "list", Err: err}
	}
	a.setDegraded(false)

	// Pending local writes are not on the remote yet; overlay them so they stay visible.
	products = a.overlayPending(ctx, products)

	if err := a.local.Replace(ctx, products); err != nil {
		log.Warn().Err(err).Msg("failed to refresh local snapshot")
	}
	return products, nil
}

// Upsert replaces or inserts by id.
func (a *Adapter) Upsert(ctx context.Context, p *models.Product) error {
	if a.strategy == config.StorageLocal {
		return a.local.Upsert(ctx, p)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.remote.Upsert(ctx, p); err != nil {
		return a.fallback(ctx, "upsert", err, cache.PendingOp{Kind: cache.OpUpsert, ID: p.ID, Product: p}, func() error {
			return a.local.Upsert(ctx, p)
		})
	}
	a.setDegraded(false)
	a.clearPending(ctx, p.ID)
	if err := a.local.Upsert(ctx, p); err != nil {
		log.Warn().Err(err).Str("product_id", p.ID).Msg("failed to mirror upsert locally")
	}
	return nil
}

// Delete removes by id; unknown ids are not an error.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	if a.strategy == config.StorageLocal {
		return a.local.Delete(ctx, id)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.remote.Delete(ctx, id); err != nil {
		return a.fallback(ctx, "delete", err, cache.PendingOp{Kind: cache.OpDelete, ID: id}, func() error {
			return a.local.Delete(ctx, id)
		})
	}
	a.setDegraded(false)
	a.clearPending(ctx, id)
	if err := a.local.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Str("product_id", id).Msg("failed to mirror delete locally")
	}
	return nil
}

// fallback writes locally, queues the op for later replay and reports the remote failure.
func (a *Adapter) fallback(ctx context.Context, op string, cause error, pending cache.PendingOp, write func() error) error {
	a.setDegraded(true)
	log.Warn().Err(cause).Str("op", op).Str("product_id", pending.ID).Msg("remote store failed, falling back to local cache")

	unavailable := &UnavailableError{Op: op, Err: cause}
	if err := write(); err != nil {
		return errors.Join(unavailable, err)
	}
	if err := a.outbox.Enqueue(ctx, pending); err != nil {
		log.Error().Err(err).Str("product_id", pending.ID).Msg("failed to queue pending write")
	}
	return unavailable
}

// clearPending drops queued ops for id that a direct remote write has superseded.
func (a *Adapter) clearPending(ctx context.Context, id string) {
	if err := a.outbox.Ack(ctx, id, time.Now().UnixNano()); err != nil {
		log.Warn().Err(err).Str("product_id", id).Msg("failed to clear superseded pending write")
	}
}

// CheckRemote pings the remote store. It is a no-op in local mode.
func (a *Adapter) CheckRemote(ctx context.Context) error {
	if a.strategy != config.StorageRemote {
		return nil
	}
	return a.remote.Ping(ctx)
}

// Resync replays pending writes against the remote store in order, stopping at the
// first failure. It returns how many ops were applied. With nothing queued, the
// degraded flag is only cleared after a successful ping.
func (a *Adapter) Resync(ctx context.Context) (int, error) {
	if a.strategy != config.StorageRemote {
		return 0, nil
	}

	ops, err := a.outbox.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		if !a.isDegraded() {
			return 0, nil
		}
		if err := a.remote.Ping(ctx); err != nil {
			return 0, &UnavailableError{Op: "resync", Err: err}
		}
		a.setDegraded(false)
		return 0, nil
	}

	applied := 0
	for _, queued := range ops {
		ok, err := a.replayPending(ctx, queued.ID)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		}
	}
	a.setDegraded(false)
	return applied, nil
}

// replayPending pushes the op currently queued for id, if any. The queue is read
// again under writeMu, so an op superseded by a direct write since the snapshot
// is skipped instead of overwriting the newer row.
func (a *Adapter) replayPending(ctx context.Context, id string) (bool, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	op, found, err := a.outbox.Lookup(ctx, id)
	if err != nil || !found {
		return false, err
	}
	if err := a.replay(ctx, op); err != nil {
		a.setDegraded(true)
		return false, &UnavailableError{Op: "resync", Err: err}
	}
	if err := a.outbox.Ack(ctx, op.ID, op.QueuedAt); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) replay(ctx context.Context, op cache.PendingOp) error {
	switch op.Kind {
	case cache.OpUpsert:
		if op.Product == nil {
			return nil
		}
		return a.remote.Upsert(ctx, op.Product)
	case cache.OpDelete:
		return a.remote.Delete(ctx, op.ID)
	default:
		log.Warn().Str("kind", string(op.Kind)).Msg("dropping unknown pending op")
		return nil
	}
}

// Status reports the strategy, degraded flag and pending count.
func (a *Adapter) Status(ctx context.Context) Status {
	st := Status{Strategy: a.strategy, Degraded: a.isDegraded()}
	if a.outbox != nil {
		if ops, err := a.outbox.Pending(ctx); err == nil {
			st.Pending = len(ops)
		}
	}
	return st
}

// overlayPending applies queued local writes on top of a remote listing.
func (a *Adapter) overlayPending(ctx context.Context, products []models.Product) []models.Product {
	ops, err := a.outbox.Pending(ctx)
	if err != nil || len(ops) == 0 {
		return products
	}

	for _, op := range ops {
		idx := -1
		for i := range products {
			if products[i].ID == op.ID {
				idx = i
				break
			}
		}
		switch {
		case op.Kind == cache.OpDelete && idx >= 0:
			products = append(products[:idx], products[idx+1:]...)
		case op.Kind == cache.OpUpsert && op.Product != nil && idx >= 0:
			products[idx] = op.Product.Clone()
		case op.Kind == cache.OpUpsert && op.Product != nil:
			products = insertByCreatedAt(products, op.Product.Clone())
		}
	}
	return products
}

// insertByCreatedAt keeps the newest-first order.
func insertByCreatedAt(products []models.Product, p models.Product) []models.Product {
	i := 0
	for i < len(products) && products[i].CreatedAt >= p.CreatedAt {
		i++
	}
	products = append(products, models.Product{})
	copy(products[i+1:], products[i:])
	products[i] = p
	return products
}

func (a *Adapter) setDegraded(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.degraded != v {
		if v {
			log.Warn().Msg("record store entering degraded (local-only) mode")
		} else {
			log.Info().Msg("record store reachable again")
		}
	}
	a.degraded = v
}

func (a *Adapter) isDegraded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.degraded
}
