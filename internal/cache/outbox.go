package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GTDGit/garimpo_api/internal/models"
	"github.com/GTDGit/garimpo_api/internal/utils"
)

// OutboxKey is the well-known name of the pending-writes document.
const OutboxKey = "garimpo_pending"

// OpKind is the kind of a pending remote write.
type OpKind string

const (
	OpUpsert OpKind = "upsert"
	OpDelete OpKind = "delete"
)

// PendingOp is a write that reached the local cache but not the remote store.
type PendingOp struct {
	Kind     OpKind          `json:"kind"`
	ID       string          `json:"id"`
	Product  *models.Product `json:"product,omitempty"`
	QueuedAt int64           `json:"queuedAt"`
}

// Outbox is an ordered queue of pending writes, one entry per product id.
type Outbox struct {
	backend DocumentBackend
	mu      sync.Mutex
	now     func() time.Time
}

// NewOutbox creates an Outbox over the given backend.
func NewOutbox(backend DocumentBackend) *Outbox {
	return &Outbox{backend: backend, now: time.Now}
}

// Enqueue appends op, dropping any older op for the same id since only the
// latest write per record matters.
func (o *Outbox) Enqueue(ctx context.Context, op PendingOp) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx)
	if err != nil {
		return err
	}
	if op.QueuedAt == 0 {
		op.QueuedAt = o.now().UnixNano()
	}
	if op.Product != nil {
		cp := op.Product.Clone()
		op.Product = &cp
	}

	kept := ops[:0]
	for _, existing := range ops {
		if existing.ID != op.ID {
			kept = append(kept, existing)
		}
	}
	return o.save(ctx, append(kept, op))
}

// Pending returns queued ops, oldest first.
func (o *Outbox) Pending(ctx context.Context) ([]PendingOp, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load(ctx)
}

// Lookup returns the op currently queued for id.
func (o *Outbox) Lookup(ctx context.Context, id string) (PendingOp, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx)
	if err != nil {
		return PendingOp{}, false, err
	}
	for _, op := range ops {
		if op.ID == id {
			return op, true, nil
		}
	}
	return PendingOp{}, false, nil
}

// Ack removes the op for id if it was queued at or before queuedAt. A newer op
// enqueued for the same id meanwhile stays in the queue.
func (o *Outbox) Ack(ctx context.Context, id string, queuedAt int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx)
	if err != nil {
		return err
	}
	kept := ops[:0]
	for _, op := range ops {
		if op.ID == id && op.QueuedAt <= queuedAt {
			continue
		}
		kept = append(kept, op)
	}
	return o.save(ctx, kept)
}

func (o *Outbox) load(ctx context.Context) ([]PendingOp, error) {
	data, found, err := o.backend.Load(ctx, OutboxKey)
	if err != nil {
		return nil, fmt.Errorf("%w: load outbox: %v", utils.ErrLocalCache, err)
	}
	if !found || len(data) == 0 {
		return []PendingOp{}, nil
	}
	var ops []PendingOp
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("%w: decode outbox: %v", utils.ErrLocalCache, err)
	}
	return ops, nil
}

func (o *Outbox) save(ctx context.Context, ops []PendingOp) error {
	if ops == nil {
		ops = []PendingOp{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("%w: encode outbox: %v", utils.ErrLocalCache, err)
	}
	if err := o.backend.Save(ctx, OutboxKey, data); err != nil {
		return fmt.Errorf("%w: save outbox: %v", utils.ErrLocalCache, err)
	}
	return nil
}
