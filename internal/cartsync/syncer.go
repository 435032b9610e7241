package cartsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/example/pharmacy-storefront/internal/backend"
	"github.com/example/pharmacy-storefront/internal/cartstore"
)

var (
	// ErrClosed is returned for mutations submitted after shutdown began.
	ErrClosed = errors.New("cart sync is shut down")
	// ErrQueueFull is returned instead of letting a backlog grow without
	// bound; past queueDepth the UI has gone badly wrong.
	ErrQueueFull = errors.New("cart mutation queue is full")
)

// Syncer is the only path between the local cart store and the
// backend's authoritative cart. Every mutation runs on a single worker
// so two rapid clicks can never commit out of order, and every
// mutation carries an idempotency key so a retry is safe.
type Syncer struct {
	store *cartstore.Store
	api   *backend.CartAPI

	jobs    chan job
	pending atomic.Int32
	stopped chan struct{}

	// mu orders enqueues against Close so a late caller gets an error
	// instead of a send on a closed channel.
	mu     sync.Mutex
	closed bool
}

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

// queueDepth bounds how many mutations can wait.
const queueDepth = 64

func New(store *cartstore.Store, api *backend.CartAPI) *Syncer {
	s := &Syncer{
		store:   store,
		api:     api,
		jobs:    make(chan job, queueDepth),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the worker after draining queued jobs. Safe to call more
// than once.
func (s *Syncer) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()
	<-s.stopped
}

// Busy reports whether any mutation is queued or in flight. Views use
// it to disable duplicate submission.
func (s *Syncer) Busy() bool {
	return s.pending.Load() > 0
}

func (s *Syncer) run() {
	defer close(s.stopped)
	for j := range s.jobs {
		// The caller may have navigated away while this job waited
		// its turn; don't issue a request nobody wants anymore.
		if err := j.ctx.Err(); err != nil {
			s.pending.Add(-1)
			j.result <- err
			continue
		}
		err := j.fn(j.ctx)
		s.pending.Add(-1)
		j.result <- err
	}
}

func (s *Syncer) enqueue(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, result: make(chan error, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.pending.Add(1)
	select {
	case s.jobs <- j:
		s.mu.Unlock()
	default:
		s.pending.Add(-1)
		s.mu.Unlock()
		return ErrQueueFull
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		// The job still runs (result channel is buffered); the caller
		// just stops waiting for it.
		return ctx.Err()
	}
}

// FetchCart pulls the authoritative cart and replaces local state. On
// failure the store is left untouched: stale-but-available beats a
// blanked UI.
func (s *Syncer) FetchCart(ctx context.Context) error {
	return s.enqueue(ctx, s.fetch)
}

func (s *Syncer) fetch(ctx context.Context) error {
	cart, err := s.api.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch cart: %w", err)
	}
	s.store.SetCart(toStoreLines(cart.Lines), cart.Total, cart.ItemCount)
	return nil
}

// AddToCart adds quantity units of a medicine. stock is the snapshot
// from the already-loaded product detail; the check against it is a
// courtesy to the user, the server still has the last word.
func (s *Syncer) AddToCart(ctx context.Context, medicineID string, quantity, stock int) error {
	if quantity < 1 {
		return cartstore.ErrQuantityTooLow
	}
	if stock > 0 {
		remaining := stock - s.quantityInCart(medicineID)
		if quantity > remaining {
			return &cartstore.StockLimitError{Limit: stock, Remaining: remaining}
		}
	}

	return s.enqueue(ctx, func(ctx context.Context) error {
		line, err := s.api.Add(ctx, medicineID, quantity, uuid.NewString())
		if err != nil {
			return err
		}
		if err := s.store.AddLine(toStoreLine(*line)); err != nil {
			// Local merge disagreed with the server (stale snapshot);
			// the full state wins over the delta.
			log.Printf("[Sync] Local merge rejected (%v), re-fetching cart", err)
			return s.fetch(ctx)
		}
		return nil
	})
}

// UpdateQuantity sets a line's quantity and then re-fetches the whole
// cart rather than trusting the client-computed delta, in case another
// tab or device moved the cart in the meantime.
func (s *Syncer) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity < 1 {
		return cartstore.ErrQuantityTooLow
	}
	if limit := s.stockLimitFor(lineID); limit > 0 && quantity > limit {
		return &cartstore.StockLimitError{Limit: limit, Remaining: limit}
	}

	return s.enqueue(ctx, func(ctx context.Context) error {
		if _, err := s.api.UpdateLine(ctx, lineID, quantity, uuid.NewString()); err != nil {
			return err
		}
		return s.fetch(ctx)
	})
}

// RemoveLine deletes a line; the store is touched only after the
// server confirms.
func (s *Syncer) RemoveLine(ctx context.Context, lineID string) error {
	return s.enqueue(ctx, func(ctx context.Context) error {
		if err := s.api.RemoveLine(ctx, lineID); err != nil {
			return err
		}
		s.store.RemoveLine(lineID)
		return nil
	})
}

// ClearCart empties the cart; the store is touched only after the
// server confirms.
func (s *Syncer) ClearCart(ctx context.Context) error {
	return s.enqueue(ctx, func(ctx context.Context) error {
		if err := s.api.Clear(ctx); err != nil {
			return err
		}
		s.store.Clear()
		return nil
	})
}

func (s *Syncer) quantityInCart(medicineID string) int {
	for _, l := range s.store.Snapshot().Lines {
		if l.MedicineID == medicineID {
			return l.Quantity
		}
	}
	return 0
}

func (s *Syncer) stockLimitFor(lineID string) int {
	for _, l := range s.store.Snapshot().Lines {
		if l.ID == lineID {
			return l.StockLimit
		}
	}
	return 0
}

func toStoreLine(l backend.CartLine) cartstore.Line {
	return cartstore.Line{
		ID:         l.ID,
		MedicineID: l.MedicineID,
		Quantity:   l.Quantity,
		UnitPrice:  l.UnitPrice,
		StockLimit: l.StockLimit,
	}
}

func toStoreLines(lines []backend.CartLine) []cartstore.Line {
	out := make([]cartstore.Line, len(lines))
	for i, l := range lines {
		out[i] = toStoreLine(l)
	}
	return out
}
