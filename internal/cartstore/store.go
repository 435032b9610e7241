package cartstore

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/pharmacy-storefront/internal/storage"
)

var (
	ErrQuantityTooLow = errors.New("quantity must be at least 1")
)

// StockLimitError reports an attempt to push a line past its
// snapshotted stock ceiling. The ceiling is a point-in-time value;
// the backend remains the final authority.
type StockLimitError struct {
	Limit     int // snapshotted available stock for the medicine
	Remaining int // units that can still be added before hitting the limit
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("only %d in stock", e.Limit)
}

// Line is one distinct medicine in the cart. ID is assigned by the
// backend; UnitPrice and StockLimit are snapshots taken when the line
// was last fetched.
type Line struct {
	ID         string          `json:"id"`
	MedicineID string          `json:"medicine_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	StockLimit int             `json:"stock_limit"`
}

func (l Line) subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// State is the full cart state. Total and ItemCount are derived from
// Lines and must never be written except through the reducers below.
type State struct {
	Lines     []Line          `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func emptyState() State {
	return State{Lines: []Line{}, Total: decimal.Zero, ItemCount: 0}
}

func (s State) clone() State {
	out := s
	out.Lines = make([]Line, len(s.Lines))
	copy(out.Lines, s.Lines)
	return out
}

// ============================================
// Reducers
// ============================================
//
// Each reducer takes the current state and returns the next one
// without mutating its input, so the bookkeeping can be tested as
// plain functions, independent of persistence and locking.

func reduceSetCart(lines []Line, total decimal.Decimal, itemCount int) State {
	next := State{Lines: make([]Line, len(lines)), Total: total, ItemCount: itemCount}
	copy(next.Lines, lines)
	if next.Lines == nil {
		next.Lines = []Line{}
	}
	return next
}

// reduceAddLine merges by medicine: a cart holds at most one line per
// medicine, so adding the same medicine again bumps the existing line.
// Total and ItemCount move by the line's delta, not a full recompute.
func reduceAddLine(s State, l Line) (State, error) {
	if l.Quantity < 1 {
		return s, ErrQuantityTooLow
	}

	next := s.clone()
	for i, existing := range next.Lines {
		if existing.MedicineID != l.MedicineID {
			continue
		}

		merged := existing
		merged.Quantity += l.Quantity
		merged.UnitPrice = l.UnitPrice
		if l.StockLimit > 0 {
			merged.StockLimit = l.StockLimit
		}
		if l.ID != "" {
			merged.ID = l.ID
		}
		if merged.StockLimit > 0 && merged.Quantity > merged.StockLimit {
			return s, &StockLimitError{
				Limit:     merged.StockLimit,
				Remaining: merged.StockLimit - existing.Quantity,
			}
		}

		next.Lines[i] = merged
		next.Total = next.Total.Add(merged.subtotal()).Sub(existing.subtotal())
		next.ItemCount += l.Quantity
		return next, nil
	}

	if l.StockLimit > 0 && l.Quantity > l.StockLimit {
		return s, &StockLimitError{Limit: l.StockLimit, Remaining: l.StockLimit}
	}

	next.Lines = append(next.Lines, l)
	next.Total = next.Total.Add(l.subtotal())
	next.ItemCount += l.Quantity
	return next, nil
}

// reduceUpdateQuantity applies quantity = q to the line with the given
// id. An unknown id is a silent no-op: the line may have been removed
// by a concurrent fetch, and that is not the caller's fault.
func reduceUpdateQuantity(s State, id string, q int) (State, error) {
	idx := -1
	for i, l := range s.Lines {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return s, nil
	}
	if q < 1 {
		return s, ErrQuantityTooLow
	}

	old := s.Lines[idx]
	if old.StockLimit > 0 && q > old.StockLimit {
		return s, &StockLimitError{Limit: old.StockLimit, Remaining: old.StockLimit}
	}

	next := s.clone()
	updated := old
	updated.Quantity = q
	next.Lines[idx] = updated
	next.Total = next.Total.Add(updated.subtotal()).Sub(old.subtotal())
	next.ItemCount += q - old.Quantity
	return next, nil
}

// reduceRemoveLine drops the line and subtracts its contribution.
// No-op if the id is unknown.
func reduceRemoveLine(s State, id string) State {
	for i, l := range s.Lines {
		if l.ID != id {
			continue
		}
		next := s.clone()
		next.Lines = append(next.Lines[:i], next.Lines[i+1:]...)
		next.Total = next.Total.Sub(l.subtotal())
		next.ItemCount -= l.Quantity
		return next
	}
	return s
}

func reduceClear(State) State {
	return emptyState()
}

// ============================================
// Store
// ============================================

// persistedCart is the durable envelope. Owner records which user the
// cart belongs to, so a different user logging in on the same device
// never inherits someone else's cart.
type persistedCart struct {
	Owner string `json:"owner"`
	State State  `json:"state"`
}

// Store is the single shared holder of cart state. Views read
// snapshots and subscribe for changes; only the sync layer and the
// reducer-backed operations below ever write.
type Store struct {
	mu    sync.Mutex
	state State
	owner string
	local *storage.Local
	subs  []func(State)
}

// New creates a Store, restoring any state persisted under
// storage.KeyCart. local may be nil for an in-memory store.
func New(local *storage.Local) *Store {
	s := &Store{state: emptyState(), local: local}
	if local == nil {
		return s
	}

	var p persistedCart
	ok, err := local.Get(storage.KeyCart, &p)
	if err != nil {
		log.Printf("[Store] Failed to restore cart, starting empty: %v", err)
		return s
	}
	if ok {
		s.state = p.State
		s.owner = p.Owner
		if s.state.Lines == nil {
			s.state.Lines = []Line{}
		}
	}
	return s
}

// Snapshot returns a copy of the current state, safe to hand to views.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to be called with a state copy after every
// mutation. Used by composite views (navbar badge) that must stay in
// step with the cart page.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// BindOwner declares which user the cart belongs to from now on. If
// the persisted cart was owned by someone else, it is discarded before
// the new owner sees it.
func (s *Store) BindOwner(userID string) {
	s.mu.Lock()
	if s.owner != "" && s.owner != userID {
		log.Printf("[Store] Cart owner changed, discarding persisted cart")
		s.state = emptyState()
	}
	s.owner = userID
	s.commitLocked()
}

// SetCart replaces the whole cart with server-provided state. The
// input is trusted as internally consistent; this is the reconciliation
// path after a full fetch.
func (s *Store) SetCart(lines []Line, total decimal.Decimal, itemCount int) {
	s.mu.Lock()
	s.state = reduceSetCart(lines, total, itemCount)
	s.commitLocked()
}

// AddLine merges a line into the cart. See reduceAddLine.
func (s *Store) AddLine(l Line) error {
	s.mu.Lock()
	next, err := reduceAddLine(s.state, l)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	s.commitLocked()
	return nil
}

// UpdateLineQuantity sets a line's quantity. See reduceUpdateQuantity.
func (s *Store) UpdateLineQuantity(id string, quantity int) error {
	s.mu.Lock()
	next, err := reduceUpdateQuantity(s.state, id, quantity)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	s.commitLocked()
	return nil
}

// RemoveLine removes a line. No-op if absent.
func (s *Store) RemoveLine(id string) {
	s.mu.Lock()
	s.state = reduceRemoveLine(s.state, id)
	s.commitLocked()
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.state = reduceClear(s.state)
	s.commitLocked()
}

// Purge empties the cart, forgets its owner and removes the durable
// copy. Used on logout and on session teardown.
func (s *Store) Purge() {
	s.mu.Lock()
	s.state = emptyState()
	s.owner = ""
	snapshot := s.state.clone()
	subs := s.subs
	s.mu.Unlock()

	if s.local != nil {
		if err := s.local.Delete(storage.KeyCart); err != nil {
			log.Printf("[Store] Failed to delete persisted cart: %v", err)
		}
	}
	for _, fn := range subs {
		fn(snapshot)
	}
}

// commitLocked persists the state and notifies subscribers. It is
// entered with the mutex held and releases it before doing IO or
// calling out, so a subscriber reading the store cannot deadlock.
func (s *Store) commitLocked() {
	snapshot := s.state.clone()
	owner := s.owner
	subs := s.subs
	s.mu.Unlock()

	if s.local != nil {
		if err := s.local.Put(storage.KeyCart, persistedCart{Owner: owner, State: snapshot}); err != nil {
			log.Printf("[Store] Failed to persist cart: %v", err)
		}
	}
	for _, fn := range subs {
		fn(snapshot)
	}
}
