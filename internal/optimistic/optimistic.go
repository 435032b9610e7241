// Package optimistic implements the snapshot / synthesize / commit-or-
// rollback protocol used by append-then-confirm flows such as review
// submission: the cached read is updated before the server confirms,
// and restored to the literal pre-mutation snapshot if it doesn't.
package optimistic

import (
	"context"
	"log"
	"sync"
)

// Cache holds one cached read value. The snapshot handed out by Get is
// the same type as the committed value, so rollback is a single Set.
type Cache[T any] struct {
	mu    sync.RWMutex
	val   T
	valid bool
	// clone deep-copies a value so a snapshot cannot alias live state.
	// nil means plain value copy is enough.
	clone func(T) T
}

// NewCache builds a cache. clone may be nil when T has no reference
// fields; otherwise it must return a deep copy.
func NewCache[T any](clone func(T) T) *Cache[T] {
	return &Cache[T]{clone: clone}
}

// Get returns a copy of the cached value, if one is present.
func (c *Cache[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		var zero T
		return zero, false
	}
	return c.copyOf(c.val), true
}

// Set replaces the cached value atomically: readers see either the old
// value or the new one, never a mix.
func (c *Cache[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = c.copyOf(v)
	c.valid = true
}

// Invalidate drops the cached value so the next read refetches.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.val = zero
	c.valid = false
}

func (c *Cache[T]) copyOf(v T) T {
	if c.clone == nil {
		return v
	}
	return c.clone(v)
}

// Update describes one optimistic mutation against a cache.
type Update[T any] struct {
	Cache *Cache[T]
	// Synthesize derives the provisional post-mutation value from the
	// snapshot. It must return a fully self-consistent value: derived
	// fields (counts, averages) updated together with the list they
	// are derived from.
	Synthesize func(T) T
	// Mutate performs the real request.
	Mutate func(context.Context) error
	// Refetch loads the authoritative value after a successful
	// mutation, replacing any provisional identities.
	Refetch func(context.Context) (T, error)
}

// Run executes the protocol:
//
//  1. capture the pre-mutation snapshot
//  2. write the synthesized value into the cache
//  3. issue the mutation
//  4. on success, refetch and commit the authoritative value
//  5. on any failure, restore the exact snapshot and return the error
//
// Every failure class takes the same rollback path; callers
// differentiate messages by inspecting the returned error.
func (u Update[T]) Run(ctx context.Context) error {
	snapshot, ok := u.Cache.Get()
	if !ok {
		// Nothing cached to speculate on; just do the mutation.
		return u.Mutate(ctx)
	}

	u.Cache.Set(u.Synthesize(snapshot))

	if err := u.Mutate(ctx); err != nil {
		u.Cache.Set(snapshot)
		return err
	}

	fresh, err := u.Refetch(ctx)
	if err != nil {
		// The mutation committed but we could not confirm its final
		// shape; drop the provisional value so the next read asks the
		// server instead of showing a temporary identity forever.
		log.Printf("[Optimistic] Refetch after commit failed, invalidating cache: %v", err)
		u.Cache.Invalidate()
		return nil
	}
	u.Cache.Set(fresh)
	return nil
}
