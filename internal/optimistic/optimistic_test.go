package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Items []string
	Count int
}

func cloneDoc(d doc) doc {
	out := d
	out.Items = append([]string(nil), d.Items...)
	return out
}

func newDocCache(initial doc) *Cache[doc] {
	c := NewCache(cloneDoc)
	c.Set(initial)
	return c
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := newDocCache(doc{Items: []string{"a"}, Count: 1})

	got, ok := c.Get()
	require.True(t, ok)
	got.Items[0] = "mutated"

	again, _ := c.Get()
	assert.Equal(t, "a", again.Items[0], "snapshot must not alias cached state")
}

func TestUpdate_SuccessCommitsAuthoritativeValue(t *testing.T) {
	c := newDocCache(doc{Items: []string{"a"}, Count: 1})

	err := Update[doc]{
		Cache: c,
		Synthesize: func(d doc) doc {
			d.Items = append(d.Items, "pending-b")
			d.Count++
			return d
		},
		Mutate: func(context.Context) error { return nil },
		Refetch: func(context.Context) (doc, error) {
			return doc{Items: []string{"a", "b"}, Count: 2}, nil
		},
	}.Run(context.Background())

	require.NoError(t, err)
	got, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got.Items)
	assert.NotContains(t, got.Items, "pending-b", "provisional identity must be gone after refetch")
}

func TestUpdate_FailureRestoresExactSnapshot(t *testing.T) {
	initial := doc{Items: []string{"a"}, Count: 1}
	c := newDocCache(initial)

	boom := errors.New("server rejected")
	err := Update[doc]{
		Cache: c,
		Synthesize: func(d doc) doc {
			d.Items = append(d.Items, "pending-b")
			d.Count++
			return d
		},
		Mutate:  func(context.Context) error { return boom },
		Refetch: func(context.Context) (doc, error) { t.Fatal("refetch must not run on failure"); return doc{}, nil },
	}.Run(context.Background())

	assert.ErrorIs(t, err, boom)
	got, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, initial, got, "rollback must restore the literal pre-mutation snapshot")
}

func TestUpdate_SynthesizedValueVisibleBeforeConfirmation(t *testing.T) {
	c := newDocCache(doc{Items: []string{"a"}, Count: 1})

	var seenDuringMutate doc
	err := Update[doc]{
		Cache: c,
		Synthesize: func(d doc) doc {
			d.Items = append(d.Items, "pending-b")
			d.Count++
			return d
		},
		Mutate: func(context.Context) error {
			seenDuringMutate, _ = c.Get()
			return nil
		},
		Refetch: func(context.Context) (doc, error) {
			return doc{Items: []string{"a", "b"}, Count: 2}, nil
		},
	}.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "pending-b"}, seenDuringMutate.Items)
	assert.Equal(t, 2, seenDuringMutate.Count, "synthesized state must be self-consistent")
}

func TestUpdate_RefetchFailureInvalidatesInsteadOfLying(t *testing.T) {
	c := newDocCache(doc{Items: []string{"a"}, Count: 1})

	err := Update[doc]{
		Cache: c,
		Synthesize: func(d doc) doc {
			d.Items = append(d.Items, "pending-b")
			d.Count++
			return d
		},
		Mutate:  func(context.Context) error { return nil },
		Refetch: func(context.Context) (doc, error) { return doc{}, errors.New("network") },
	}.Run(context.Background())

	require.NoError(t, err, "the mutation itself committed")
	_, ok := c.Get()
	assert.False(t, ok, "cache must not keep the provisional value")
}

func TestUpdate_EmptyCacheJustMutates(t *testing.T) {
	c := NewCache(cloneDoc)

	mutated := false
	err := Update[doc]{
		Cache:      c,
		Synthesize: func(d doc) doc { t.Fatal("nothing to synthesize from"); return d },
		Mutate:     func(context.Context) error { mutated = true; return nil },
		Refetch:    func(context.Context) (doc, error) { t.Fatal("no refetch without a cache entry"); return doc{}, nil },
	}.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, mutated)
}
