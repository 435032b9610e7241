package cartstore

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pharmacy-storefront/internal/storage"
)

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func line(id, medicineID string, qty int, unitPrice string, stock int) Line {
	return Line{
		ID:         id,
		MedicineID: medicineID,
		Quantity:   qty,
		UnitPrice:  price(unitPrice),
		StockLimit: stock,
	}
}

// derived recomputes total and item count from scratch, the definition
// the incremental bookkeeping must always agree with.
func derived(s State) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, l := range s.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}
	return total, count
}

func assertConsistent(t *testing.T, s State) {
	t.Helper()
	total, count := derived(s)
	assert.True(t, s.Total.Equal(total), "total %s drifted from lines sum %s", s.Total, total)
	assert.Equal(t, count, s.ItemCount, "item count drifted from lines sum")
}

// ============================================
// AddLine
// ============================================

func TestStore_AddLine_New(t *testing.T) {
	s := New(nil)

	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))

	got := s.Snapshot()
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Total.Equal(price("100")))
	assert.Equal(t, 2, got.ItemCount)
}

func TestStore_AddLine_MergesSameMedicine(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))

	require.NoError(t, s.AddLine(line("", "m1", 1, "50", 0)))

	got := s.Snapshot()
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 3, got.Lines[0].Quantity)
	assert.True(t, got.Total.Equal(price("150")))
	assert.Equal(t, 3, got.ItemCount)
}

func TestStore_AddLine_MergeRefreshesPriceWithoutDrift(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))

	// Price changed server-side between adds; the merged line adopts
	// the fresh snapshot and the total tracks the line exactly.
	require.NoError(t, s.AddLine(line("l1", "m1", 1, "60", 10)))

	got := s.Snapshot()
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].UnitPrice.Equal(price("60")))
	assertConsistent(t, got)
}

func TestStore_AddLine_RejectsZeroQuantity(t *testing.T) {
	s := New(nil)
	before := s.Snapshot()

	err := s.AddLine(line("l1", "m1", 0, "50", 10))

	assert.ErrorIs(t, err, ErrQuantityTooLow)
	assert.Equal(t, before, s.Snapshot())
}

func TestStore_AddLine_RejectsOverStock(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 4, "50", 5)))
	before := s.Snapshot()

	err := s.AddLine(line("", "m1", 2, "50", 5))

	var stockErr *StockLimitError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Limit)
	assert.Equal(t, 1, stockErr.Remaining)
	assert.Equal(t, before, s.Snapshot())
}

// ============================================
// UpdateLineQuantity
// ============================================

func TestStore_UpdateLineQuantity(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))

	require.NoError(t, s.UpdateLineQuantity("l1", 5))

	got := s.Snapshot()
	assert.Equal(t, 5, got.Lines[0].Quantity)
	assert.True(t, got.Total.Equal(price("250")))
	assert.Equal(t, 5, got.ItemCount)
}

func TestStore_UpdateLineQuantity_UnknownIDIsNoOp(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))
	before := s.Snapshot()

	require.NoError(t, s.UpdateLineQuantity("ghost", 7))

	assert.Equal(t, before, s.Snapshot())
}

func TestStore_UpdateLineQuantity_RejectsBelowOne(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))
	before := s.Snapshot()

	err := s.UpdateLineQuantity("l1", 0)

	assert.ErrorIs(t, err, ErrQuantityTooLow)
	assert.Equal(t, before, s.Snapshot())
}

func TestStore_UpdateLineQuantity_RejectsOverStock(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 5)))
	before := s.Snapshot()

	err := s.UpdateLineQuantity("l1", 6)

	var stockErr *StockLimitError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Limit)
	assert.Equal(t, before, s.Snapshot())
}

// ============================================
// RemoveLine / Clear / SetCart
// ============================================

func TestStore_RemoveLine(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))
	require.NoError(t, s.AddLine(line("l2", "m2", 1, "30", 10)))

	s.RemoveLine("l1")

	got := s.Snapshot()
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "l2", got.Lines[0].ID)
	assert.True(t, got.Total.Equal(price("30")))
	assert.Equal(t, 1, got.ItemCount)
}

func TestStore_RemoveLine_MissingFromEmptyCart(t *testing.T) {
	s := New(nil)

	assert.NotPanics(t, func() { s.RemoveLine("nonexistent") })

	got := s.Snapshot()
	assert.Empty(t, got.Lines)
	assert.True(t, got.Total.IsZero())
	assert.Equal(t, 0, got.ItemCount)
}

func TestStore_Clear(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))

	s.Clear()

	got := s.Snapshot()
	assert.Empty(t, got.Lines)
	assert.True(t, got.Total.IsZero())
	assert.Equal(t, 0, got.ItemCount)
}

func TestStore_SetCart_TrustsInput(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddLine(line("stale", "m9", 9, "1", 100)))

	lines := []Line{line("l1", "m1", 2, "50", 10)}
	s.SetCart(lines, price("100"), 2)

	got := s.Snapshot()
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "l1", got.Lines[0].ID)
	assert.True(t, got.Total.Equal(price("100")))
	assert.Equal(t, 2, got.ItemCount)
}

// ============================================
// Derivation guarantee under random op sequences
// ============================================

// TestStore_DerivedFieldsNeverDrift drives the reducers with long
// random sequences of mutations and checks after every single step
// that total and item count still equal the sums over the lines.
func TestStore_DerivedFieldsNeverDrift(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	medicines := []string{"m1", "m2", "m3", "m4"}
	prices := []string{"5", "12.50", "30", "99.99"}

	for seq := 0; seq < 50; seq++ {
		s := New(nil)
		lineSeq := 0

		for op := 0; op < 200; op++ {
			switch rng.Intn(4) {
			case 0:
				i := rng.Intn(len(medicines))
				lineSeq++
				_ = s.AddLine(line(
					fmt.Sprintf("l%d", lineSeq),
					medicines[i],
					rng.Intn(4), // 0 is rejected, that is part of the property
					prices[i],
					8,
				))
			case 1:
				got := s.Snapshot()
				if len(got.Lines) > 0 {
					target := got.Lines[rng.Intn(len(got.Lines))].ID
					_ = s.UpdateLineQuantity(target, rng.Intn(10)) // may reject, may no-op
				} else {
					_ = s.UpdateLineQuantity("ghost", rng.Intn(10))
				}
			case 2:
				got := s.Snapshot()
				if len(got.Lines) > 0 && rng.Intn(2) == 0 {
					s.RemoveLine(got.Lines[rng.Intn(len(got.Lines))].ID)
				} else {
					s.RemoveLine("ghost")
				}
			case 3:
				if rng.Intn(10) == 0 {
					s.Clear()
				}
			}

			assertConsistent(t, s.Snapshot())
		}
	}
}

// ============================================
// Persistence and ownership
// ============================================

func TestStore_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	require.NoError(t, err)

	s1 := New(local)
	s1.BindOwner("user-1")
	require.NoError(t, s1.AddLine(line("l1", "m1", 2, "50", 10)))

	local2, err := storage.NewLocal(dir)
	require.NoError(t, err)
	s2 := New(local2)

	got := s2.Snapshot()
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.True(t, got.Total.Equal(price("100")))
	assertConsistent(t, got)
}

func TestStore_BindOwner_DiscardsForeignCart(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	require.NoError(t, err)

	s1 := New(local)
	s1.BindOwner("user-1")
	require.NoError(t, s1.AddLine(line("l1", "m1", 2, "50", 10)))

	local2, err := storage.NewLocal(dir)
	require.NoError(t, err)
	s2 := New(local2)
	s2.BindOwner("user-2")

	got := s2.Snapshot()
	assert.Empty(t, got.Lines)
	assert.Equal(t, 0, got.ItemCount)
}

func TestStore_BindOwner_SameOwnerKeepsCart(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	s := New(local)
	s.BindOwner("user-1")
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))
	s.BindOwner("user-1")

	assert.Len(t, s.Snapshot().Lines, 1)
}

func TestStore_Purge_RemovesDurableCopy(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	require.NoError(t, err)

	s := New(local)
	s.BindOwner("user-1")
	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))

	s.Purge()

	local2, err := storage.NewLocal(dir)
	require.NoError(t, err)
	s2 := New(local2)
	assert.Empty(t, s2.Snapshot().Lines)
}

func TestStore_SubscriberSeesEveryMutation(t *testing.T) {
	s := New(nil)

	var seen []int
	s.Subscribe(func(st State) { seen = append(seen, st.ItemCount) })

	require.NoError(t, s.AddLine(line("l1", "m1", 2, "50", 10)))
	require.NoError(t, s.UpdateLineQuantity("l1", 3))
	s.RemoveLine("l1")

	assert.Equal(t, []int{2, 3, 0}, seen)
}
