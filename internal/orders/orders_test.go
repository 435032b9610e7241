package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pharmacy-storefront/internal/backend"
	"github.com/example/pharmacy-storefront/internal/cartstore"
)

// ============================================
// Status table
// ============================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPlaced, StatusProcessing, true},
		{StatusPlaced, StatusCancelled, true},
		{StatusPlaced, StatusDelivered, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCancellable(t *testing.T) {
	assert.True(t, Cancellable(StatusPlaced))
	assert.True(t, Cancellable(StatusProcessing))
	assert.False(t, Cancellable(StatusShipped))
	assert.False(t, Cancellable(StatusDelivered))
	assert.False(t, Cancellable(StatusCancelled))
}

// ============================================
// Service
// ============================================

type fakeOrderBackend struct {
	mu       sync.Mutex
	requests []string
	status   int // non-zero forces this status
	gate     chan struct{}
}

func (f *fakeOrderBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":"simulated"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(backend.Order{
		ID:     "o1",
		Number: "ORD-1001",
		Status: string(StatusPlaced),
		Total:  decimal.NewFromInt(100),
	})
}

func (f *fakeOrderBackend) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestOrders(t *testing.T, fake *fakeOrderBackend) (*Service, *cartstore.Store) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL+"/", 5*time.Second)
	require.NoError(t, err)

	store := cartstore.New(nil)
	return NewService(backend.NewOrderAPI(client), store), store
}

func validForm() CheckoutForm {
	return CheckoutForm{
		ShippingAddress: "12 Hill Road, Pune",
		Phone:           "+91-9000000000",
		PaymentMethod:   PaymentCashOnDelivery,
	}
}

func fillCart(t *testing.T, store *cartstore.Store) {
	t.Helper()
	require.NoError(t, store.AddLine(cartstore.Line{
		ID: "l1", MedicineID: "m1", Quantity: 2,
		UnitPrice: decimal.NewFromInt(50), StockLimit: 10,
	}))
}

func TestCheckout_EmptyCartRejectedBeforeNetwork(t *testing.T) {
	fake := &fakeOrderBackend{}
	svc, _ := newTestOrders(t, fake)

	_, err := svc.Checkout(context.Background(), validForm())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, fake.Requests())
}

func TestCheckout_FormValidation(t *testing.T) {
	fake := &fakeOrderBackend{}
	svc, store := newTestOrders(t, fake)
	fillCart(t, store)

	tests := []struct {
		name string
		mod  func(*CheckoutForm)
		want error
	}{
		{"missing address", func(f *CheckoutForm) { f.ShippingAddress = "  " }, ErrInvalidAddress},
		{"missing phone", func(f *CheckoutForm) { f.Phone = "" }, ErrInvalidPhone},
		{"bogus payment", func(f *CheckoutForm) { f.PaymentMethod = "BITCOIN" }, ErrInvalidPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mod(&form)
			_, err := svc.Checkout(context.Background(), form)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, fake.Requests())
}

func TestCheckout_SuccessClearsCart(t *testing.T) {
	fake := &fakeOrderBackend{}
	svc, store := newTestOrders(t, fake)
	fillCart(t, store)

	order, err := svc.Checkout(context.Background(), validForm())

	require.NoError(t, err)
	assert.Equal(t, "ORD-1001", order.Number)
	assert.Empty(t, store.Snapshot().Lines)
	assert.Equal(t, 0, store.Snapshot().ItemCount)
}

func TestCheckout_FailureKeepsCart(t *testing.T) {
	fake := &fakeOrderBackend{status: http.StatusConflict}
	svc, store := newTestOrders(t, fake)
	fillCart(t, store)
	before := store.Snapshot()

	_, err := svc.Checkout(context.Background(), validForm())

	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindConflict))
	assert.Equal(t, before, store.Snapshot())
}

func TestCheckout_SecondSubmitWhileInFlightIsRefused(t *testing.T) {
	fake := &fakeOrderBackend{}
	fake.gate = make(chan struct{})
	svc, store := newTestOrders(t, fake)
	fillCart(t, store)

	first := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(context.Background(), validForm())
		first <- err
	}()

	require.Eventually(t, func() bool {
		_, err := svc.Checkout(context.Background(), validForm())
		return errors.Is(err, ErrCheckoutInFlight)
	}, time.Second, 5*time.Millisecond)

	close(fake.gate)
	require.NoError(t, <-first)
}

func TestCancel_RequiresConfirmation(t *testing.T) {
	fake := &fakeOrderBackend{}
	svc, _ := newTestOrders(t, fake)

	_, err := svc.Cancel(context.Background(), "o1", false)

	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Empty(t, fake.Requests())
}

func TestCancel_Confirmed(t *testing.T) {
	fake := &fakeOrderBackend{}
	svc, _ := newTestOrders(t, fake)

	order, err := svc.Cancel(context.Background(), "o1", true)

	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, []string{"PATCH /orders/o1/cancel"}, fake.Requests())
}

func TestUpdateStatus_RejectsImpossibleTransition(t *testing.T) {
	fake := &fakeOrderBackend{}
	svc, _ := newTestOrders(t, fake)

	_, err := svc.UpdateStatus(context.Background(), "o1", StatusDelivered, StatusShipped)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, fake.Requests())
}

func TestUpdateStatus_ValidTransition(t *testing.T) {
	fake := &fakeOrderBackend{}
	svc, _ := newTestOrders(t, fake)

	_, err := svc.UpdateStatus(context.Background(), "o1", StatusProcessing, StatusShipped)

	require.NoError(t, err)
	assert.Equal(t, []string{"PATCH /orders/o1/status"}, fake.Requests())
}
