package orders

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/example/pharmacy-storefront/internal/backend"
	"github.com/example/pharmacy-storefront/internal/cartstore"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrCheckoutInFlight     = errors.New("a checkout is already in progress")
	ErrConfirmationRequired = errors.New("this action requires explicit confirmation")
	ErrInvalidAddress       = errors.New("shipping address is required")
	ErrInvalidPhone         = errors.New("phone number is required")
	ErrInvalidPayment       = errors.New("unknown payment method")
	ErrInvalidTransition    = errors.New("order cannot move to that status")
)

// Payment method labels. Selection only; no processing happens here.
const (
	PaymentCashOnDelivery = "CASH_ON_DELIVERY"
	PaymentCardOnFile     = "CARD_ON_FILE"
)

// CheckoutForm is what the checkout page collects.
type CheckoutForm struct {
	ShippingAddress string
	Phone           string
	PaymentMethod   string
}

func (f CheckoutForm) validate() error {
	if strings.TrimSpace(f.ShippingAddress) == "" {
		return ErrInvalidAddress
	}
	if strings.TrimSpace(f.Phone) == "" {
		return ErrInvalidPhone
	}
	switch f.PaymentMethod {
	case PaymentCashOnDelivery, PaymentCardOnFile:
		return nil
	default:
		return ErrInvalidPayment
	}
}

// Service drives checkout and order tracking. The cart store is
// cleared only after the backend confirms the order exists.
type Service struct {
	api   *backend.OrderAPI
	store *cartstore.Store

	checkoutBusy atomic.Bool
}

func NewService(api *backend.OrderAPI, store *cartstore.Store) *Service {
	return &Service{api: api, store: store}
}

// Checkout places an order from the current cart. An empty cart or an
// invalid form is rejected before any network call, and a second
// checkout while one is outstanding is refused.
func (s *Service) Checkout(ctx context.Context, form CheckoutForm) (*backend.Order, error) {
	if err := form.validate(); err != nil {
		return nil, err
	}

	cart := s.store.Snapshot()
	if len(cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	if !s.checkoutBusy.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInFlight
	}
	defer s.checkoutBusy.Store(false)

	items := make([]backend.PlaceOrderItem, len(cart.Lines))
	for i, l := range cart.Lines {
		items[i] = backend.PlaceOrderItem{MedicineID: l.MedicineID, Quantity: l.Quantity}
	}

	order, err := s.api.Place(ctx, backend.PlaceOrderRequest{
		Items:           items,
		ShippingAddress: form.ShippingAddress,
		Phone:           form.Phone,
		PaymentMethod:   form.PaymentMethod,
	}, uuid.NewString())
	if err != nil {
		return nil, err
	}

	s.store.Clear()
	return order, nil
}

func (s *Service) List(ctx context.Context) ([]backend.Order, error) {
	return s.api.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*backend.Order, error) {
	return s.api.Get(ctx, id)
}

// Cancel is destructive and therefore gated on explicit confirmation;
// without it the request never leaves the client.
func (s *Service) Cancel(ctx context.Context, id string, confirmed bool) (*backend.Order, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	return s.api.Cancel(ctx, id)
}

// UpdateStatus requests a seller/admin transition, checking the
// transition table first so dashboards don't fire doomed requests.
// The server's verdict still overrides.
func (s *Service) UpdateStatus(ctx context.Context, id string, from, to Status) (*backend.Order, error) {
	if !CanTransition(from, to) {
		return nil, ErrInvalidTransition
	}
	return s.api.UpdateStatus(ctx, id, string(to))
}
