package backend

import (
	"context"
	"net/http"
)

// OrderAPI wraps order placement, tracking and status transitions.
type OrderAPI struct{ c *Client }

func NewOrderAPI(c *Client) *OrderAPI { return &OrderAPI{c: c} }

// PlaceOrderItem references a medicine by id; the server prices it at
// commit time.
type PlaceOrderItem struct {
	MedicineID string `json:"medicine_id"`
	Quantity   int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	Items           []PlaceOrderItem `json:"items"`
	ShippingAddress string           `json:"shipping_address"`
	Phone           string           `json:"phone"`
	PaymentMethod   string           `json:"payment_method"`
}

func (a *OrderAPI) Place(ctx context.Context, req PlaceOrderRequest, idempotencyKey string) (*Order, error) {
	var out Order
	err := a.c.do(ctx, http.MethodPost, "orders", req, &out, WithIdempotencyKey(idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *OrderAPI) List(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := a.c.do(ctx, http.MethodGet, "orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *OrderAPI) Get(ctx context.Context, id string) (*Order, error) {
	var out Order
	if err := a.c.do(ctx, http.MethodGet, "orders/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel asks the server to cancel; the returned order reflects the
// server's decision, which may refuse the transition.
func (a *OrderAPI) Cancel(ctx context.Context, id string) (*Order, error) {
	var out Order
	if err := a.c.do(ctx, http.MethodPatch, "orders/"+id+"/cancel", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus is the seller/admin transition request.
func (a *OrderAPI) UpdateStatus(ctx context.Context, id, status string) (*Order, error) {
	req := struct {
		Status string `json:"status"`
	}{Status: status}

	var out Order
	if err := a.c.do(ctx, http.MethodPatch, "orders/"+id+"/status", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
