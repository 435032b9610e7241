package backend

import (
	"context"
	"net/http"
)

// CartAPI wraps the backend cart endpoints. Mutations accept an
// idempotency key so a retried request cannot double-apply.
type CartAPI struct{ c *Client }

func NewCartAPI(c *Client) *CartAPI { return &CartAPI{c: c} }

func (a *CartAPI) Get(ctx context.Context) (*Cart, error) {
	var out Cart
	if err := a.c.do(ctx, http.MethodGet, "cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Add creates or merges a line for the medicine and returns the
// resulting line as the server sees it.
func (a *CartAPI) Add(ctx context.Context, medicineID string, quantity int, idempotencyKey string) (*CartLine, error) {
	req := struct {
		MedicineID string `json:"medicine_id"`
		Quantity   int    `json:"quantity"`
	}{MedicineID: medicineID, Quantity: quantity}

	var out CartLine
	err := a.c.do(ctx, http.MethodPost, "cart", req, &out, WithIdempotencyKey(idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *CartAPI) UpdateLine(ctx context.Context, lineID string, quantity int, idempotencyKey string) (*CartLine, error) {
	req := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}

	var out CartLine
	err := a.c.do(ctx, http.MethodPut, "cart/"+lineID, req, &out, WithIdempotencyKey(idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *CartAPI) RemoveLine(ctx context.Context, lineID string) error {
	return a.c.do(ctx, http.MethodDelete, "cart/"+lineID, nil, nil)
}

func (a *CartAPI) Clear(ctx context.Context) error {
	return a.c.do(ctx, http.MethodDelete, "cart", nil, nil)
}
