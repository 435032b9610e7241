package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

// MedicineAPI wraps the catalog endpoints, including the seller-side
// writes used by the seller dashboard.
type MedicineAPI struct{ c *Client }

func NewMedicineAPI(c *Client) *MedicineAPI { return &MedicineAPI{c: c} }

// ListQuery narrows a catalog listing. Zero values are omitted.
type ListQuery struct {
	Search   string
	Category string
	Page     int
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

func (m *MedicineAPI) List(ctx context.Context, q ListQuery) ([]Medicine, error) {
	var out []Medicine
	if err := m.c.do(ctx, http.MethodGet, "medicines", nil, &out, WithQuery(q.values())); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MedicineAPI) Get(ctx context.Context, id string) (*MedicineDetail, error) {
	var out MedicineDetail
	if err := m.c.do(ctx, http.MethodGet, "medicines/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MedicineAPI) Categories(ctx context.Context) ([]string, error) {
	var out []string
	if err := m.c.do(ctx, http.MethodGet, "medicines/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitReview posts a review for a medicine on behalf of the
// authenticated customer.
func (m *MedicineAPI) SubmitReview(ctx context.Context, medicineID string, rating int, comment string) (*Review, error) {
	req := struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment,omitempty"`
	}{Rating: rating, Comment: comment}

	var out Review
	if err := m.c.do(ctx, http.MethodPost, "medicines/"+medicineID+"/review", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MedicineInput is the seller-side create/update payload.
type MedicineInput struct {
	Name        string          `json:"name"`
	GenericName string          `json:"generic_name,omitempty"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url,omitempty"`
}

func (m *MedicineAPI) Create(ctx context.Context, in MedicineInput) (*Medicine, error) {
	var out Medicine
	if err := m.c.do(ctx, http.MethodPost, "medicines", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MedicineAPI) Update(ctx context.Context, id string, in MedicineInput) (*Medicine, error) {
	var out Medicine
	if err := m.c.do(ctx, http.MethodPut, "medicines/"+id, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MedicineAPI) Delete(ctx context.Context, id string) error {
	return m.c.do(ctx, http.MethodDelete, "medicines/"+id, nil, nil)
}
