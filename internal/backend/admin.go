package backend

import (
	"context"
	"net/http"
)

// AdminAPI wraps the admin dashboard endpoints.
type AdminAPI struct{ c *Client }

func NewAdminAPI(c *Client) *AdminAPI { return &AdminAPI{c: c} }

func (a *AdminAPI) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := a.c.do(ctx, http.MethodGet, "admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PendingSellers lists seller registrations awaiting approval.
func (a *AdminAPI) PendingSellers(ctx context.Context) ([]User, error) {
	var out []User
	if err := a.c.do(ctx, http.MethodGet, "admin/sellers/pending", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminAPI) ApproveSeller(ctx context.Context, userID string) error {
	return a.c.do(ctx, http.MethodPatch, "admin/sellers/"+userID+"/approve", nil, nil)
}

func (a *AdminAPI) DeactivateUser(ctx context.Context, userID string) error {
	return a.c.do(ctx, http.MethodPatch, "admin/users/"+userID+"/deactivate", nil, nil)
}
