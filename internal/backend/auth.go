package backend

import (
	"context"
	"net/http"
)

// AuthAPI wraps the backend's authentication endpoints.
type AuthAPI struct{ c *Client }

func NewAuthAPI(c *Client) *AuthAPI { return &AuthAPI{c: c} }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"` // CUSTOMER or SELLER; ADMIN accounts are provisioned server-side
}

// AuthResponse carries the bearer token and the user it belongs to.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (a *AuthAPI) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.c.do(ctx, http.MethodPost, "auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.c.do(ctx, http.MethodPost, "auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me validates the installed token and returns the user it identifies.
func (a *AuthAPI) Me(ctx context.Context) (*User, error) {
	var u User
	if err := a.c.do(ctx, http.MethodGet, "auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
