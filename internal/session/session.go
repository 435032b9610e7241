package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/pharmacy-storefront/internal/backend"
	"github.com/example/pharmacy-storefront/internal/cartstore"
	"github.com/example/pharmacy-storefront/internal/storage"
)

// Role is the authenticated user's role. The zero value is anonymous.
type Role string

const (
	RoleAnonymous Role = ""
	RoleCustomer  Role = "CUSTOMER"
	RoleSeller    Role = "SELLER"
	RoleAdmin     Role = "ADMIN"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidToken     = errors.New("invalid token")
)

// Claims is the backend's token payload. The client has no signing
// secret, so it decodes without verifying; the signature check is the
// backend's job and GET /auth/me is the client's proof of validity.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// decodeClaims peeks into a bearer token. Expired tokens are rejected
// here so a stale persisted session never issues authenticated calls.
func decodeClaims(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}
	return &claims, nil
}

type persistedSession struct {
	Token string       `json:"token"`
	User  backend.User `json:"user"`
}

// Manager owns the auth session: which user is logged in, the bearer
// token, and the durable copy of both. Role changes are atomic; there
// is never a state where the token is installed but the role isn't.
type Manager struct {
	auth   *backend.AuthAPI
	client *backend.Client
	local  *storage.Local
	cart   *cartstore.Store

	mu    sync.Mutex
	user  backend.User
	token string
}

func NewManager(client *backend.Client, auth *backend.AuthAPI, local *storage.Local, cart *cartstore.Store) *Manager {
	m := &Manager{auth: auth, client: client, local: local, cart: cart}
	// Any 401 anywhere tears the session down, uniformly.
	client.OnUnauthorized(func() {
		log.Printf("[Session] Backend rejected the token, tearing session down")
		m.teardown()
	})
	return m
}

// Restore loads a persisted session and validates it against the
// backend before trusting it. An expired or rejected token is
// discarded; an unreachable backend keeps the durable copy for the
// next start but leaves this run anonymous.
func (m *Manager) Restore(ctx context.Context) error {
	if m.local == nil {
		return nil
	}

	var p persistedSession
	ok, err := m.local.Get(storage.KeySession, &p)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil
	}

	if _, err := decodeClaims(p.Token); err != nil {
		log.Printf("[Session] Discarding persisted session: %v", err)
		m.teardown()
		return nil
	}

	m.client.SetToken(p.Token)
	me, err := m.auth.Me(ctx)
	if err != nil {
		if backend.IsKind(err, backend.KindNetwork) {
			// Can't validate right now; stay anonymous but keep the
			// durable copy so the next start can try again.
			m.client.ClearToken()
			return err
		}
		// Auth errors already tore the session down via the hook.
		return err
	}

	m.install(p.Token, *me)
	return nil
}

func (m *Manager) Login(ctx context.Context, email, password string) (backend.User, error) {
	resp, err := m.auth.Login(ctx, backend.LoginRequest{Email: email, Password: password})
	if err != nil {
		return backend.User{}, err
	}
	m.install(resp.Token, resp.User)
	return resp.User, nil
}

func (m *Manager) Register(ctx context.Context, req backend.RegisterRequest) (backend.User, error) {
	resp, err := m.auth.Register(ctx, req)
	if err != nil {
		return backend.User{}, err
	}
	m.install(resp.Token, resp.User)
	return resp.User, nil
}

// Logout clears the session and all per-user durable state on this
// device, cart included.
func (m *Manager) Logout() {
	m.teardown()
}

// Current returns the logged-in user; the zero User means anonymous.
func (m *Manager) Current() backend.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// CurrentRole returns the active role, RoleAnonymous when logged out.
func (m *Manager) CurrentRole() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return RoleAnonymous
	}
	return Role(m.user.Role)
}

func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

// install atomically switches the session to the given user. Binding
// the cart owner discards a cart persisted by a different user on the
// same device.
func (m *Manager) install(token string, user backend.User) {
	m.mu.Lock()
	m.user = user
	m.token = token
	m.mu.Unlock()

	m.client.SetToken(token)
	if m.cart != nil {
		m.cart.BindOwner(user.ID)
	}
	if m.local != nil {
		if err := m.local.Put(storage.KeySession, persistedSession{Token: token, User: user}); err != nil {
			log.Printf("[Session] Failed to persist session: %v", err)
		}
	}
}

func (m *Manager) teardown() {
	m.mu.Lock()
	m.user = backend.User{}
	m.token = ""
	m.mu.Unlock()

	m.client.ClearToken()
	if m.local != nil {
		if err := m.local.Delete(storage.KeySession); err != nil {
			log.Printf("[Session] Failed to clear persisted session: %v", err)
		}
	}
	if m.cart != nil {
		m.cart.Purge()
	}
}
