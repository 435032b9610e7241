package shell

import (
	"net/http"
	"strings"

	"github.com/example/pharmacy-storefront/internal/session"
)

// Decision is the guard's verdict for a (role, path) pair.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectHome
)

// publicPrefixes are reachable regardless of role. "/" matches only
// the home page itself, not everything under it.
var publicPrefixes = []string{"/", "/login", "/register", "/medicines"}

// rolePrefixes is the single table mapping each role to the route
// prefixes it may enter beyond the public set. Every protected route
// consults this table through Decide; nothing else gates pages.
var rolePrefixes = map[session.Role][]string{
	session.RoleCustomer: {"/cart", "/checkout", "/orders", "/account"},
	session.RoleSeller:   {"/seller"},
	session.RoleAdmin:    {"/admin"},
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return path == "/"
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func matchesAny(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if matchesPrefix(path, p) {
			return true
		}
	}
	return false
}

// Decide is the one guard function. Anonymous visitors are sent to
// login; authenticated users outside their role's set are sent home.
func Decide(role session.Role, path string) Decision {
	if matchesAny(publicPrefixes, path) {
		return Allow
	}
	if matchesAny(rolePrefixes[role], path) {
		return Allow
	}
	if role == session.RoleAnonymous {
		return RedirectLogin
	}
	return RedirectHome
}

// guard wraps a handler so the role check resolves before anything
// renders. The session manager holds the role synchronously, so there
// is no window where a protected page draws and then redirects.
func (h *Handlers) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch Decide(h.sessions.CurrentRole(), r.URL.Path) {
		case RedirectLogin:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		case RedirectHome:
			http.Redirect(w, r, "/", http.StatusSeeOther)
		default:
			next(w, r)
		}
	}
}

// NavLink is one navigation entry the current role may see.
type NavLink struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// NavLinks composes the navigation for a role from the same prefix
// table the guard uses, so a link never points somewhere the guard
// would bounce.
func NavLinks(role session.Role) []NavLink {
	links := []NavLink{
		{Label: "Home", Path: "/"},
		{Label: "Medicines", Path: "/medicines"},
	}
	switch role {
	case session.RoleCustomer:
		links = append(links,
			NavLink{Label: "Cart", Path: "/cart"},
			NavLink{Label: "My Orders", Path: "/orders"},
			NavLink{Label: "Account", Path: "/account"},
		)
	case session.RoleSeller:
		links = append(links, NavLink{Label: "Seller Dashboard", Path: "/seller"})
	case session.RoleAdmin:
		links = append(links, NavLink{Label: "Admin Dashboard", Path: "/admin"})
	default:
		links = append(links,
			NavLink{Label: "Login", Path: "/login"},
			NavLink{Label: "Register", Path: "/register"},
		)
	}
	return links
}
