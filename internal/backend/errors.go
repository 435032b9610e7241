package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a backend failure so UI code can pick behavior
// (retry, highlight field, redirect to login, ...) without looking at
// transport details.
type Kind string

const (
	// KindNetwork: the request never reached the server or the
	// response never arrived. Cached state stays untouched; retryable.
	KindNetwork Kind = "network"
	// KindValidation: the server rejected the request with
	// field-level detail (4xx).
	KindValidation Kind = "validation"
	// KindAuth: 401/403. A 401 additionally tears down the session.
	KindAuth Kind = "auth"
	// KindConflict: the request was valid but lost to current server
	// state, e.g. insufficient stock at commit time.
	KindConflict Kind = "conflict"
	// KindNotFound: the addressed resource no longer exists.
	KindNotFound Kind = "not_found"
	// KindServer: 5xx or anything else unexpected.
	KindServer Kind = "server"
)

// Error is the uniform shape every backend failure is converted to at
// the client boundary. No caller above this package sees raw HTTP.
type Error struct {
	Kind    Kind
	Status  int               // HTTP status, 0 for network errors
	Message string            // user-presentable
	Fields  map[string]string // field -> problem, for validation errors
	// Remaining carries the stock still available on a conflict, when
	// the server reports it. -1 means unknown.
	Remaining int
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("backend unreachable: %s", e.Message)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

// KindOf extracts the Kind from err, or KindServer if err is not a
// backend error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindServer
}

// IsKind reports whether err is a backend error of the given kind.
func IsKind(err error, k Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}
