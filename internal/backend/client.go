package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const headerIdempotencyKey = "Idempotency-Key"

// Client is the single HTTP doorway to the marketplace backend. It
// attaches the bearer token, converts every failure into *Error and
// fires the session-teardown hook on the first 401 it sees.
type Client struct {
	baseURL *url.URL
	http    *http.Client

	mu             sync.Mutex
	token          string
	onUnauthorized func()
	tornDown       bool
}

// NewClient parses the backend base URL. A broken base URL is a
// configuration error, not a runtime condition.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base url %q: %w", baseURL, err)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// SetToken installs the bearer token for all subsequent requests and
// re-arms the teardown hook for the new session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.tornDown = false
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// OnUnauthorized registers fn to run when the backend answers 401.
// It runs at most once per session regardless of how many concurrent
// calls hit the expired token.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

type requestOptions struct {
	query          url.Values
	idempotencyKey string
}

type RequestOption func(*requestOptions)

// WithQuery adds a query string to the request.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// WithIdempotencyKey marks a mutation so the server can treat a
// retried request as the same operation.
func WithIdempotencyKey(key string) RequestOption {
	return func(o *requestOptions) { o.idempotencyKey = key }
}

// do issues one request. in (if non-nil) is sent as JSON; out (if
// non-nil) receives the decoded response body. Any non-2xx answer or
// transport failure comes back as *Error.
func (c *Client) do(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	rel := &url.URL{Path: path, RawQuery: o.query.Encode()}
	u := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, o.idempotencyKey)
	}
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: err.Error(), Remaining: -1}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{
				Kind:      KindServer,
				Status:    resp.StatusCode,
				Message:   "malformed response from backend",
				Remaining: -1,
			}
		}
	}
	return nil
}

// errorBody is the backend's error envelope. All fields are optional;
// a bare status code still maps to a usable Error.
type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Remaining *int              `json:"remaining,omitempty"`
}

func (c *Client) decodeError(resp *http.Response) error {
	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb)

	be := &Error{
		Kind:      kindForStatus(resp.StatusCode),
		Status:    resp.StatusCode,
		Message:   eb.Error,
		Fields:    eb.Fields,
		Remaining: -1,
	}
	if be.Message == "" {
		be.Message = http.StatusText(resp.StatusCode)
	}
	if eb.Remaining != nil {
		be.Remaining = *eb.Remaining
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.teardown()
	}
	return be
}

// teardown fires the unauthorized hook once per session.
func (c *Client) teardown() {
	c.mu.Lock()
	fn := c.onUnauthorized
	fired := c.tornDown
	c.tornDown = true
	c.mu.Unlock()

	if fn != nil && !fired {
		fn()
	}
}
