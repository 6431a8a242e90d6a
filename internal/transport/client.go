/*
Package transport is the shared HTTP client every inter-service call goes
through. It owns per-hop timeouts and maps transport failures — timeout,
connection refused, undecodable body — to apierr.ErrNetworkError. A non-2xx
reply whose body or status names a known error kind (not found, underflow,
conflict) comes back as that typed apierr; any other non-2xx reply is an
apierr.ErrNetworkError as well.

Grounded on the plain *http.Client{Timeout: ...} pattern used by the
saga-demo orchestrator in other_examples/ — no pack repo reaches for a
retry/circuit-breaker library for this, so this stays stdlib net/http.
*/
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/warp/checkout-saga/internal/apierr"
)

// DefaultHopTimeout is the per-call budget for a single inter-service hop
// (spec.md §5: "2s/hop").
const DefaultHopTimeout = 2 * time.Second

// Client wraps http.Client with a fixed per-call timeout.
type Client struct {
	http    *http.Client
	Timeout time.Duration
}

// New builds a Client with the given per-call timeout. Pass 0 to use
// DefaultHopTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultHopTimeout
	}
	return &Client{http: &http.Client{}, Timeout: timeout}
}

// GetJSON issues a GET and decodes a JSON body into out. rawURL may already
// carry query parameters (e.g. ?log_id=...).
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	return c.doJSON(ctx, http.MethodGet, rawURL, nil, out)
}

// PostJSON issues a POST with an optional JSON body and decodes the
// response into out (if out is non-nil).
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, out any) error {
	return c.doJSON(ctx, http.MethodPost, rawURL, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, body any, out any) error {
	if _, err := url.Parse(rawURL); err != nil {
		return &apierr.NetworkError{URL: rawURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &apierr.NetworkError{URL: rawURL, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return &apierr.NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &apierr.NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(rawURL, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apierr.NetworkError{URL: rawURL, Err: err}
	}
	return nil
}

// errorBody is the wire shape every service's error responses use (see
// internal/httpio's ErrorResponse and WriteAPIError), carrying a stable machine-readable Code a
// caller can switch on instead of parsing prose out of Message.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

// errorFromResponse reconstructs a typed apierr from a non-2xx response,
// falling back to a plain NetworkError when the body doesn't carry a
// recognized code (e.g. the peer is behind a proxy that replaced the body).
func errorFromResponse(rawURL string, resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch body.Code {
	case "not_found":
		return &apierr.NotFoundError{Kind: "resource", ID: rawURL}
	case "underflow":
		return &apierr.UnderflowError{EntityID: rawURL}
	case "conflict":
		return &apierr.ConflictError{Key: rawURL}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &apierr.NotFoundError{Kind: "resource", ID: rawURL}
	case http.StatusConflict:
		return &apierr.ConflictError{Key: rawURL}
	default:
		msg := body.Message
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return &apierr.NetworkError{URL: rawURL, Err: fmt.Errorf("%s", msg)}
	}
}
