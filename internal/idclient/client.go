// Package idclient is the typed client every other service uses to mint a
// log key from the ID service before writing its first log record.
package idclient

import (
	"context"

	"github.com/warp/checkout-saga/internal/transport"
)

// Client calls the ID service.
type Client struct {
	http    *transport.Client
	baseURL string
}

// New builds a Client targeting baseURL (e.g. "http://localhost:8001").
func New(baseURL string, http *transport.Client) *Client {
	return &Client{http: http, baseURL: baseURL}
}

type createIDResponse struct {
	Key string `json:"key"`
}

// Create mints a new key.
func (c *Client) Create(ctx context.Context) (string, error) {
	var resp createIDResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/ids/create", &resp); err != nil {
		return "", err
	}
	return resp.Key, nil
}
