// Package stockclient is the Order service's typed client for the Stock
// service, used both by the Saga (subtract during checkout, add during
// compensation) and by the sweeper's CheckoutCompensator.
package stockclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/warp/checkout-saga/internal/transport"
	"github.com/warp/checkout-saga/internal/wal"
)

// Client calls the Stock service.
type Client struct {
	http    *transport.Client
	baseURL string
}

// New builds a Client targeting baseURL.
func New(baseURL string, http *transport.Client) *Client {
	return &Client{http: http, baseURL: baseURL}
}

type itemDTO struct {
	ID    string    `json:"id"`
	Stock int64     `json:"stock"`
	Price wal.Money `json:"price"`
}

// Find looks up an item, propagating correlation as the log_id query
// parameter (spec.md §6).
func (c *Client) Find(ctx context.Context, itemID, correlation string) (itemDTO, error) {
	var dto itemDTO
	u := fmt.Sprintf("%s/stock/item/%s", c.baseURL, url.PathEscape(itemID))
	if correlation != "" {
		u += "?log_id=" + url.QueryEscape(correlation)
	}
	err := c.http.GetJSON(ctx, u, &dto)
	return dto, err
}

// Subtract reduces stock by amount. Used during checkout.
func (c *Client) Subtract(ctx context.Context, itemID string, amount int64, correlation string) error {
	return c.mutate(ctx, itemID, "subtract", amount, correlation)
}

// Add increases stock by amount. Used for checkout compensation (the
// rollback step and the sweeper's retry).
func (c *Client) Add(ctx context.Context, itemID string, amount int64, correlation string) error {
	return c.mutate(ctx, itemID, "add", amount, correlation)
}

func (c *Client) mutate(ctx context.Context, itemID, verb string, amount int64, correlation string) error {
	u := fmt.Sprintf("%s/stock/item/%s/%s/%d", c.baseURL, url.PathEscape(itemID), verb, amount)
	if correlation != "" {
		u += "?log_id=" + url.QueryEscape(correlation)
	}
	return c.http.PostJSON(ctx, u, nil, nil)
}

// FromURL returns the canonical URL the Saga records as a compensation's
// FromURL, so the sweeper can retry the exact same call later.
func (c *Client) FromURL(itemID string, amount int64) string {
	return fmt.Sprintf("%s/stock/item/%s/add/%d", c.baseURL, itemID, amount)
}

// RetryURL re-issues a POST against a previously recorded FromURL verbatim.
// Used only by the sweeper's CheckoutCompensator.
func (c *Client) RetryURL(ctx context.Context, fromURL string) error {
	return c.http.PostJSON(ctx, fromURL, nil, nil)
}
