// Package paymentclient is the Order service's typed client for the
// Payment service, used by the Saga's final "charge the user" hop.
package paymentclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/warp/checkout-saga/internal/transport"
	"github.com/warp/checkout-saga/internal/wal"
)

// Client calls the Payment service.
type Client struct {
	http    *transport.Client
	baseURL string
}

// New builds a Client targeting baseURL.
func New(baseURL string, http *transport.Client) *Client {
	return &Client{http: http, baseURL: baseURL}
}

type userDTO struct {
	ID     string    `json:"id"`
	Credit wal.Money `json:"credit"`
}

// Find looks up a user, propagating correlation as the log_id query
// parameter.
func (c *Client) Find(ctx context.Context, userID, correlation string) (userDTO, error) {
	var dto userDTO
	u := fmt.Sprintf("%s/payment/user/%s", c.baseURL, url.PathEscape(userID))
	if correlation != "" {
		u += "?log_id=" + url.QueryEscape(correlation)
	}
	err := c.http.GetJSON(ctx, u, &dto)
	return dto, err
}

type amountBody struct {
	Amount wal.Money `json:"amount"`
}

// Pay charges amount against userID. Returns apierr.ErrUnderflow (wrapped)
// if the user has insufficient credit.
func (c *Client) Pay(ctx context.Context, userID string, amount wal.Money, correlation string) error {
	u := fmt.Sprintf("%s/payment/user/%s/pay", c.baseURL, url.PathEscape(userID))
	if correlation != "" {
		u += "?log_id=" + url.QueryEscape(correlation)
	}
	return c.http.PostJSON(ctx, u, amountBody{Amount: amount}, nil)
}
