package order

import (
	"context"

	"github.com/warp/checkout-saga/internal/stockclient"
)

// Compensator implements wal.CheckoutCompensator by re-issuing a stock/add
// call the sweeper found logged but never confirmed as having succeeded.
type Compensator struct {
	Stock *stockclient.Client
}

// Retry re-POSTs fromURL verbatim.
func (c *Compensator) Retry(ctx context.Context, fromURL string) error {
	return c.Stock.RetryURL(ctx, fromURL)
}
