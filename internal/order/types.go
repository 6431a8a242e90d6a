// Package order implements the Order service (spec.md §4.4): it owns
// orders, hosts each checkout Saga, and is the only service whose sweeper
// carries a CheckoutCompensator.
package order

import "github.com/warp/checkout-saga/internal/wal"

// Line is one item-quantity pair on an order. Repeated AddItem calls for
// the same item coalesce into the existing Line rather than appending a
// duplicate, so Checkout never has to re-coalesce.
type Line struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

// Order is the Order service's own entity.
type Order struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Paid      bool      `json:"paid"`
	Items     []Line    `json:"items"`
	TotalCost wal.Money `json:"total_cost"`
}
