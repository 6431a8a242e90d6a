// Package stock implements the Stock service (spec.md §4.2): item
// creation, stock add/subtract with the three-log write-ahead discipline,
// and the S1 underflow invariant.
package stock

import "github.com/warp/checkout-saga/internal/wal"

// Item is the Stock service's entity (spec.md's Stock item).
type Item struct {
	ID    string
	Stock int64
	Price wal.Money
}
