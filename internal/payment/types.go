// Package payment implements the Payment service (spec.md §4.3), which
// mirrors the Stock service's write-ahead discipline against a user's
// credit balance instead of an item's stock count.
package payment

import "github.com/warp/checkout-saga/internal/wal"

// User is the Payment service's entity (spec.md's User).
type User struct {
	ID     string
	Credit wal.Money
}
