/*
Package store is the Order service's SQLite persistence layer, the same
shape as internal/stock/store and internal/payment/store: one orders
table plus the shared wal.LogStore, sharing a *sql.DB so an order write
and its log record commit atomically. Items are stored as a JSON column
since an order's line list has no independent identity of its own.
*/
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/checkout-saga/internal/apierr"
	"github.com/warp/checkout-saga/internal/order"
	"github.com/warp/checkout-saga/internal/wal"
)

// Store implements the Order service's storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	Logs *wal.LogStore
}

// New opens (and migrates) dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open order database: %w", err)
	}

	s := &Store{db: db, Logs: wal.NewLogStore(db)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate order database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		paid INTEGER NOT NULL,
		items TEXT NOT NULL,
		total_cost TEXT NOT NULL
	);
	` + wal.LogsSchema)
	return err
}

// WithTx runs fn inside one *sql.Tx so order writes and log records commit
// or roll back together.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &apierr.StoreError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &apierr.StoreError{Op: "commit tx", Err: err}
	}
	return nil
}

func (s *Store) InsertOrderTx(ctx context.Context, tx *sql.Tx, o order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return &apierr.StoreError{Op: "marshal order items", Err: err}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO orders (id, user_id, paid, items, total_cost) VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.UserID, boolToInt(o.Paid), string(itemsJSON), o.TotalCost.String())
	if err != nil {
		return &apierr.StoreError{Op: "insert order", Err: err}
	}
	return nil
}

func (s *Store) UpdateOrderTx(ctx context.Context, tx *sql.Tx, o order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return &apierr.StoreError{Op: "marshal order items", Err: err}
	}
	_, err = tx.ExecContext(ctx, `UPDATE orders SET user_id = ?, paid = ?, items = ?, total_cost = ? WHERE id = ?`,
		o.UserID, boolToInt(o.Paid), string(itemsJSON), o.TotalCost.String(), o.ID)
	if err != nil {
		return &apierr.StoreError{Op: "update order", Err: err}
	}
	return nil
}

func (s *Store) DeleteOrderTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return &apierr.StoreError{Op: "delete order", Err: err}
	}
	return nil
}

// AppendLog writes one standalone log record.
func (s *Store) AppendLog(ctx context.Context, rec wal.Record) error {
	return s.Logs.Append(ctx, rec)
}

// WithTxWal runs fn with a TxWriter implementing order.TxWriter.
func (s *Store) WithTxWal(ctx context.Context, fn func(w order.TxWriter) error) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&txWriter{tx: tx, store: s})
	})
}

type txWriter struct {
	tx    *sql.Tx
	store *Store
}

func (w *txWriter) InsertOrder(ctx context.Context, o order.Order) error {
	return w.store.InsertOrderTx(ctx, w.tx, o)
}

func (w *txWriter) UpdateOrder(ctx context.Context, o order.Order) error {
	return w.store.UpdateOrderTx(ctx, w.tx, o)
}

func (w *txWriter) DeleteOrder(ctx context.Context, id string) error {
	return w.store.DeleteOrderTx(ctx, w.tx, id)
}

func (w *txWriter) AppendLog(ctx context.Context, rec wal.Record) error {
	return w.store.Logs.AppendTx(ctx, w.tx, rec)
}

// GetOrder reads one order outside any transaction.
func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, paid, items, total_cost FROM orders WHERE id = ?`, id)

	var o order.Order
	var paidInt int
	var itemsJSON, totalCostStr string
	err := row.Scan(&o.ID, &o.UserID, &paidInt, &itemsJSON, &totalCostStr)
	if err == sql.ErrNoRows {
		return order.Order{}, false, nil
	}
	if err != nil {
		return order.Order{}, false, &apierr.StoreError{Op: "get order", Err: err}
	}
	o.Paid = paidInt != 0
	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return order.Order{}, false, &apierr.StoreError{Op: "parse order items", Err: err}
	}
	totalCost, err := wal.ParseMoney(totalCostStr)
	if err != nil {
		return order.Order{}, false, &apierr.StoreError{Op: "parse order total_cost", Err: err}
	}
	o.TotalCost = totalCost
	return o, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
