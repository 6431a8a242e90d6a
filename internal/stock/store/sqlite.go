/*
Package store is the Stock service's SQLite persistence layer: an items
table plus the shared wal.LogStore, wired together through one *sql.DB so
an item write and its log record commit atomically (spec.md §5's atomic
pipelined commit), grounded on the teacher's store/sqlite/sqlite.go
appendTx/WithTx/txStore pattern.
*/
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/checkout-saga/internal/apierr"
	"github.com/warp/checkout-saga/internal/stock"
	"github.com/warp/checkout-saga/internal/wal"
)

// Store implements the Stock service's storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	Logs *wal.LogStore
}

// New opens (and migrates) dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open stock database: %w", err)
	}

	s := &Store{db: db, Logs: wal.NewLogStore(db)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate stock database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		stock INTEGER NOT NULL,
		price TEXT NOT NULL
	);
	` + wal.LogsSchema)
	return err
}

// WithTx runs fn inside one *sql.Tx so item writes and log records commit
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

// InsertItemTx inserts a brand new item.
func (s *Store) InsertItemTx(ctx context.Context, tx *sql.Tx, item stock.Item) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO items (id, stock, price) VALUES (?, ?, ?)`,
		item.ID, item.Stock, item.Price.String())
	if err != nil {
		return &apierr.StoreError{Op: "insert item", Err: err}
	}
	return nil
}

// UpdateItemTx overwrites an existing item's mutable fields.
func (s *Store) UpdateItemTx(ctx context.Context, tx *sql.Tx, item stock.Item) error {
	_, err := tx.ExecContext(ctx, `UPDATE items SET stock = ?, price = ? WHERE id = ?`,
		item.Stock, item.Price.String(), item.ID)
	if err != nil {
		return &apierr.StoreError{Op: "update item", Err: err}
	}
	return nil
}

// DeleteItemTx removes an item (used by the sweeper to revert an
// unconfirmed CREATE).
func (s *Store) DeleteItemTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return &apierr.StoreError{Op: "delete item", Err: err}
	}
	return nil
}

// AppendLog writes one standalone log record (RECEIVED/SENT records, which
// are never pipelined with an entity write).
func (s *Store) AppendLog(ctx context.Context, rec wal.Record) error {
	return s.Logs.Append(ctx, rec)
}

// WithTxWal runs fn with a TxWriter implementing stock.TxWriter, pipelining
// an item write with its log record in one *sql.Tx. This is what
// stock.Service.Backend requires.
func (s *Store) WithTxWal(ctx context.Context, fn func(w stock.TxWriter) error) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&txWriter{tx: tx, store: s})
	})
}

type txWriter struct {
	tx    *sql.Tx
	store *Store
}

func (w *txWriter) InsertItem(ctx context.Context, item stock.Item) error {
	return w.store.InsertItemTx(ctx, w.tx, item)
}

func (w *txWriter) UpdateItem(ctx context.Context, item stock.Item) error {
	return w.store.UpdateItemTx(ctx, w.tx, item)
}

func (w *txWriter) DeleteItem(ctx context.Context, id string) error {
	return w.store.DeleteItemTx(ctx, w.tx, id)
}

func (w *txWriter) AppendLog(ctx context.Context, rec wal.Record) error {
	return w.store.Logs.AppendTx(ctx, w.tx, rec)
}

// GetItem reads one item outside any transaction.
func (s *Store) GetItem(ctx context.Context, id string) (stock.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getItem(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getItem(ctx context.Context, q queryer, id string) (stock.Item, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT id, stock, price FROM items WHERE id = ?`, id)

	var item stock.Item
	var priceStr string
	err := row.Scan(&item.ID, &item.Stock, &priceStr)
	if err == sql.ErrNoRows {
		return stock.Item{}, false, nil
	}
	if err != nil {
		return stock.Item{}, false, &apierr.StoreError{Op: "get item", Err: err}
	}
	price, err := wal.ParseMoney(priceStr)
	if err != nil {
		return stock.Item{}, false, &apierr.StoreError{Op: "parse item price", Err: err}
	}
	item.Price = price
	return item, true, nil
}
