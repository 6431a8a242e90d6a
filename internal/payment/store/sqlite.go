/*
Package store is the Payment service's SQLite persistence layer, the
mirror of internal/stock/store/sqlite.go: a users table plus the shared
wal.LogStore, sharing one *sql.DB so a user write and its log record
commit atomically.
*/
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/checkout-saga/internal/apierr"
	"github.com/warp/checkout-saga/internal/payment"
	"github.com/warp/checkout-saga/internal/wal"
)

// Store implements the Payment service's storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	Logs *wal.LogStore
}

// New opens (and migrates) dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open payment database: %w", err)
	}

	s := &Store{db: db, Logs: wal.NewLogStore(db)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate payment database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		credit TEXT NOT NULL
	);
	` + wal.LogsSchema)
	return err
}

// WithTx runs fn inside one *sql.Tx so user writes and log records commit
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

func (s *Store) InsertUserTx(ctx context.Context, tx *sql.Tx, user payment.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users (id, credit) VALUES (?, ?)`,
		user.ID, user.Credit.String())
	if err != nil {
		return &apierr.StoreError{Op: "insert user", Err: err}
	}
	return nil
}

func (s *Store) UpdateUserTx(ctx context.Context, tx *sql.Tx, user payment.User) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET credit = ? WHERE id = ?`,
		user.Credit.String(), user.ID)
	if err != nil {
		return &apierr.StoreError{Op: "update user", Err: err}
	}
	return nil
}

func (s *Store) DeleteUserTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return &apierr.StoreError{Op: "delete user", Err: err}
	}
	return nil
}

// AppendLog writes one standalone log record.
func (s *Store) AppendLog(ctx context.Context, rec wal.Record) error {
	return s.Logs.Append(ctx, rec)
}

// WithTxWal runs fn with a TxWriter implementing payment.TxWriter.
func (s *Store) WithTxWal(ctx context.Context, fn func(w payment.TxWriter) error) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&txWriter{tx: tx, store: s})
	})
}

type txWriter struct {
	tx    *sql.Tx
	store *Store
}

func (w *txWriter) InsertUser(ctx context.Context, user payment.User) error {
	return w.store.InsertUserTx(ctx, w.tx, user)
}

func (w *txWriter) UpdateUser(ctx context.Context, user payment.User) error {
	return w.store.UpdateUserTx(ctx, w.tx, user)
}

func (w *txWriter) DeleteUser(ctx context.Context, id string) error {
	return w.store.DeleteUserTx(ctx, w.tx, id)
}

func (w *txWriter) AppendLog(ctx context.Context, rec wal.Record) error {
	return w.store.Logs.AppendTx(ctx, w.tx, rec)
}

// GetUser reads one user outside any transaction.
func (s *Store) GetUser(ctx context.Context, id string) (payment.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, credit FROM users WHERE id = ?`, id)

	var user payment.User
	var creditStr string
	err := row.Scan(&user.ID, &creditStr)
	if err == sql.ErrNoRows {
		return payment.User{}, false, nil
	}
	if err != nil {
		return payment.User{}, false, &apierr.StoreError{Op: "get user", Err: err}
	}
	credit, err := wal.ParseMoney(creditStr)
	if err != nil {
		return payment.User{}, false, &apierr.StoreError{Op: "parse user credit", Err: err}
	}
	user.Credit = credit
	return user, true, nil
}
