package stock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/warp/checkout-saga/internal/apierr"
	"github.com/warp/checkout-saga/internal/idclient"
	"github.com/warp/checkout-saga/internal/wal"
)

// Service implements the Stock service's operations (spec.md §4.2).
type Service struct {
	Store Backend
	IDs   *idclient.Client
	Now   func() time.Time
}

// Backend is the storage + logging surface the service needs. The concrete
// *store.Store (internal/stock/store) implements it.
type Backend interface {
	WithTxWal(ctx context.Context, fn func(w TxWriter) error) error
	GetItem(ctx context.Context, id string) (Item, bool, error)
	AppendLog(ctx context.Context, rec wal.Record) error
}

// TxWriter is handed to the closure passed to WithTxWal.
type TxWriter interface {
	InsertItem(ctx context.Context, item Item) error
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id string) error
	AppendLog(ctx context.Context, rec wal.Record) error
}

// NewService builds a Service.
func NewService(backend Backend, ids *idclient.Client) *Service {
	return &Service{Store: backend, IDs: ids, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newKey(ctx context.Context) (string, error) {
	return s.IDs.Create(ctx)
}

// CreateItem allocates a new item with the given price and zero stock,
// following RECEIVED(PENDING) -> CREATE(pipelined) -> SENT(SUCCESS|FAILURE).
func (s *Service) CreateItem(ctx context.Context, price wal.Money) (Item, error) {
	correlation, err := s.newKey(ctx)
	if err != nil {
		return Item{}, err
	}

	if err := s.appendReceived(ctx, correlation); err != nil {
		return Item{}, err
	}

	itemID, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, "", err.Error())
		return Item{}, err
	}

	item := Item{ID: itemID, Stock: 0, Price: price}
	newValue, _ := json.Marshal(item)

	createKey, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, err.Error())
		return Item{}, err
	}

	err = s.Store.WithTxWal(ctx, func(w TxWriter) error {
		if err := w.InsertItem(ctx, item); err != nil {
			return err
		}
		return w.AppendLog(ctx, wal.Record{
			Key: createKey, CorrelationID: correlation, DateTime: s.now(),
			Type: wal.TypeCreate, Status: wal.StatusPending, EntityID: itemID, NewValue: newValue,
		})
	})
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, err.Error())
		return Item{}, err
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, itemID, "")
	return item, nil
}

// FindItem reads an item. correlation, if non-empty, is reused from the
// caller instead of minting a new one (spec.md §6: "log_id" query-param
// reuse for cross-service calls, grounded on original_source/stock/app.py's
// /find handler).
func (s *Service) FindItem(ctx context.Context, itemID, correlation string) (Item, error) {
	var err error
	if correlation == "" {
		correlation, err = s.newKey(ctx)
		if err != nil {
			return Item{}, err
		}
	}

	if err := s.appendReceived(ctx, correlation); err != nil {
		return Item{}, err
	}

	item, ok, err := s.Store.GetItem(ctx, itemID)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, err.Error())
		return Item{}, err
	}
	if !ok {
		notFound := &apierr.NotFoundError{Kind: "item", ID: itemID}
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, notFound.Error())
		return Item{}, notFound
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, itemID, "")
	return item, nil
}

// AddStock increases an item's stock by amount (the Saga's compensation
// hop, and a standalone operator action).
func (s *Service) AddStock(ctx context.Context, itemID string, amount int64, correlation string) error {
	return s.mutateStock(ctx, itemID, amount, correlation)
}

// SubtractStock decreases an item's stock by amount, enforcing S1: stock
// must never go negative (spec.md's StockUnderflow / original_source's
// "stock cannot get reduced below zero").
func (s *Service) SubtractStock(ctx context.Context, itemID string, amount int64, correlation string) error {
	return s.mutateStock(ctx, itemID, -amount, correlation)
}

func (s *Service) mutateStock(ctx context.Context, itemID string, delta int64, correlation string) error {
	var err error
	if correlation == "" {
		correlation, err = s.newKey(ctx)
		if err != nil {
			return err
		}
	}

	if err := s.appendReceived(ctx, correlation); err != nil {
		return err
	}

	old, ok, err := s.Store.GetItem(ctx, itemID)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, err.Error())
		return err
	}
	if !ok {
		notFound := &apierr.NotFoundError{Kind: "item", ID: itemID}
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, notFound.Error())
		return notFound
	}

	newStock := old.Stock + delta
	if newStock < 0 {
		underflow := &apierr.UnderflowError{EntityID: itemID, Current: old.Stock, Delta: delta}
		// S1: logged as SENT/FAILURE directly, no UPDATE log is ever written —
		// matches original_source/stock/app.py's /subtract handler exactly.
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, underflow.Error())
		return underflow
	}

	oldValue, _ := json.Marshal(old)
	updated := old
	updated.Stock = newStock
	newValue, _ := json.Marshal(updated)

	updateKey, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, err.Error())
		return err
	}

	err = s.Store.WithTxWal(ctx, func(w TxWriter) error {
		if err := w.UpdateItem(ctx, updated); err != nil {
			return err
		}
		return w.AppendLog(ctx, wal.Record{
			Key: updateKey, CorrelationID: correlation, DateTime: s.now(),
			Type: wal.TypeUpdate, Status: wal.StatusPending, EntityID: itemID,
			OldValue: oldValue, NewValue: newValue,
		})
	})
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, itemID, err.Error())
		return err
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, itemID, "")
	return nil
}

func (s *Service) appendReceived(ctx context.Context, correlation string) error {
	key, err := s.newKey(ctx)
	if err != nil {
		return err
	}
	return s.Store.AppendLog(ctx, wal.Record{
		Key: key, CorrelationID: correlation, DateTime: s.now(),
		Type: wal.TypeReceived, Status: wal.StatusPending,
	})
}

func (s *Service) appendSent(ctx context.Context, correlation string, status wal.Status, entityID, note string) {
	key, err := s.newKey(ctx)
	if err != nil {
		return
	}
	_ = s.Store.AppendLog(ctx, wal.Record{
		Key: key, CorrelationID: correlation, DateTime: s.now(),
		Type: wal.TypeSent, Status: status, EntityID: entityID, Note: note,
	})
}
