package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/warp/checkout-saga/internal/apierr"
	"github.com/warp/checkout-saga/internal/idclient"
	"github.com/warp/checkout-saga/internal/paymentclient"
	"github.com/warp/checkout-saga/internal/stockclient"
	"github.com/warp/checkout-saga/internal/wal"
)

// Backend is the storage + logging surface the service needs; the concrete
// *store.Store (internal/order/store) implements it.
type Backend interface {
	WithTxWal(ctx context.Context, fn func(w TxWriter) error) error
	GetOrder(ctx context.Context, id string) (Order, bool, error)
	AppendLog(ctx context.Context, rec wal.Record) error
}

// TxWriter is handed to the closure passed to WithTxWal.
type TxWriter interface {
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error
	DeleteOrder(ctx context.Context, id string) error
	AppendLog(ctx context.Context, rec wal.Record) error
}

// Service implements the Order service's operations (spec.md §4.4),
// including the checkout Saga (saga.go).
type Service struct {
	Store   Backend
	IDs     *idclient.Client
	Stock   *stockclient.Client
	Payment *paymentclient.Client
	Now     func() time.Time
}

// NewService builds a Service.
func NewService(backend Backend, ids *idclient.Client, stock *stockclient.Client, payment *paymentclient.Client) *Service {
	return &Service{Store: backend, IDs: ids, Stock: stock, Payment: payment, Now: time.Now}
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

// CreateOrder allocates a new, empty, unpaid order for userID. It confirms
// the user exists via the Payment service before committing, the same way
// original_source/order/app.py's create handler does.
func (s *Service) CreateOrder(ctx context.Context, userID string) (Order, error) {
	correlation, err := s.newKey(ctx)
	if err != nil {
		return Order{}, err
	}
	if err := s.appendReceived(ctx, correlation); err != nil {
		return Order{}, err
	}

	if _, err := s.Payment.Find(ctx, userID, correlation); err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, "", err.Error())
		return Order{}, err
	}

	orderID, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, "", err.Error())
		return Order{}, err
	}

	o := Order{ID: orderID, UserID: userID, Paid: false, Items: nil, TotalCost: wal.ZeroMoney}
	newValue, _ := json.Marshal(o)

	createKey, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return Order{}, err
	}

	err = s.Store.WithTxWal(ctx, func(w TxWriter) error {
		if err := w.InsertOrder(ctx, o); err != nil {
			return err
		}
		return w.AppendLog(ctx, wal.Record{
			Key: createKey, CorrelationID: correlation, DateTime: s.now(),
			Type: wal.TypeCreate, Status: wal.StatusPending, EntityID: orderID, NewValue: newValue,
		})
	})
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return Order{}, err
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, orderID, "")
	return o, nil
}

// FindOrder reads an order, optionally reusing a caller-supplied
// correlation id.
func (s *Service) FindOrder(ctx context.Context, orderID, correlation string) (Order, error) {
	var err error
	if correlation == "" {
		correlation, err = s.newKey(ctx)
		if err != nil {
			return Order{}, err
		}
	}
	if err := s.appendReceived(ctx, correlation); err != nil {
		return Order{}, err
	}

	o, ok, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return Order{}, err
	}
	if !ok {
		notFound := &apierr.NotFoundError{Kind: "order", ID: orderID}
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, notFound.Error())
		return Order{}, notFound
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, orderID, "")
	return o, nil
}

// AddItem adds quantity units of itemID to orderID, coalescing into an
// existing line if the item is already on the order. The item's current
// price (fetched from the Stock service) is multiplied into TotalCost;
// stock itself is not touched until Checkout.
func (s *Service) AddItem(ctx context.Context, orderID, itemID string, quantity int64, correlation string) (Order, error) {
	var err error
	if correlation == "" {
		correlation, err = s.newKey(ctx)
		if err != nil {
			return Order{}, err
		}
	}
	if err := s.appendReceived(ctx, correlation); err != nil {
		return Order{}, err
	}

	old, ok, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return Order{}, err
	}
	if !ok {
		notFound := &apierr.NotFoundError{Kind: "order", ID: orderID}
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, notFound.Error())
		return Order{}, notFound
	}

	item, err := s.Stock.Find(ctx, itemID, correlation)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return Order{}, err
	}

	updated := old
	updated.Items = append([]Line(nil), old.Items...)
	found := false
	for i, line := range updated.Items {
		if line.ItemID == itemID {
			updated.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		updated.Items = append(updated.Items, Line{ItemID: itemID, Quantity: quantity})
	}
	updated.TotalCost = old.TotalCost.Add(item.Price.MulInt64(quantity))

	oldValue, _ := json.Marshal(old)
	newValue, _ := json.Marshal(updated)

	updateKey, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return Order{}, err
	}

	err = s.Store.WithTxWal(ctx, func(w TxWriter) error {
		if err := w.UpdateOrder(ctx, updated); err != nil {
			return err
		}
		return w.AppendLog(ctx, wal.Record{
			Key: updateKey, CorrelationID: correlation, DateTime: s.now(),
			Type: wal.TypeUpdate, Status: wal.StatusPending, EntityID: orderID,
			OldValue: oldValue, NewValue: newValue,
		})
	})
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return Order{}, err
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, orderID, "")
	return updated, nil
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

// appendReceivedResult records the outcome of one remote hop (a checkout's
// stock subtract/add, or its payment charge) under the checkout's own
// correlation id. fromURL is set ONLY for add-compensation hops: it is what
// the sweeper's CheckoutCompensator retries, so a failed subtract or a
// failed pay — which must never be retried as-is — leaves it blank.
func (s *Service) appendReceivedResult(ctx context.Context, correlation string, status wal.Status, entityID, fromURL string) {
	key, err := s.newKey(ctx)
	if err != nil {
		return
	}
	_ = s.Store.AppendLog(ctx, wal.Record{
		Key: key, CorrelationID: correlation, DateTime: s.now(),
		Type: wal.TypeReceived, Status: status, EntityID: entityID, FromURL: fromURL,
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
