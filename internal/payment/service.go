package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/warp/checkout-saga/internal/apierr"
	"github.com/warp/checkout-saga/internal/idclient"
	"github.com/warp/checkout-saga/internal/wal"
)

// Backend is the storage + logging surface the service needs; the concrete
// *store.Store (internal/payment/store) implements it.
type Backend interface {
	WithTxWal(ctx context.Context, fn func(w TxWriter) error) error
	GetUser(ctx context.Context, id string) (User, bool, error)
	AppendLog(ctx context.Context, rec wal.Record) error
}

// TxWriter is handed to the closure passed to WithTxWal.
type TxWriter interface {
	InsertUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	AppendLog(ctx context.Context, rec wal.Record) error
}

// Service implements the Payment service's operations (spec.md §4.3).
type Service struct {
	Store Backend
	IDs   *idclient.Client
	Now   func() time.Time
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

// CreateUser allocates a new user with the given starting credit.
func (s *Service) CreateUser(ctx context.Context, credit wal.Money) (User, error) {
	correlation, err := s.newKey(ctx)
	if err != nil {
		return User{}, err
	}
	if err := s.appendReceived(ctx, correlation); err != nil {
		return User{}, err
	}

	userID, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, "", err.Error())
		return User{}, err
	}

	user := User{ID: userID, Credit: credit}
	newValue, _ := json.Marshal(user)

	createKey, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, err.Error())
		return User{}, err
	}

	err = s.Store.WithTxWal(ctx, func(w TxWriter) error {
		if err := w.InsertUser(ctx, user); err != nil {
			return err
		}
		return w.AppendLog(ctx, wal.Record{
			Key: createKey, CorrelationID: correlation, DateTime: s.now(),
			Type: wal.TypeCreate, Status: wal.StatusPending, EntityID: userID, NewValue: newValue,
		})
	})
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, err.Error())
		return User{}, err
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, userID, "")
	return user, nil
}

// FindUser reads a user, optionally reusing a caller-supplied correlation id.
func (s *Service) FindUser(ctx context.Context, userID, correlation string) (User, error) {
	var err error
	if correlation == "" {
		correlation, err = s.newKey(ctx)
		if err != nil {
			return User{}, err
		}
	}
	if err := s.appendReceived(ctx, correlation); err != nil {
		return User{}, err
	}

	user, ok, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, err.Error())
		return User{}, err
	}
	if !ok {
		notFound := &apierr.NotFoundError{Kind: "user", ID: userID}
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, notFound.Error())
		return User{}, notFound
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, userID, "")
	return user, nil
}

// AddFunds increases a user's credit by amount.
func (s *Service) AddFunds(ctx context.Context, userID string, amount wal.Money, correlation string) error {
	return s.mutateCredit(ctx, userID, amount, correlation)
}

// Pay decreases a user's credit by amount, enforcing the P1 invariant: a
// user's credit must never go negative.
func (s *Service) Pay(ctx context.Context, userID string, amount wal.Money, correlation string) error {
	return s.mutateCredit(ctx, userID, amount.Neg(), correlation)
}

func (s *Service) mutateCredit(ctx context.Context, userID string, delta wal.Money, correlation string) error {
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

	old, ok, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, err.Error())
		return err
	}
	if !ok {
		notFound := &apierr.NotFoundError{Kind: "user", ID: userID}
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, notFound.Error())
		return notFound
	}

	newCredit := old.Credit.Add(delta)
	if newCredit.IsNegative() {
		underflow := &apierr.UnderflowError{EntityID: userID}
		// P1: logged as SENT/FAILURE directly, no UPDATE log — "User out of
		// credit" in original_source/order/app.py's checkout handler.
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, underflow.Error())
		return underflow
	}

	oldValue, _ := json.Marshal(old)
	updated := old
	updated.Credit = newCredit
	newValue, _ := json.Marshal(updated)

	updateKey, err := s.newKey(ctx)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, err.Error())
		return err
	}

	err = s.Store.WithTxWal(ctx, func(w TxWriter) error {
		if err := w.UpdateUser(ctx, updated); err != nil {
			return err
		}
		return w.AppendLog(ctx, wal.Record{
			Key: updateKey, CorrelationID: correlation, DateTime: s.now(),
			Type: wal.TypeUpdate, Status: wal.StatusPending, EntityID: userID,
			OldValue: oldValue, NewValue: newValue,
		})
	})
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, userID, err.Error())
		return err
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, userID, "")
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
