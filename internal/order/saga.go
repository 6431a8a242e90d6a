package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/warp/checkout-saga/internal/apierr"
	"github.com/warp/checkout-saga/internal/wal"
)

func marshalOrder(o Order) ([]byte, error) {
	return json.Marshal(o)
}

// checkoutFromURL is the FromURL of a checkout's opening RECEIVED record,
// which marks the whole correlation group as belonging to that saga, so the
// sweeper's groupIsCheckoutShaped recognizes the group even if it crashes
// mid-compensation.
func checkoutFromURL(orderID string) string {
	return fmt.Sprintf("/orders/%s/checkout", orderID)
}

// Checkout runs the Saga of spec.md §4.4: subtract every line's stock,
// charge the user, and only then mark the order paid. Any failed hop
// triggers compensation (re-adding whatever stock was already subtracted)
// before the whole operation fails. A crash mid-saga leaves a log group the
// sweeper recognizes as checkout-shaped; the sweeper retries, via
// CheckoutCompensator, only the stock/add compensations logged as failed. It
// does not re-add stock for a subtraction whose compensation was never
// attempted before the crash.
func (s *Service) Checkout(ctx context.Context, orderID string) error {
	correlation, err := s.newKey(ctx)
	if err != nil {
		return err
	}
	if err := s.appendCheckoutReceived(ctx, correlation, orderID); err != nil {
		return err
	}

	o, ok, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return err
	}
	if !ok {
		notFound := &apierr.NotFoundError{Kind: "order", ID: orderID}
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, notFound.Error())
		return notFound
	}
	if o.Paid {
		// Checkout is idempotent: a retried call against an already-paid
		// order is a success, not a re-charge.
		s.appendSent(ctx, correlation, wal.StatusSuccess, orderID, "already paid")
		return nil
	}

	subtracted := make([]Line, 0, len(o.Items))
	for _, line := range o.Items {
		err := s.Stock.Subtract(ctx, line.ItemID, line.Quantity, correlation)
		if err != nil {
			s.appendReceivedResult(ctx, correlation, wal.StatusFailure, line.ItemID, "")
			s.compensateStock(ctx, subtracted, correlation)
			out := &apierr.UnderflowError{EntityID: line.ItemID}
			s.appendSent(ctx, correlation, wal.StatusFailure, orderID, fmt.Sprintf("out of stock on item: %s", line.ItemID))
			return out
		}
		s.appendReceivedResult(ctx, correlation, wal.StatusSuccess, line.ItemID, "")
		subtracted = append(subtracted, line)
	}

	if err := s.Payment.Pay(ctx, o.UserID, o.TotalCost, correlation); err != nil {
		s.appendReceivedResult(ctx, correlation, wal.StatusFailure, o.UserID, "")
		s.compensateStock(ctx, subtracted, correlation)
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, "user out of credit")
		return err
	}
	s.appendReceivedResult(ctx, correlation, wal.StatusSuccess, o.UserID, "")

	updated := o
	updated.Paid = true
	if err := s.commitPaid(ctx, correlation, o, updated); err != nil {
		s.appendSent(ctx, correlation, wal.StatusFailure, orderID, err.Error())
		return err
	}

	s.appendSent(ctx, correlation, wal.StatusSuccess, orderID, "")
	return nil
}

// compensateStock re-adds stock for every line already subtracted this
// saga. It keeps going even if one hop fails — a failed add is logged with
// its retry URL so the sweeper picks it back up; aborting the loop on the
// first failure would leave the remaining lines permanently short.
func (s *Service) compensateStock(ctx context.Context, subtracted []Line, correlation string) {
	for _, line := range subtracted {
		fromURL := s.Stock.FromURL(line.ItemID, line.Quantity)
		if err := s.Stock.Add(ctx, line.ItemID, line.Quantity, correlation); err != nil {
			s.appendReceivedResult(ctx, correlation, wal.StatusFailure, line.ItemID, fromURL)
			continue
		}
		s.appendReceivedResult(ctx, correlation, wal.StatusSuccess, line.ItemID, fromURL)
	}
}

func (s *Service) commitPaid(ctx context.Context, correlation string, old, updated Order) error {
	oldValue, _ := marshalOrder(old)
	newValue, _ := marshalOrder(updated)

	updateKey, err := s.newKey(ctx)
	if err != nil {
		return err
	}

	return s.Store.WithTxWal(ctx, func(w TxWriter) error {
		if err := w.UpdateOrder(ctx, updated); err != nil {
			return err
		}
		return w.AppendLog(ctx, wal.Record{
			Key: updateKey, CorrelationID: correlation, DateTime: s.now(),
			Type: wal.TypeUpdate, Status: wal.StatusPending, EntityID: updated.ID,
			OldValue: oldValue, NewValue: newValue,
		})
	})
}

func (s *Service) appendCheckoutReceived(ctx context.Context, correlation, orderID string) error {
	key, err := s.newKey(ctx)
	if err != nil {
		return err
	}
	return s.Store.AppendLog(ctx, wal.Record{
		Key: key, CorrelationID: correlation, DateTime: s.now(),
		Type: wal.TypeReceived, Status: wal.StatusPending, EntityID: orderID,
		FromURL: checkoutFromURL(orderID),
	})
}
