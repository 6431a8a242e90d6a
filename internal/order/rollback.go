package order

import (
	"context"
	"encoding/json"
)

// Rollback implements wal.EntityRollback for the Order service's own
// non-checkout groups: an order CREATE or AddItem UPDATE that crashed
// before its SENT record.
type Rollback struct {
	Store Backend
}

// Delete undoes an unconfirmed CREATE.
func (r *Rollback) Delete(ctx context.Context, entityID string) error {
	return r.Store.WithTxWal(ctx, func(w TxWriter) error {
		return w.DeleteOrder(ctx, entityID)
	})
}

// Restore undoes an unconfirmed UPDATE (e.g. an AddItem) by writing back
// the old value. It is never reached for a checkout's own paid=true write
// since that group is routed to the CheckoutCompensator instead.
func (r *Rollback) Restore(ctx context.Context, entityID string, oldValue []byte) error {
	var o Order
	if err := json.Unmarshal(oldValue, &o); err != nil {
		return err
	}
	return r.Store.WithTxWal(ctx, func(w TxWriter) error {
		return w.UpdateOrder(ctx, o)
	})
}
