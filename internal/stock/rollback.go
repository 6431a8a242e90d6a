package stock

import (
	"context"
	"encoding/json"
)

// Rollback implements wal.EntityRollback for the Stock service's sweeper.
type Rollback struct {
	Store Backend
}

// Delete undoes an unconfirmed CREATE.
func (r *Rollback) Delete(ctx context.Context, entityID string) error {
	return r.Store.WithTxWal(ctx, func(w TxWriter) error {
		return w.DeleteItem(ctx, entityID)
	})
}

// Restore undoes an unconfirmed UPDATE by writing back the old value.
func (r *Rollback) Restore(ctx context.Context, entityID string, oldValue []byte) error {
	var item Item
	if err := json.Unmarshal(oldValue, &item); err != nil {
		return err
	}
	return r.Store.WithTxWal(ctx, func(w TxWriter) error {
		return w.UpdateItem(ctx, item)
	})
}
