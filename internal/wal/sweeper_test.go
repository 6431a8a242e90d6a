package wal_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/checkout-saga/internal/wal"
)

func newTestLogStore(t *testing.T) *wal.LogStore {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(wal.LogsSchema)
	require.NoError(t, err)

	return wal.NewLogStore(db)
}

type fakeRollback struct {
	deleted  []string
	restored []string
}

func (f *fakeRollback) Delete(ctx context.Context, entityID string) error {
	f.deleted = append(f.deleted, entityID)
	return nil
}

func (f *fakeRollback) Restore(ctx context.Context, entityID string, oldValue []byte) error {
	f.restored = append(f.restored, entityID)
	return nil
}

type fakeCompensator struct {
	retried   []string
	failUntil int
	attempts  int
}

// Retry mimics what the real stockclient.Client.RetryURL / net/http would
// do: a fromURL with no scheme/host (e.g. the checkout marker's own
// "/orders/<id>/checkout" path) always errors, exactly like net/http's
// "unsupported protocol scheme" — so a test driving this fake actually
// exercises whether resolveCheckoutGroup filtered its input correctly,
// instead of a fake that "succeeds" against anything it's handed.
func (f *fakeCompensator) Retry(ctx context.Context, fromURL string) error {
	f.attempts++
	f.retried = append(f.retried, fromURL)
	u, err := url.Parse(fromURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return assert.AnError
	}
	if f.attempts <= f.failUntil {
		return assert.AnError
	}
	return nil
}

func TestSweeper_SkipsCleanlyFinishedGroup(t *testing.T) {
	// GIVEN: a group whose newest record is a terminal SENT
	// WHEN: sweeping
	// THEN: no rollback happens and the group's records are left in place
	logs := newTestLogStore(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k1", CorrelationID: "c1", DateTime: old,
		Type: wal.TypeCreate, Status: wal.StatusPending, EntityID: "item-1",
	}))
	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k2", CorrelationID: "c1", DateTime: old.Add(time.Millisecond),
		Type: wal.TypeSent, Status: wal.StatusSuccess, EntityID: "item-1",
	}))

	rb := &fakeRollback{}
	sweeper := &wal.Sweeper{Logs: logs, Rollback: rb}
	require.NoError(t, sweeper.Run(ctx))

	assert.Empty(t, rb.deleted)
	recs, err := logs.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2, "finished group should be left untouched")
}

func TestSweeper_RevertsUnconfirmedCreate(t *testing.T) {
	// GIVEN: a CREATE with no terminal SENT (crash before reply)
	// WHEN: sweeping past the quiescence window
	// THEN: the entity is deleted and the group is cleared
	logs := newTestLogStore(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k1", CorrelationID: "c1", DateTime: old,
		Type: wal.TypeReceived, Status: wal.StatusPending,
	}))
	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k2", CorrelationID: "c1", DateTime: old.Add(time.Millisecond),
		Type: wal.TypeCreate, Status: wal.StatusPending, EntityID: "item-1",
	}))

	rb := &fakeRollback{}
	sweeper := &wal.Sweeper{Logs: logs, Rollback: rb}
	require.NoError(t, sweeper.Run(ctx))

	assert.Equal(t, []string{"item-1"}, rb.deleted)
	recs, _ := logs.ListAll(ctx)
	assert.Empty(t, recs)
}

func TestSweeper_RevertsUnconfirmedUpdate(t *testing.T) {
	// GIVEN: an UPDATE with no terminal SENT
	// WHEN: sweeping
	// THEN: the entity is restored to its old value
	logs := newTestLogStore(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)
	oldValue, _ := json.Marshal(map[string]int{"stock": 5})

	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k1", CorrelationID: "c1", DateTime: old,
		Type: wal.TypeUpdate, Status: wal.StatusPending, EntityID: "item-1", OldValue: oldValue,
	}))

	rb := &fakeRollback{}
	sweeper := &wal.Sweeper{Logs: logs, Rollback: rb}
	require.NoError(t, sweeper.Run(ctx))

	assert.Equal(t, []string{"item-1"}, rb.restored)
}

func TestSweeper_SkipsGroupWithinQuiescenceWindow(t *testing.T) {
	// GIVEN: an unconfirmed CREATE logged just now
	// WHEN: sweeping with the default 30s quiescence
	// THEN: nothing is touched, since the request might still be in flight
	logs := newTestLogStore(t)
	ctx := context.Background()

	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k1", CorrelationID: "c1", DateTime: time.Now(),
		Type: wal.TypeCreate, Status: wal.StatusPending, EntityID: "item-1",
	}))

	rb := &fakeRollback{}
	sweeper := &wal.Sweeper{Logs: logs, Rollback: rb}
	require.NoError(t, sweeper.Run(ctx))

	assert.Empty(t, rb.deleted)
	recs, _ := logs.ListAll(ctx)
	assert.Len(t, recs, 1)
}

func TestSweeper_RetriesCheckoutCompensationUntilSuccess(t *testing.T) {
	// GIVEN: a checkout-shaped group whose stock/add compensation never
	// confirmed success
	// WHEN: sweeping
	// THEN: the compensator is retried, the order's paid=true write is
	// never touched, and the group is cleared once the retry succeeds
	logs := newTestLogStore(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k1", CorrelationID: "c1", DateTime: old,
		Type: wal.TypeReceived, Status: wal.StatusPending, EntityID: "order-1",
		FromURL: "/orders/order-1/checkout",
	}))
	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k2", CorrelationID: "c1", DateTime: old.Add(time.Millisecond),
		Type: wal.TypeReceived, Status: wal.StatusFailure, EntityID: "item-1",
		FromURL: "http://stock/stock/item/item-1/add/2",
	}))

	rb := &fakeRollback{}
	comp := &fakeCompensator{failUntil: 2}
	sweeper := &wal.Sweeper{Logs: logs, Rollback: rb, Compensator: comp}
	require.NoError(t, sweeper.Run(ctx))

	assert.Empty(t, rb.deleted, "checkout group must never go through entity rollback")
	assert.Empty(t, rb.restored)
	assert.GreaterOrEqual(t, comp.attempts, 3)
	recs, _ := logs.ListAll(ctx)
	assert.Empty(t, recs)
}

func TestSweeper_NeverRetriesTheCheckoutMarkerRecordItself(t *testing.T) {
	// GIVEN: a checkout-shaped group whose ONLY non-success record is its
	// own opening marker (FromURL = "/orders/<id>/checkout", no scheme or
	// host) — i.e. every real stock/add compensation already succeeded
	// WHEN: sweeping
	// THEN: the compensator is never invoked at all, and the group is
	// cleared as resolved
	logs := newTestLogStore(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k1", CorrelationID: "c1", DateTime: old,
		Type: wal.TypeReceived, Status: wal.StatusPending, EntityID: "order-1",
		FromURL: "/orders/order-1/checkout",
	}))
	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k2", CorrelationID: "c1", DateTime: old.Add(time.Millisecond),
		Type: wal.TypeReceived, Status: wal.StatusSuccess, EntityID: "item-1",
		FromURL: "http://stock/stock/item/item-1/add/2",
	}))

	comp := &fakeCompensator{}
	sweeper := &wal.Sweeper{Logs: logs, Compensator: comp}
	require.NoError(t, sweeper.Run(ctx))

	assert.Empty(t, comp.retried, "the checkout marker record must never reach the compensator")
	recs, _ := logs.ListAll(ctx)
	assert.Empty(t, recs)
}

func TestSweeper_OneGroupsPersistentFailureDoesNotBlockOtherGroups(t *testing.T) {
	// GIVEN: two independent unresolved groups in the same sweep pass, one
	// of which can never be compensated
	// WHEN: sweeping
	// THEN: the healthy group still gets resolved and cleared, even though
	// the broken group's failure is reported
	logs := newTestLogStore(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k1", CorrelationID: "broken", DateTime: old,
		Type: wal.TypeReceived, Status: wal.StatusPending, EntityID: "order-1",
		FromURL: "/orders/order-1/checkout",
	}))
	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k2", CorrelationID: "broken", DateTime: old.Add(time.Millisecond),
		Type: wal.TypeReceived, Status: wal.StatusFailure, EntityID: "item-1",
		FromURL: "http://stock/stock/item/item-1/add/2",
	}))
	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k3", CorrelationID: "healthy", DateTime: old,
		Type: wal.TypeReceived, Status: wal.StatusPending,
	}))
	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k4", CorrelationID: "healthy", DateTime: old.Add(time.Millisecond),
		Type: wal.TypeCreate, Status: wal.StatusPending, EntityID: "item-2",
	}))

	rb := &fakeRollback{}
	comp := &fakeCompensator{failUntil: 999}
	sweeper := &wal.Sweeper{Logs: logs, Rollback: rb, Compensator: comp}
	err := sweeper.Run(ctx)

	assert.Error(t, err)
	assert.Equal(t, []string{"item-2"}, rb.deleted, "the unrelated healthy group must still be swept")

	recs, err := logs.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, "broken", rec.CorrelationID)
	}
}

func TestSweeper_AbortsSweepWhenCompensationPersistentlyFails(t *testing.T) {
	// GIVEN: a compensation that never succeeds within the retry budget
	// WHEN: sweeping
	// THEN: the sweep reports an error and leaves the group in place for
	// the next pass rather than silently discarding it
	logs := newTestLogStore(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k1", CorrelationID: "c1", DateTime: old,
		Type: wal.TypeReceived, Status: wal.StatusPending, EntityID: "order-1",
		FromURL: "/orders/order-1/checkout",
	}))
	require.NoError(t, logs.Append(ctx, wal.Record{
		Key: "k2", CorrelationID: "c1", DateTime: old.Add(time.Millisecond),
		Type: wal.TypeReceived, Status: wal.StatusFailure, EntityID: "item-1",
		FromURL: "http://stock/stock/item/item-1/add/2",
	}))

	comp := &fakeCompensator{failUntil: 999}
	sweeper := &wal.Sweeper{Logs: logs, Compensator: comp}
	err := sweeper.Run(ctx)

	assert.Error(t, err)
	recs, _ := logs.ListAll(ctx)
	assert.NotEmpty(t, recs, "an unresolved group must survive for the next sweep")
}
