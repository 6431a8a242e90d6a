package stock_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/checkout-saga/internal/apierr"
	"github.com/warp/checkout-saga/internal/idclient"
	"github.com/warp/checkout-saga/internal/stock"
	"github.com/warp/checkout-saga/internal/stock/store"
	"github.com/warp/checkout-saga/internal/transport"
	"github.com/warp/checkout-saga/internal/wal"
)

// newTestIDService spins up a minimal ID service so the Stock service's
// key-minting calls have somewhere real to hit, without pulling in the
// idservice package's own HTTP wiring.
func newTestIDService(t *testing.T) *idclient.Client {
	counter := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter++
		json.NewEncoder(w).Encode(map[string]string{"key": "k" + itoa(counter)})
	}))
	t.Cleanup(srv.Close)
	return idclient.New(srv.URL, transport.New(0))
}

func itoa(n int) string {
	digits := []byte{}
	if n == 0 {
		return "0"
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func newTestService(t *testing.T) (*stock.Service, *store.Store) {
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := stock.NewService(db, newTestIDService(t))
	return svc, db
}

func TestCreateItem_StartsWithZeroStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, wal.NewMoney(10))
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.Stock)
	assert.True(t, item.Price.Equal(wal.NewMoney(10).Decimal))
}

func TestAddStock_IncreasesStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, wal.NewMoney(5))
	require.NoError(t, err)

	require.NoError(t, svc.AddStock(ctx, item.ID, 10, ""))

	found, err := svc.FindItem(ctx, item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), found.Stock)
}

func TestSubtractStock_UnderflowIsRejectedWithoutMutatingStock(t *testing.T) {
	// GIVEN: an item with 3 units in stock
	// WHEN: subtracting more than is available
	// THEN: an UnderflowError is returned and stock is unchanged
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, wal.NewMoney(5))
	require.NoError(t, err)
	require.NoError(t, svc.AddStock(ctx, item.ID, 3, ""))

	err = svc.SubtractStock(ctx, item.ID, 5, "")
	require.Error(t, err)
	var underflow *apierr.UnderflowError
	assert.ErrorAs(t, err, &underflow)

	found, err := svc.FindItem(ctx, item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), found.Stock, "a rejected subtract must not touch stock")
}

func TestFindItem_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.FindItem(ctx, "missing-item", "")
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
}
