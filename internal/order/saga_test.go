package order_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/checkout-saga/internal/idclient"
	"github.com/warp/checkout-saga/internal/order"
	"github.com/warp/checkout-saga/internal/order/store"
	"github.com/warp/checkout-saga/internal/paymentclient"
	"github.com/warp/checkout-saga/internal/stockclient"
	"github.com/warp/checkout-saga/internal/transport"
	"github.com/warp/checkout-saga/internal/wal"
)

// fakeStockServer is a tiny in-memory stand-in for the Stock service,
// just enough of the wire protocol for the Saga to exercise Find/Subtract/Add.
type fakeStockServer struct {
	mu    sync.Mutex
	stock map[string]int64
	price map[string]string
}

func newFakeStockServer(t *testing.T) (*httptest.Server, *fakeStockServer) {
	f := &fakeStockServer{stock: map[string]int64{}, price: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stock/item/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		json.NewEncoder(w).Encode(map[string]any{
			"id": id, "stock": f.stock[id], "price": f.price[id],
		})
	})
	mux.HandleFunc("POST /stock/item/{id}/subtract/{amount}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		amount, _ := strconv.ParseInt(r.PathValue("amount"), 10, 64)
		if f.stock[id] < amount {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"code": "underflow", "error": "out of stock"})
			return
		}
		f.stock[id] -= amount
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /stock/item/{id}/add/{amount}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		amount, _ := strconv.ParseInt(r.PathValue("amount"), 10, 64)
		f.stock[id] += amount
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, f
}

// fakePaymentServer is the Saga's other remote dependency.
type fakePaymentServer struct {
	mu     sync.Mutex
	credit map[string]string
	payFails bool
}

func newFakePaymentServer(t *testing.T) (*httptest.Server, *fakePaymentServer) {
	f := &fakePaymentServer{credit: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /payment/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "credit": f.credit[id]})
	})
	mux.HandleFunc("POST /payment/user/{id}/pay", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.payFails {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"code": "underflow", "error": "user out of credit"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, f
}

func newTestIDService(t *testing.T) *idclient.Client {
	counter := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter++
		json.NewEncoder(w).Encode(map[string]string{"key": fmt.Sprintf("k%d", counter)})
	}))
	t.Cleanup(srv.Close)
	return idclient.New(srv.URL, transport.New(0))
}

func newTestOrderService(t *testing.T) (*order.Service, *store.Store, *fakeStockServer, *fakePaymentServer) {
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stockSrv, stockState := newFakeStockServer(t)
	paymentSrv, paymentState := newFakePaymentServer(t)

	stockState.stock["item-1"] = 10
	stockState.price["item-1"] = "5"
	paymentState.credit["user-1"] = "1000"

	stockClient := stockclient.New(stockSrv.URL, transport.New(0))
	paymentClient := paymentclient.New(paymentSrv.URL, transport.New(0))

	svc := order.NewService(db, newTestIDService(t), stockClient, paymentClient)
	return svc, db, stockState, paymentState
}

func TestCheckout_HappyPath_MarksOrderPaidAndSubtractsStock(t *testing.T) {
	svc, _, stockState, _ := newTestOrderService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "user-1")
	require.NoError(t, err)

	o, err = svc.AddItem(ctx, o.ID, "item-1", 2, "")
	require.NoError(t, err)
	assert.True(t, o.TotalCost.Equal(wal.NewMoney(10).Decimal))

	require.NoError(t, svc.Checkout(ctx, o.ID))

	found, err := svc.FindOrder(ctx, o.ID, "")
	require.NoError(t, err)
	assert.True(t, found.Paid)

	stockState.mu.Lock()
	defer stockState.mu.Unlock()
	assert.Equal(t, int64(8), stockState.stock["item-1"])
}

func TestCheckout_OutOfStock_CompensatesAndLeavesOrderUnpaid(t *testing.T) {
	svc, _, stockState, _ := newTestOrderService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "user-1")
	require.NoError(t, err)

	// Two lines: the first has enough stock, the second does not, so the
	// saga must compensate (re-add) the first line's subtraction.
	stockState.mu.Lock()
	stockState.stock["item-2"] = 1
	stockState.price["item-2"] = "1"
	stockState.mu.Unlock()

	o, err = svc.AddItem(ctx, o.ID, "item-1", 2, "")
	require.NoError(t, err)
	o, err = svc.AddItem(ctx, o.ID, "item-2", 5, "")
	require.NoError(t, err)

	err = svc.Checkout(ctx, o.ID)
	require.Error(t, err)

	found, err := svc.FindOrder(ctx, o.ID, "")
	require.NoError(t, err)
	assert.False(t, found.Paid)

	stockState.mu.Lock()
	defer stockState.mu.Unlock()
	assert.Equal(t, int64(10), stockState.stock["item-1"], "compensation should restore the first line's stock")
}

func TestCheckout_InsufficientCredit_CompensatesStockAndLeavesOrderUnpaid(t *testing.T) {
	svc, _, stockState, paymentState := newTestOrderService(t)
	ctx := context.Background()
	paymentState.payFails = true

	o, err := svc.CreateOrder(ctx, "user-1")
	require.NoError(t, err)
	o, err = svc.AddItem(ctx, o.ID, "item-1", 3, "")
	require.NoError(t, err)

	err = svc.Checkout(ctx, o.ID)
	require.Error(t, err)

	found, err := svc.FindOrder(ctx, o.ID, "")
	require.NoError(t, err)
	assert.False(t, found.Paid)

	stockState.mu.Lock()
	defer stockState.mu.Unlock()
	assert.Equal(t, int64(10), stockState.stock["item-1"], "failed payment should compensate the subtracted stock")
}

func TestCheckout_Idempotent_ReturnsSuccessWithoutRecharging(t *testing.T) {
	svc, _, _, _ := newTestOrderService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "user-1")
	require.NoError(t, err)
	o, err = svc.AddItem(ctx, o.ID, "item-1", 2, "")
	require.NoError(t, err)

	require.NoError(t, svc.Checkout(ctx, o.ID))
	require.NoError(t, svc.Checkout(ctx, o.ID), "checking out an already-paid order must be a no-op success")
}
