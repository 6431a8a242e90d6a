package payment_test

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
	"github.com/warp/checkout-saga/internal/payment"
	"github.com/warp/checkout-saga/internal/payment/store"
	"github.com/warp/checkout-saga/internal/transport"
	"github.com/warp/checkout-saga/internal/wal"
)

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

func newTestService(t *testing.T) *payment.Service {
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return payment.NewService(db, newTestIDService(t))
}

func TestCreateUser_StartsWithGivenCredit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, wal.NewMoney(100))
	require.NoError(t, err)
	assert.True(t, user.Credit.Equal(wal.NewMoney(100).Decimal))
}

func TestPay_DecreasesCredit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, wal.NewMoney(100))
	require.NoError(t, err)

	require.NoError(t, svc.Pay(ctx, user.ID, wal.NewMoney(30), ""))

	found, err := svc.FindUser(ctx, user.ID, "")
	require.NoError(t, err)
	assert.True(t, found.Credit.Equal(wal.NewMoney(70).Decimal))
}

func TestPay_InsufficientCreditIsRejectedWithoutMutatingBalance(t *testing.T) {
	// GIVEN: a user with only 10 of credit
	// WHEN: paying 50
	// THEN: an UnderflowError is returned and credit is left untouched
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, wal.NewMoney(10))
	require.NoError(t, err)

	err = svc.Pay(ctx, user.ID, wal.NewMoney(50), "")
	require.Error(t, err)
	var underflow *apierr.UnderflowError
	assert.ErrorAs(t, err, &underflow)

	found, err := svc.FindUser(ctx, user.ID, "")
	require.NoError(t, err)
	assert.True(t, found.Credit.Equal(wal.NewMoney(10).Decimal))
}

func TestFindUser_NotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.FindUser(ctx, "missing-user", "")
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
}
