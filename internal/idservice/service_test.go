package idservice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/checkout-saga/internal/idservice"
)

func TestService_CreateID_NeverRepeats(t *testing.T) {
	svc := idservice.New()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := svc.CreateID()
		assert.False(t, seen[key], "minted the same key twice: %s", key)
		seen[key] = true
	}
}
