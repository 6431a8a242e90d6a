package idgen_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/checkout-saga/internal/idgen"
)

func TestGenerator_KeysAreUniqueAndOrdered(t *testing.T) {
	// GIVEN: a generator with a fixed clock
	// WHEN: minting several keys in a row
	// THEN: every key is distinct and lexicographically increasing
	fixed := time.Date(2026, time.July, 31, 12, 0, 0, 0, time.UTC)
	gen := idgen.NewWithClock(func() time.Time { return fixed })

	var keys []string
	for i := 0; i < 5; i++ {
		keys = append(keys, gen.Next())
	}

	seen := make(map[string]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "key %q minted twice", k)
		seen[k] = true
	}
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i], "keys should sort lexicographically")
	}
}

func TestGenerator_RestartResetsCounterButTimestampKeepsUniqueness(t *testing.T) {
	// GIVEN: two generators minting at different instants
	// WHEN: each starts its own counter from zero (simulating a restart)
	// THEN: their keys still never collide because the timestamp differs
	earlier := time.Date(2026, time.July, 31, 12, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Second)

	g1 := idgen.NewWithClock(func() time.Time { return earlier })
	g2 := idgen.NewWithClock(func() time.Time { return later })

	assert.NotEqual(t, g1.Next(), g2.Next())
}
