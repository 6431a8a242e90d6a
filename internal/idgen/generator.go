/*
Package idgen mints globally unique, lexicographically ordered keys for log
records: log:<20-digit timestamp><counter>. The timestamp makes keys sort
in write order even across a process restart that resets the counter to
zero (spec.md §4.1, §9; grounded on original_source/ids/app.py's
mutex-protected counter, generalized to a formatted string key instead of
a raw float so every service can sort and prefix-match on it directly).
*/
package idgen

import (
	"fmt"
	"sync"
	"time"
)

// Generator mints keys. The zero value is not usable; use New.
type Generator struct {
	mu      sync.Mutex
	counter uint64
	now     func() time.Time
}

// New creates a Generator with the real clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock creates a Generator using now instead of time.Now, for
// deterministic tests.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns the next key in the sequence, prefixed with "log:".
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter++
	ts := g.now().UTC().Format("20060102150405.000000")
	// Format yields "20060102150405.000000"; drop the dot to get the
	// 20-digit fixed-width timestamp the spec's key format requires.
	digits := ts[:14] + ts[15:]
	return fmt.Sprintf("log:%s%06d", digits, g.counter)
}
