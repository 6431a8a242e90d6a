/*
Package wal implements the write-ahead log shared by every service: the
log record shape, its SQLite-backed append-only store, and the crash
recovery sweeper that replays unfinished correlation groups.

Every mutating operation on an entity (item, user, order) writes a
sequence of log records under one correlation id before and after the
entity write itself:

	RECEIVED (PENDING)  -- request accepted
	CREATE | UPDATE      -- entity write is about to happen / happened
	SENT (SUCCESS|FAILURE) -- caller has been (or will be) answered

A crash between any two of these leaves an unfinished group that the
sweeper (sweeper.go) finds and resolves.
*/
package wal

import (
	"encoding/json"
	"strings"
	"time"
)

// Type names which kind of event a record represents.
type Type string

const (
	TypeCreate   Type = "CREATE"
	TypeUpdate   Type = "UPDATE"
	TypeDelete   Type = "DELETE"
	TypeSent     Type = "SENT"
	TypeReceived Type = "RECEIVED"
)

// Status names the outcome of a record, where applicable.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Record is one write-ahead log entry. Key is globally unique (minted by
// the ID service); CorrelationID groups every record belonging to the same
// logical request, which is what the sweeper replays as a unit.
type Record struct {
	Key           string
	CorrelationID string
	DateTime      time.Time
	Type          Type
	Status        Status
	EntityID      string
	OldValue      json.RawMessage
	NewValue      json.RawMessage
	FromURL       string
	Note          string
}

// IsTerminal reports whether this record finishes its group cleanly, i.e.
// a SENT record regardless of outcome. The sweeper skips groups whose
// newest record is terminal.
func (r Record) IsTerminal() bool {
	return r.Type == TypeSent && (r.Status == StatusSuccess || r.Status == StatusFailure)
}

// IsCheckoutShaped reports whether FromURL names the checkout hop, which is
// how the sweeper distinguishes a saga-compensation group from a plain
// entity-write group (see sweeper.go).
func (r Record) IsCheckoutShaped() bool {
	return strings.Contains(r.FromURL, "checkout")
}
