// Package idservice implements the ID service (spec.md §4.1): a single
// endpoint minting globally unique, time-ordered keys for every other
// service's write-ahead log.
package idservice

import "github.com/warp/checkout-saga/internal/idgen"

// Service mints keys.
type Service struct {
	gen *idgen.Generator
}

// New builds a Service with a fresh counter. Restart resets the counter to
// zero; the timestamp prefix keeps keys unique and ordered regardless
// (spec.md §9).
func New() *Service {
	return &Service{gen: idgen.New()}
}

// CreateID mints the next key.
func (s *Service) CreateID() string {
	return s.gen.Next()
}
