package wal

import (
	"context"
	"sort"
	"strings"
	"time"
)

// maxCompensationRetries bounds the sweeper's retry loop for a single
// checkout-shaped compensation hop, mirroring original_source/order/app.py's
// fix_fault_tolerance "rollback_counter > 10" guard: past this many
// attempts the sweep gives up on the group rather than looping forever.
const maxCompensationRetries = 10

// EntityRollback reverts a single entity write. Delete undoes a CREATE that
// never confirmed; Restore undoes an UPDATE by writing back oldValue.
type EntityRollback interface {
	Delete(ctx context.Context, entityID string) error
	Restore(ctx context.Context, entityID string, oldValue []byte) error
}

// CheckoutCompensator retries a stock/add compensation that was logged but
// never confirmed as having succeeded.
type CheckoutCompensator interface {
	Retry(ctx context.Context, fromURL string) error
}

// Sweeper implements the crash-recovery algorithm of spec.md §4.5: group
// log records by correlation id, skip groups that finished cleanly, and
// either revert or retry-compensate the rest.
type Sweeper struct {
	Logs        *LogStore
	Rollback    EntityRollback
	Compensator CheckoutCompensator // nil for services that never originate a checkout (stock, payment)

	// Quiescence is how long a group's newest record must have sat
	// untouched before the sweeper will touch it, so an in-flight request
	// is never raced. Defaults to 30s (spec.md §9) if zero.
	Quiescence time.Duration

	Now func() time.Time // overridable for tests
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sweeper) quiescence() time.Duration {
	if s.Quiescence > 0 {
		return s.Quiescence
	}
	return 30 * time.Second
}

// Run performs one sweep pass using the default Quiescence look-back.
func (s *Sweeper) Run(ctx context.Context) error {
	return s.runSince(ctx, s.now().Add(-s.quiescence()))
}

// RunWithWindow performs one sweep pass using a caller-supplied look-back
// window instead of Quiescence, for the on-demand
// fault_tolerance/<min_diff> trigger (spec.md §4.5, §6).
func (s *Sweeper) RunWithWindow(ctx context.Context, minDiff time.Duration) error {
	return s.runSince(ctx, s.now().Add(-minDiff))
}

// runSince finds every record older than cutoff, groups them by correlation
// id, skips any group that also has records at or after cutoff, and resolves
// every remaining group whose newest record did not finish cleanly.
// A group whose resolution fails aborts recovery for that group only
// (spec.md §4.5) — its records are left in place for the next sweep, and
// the remaining groups in this pass are still attempted. The first error
// encountered, if any, is returned once every group has been tried.
func (s *Sweeper) runSince(ctx context.Context, cutoff time.Time) error {
	records, err := s.Logs.ListOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	all, err := s.Logs.ListAll(ctx)
	if err != nil {
		return err
	}
	groupSize := make(map[string]int, len(all))
	for _, rec := range all {
		groupSize[rec.CorrelationID]++
	}

	var firstErr error
	for _, group := range groupByCorrelation(records) {
		if len(group) < groupSize[group[0].CorrelationID] {
			continue // the group has records newer than cutoff: still in flight
		}
		sort.Slice(group, func(i, j int) bool { return group[i].DateTime.Before(group[j].DateTime) })

		last := group[len(group)-1]
		if last.IsTerminal() {
			continue // finished cleanly, nothing to recover
		}

		var resolveErr error
		if groupIsCheckoutShaped(group) {
			resolveErr = s.resolveCheckoutGroup(ctx, group)
		} else {
			resolveErr = s.resolveEntityGroup(ctx, group)
		}
		if resolveErr != nil {
			if firstErr == nil {
				firstErr = resolveErr
			}
			continue
		}

		if err := s.Logs.DeleteGroup(ctx, last.CorrelationID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// resolveEntityGroup reverts an unfinished CREATE or UPDATE by walking the
// group newest-first, mirroring fix_fault_tollerance in
// original_source/stock/app.py and order/app.py.
func (s *Sweeper) resolveEntityGroup(ctx context.Context, group []Record) error {
	for i := len(group) - 1; i >= 0; i-- {
		rec := group[i]
		switch rec.Type {
		case TypeCreate:
			if err := s.Rollback.Delete(ctx, rec.EntityID); err != nil {
				return err
			}
		case TypeUpdate:
			if err := s.Rollback.Restore(ctx, rec.EntityID, rec.OldValue); err != nil {
				return err
			}
		}
	}
	return nil
}

// isStockAddCompensation reports whether fromURL names a stock/add
// compensation hop (stockclient.Client.FromURL's "/stock/item/<id>/add/<n>"
// shape), as opposed to the group's own opening checkout marker record
// (checkoutFromURL's "/orders/<id>/checkout", see saga.go) or any other
// non-compensation hop. Only records matching this are ever handed to the
// Compensator — retrying the checkout marker itself would POST a
// schemeless, hostless path and fail every time (spec.md §4.5).
func isStockAddCompensation(fromURL string) bool {
	return strings.Contains(fromURL, "/stock/") && strings.Contains(fromURL, "/add/")
}

// resolveCheckoutGroup retries every unfinished stock/add compensation hop,
// walking the group newest-first. It never reverts the order's own paid=true
// write (spec.md §9, confirmed by original_source/order/app.py never
// touching its own OrderValue in this branch) — only the compensations to
// the stock service are replayed.
func (s *Sweeper) resolveCheckoutGroup(ctx context.Context, group []Record) error {
	if s.Compensator == nil {
		return nil
	}
	for i := len(group) - 1; i >= 0; i-- {
		rec := group[i]
		if rec.Status != StatusFailure {
			continue
		}
		if !isStockAddCompensation(rec.FromURL) {
			continue
		}

		var lastErr error
		for attempt := 0; attempt < maxCompensationRetries; attempt++ {
			if lastErr = s.Compensator.Retry(ctx, rec.FromURL); lastErr == nil {
				break
			}
		}
		if lastErr != nil {
			return lastErr
		}
	}
	return nil
}

// groupIsCheckoutShaped reports whether any record in the group names the
// checkout hop. The group's own opening RECEIVED record is what normally
// carries this marker, but scanning the whole group (rather than just the
// newest record) keeps a partial checkout recognizable even if the crash
// happened mid-compensation, after a record with a different FromURL.
func groupIsCheckoutShaped(group []Record) bool {
	for _, rec := range group {
		if rec.IsCheckoutShaped() {
			return true
		}
	}
	return false
}

func groupByCorrelation(records []Record) [][]Record {
	order := make([]string, 0)
	groups := make(map[string][]Record)
	for _, rec := range records {
		if _, ok := groups[rec.CorrelationID]; !ok {
			order = append(order, rec.CorrelationID)
		}
		groups[rec.CorrelationID] = append(groups[rec.CorrelationID], rec)
	}
	out := make([][]Record, 0, len(order))
	for _, id := range order {
		out = append(out, groups[id])
	}
	return out
}
