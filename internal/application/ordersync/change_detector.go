package ordersync

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
)

// DetectionOutcome describes what Observe did for one order
type DetectionOutcome struct {
	// Changed is true when a new snapshot and alert were recorded
	Changed bool
	// FirstSnapshot is true when the order had no snapshot yet
	FirstSnapshot bool
	// HashRepaired is true when an equal snapshot had a stale stored hash
	HashRepaired bool
	// Terminal is true when the order is closed and no snapshot was written
	Terminal bool
	// ResolvedAlerts counts alerts closed because the order is terminal
	ResolvedAlerts int64
	// Alert is the recorded alert when Changed is true
	Alert *integration.AddressChangeAlert
}

// ChangeDetector compares the current address of an order with its last
// snapshot and manages the alert lifecycle.
type ChangeDetector struct {
	history integration.AddressHistoryRepository
	now     func() time.Time
}

// NewChangeDetector creates a ChangeDetector. now defaults to time.Now.
func NewChangeDetector(history integration.AddressHistoryRepository, now func() time.Time) *ChangeDetector {
	if now == nil {
		now = time.Now
	}
	return &ChangeDetector{history: history, now: now}
}

// Close resolves every open alert of a terminal order. It needs no address,
// so orders whose detail omits the recipient are closed too.
func (d *ChangeDetector) Close(ctx context.Context, order *integration.Order) (DetectionOutcome, error) {
	resolved, err := d.history.ResolveOpenAlerts(ctx, order.ID, d.now())
	if err != nil {
		return DetectionOutcome{}, fmt.Errorf("resolve alerts of %s: %w", order.OrderSN, err)
	}
	return DetectionOutcome{Terminal: true, ResolvedAlerts: resolved}, nil
}

// Observe records addr as the current address of order.
//
// Terminal orders only get their open alerts resolved. Otherwise the
// address is compared with the last snapshot by normalized key: an equal
// key is not a change (a stale stored hash is repaired in place), a
// different key appends a snapshot and upserts the alert on
// (order, new hash) in one transaction.
func (d *ChangeDetector) Observe(ctx context.Context, order *integration.Order, addr integration.RecipientAddress) (DetectionOutcome, error) {
	if order.Status.IsTerminal() {
		return d.Close(ctx, order)
	}
	now := d.now()

	fp := integration.Fingerprint(addr)

	latest, err := d.history.LatestSnapshot(ctx, order.ID)
	if err != nil {
		return DetectionOutcome{}, fmt.Errorf("load latest snapshot of %s: %w", order.OrderSN, err)
	}

	if latest == nil {
		snapshot := integration.NewAddressSnapshot(order.ID, addr, fp, now)
		if err := d.history.CreateSnapshot(ctx, snapshot); err != nil {
			return DetectionOutcome{}, fmt.Errorf("create first snapshot of %s: %w", order.OrderSN, err)
		}
		return DetectionOutcome{FirstSnapshot: true}, nil
	}

	if latest.Key() == fp.Key {
		if latest.Hash == fp.Hash {
			return DetectionOutcome{}, nil
		}
		if err := d.history.RepairSnapshotHash(ctx, latest.ID, fp.Hash); err != nil {
			return DetectionOutcome{}, fmt.Errorf("repair snapshot hash of %s: %w", order.OrderSN, err)
		}
		return DetectionOutcome{HashRepaired: true}, nil
	}

	snapshot := integration.NewAddressSnapshot(order.ID, addr, fp, now)
	alert := integration.NewAddressChangeAlert(latest, snapshot, now)
	if err := d.history.RecordChange(ctx, snapshot, alert); err != nil {
		return DetectionOutcome{}, fmt.Errorf("record address change of %s: %w", order.OrderSN, err)
	}
	return DetectionOutcome{Changed: true, Alert: alert}, nil
}
