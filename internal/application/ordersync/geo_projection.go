package ordersync

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
)

// GeoProjectionWriter maintains the per-order geographic projection used by
// the geo sales report.
type GeoProjectionWriter struct {
	repo  integration.GeoAddressRepository
	masks integration.MaskPredicate
	now   func() time.Time
}

// NewGeoProjectionWriter creates a writer. A nil masks uses the default
// marker set; a nil now uses time.Now.
func NewGeoProjectionWriter(repo integration.GeoAddressRepository, masks integration.MaskPredicate, now func() time.Time) *GeoProjectionWriter {
	if masks == nil {
		masks = integration.DefaultMaskPredicate()
	}
	if now == nil {
		now = time.Now
	}
	return &GeoProjectionWriter{repo: repo, masks: masks, now: now}
}

// Write projects addr for order. It returns false without writing when the
// state is missing or masked.
func (w *GeoProjectionWriter) Write(ctx context.Context, order *integration.Order, addr integration.RecipientAddress) (bool, error) {
	geo, ok := integration.NewGeoAddress(order, addr, w.masks, w.now())
	if !ok {
		return false, nil
	}
	if err := w.repo.UpsertFillMissing(ctx, geo); err != nil {
		return false, fmt.Errorf("write geo address of %s: %w", order.OrderSN, err)
	}
	return true, nil
}
