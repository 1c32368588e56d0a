package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"go.opentelemetry.io/otel/metric"
)

// SyncRun describes one finished order sync run
type SyncRun struct {
	ShopID         int64
	Processed      int
	AddressChanged int
	Late           int
	AtRisk         int
	Elapsed        time.Duration
	Err            error
}

// SyncMetrics records order sync runs
type SyncMetrics struct {
	processed *Counter
	changes   *Counter
	runs      *Counter
	duration  *Seconds
	late      *Gauge
	atRisk    *Gauge
}

// NewSyncMetrics creates the sync instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	in := NewInstruments(meter)
	m := &SyncMetrics{
		processed: in.Counter("ordersync_orders_processed_total", "Orders processed by sync runs", "{order}"),
		changes:   in.Counter("ordersync_address_changes_total", "Address changes detected by sync runs", "{change}"),
		runs:      in.Counter("ordersync_sync_runs_total", "Sync runs by result", "{run}"),
		duration:  in.Seconds("ordersync_sync_duration_seconds", "Wall time of a sync run", SyncDurationBuckets),
		late:      in.Gauge("ordersync_orders_late", "Late orders seen by the last successful run", "{order}"),
		atRisk:    in.Gauge("ordersync_orders_at_risk", "At-risk orders seen by the last successful run", "{order}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveSync records run. Partial counts of failed runs are still added
// since their orders are committed.
func (m *SyncMetrics) ObserveSync(ctx context.Context, run SyncRun) {
	shop := AttrShopID.Int64(run.ShopID)

	m.processed.AddN(ctx, int64(run.Processed), shop)
	m.changes.AddN(ctx, int64(run.AddressChanged), shop)
	m.duration.Observe(ctx, run.Elapsed, shop)

	if run.Err != nil {
		m.runs.Inc(ctx, shop, AttrResult.String("error"), AttrErrorKind.String(ErrorKind(run.Err)))
		return
	}
	m.runs.Inc(ctx, shop, AttrResult.String("ok"))
	m.late.Set(ctx, int64(run.Late), shop)
	m.atRisk.Set(ctx, int64(run.AtRisk), shop)
}

// ErrorKind buckets a sync error into a low-cardinality label value
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, integration.ErrPlatformAuthFailed):
		return "auth"
	case errors.Is(err, integration.ErrPlatformRateLimited):
		return "rate_limited"
	case errors.Is(err, integration.ErrPlatformUnavailable):
		return "unavailable"
	case errors.Is(err, integration.ErrPlatformInvalidResponse):
		return "invalid_response"
	case errors.Is(err, integration.ErrPlatformRequestFailed):
		return "request_failed"
	default:
		return "other"
	}
}
