package telemetry

import (
	"context"
	"strconv"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys. Values must stay low-cardinality: shop ids are
// bounded by the number of registered shops, order ids are never used.
const (
	ProfilingLabelShopID  = "shop_id"
	ProfilingLabelTrigger = "trigger"
	ProfilingLabelRoute   = "route"
)

// MaxLabelValueLength truncates label values
const MaxLabelValueLength = 64

// WithSyncProfilingLabels runs fn with pprof labels identifying a sync run.
// The labels are visible to both Pyroscope and runtime/pprof.
func WithSyncProfilingLabels(ctx context.Context, shopID int64, trigger string, fn func(context.Context)) {
	WithProfilingLabels(ctx, fn,
		ProfilingLabelShopID, strconv.FormatInt(shopID, 10),
		ProfilingLabelTrigger, trigger,
	)
}

// WithProfilingLabels runs fn with key/value pprof labels. Pairs with an
// empty key or value are dropped.
func WithProfilingLabels(ctx context.Context, fn func(context.Context), keyValues ...string) {
	pairs := make([]string, 0, len(keyValues))
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, value := keyValues[i], keyValues[i+1]
		if key == "" || value == "" {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, value)
	}
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}
