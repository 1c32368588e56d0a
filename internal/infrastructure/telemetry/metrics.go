package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

// MeterProvider owns the SDK meter provider installed as the global one
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider installs an OTLP/gRPC meter provider with a periodic
// reader. When metrics are disabled the global no-op provider stays.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Metrics disabled")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("Metrics enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Meter returns a named meter, falling back to the global provider
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether metrics are exported
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// Shutdown flushes pending metrics
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	if err := shutdown(ctx, "meter", mp.provider.Shutdown); err != nil {
		return err
	}
	mp.logger.Info("Meter provider shut down")
	return nil
}

// =============================================================================
// Instruments
// =============================================================================

// Instruments creates instruments on one meter. Creation errors are kept
// until Err so a metrics set is built without a check per instrument; a
// failed instrument is replaced by a no-op one.
//
//	in := telemetry.NewInstruments(meter)
//	runs := in.Counter("runs_total", "Runs", "{run}")
//	if err := in.Err(); err != nil {
//	    return nil, err
//	}
type Instruments struct {
	meter metric.Meter
	errs  []error
}

// NewInstruments starts a set of instruments on meter
func NewInstruments(meter metric.Meter) *Instruments {
	return &Instruments{meter: meter}
}

// Err joins every creation error seen so far
func (in *Instruments) Err() error {
	return errors.Join(in.errs...)
}

func (in *Instruments) fail(kind, name string, err error) {
	in.errs = append(in.errs, fmt.Errorf("create %s %s: %w", kind, name, err))
}

// Counter is a monotonically increasing int64 instrument
type Counter struct {
	metric.Int64Counter
}

// Counter creates a Counter
func (in *Instruments) Counter(name, description, unit string) *Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("counter", name, err)
		c, _ = noop.Meter{}.Int64Counter(name)
	}
	return &Counter{c}
}

// Inc adds one
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Int64Counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// AddN adds n
func (c *Counter) AddN(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.Int64Counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

// UpDownCounter tracks a value that moves both ways, such as in-flight work
type UpDownCounter struct {
	metric.Int64UpDownCounter
}

// UpDownCounter creates an UpDownCounter
func (in *Instruments) UpDownCounter(name, description, unit string) *UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("up/down counter", name, err)
		c, _ = noop.Meter{}.Int64UpDownCounter(name)
	}
	return &UpDownCounter{c}
}

// Seconds is a float64 histogram of durations
type Seconds struct {
	metric.Float64Histogram
}

// Seconds creates a duration histogram with explicit bucket bounds
func (in *Instruments) Seconds(name, description string, bounds []float64) *Seconds {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit("s")}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	if err != nil {
		in.fail("histogram", name, err)
		h, _ = noop.Meter{}.Float64Histogram(name)
	}
	return &Seconds{h}
}

// Observe records d
func (s *Seconds) Observe(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	s.Float64Histogram.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// Gauge records a point-in-time int64 value
type Gauge struct {
	metric.Int64Gauge
}

// Gauge creates a Gauge
func (in *Instruments) Gauge(name, description, unit string) *Gauge {
	g, err := in.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("gauge", name, err)
		g, _ = noop.Meter{}.Int64Gauge(name)
	}
	return &Gauge{g}
}

// Set records value
func (g *Gauge) Set(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	g.Int64Gauge.Record(ctx, value, metric.WithAttributes(attrs...))
}

// =============================================================================
// Attribute keys and buckets
// =============================================================================

// Metric attribute keys
var (
	AttrShopID    = attribute.Key("shop_id")
	AttrResult    = attribute.Key("result")
	AttrTrigger   = attribute.Key("trigger")
	AttrErrorKind = attribute.Key("error_kind")

	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.pool.state")
)

// Histogram bucket boundaries in seconds
var (
	HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	DBDurationBuckets   = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	// SyncDurationBuckets cover a one-page run up to a six-month backfill
	SyncDurationBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}
)
