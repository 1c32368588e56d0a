package ordersync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Window parsing
// ---------------------------------------------------------------------------

func TestParseRangeDays(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
	}{
		{"", DefaultRangeDays},
		{"abc", DefaultRangeDays},
		{"14", 14},
		{" 3 ", 3},
		{"0", MinRangeDays},
		{"-5", MinRangeDays},
		{"365", MaxRangeDays},
		{"3.7", 3},
		{"0.5", MinRangeDays},
		{"1e1", 10},
		{"1e400", DefaultRangeDays},
		{"NaN", DefaultRangeDays},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRangeDays(tt.raw))
		})
	}
}

// ---------------------------------------------------------------------------
// End to end over sqlite
// ---------------------------------------------------------------------------

func TestSync_FormattingNoiseThenRealChange(t *testing.T) {
	f := newSyncFixture(t)

	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{
		State: "SP", City: "Sao Paulo", Zipcode: "01000-000",
	}))
	result := f.sync(t)
	assert.Equal(t, SyncSummary{Processed: 1}, result.Summary)
	assert.Equal(t, int64(1), f.snapshotCount(t, "ORD-1"))

	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{
		State: "SP", City: "São Paulo", Zipcode: "01000000",
	}))
	result = f.sync(t)
	assert.Equal(t, 0, result.Summary.AddressChanged)
	assert.Equal(t, int64(1), f.snapshotCount(t, "ORD-1"))
	assert.Empty(t, f.openAlerts(t, "ORD-1"))

	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{
		State: "RJ", City: "Rio de Janeiro",
	}))
	result = f.sync(t)
	assert.Equal(t, 1, result.Summary.AddressChanged)
	assert.Equal(t, int64(2), f.snapshotCount(t, "ORD-1"))

	alerts := f.openAlerts(t, "ORD-1")
	require.Len(t, alerts, 1)
	assert.Equal(t, "SP", alerts[0].OldSnapshot.Address.State)
	assert.Equal(t, "RJ", alerts[0].NewSnapshot.Address.State)
}

func TestSync_ResultShape(t *testing.T) {
	f := newSyncFixture(t)
	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", nil))

	result, err := f.service.Sync(context.Background(), testShopID, 500)
	require.NoError(t, err)

	assert.Equal(t, SyncStatusOK, result.Status)
	assert.Equal(t, testShopID, result.ShopID)
	assert.Equal(t, MaxRangeDays, result.RangeDays)
	assert.Equal(t, 1, result.Summary.Processed)
}

func TestSync_RepeatedSyncIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)

	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{State: "SP", City: "Campinas"}))
	f.sync(t)
	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{State: "MG", City: "Belo Horizonte"}))

	first := f.sync(t)
	second := f.sync(t)

	assert.Equal(t, 1, first.Summary.AddressChanged)
	assert.Equal(t, 0, second.Summary.AddressChanged)
	assert.Equal(t, int64(2), f.snapshotCount(t, "ORD-1"))
	assert.Equal(t, int64(1), f.allAlertCount(t))

	var orders int64
	require.NoError(t, f.db.Table("marketplace_orders").Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
}

func TestSync_ReturnToPreviousAddressRaisesSecondAlert(t *testing.T) {
	f := newSyncFixture(t)
	a := &integration.RecipientAddress{State: "SP", City: "Sao Paulo"}
	b := &integration.RecipientAddress{State: "PR", City: "Curitiba"}

	for _, addr := range []*integration.RecipientAddress{a, b, a} {
		f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", addr))
		f.sync(t)
	}

	assert.Equal(t, int64(3), f.snapshotCount(t, "ORD-1"))
	alerts := f.openAlerts(t, "ORD-1")
	require.Len(t, alerts, 2)
	assert.NotEqual(t, alerts[0].Alert.NewHash, alerts[1].Alert.NewHash)
}

func TestSync_TerminalStatusResolvesAndFreezes(t *testing.T) {
	f := newSyncFixture(t)

	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{State: "SP", City: "Santos"}))
	f.sync(t)
	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{State: "BA", City: "Salvador"}))
	f.sync(t)
	require.Len(t, f.openAlerts(t, "ORD-1"), 1)

	f.marketplace.Put(detail("ORD-1", "COMPLETED", &integration.RecipientAddress{State: "CE", City: "Fortaleza"}))
	result := f.sync(t)

	assert.Equal(t, 0, result.Summary.AddressChanged)
	assert.Empty(t, f.openAlerts(t, "ORD-1"))
	assert.Equal(t, int64(2), f.snapshotCount(t, "ORD-1"))
	assert.Equal(t, integration.OrderStatusCompleted, f.order(t, "ORD-1").Status)
}

func TestSync_TerminalWithoutAddressResolvesAlerts(t *testing.T) {
	f := newSyncFixture(t)

	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{State: "SP", City: "Santos"}))
	f.sync(t)
	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{State: "BA", City: "Salvador"}))
	f.sync(t)
	require.Len(t, f.openAlerts(t, "ORD-1"), 1)

	f.marketplace.Put(detail("ORD-1", "CANCELLED", nil))
	result := f.sync(t)

	assert.Equal(t, 1, result.Summary.Processed)
	assert.Empty(t, f.openAlerts(t, "ORD-1"))
	assert.Equal(t, int64(1), f.allAlertCount(t))
	assert.Equal(t, int64(2), f.snapshotCount(t, "ORD-1"))
}

func TestSync_ShippingRiskCounts(t *testing.T) {
	f := newSyncFixture(t)
	base := f.clock.Peek()

	withShipBy := func(sn, status string, d time.Duration) integration.OrderDetail {
		od := detail(sn, status, nil)
		shipBy := base.Add(d)
		od.ShipByDate = &shipBy
		return od
	}
	f.marketplace.Put(withShipBy("AT-RISK", "READY_TO_SHIP", 2*time.Hour))
	f.marketplace.Put(withShipBy("LATE", "READY_TO_SHIP", -time.Minute))
	f.marketplace.Put(withShipBy("DONE", "COMPLETED", -48*time.Hour))
	f.marketplace.Put(withShipBy("FAR", "READY_TO_SHIP", 72*time.Hour))

	result := f.sync(t)
	assert.Equal(t, SyncSummary{Processed: 4, Late: 1, AtRisk: 1}, result.Summary)
}

func TestSync_PagesAndBatches(t *testing.T) {
	f := newSyncFixture(t)
	for i := range 120 {
		f.marketplace.Put(detail(fmt.Sprintf("ORD-%03d", i), "READY_TO_SHIP", nil))
	}

	result := f.sync(t)

	assert.Equal(t, 120, result.Summary.Processed)
	assert.Equal(t, 3, f.marketplace.listCalls)
	// pages of 50, 50 and 20 are chunked independently
	sizes := make([]int, 0, len(f.marketplace.batches))
	for _, batch := range f.marketplace.batches {
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{20, 20, 10, 20, 20, 10, 20}, sizes)

	// a batch never mixes identifiers of two pages
	for _, batch := range f.marketplace.batches {
		first, last := orderIndex(t, batch[0]), orderIndex(t, batch[len(batch)-1])
		assert.Equal(t, first/ListPageSize, last/ListPageSize, "batch %v crosses a page", batch)
	}
}

func orderIndex(t *testing.T, sn string) int {
	t.Helper()
	var i int
	_, err := fmt.Sscanf(sn, "ORD-%03d", &i)
	require.NoError(t, err)
	return i
}

func TestSync_GeoProjection(t *testing.T) {
	f := newSyncFixture(t)
	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", &integration.RecipientAddress{State: "S*", City: "Campinas"}))
	f.marketplace.Put(detail("ORD-2", "READY_TO_SHIP", &integration.RecipientAddress{State: "SP", City: "C*****s"}))
	f.sync(t)

	geo, err := f.geo.FindByOrderID(context.Background(), f.order(t, "ORD-1").ID)
	require.NoError(t, err)
	assert.Nil(t, geo)

	geo, err = f.geo.FindByOrderID(context.Background(), f.order(t, "ORD-2").ID)
	require.NoError(t, err)
	require.NotNil(t, geo)
	assert.Nil(t, geo.City)

	f.marketplace.Put(detail("ORD-2", "READY_TO_SHIP", &integration.RecipientAddress{State: "SP", City: "Campinas"}))
	f.sync(t)
	geo, err = f.geo.FindByOrderID(context.Background(), f.order(t, "ORD-2").ID)
	require.NoError(t, err)
	require.NotNil(t, geo.City)
	assert.Equal(t, "Campinas", *geo.City)
}

func TestSync_SkipsDetailsWithoutOrderSN(t *testing.T) {
	f := newSyncFixture(t)
	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", nil))
	f.marketplace.details["ORD-1"] = detail("", "READY_TO_SHIP", nil)

	result := f.sync(t)
	assert.Equal(t, 0, result.Summary.Processed)
}

func TestSync_ShopNotRegistered(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.service.Sync(context.Background(), 999, 7)
	assert.ErrorIs(t, err, ErrShopNotRegistered)
	assert.Zero(t, f.marketplace.listCalls)
}

func TestSync_UpstreamFailureKeepsEarlierBatches(t *testing.T) {
	f := newSyncFixture(t)
	for i := range 30 {
		f.marketplace.Put(detail(fmt.Sprintf("ORD-%02d", i), "READY_TO_SHIP", nil))
	}
	f.marketplace.detailErr = fmt.Errorf("%w: 503", integration.ErrPlatformUnavailable)
	f.marketplace.failAfter = 1

	_, err := f.service.Sync(context.Background(), testShopID, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPlatformUnavailable)

	var orders int64
	require.NoError(t, f.db.Table("marketplace_orders").Count(&orders).Error)
	assert.Equal(t, int64(DetailBatchSize), orders)
	assert.Empty(t, f.cache.invalidated)
}

func TestSync_InvalidatesReportsAndNotifiesObserver(t *testing.T) {
	f := newSyncFixture(t)
	observer := &recordingObserver{}
	WithSyncObserver(observer)(f.service)

	f.marketplace.Put(detail("ORD-1", "READY_TO_SHIP", nil))
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, ReportCacheKey(testShopID, "states", 6, time.Now()), GeoSalesReport{}, time.Minute))
	require.NoError(t, f.cache.Set(ctx, ReportCacheKey(1, "states", 6, time.Now()), GeoSalesReport{}, time.Minute))

	f.sync(t)

	assert.Equal(t, []int64{testShopID}, f.cache.invalidated)
	assert.Len(t, f.cache.entries, 1)
	require.Len(t, observer.runs, 1)
	assert.Equal(t, 1, observer.runs[0].Processed)
	assert.NoError(t, observer.runs[0].Err)

	_, err := f.service.Sync(ctx, 999, 7)
	require.Error(t, err)
	require.Len(t, observer.runs, 2)
	assert.True(t, errors.Is(observer.runs[1].Err, ErrShopNotRegistered))
}

type recordingObserver struct {
	runs []telemetry.SyncRun
}

func (o *recordingObserver) ObserveSync(_ context.Context, run telemetry.SyncRun) {
	o.runs = append(o.runs, run)
}

func TestNewService_DefaultsWithoutOptions(t *testing.T) {
	s := NewService(nil, nil, nil, nil, nil, zap.NewNop())
	assert.NotNil(t, s.now)
	assert.Nil(t, s.reports)
	assert.Nil(t, s.observer)
}
