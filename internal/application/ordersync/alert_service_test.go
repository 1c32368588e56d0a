package ordersync

import (
	"context"
	"testing"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAlertService(f *syncFixture) *AlertService {
	svc := NewAlertService(f.shops, f.orders, f.history, zap.NewNop())
	svc.now = f.clock.Now
	return svc
}

// seedChangedOrder syncs orderSN twice with different addresses so it ends
// with one open alert
func seedChangedOrder(t *testing.T, f *syncFixture, orderSN string) {
	f.marketplace.Put(detail(orderSN, "READY_TO_SHIP", &integration.RecipientAddress{
		State: "SP", City: "Sao Paulo", Zipcode: "01000-000", Name: "Maria", FullAddress: "Rua A, 1",
	}))
	f.sync(t)
	f.marketplace.Put(detail(orderSN, "READY_TO_SHIP", &integration.RecipientAddress{
		State: "RJ", City: "Niteroi", Zipcode: "24000-000", Name: "Maria", FullAddress: "Rua B, 2",
	}))
	f.sync(t)
}

func TestClampAlertLimit(t *testing.T) {
	assert.Equal(t, DefaultAlertListLimit, ClampAlertLimit(0))
	assert.Equal(t, DefaultAlertListLimit, ClampAlertLimit(-3))
	assert.Equal(t, 10, ClampAlertLimit(10))
	assert.Equal(t, MaxAlertListLimit, ClampAlertLimit(10_000))
}

func TestAlertService_ListOpen(t *testing.T) {
	f := newSyncFixture(t)
	seedChangedOrder(t, f, "ORD-1")
	svc := newAlertService(f)

	alerts, err := svc.ListOpen(context.Background(), testShopID, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	summary := alerts[0]
	assert.Equal(t, "ORD-1", summary.OrderSN)
	assert.Equal(t, integration.OrderStatusReadyToShip, summary.OrderStatus)
	assert.Equal(t, "SP", summary.OldLocation.State)
	assert.Equal(t, "Niteroi", summary.NewLocation.City)
	assert.Equal(t, "24000-000", summary.NewLocation.Zipcode)
}

func TestAlertService_ListOpen_UnknownShop(t *testing.T) {
	f := newSyncFixture(t)
	svc := newAlertService(f)

	_, err := svc.ListOpen(context.Background(), 42, 10)
	assert.ErrorIs(t, err, ErrShopNotRegistered)
}

func TestAlertService_ForOrder(t *testing.T) {
	f := newSyncFixture(t)
	seedChangedOrder(t, f, "ORD-1")
	svc := newAlertService(f)

	result, err := svc.ForOrder(context.Background(), testShopID, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", result.Order.OrderSN)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, "Rua A, 1", result.Alerts[0].OldSnapshot.Address.FullAddress)
	assert.Equal(t, "Rua B, 2", result.Alerts[0].NewSnapshot.Address.FullAddress)

	_, err = svc.ForOrder(context.Background(), testShopID, "MISSING")
	assert.ErrorIs(t, err, integration.ErrOrderNotFound)
}

func TestAlertService_Resolve(t *testing.T) {
	f := newSyncFixture(t)
	seedChangedOrder(t, f, "ORD-1")
	svc := newAlertService(f)
	ctx := context.Background()

	alertID := f.openAlerts(t, "ORD-1")[0].Alert.ID

	resolved, err := svc.Resolve(ctx, testShopID, alertID)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Empty(t, f.openAlerts(t, "ORD-1"))

	again, err := svc.Resolve(ctx, testShopID, alertID)
	require.NoError(t, err)
	require.NotNil(t, again.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.Equal(*again.ResolvedAt))
}

func TestAlertService_Resolve_OtherShopOrUnknown(t *testing.T) {
	f := newSyncFixture(t)
	seedChangedOrder(t, f, "ORD-1")
	svc := newAlertService(f)
	ctx := context.Background()

	other, err := integration.NewShop(990022, "Outra Loja", "BR")
	require.NoError(t, err)
	require.NoError(t, f.shops.Save(ctx, other))

	alertID := f.openAlerts(t, "ORD-1")[0].Alert.ID

	_, err = svc.Resolve(ctx, 990022, alertID)
	assert.ErrorIs(t, err, integration.ErrAlertNotFound)
	assert.Len(t, f.openAlerts(t, "ORD-1"), 1)

	_, err = svc.Resolve(ctx, testShopID, uuid.New())
	assert.ErrorIs(t, err, integration.ErrAlertNotFound)
}

func TestAlertService_ResolveFalsePositives(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	seedChangedOrder(t, f, "REAL")

	// Alerts raised under an older normalization: both snapshots share a key
	// but the new one was stored with a different hash.
	for _, sn := range []string{"LEGACY-1", "LEGACY-2"} {
		f.marketplace.Put(detail(sn, "READY_TO_SHIP", &integration.RecipientAddress{State: "SP", City: "Sao Paulo"}))
	}
	f.sync(t)
	for _, sn := range []string{"LEGACY-1", "LEGACY-2"} {
		order := f.order(t, sn)
		latest, err := f.history.LatestSnapshot(ctx, order.ID)
		require.NoError(t, err)

		legacy := integration.NewAddressSnapshot(order.ID,
			integration.RecipientAddress{State: "sp", City: "São Paulo"},
			integration.AddressFingerprint{Hash: "legacy-" + sn},
			f.clock.Now(),
		)
		require.NoError(t, f.history.RecordChange(ctx, legacy, integration.NewAddressChangeAlert(latest, legacy, f.clock.Now())))
	}
	require.Equal(t, int64(3), f.allAlertCount(t))

	svc := newAlertService(f)
	result, err := svc.ResolveFalsePositives(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Scanned: 3, Resolved: 2}, result)
	assert.Empty(t, f.openAlerts(t, "LEGACY-1"))
	assert.Empty(t, f.openAlerts(t, "LEGACY-2"))
	assert.Len(t, f.openAlerts(t, "REAL"), 1)

	result, err = svc.ResolveFalsePositives(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Resolved: 0}, result)
}

func TestAlertService_ResolveFalsePositives_CanceledContext(t *testing.T) {
	f := newSyncFixture(t)
	svc := newAlertService(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ResolveFalsePositives(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
