package ordersync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAddressHistoryRepository is a mock implementation of integration.AddressHistoryRepository
type MockAddressHistoryRepository struct {
	mock.Mock
}

func (m *MockAddressHistoryRepository) LatestSnapshot(ctx context.Context, orderID uuid.UUID) (*integration.AddressSnapshot, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.AddressSnapshot), args.Error(1)
}

func (m *MockAddressHistoryRepository) CreateSnapshot(ctx context.Context, snapshot *integration.AddressSnapshot) error {
	return m.Called(ctx, snapshot).Error(0)
}

func (m *MockAddressHistoryRepository) RepairSnapshotHash(ctx context.Context, snapshotID uuid.UUID, hash string) error {
	return m.Called(ctx, snapshotID, hash).Error(0)
}

func (m *MockAddressHistoryRepository) RecordChange(ctx context.Context, snapshot *integration.AddressSnapshot, alert *integration.AddressChangeAlert) error {
	return m.Called(ctx, snapshot, alert).Error(0)
}

func (m *MockAddressHistoryRepository) ResolveOpenAlerts(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, orderID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAddressHistoryRepository) FindAlert(ctx context.Context, alertID uuid.UUID) (*integration.AddressChangeAlert, error) {
	args := m.Called(ctx, alertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.AddressChangeAlert), args.Error(1)
}

func (m *MockAddressHistoryRepository) ResolveAlert(ctx context.Context, alertID uuid.UUID, at time.Time) error {
	return m.Called(ctx, alertID, at).Error(0)
}

func (m *MockAddressHistoryRepository) ListOpenAlertsByShop(ctx context.Context, shopID uuid.UUID, limit int) ([]integration.OpenAlertSummary, error) {
	args := m.Called(ctx, shopID, limit)
	return args.Get(0).([]integration.OpenAlertSummary), args.Error(1)
}

func (m *MockAddressHistoryRepository) ListOpenAlertsByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]integration.AlertWithSnapshots, error) {
	args := m.Called(ctx, orderID, limit)
	return args.Get(0).([]integration.AlertWithSnapshots), args.Error(1)
}

func (m *MockAddressHistoryRepository) ListOpenAlertsAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]integration.AlertWithSnapshots, error) {
	args := m.Called(ctx, afterID, limit)
	return args.Get(0).([]integration.AlertWithSnapshots), args.Error(1)
}

func (m *MockAddressHistoryRepository) CountSnapshots(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

// ---------------------------------------------------------------------------
// ChangeDetector Tests
// ---------------------------------------------------------------------------

var detectorNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newDetectorOrder(status integration.OrderStatus) *integration.Order {
	return &integration.Order{ID: uuid.New(), ShopID: uuid.New(), OrderSN: "2603100001", Status: status}
}

func snapshotOf(orderID uuid.UUID, addr integration.RecipientAddress) *integration.AddressSnapshot {
	return integration.NewAddressSnapshot(orderID, addr, integration.Fingerprint(addr), detectorNow.Add(-time.Hour))
}

func TestChangeDetector_FirstSnapshot(t *testing.T) {
	repo := new(MockAddressHistoryRepository)
	detector := NewChangeDetector(repo, func() time.Time { return detectorNow })
	order := newDetectorOrder(integration.OrderStatusReadyToShip)
	addr := integration.RecipientAddress{State: "SP", City: "Sao Paulo"}

	repo.On("LatestSnapshot", mock.Anything, order.ID).Return(nil, nil)
	repo.On("CreateSnapshot", mock.Anything, mock.MatchedBy(func(s *integration.AddressSnapshot) bool {
		return s.OrderID == order.ID && s.Hash == integration.Fingerprint(addr).Hash && s.CreatedAt.Equal(detectorNow)
	})).Return(nil)

	outcome, err := detector.Observe(context.Background(), order, addr)
	require.NoError(t, err)

	assert.True(t, outcome.FirstSnapshot)
	assert.False(t, outcome.Changed)
	repo.AssertExpectations(t)
}

func TestChangeDetector_EqualKeyIsNotAChange(t *testing.T) {
	repo := new(MockAddressHistoryRepository)
	detector := NewChangeDetector(repo, func() time.Time { return detectorNow })
	order := newDetectorOrder(integration.OrderStatusReadyToShip)

	latest := snapshotOf(order.ID, integration.RecipientAddress{State: "SP", City: "Sao Paulo", Zipcode: "01000-000"})
	repo.On("LatestSnapshot", mock.Anything, order.ID).Return(latest, nil)

	outcome, err := detector.Observe(context.Background(), order,
		integration.RecipientAddress{State: "sp", City: "São Paulo", Zipcode: "01000000", Name: "Other Name"})
	require.NoError(t, err)

	assert.Equal(t, DetectionOutcome{}, outcome)
	repo.AssertNotCalled(t, "CreateSnapshot", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "RecordChange", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "RepairSnapshotHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangeDetector_RepairsStaleHash(t *testing.T) {
	repo := new(MockAddressHistoryRepository)
	detector := NewChangeDetector(repo, func() time.Time { return detectorNow })
	order := newDetectorOrder(integration.OrderStatusReadyToShip)
	addr := integration.RecipientAddress{State: "SP", City: "Campinas"}

	latest := snapshotOf(order.ID, addr)
	latest.Hash = "legacy-hash"
	repo.On("LatestSnapshot", mock.Anything, order.ID).Return(latest, nil)
	repo.On("RepairSnapshotHash", mock.Anything, latest.ID, integration.Fingerprint(addr).Hash).Return(nil)

	outcome, err := detector.Observe(context.Background(), order, addr)
	require.NoError(t, err)

	assert.True(t, outcome.HashRepaired)
	assert.False(t, outcome.Changed)
	repo.AssertExpectations(t)
}

func TestChangeDetector_RecordsChange(t *testing.T) {
	repo := new(MockAddressHistoryRepository)
	detector := NewChangeDetector(repo, func() time.Time { return detectorNow })
	order := newDetectorOrder(integration.OrderStatusReadyToShip)

	latest := snapshotOf(order.ID, integration.RecipientAddress{State: "SP", City: "Sao Paulo"})
	next := integration.RecipientAddress{State: "RJ", City: "Rio de Janeiro"}

	repo.On("LatestSnapshot", mock.Anything, order.ID).Return(latest, nil)
	repo.On("RecordChange", mock.Anything,
		mock.MatchedBy(func(s *integration.AddressSnapshot) bool { return s.Hash == integration.Fingerprint(next).Hash }),
		mock.MatchedBy(func(a *integration.AddressChangeAlert) bool {
			return a.OldSnapshotID == latest.ID && a.OldHash == latest.Hash && a.IsOpen() && a.DetectedAt.Equal(detectorNow)
		}),
	).Return(nil)

	outcome, err := detector.Observe(context.Background(), order, next)
	require.NoError(t, err)

	assert.True(t, outcome.Changed)
	require.NotNil(t, outcome.Alert)
	assert.Equal(t, integration.Fingerprint(next).Hash, outcome.Alert.NewHash)
	repo.AssertExpectations(t)
}

func TestChangeDetector_TerminalOrderOnlyResolves(t *testing.T) {
	repo := new(MockAddressHistoryRepository)
	detector := NewChangeDetector(repo, func() time.Time { return detectorNow })
	order := newDetectorOrder(integration.OrderStatusCancelled)

	repo.On("ResolveOpenAlerts", mock.Anything, order.ID, detectorNow).Return(int64(2), nil)

	outcome, err := detector.Observe(context.Background(), order, integration.RecipientAddress{State: "RJ"})
	require.NoError(t, err)

	assert.True(t, outcome.Terminal)
	assert.Equal(t, int64(2), outcome.ResolvedAlerts)
	repo.AssertNotCalled(t, "LatestSnapshot", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestChangeDetector_PropagatesRepositoryErrors(t *testing.T) {
	repo := new(MockAddressHistoryRepository)
	detector := NewChangeDetector(repo, func() time.Time { return detectorNow })
	order := newDetectorOrder(integration.OrderStatusReadyToShip)
	dbErr := errors.New("connection reset")

	repo.On("LatestSnapshot", mock.Anything, order.ID).Return(nil, dbErr)

	_, err := detector.Observe(context.Background(), order, integration.RecipientAddress{State: "SP"})
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), order.OrderSN)
}

func TestChangeDetector_Close(t *testing.T) {
	repo := new(MockAddressHistoryRepository)
	detector := NewChangeDetector(repo, func() time.Time { return detectorNow })
	order := newDetectorOrder(integration.OrderStatusReturned)
	dbErr := errors.New("connection reset")

	repo.On("ResolveOpenAlerts", mock.Anything, order.ID, detectorNow).Return(int64(1), nil).Once()
	repo.On("ResolveOpenAlerts", mock.Anything, order.ID, detectorNow).Return(int64(0), dbErr).Once()

	outcome, err := detector.Close(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, outcome.Terminal)
	assert.Equal(t, int64(1), outcome.ResolvedAlerts)

	_, err = detector.Close(context.Background(), order)
	assert.ErrorIs(t, err, dbErr)
	repo.AssertNotCalled(t, "LatestSnapshot", mock.Anything, mock.Anything)
}
