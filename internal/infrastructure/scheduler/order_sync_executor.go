package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/infrastructure/cache"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
)

// lockReleaseTimeout bounds the release of a shop lock after the run ended
const lockReleaseTimeout = 5 * time.Second

// Syncer runs one order sync
type Syncer interface {
	Sync(ctx context.Context, shopID int64, rangeDays int) (*ordersync.SyncResult, error)
}

// ShopLockKey names the lock that serializes syncs of one shop
func ShopLockKey(shopID int64) string {
	return "order_sync:shop:" + strconv.FormatInt(shopID, 10)
}

// OrderSyncRunner runs syncs under a per-shop lock. It serves both the
// scheduler and synchronous API calls so the two never overlap for a shop.
type OrderSyncRunner struct {
	syncer  Syncer
	locker  cache.Locker
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewOrderSyncRunner creates a runner. lockTTL should exceed the longest
// expected run so the lock does not lapse mid-sync.
func NewOrderSyncRunner(syncer Syncer, locker cache.Locker, lockTTL time.Duration, logger *zap.Logger) *OrderSyncRunner {
	return &OrderSyncRunner{
		syncer:  syncer,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// Execute runs one attempt of a scheduled job
func (r *OrderSyncRunner) Execute(ctx context.Context, job *OrderSyncJob) (*ordersync.SyncResult, error) {
	return r.Run(ctx, job.ShopID, job.RangeDays, job.Trigger)
}

// Run syncs the shop unless another run holds its lock, in which case it
// returns ErrOrderSyncAlreadyInProgress
func (r *OrderSyncRunner) Run(ctx context.Context, shopID int64, rangeDays int, trigger string) (*ordersync.SyncResult, error) {
	release, err := r.locker.Acquire(ctx, ShopLockKey(shopID), r.lockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, fmt.Errorf("%w: shop %d", ErrOrderSyncAlreadyInProgress, shopID)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire order sync lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			r.logger.Warn("Failed to release order sync lock",
				zap.Int64("shop_id", shopID),
				zap.Error(err),
			)
		}
	}()

	var result *ordersync.SyncResult
	telemetry.WithSyncProfilingLabels(ctx, shopID, trigger, func(ctx context.Context) {
		result, err = r.syncer.Sync(ctx, shopID, rangeDays)
	})
	return result, err
}

// Ensure OrderSyncRunner implements OrderSyncExecutor
var _ OrderSyncExecutor = (*OrderSyncRunner)(nil)
