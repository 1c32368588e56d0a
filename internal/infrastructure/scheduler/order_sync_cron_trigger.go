package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

// ActiveShopLister lists the shops that are synced periodically
type ActiveShopLister interface {
	ListActive(ctx context.Context) ([]integration.Shop, error)
}

// JobSubmitter queues sync jobs and reports on them
type JobSubmitter interface {
	Submit(ctx context.Context, req JobRequest) (*OrderSyncJob, error)
	GetJob(id uuid.UUID) (*OrderSyncJob, error)
}

// OrderSyncCronTriggerConfig holds configuration for the order sync cron trigger
type OrderSyncCronTriggerConfig struct {
	// Interval between rounds. Zero disables the trigger.
	Interval time.Duration
	// RangeDays is the window synced on every round
	RangeDays int
}

// OrderSyncCronTrigger periodically submits a sync job for every active shop
type OrderSyncCronTrigger struct {
	config    OrderSyncCronTriggerConfig
	submitter JobSubmitter
	shops     ActiveShopLister
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// last cron job per shop, to avoid stacking jobs for a slow shop
	lastJobMu sync.Mutex
	lastJob   map[int64]uuid.UUID
}

// NewOrderSyncCronTrigger creates a new order sync cron trigger
func NewOrderSyncCronTrigger(
	config OrderSyncCronTriggerConfig,
	submitter JobSubmitter,
	shops ActiveShopLister,
	logger *zap.Logger,
) *OrderSyncCronTrigger {
	return &OrderSyncCronTrigger{
		config:    config,
		submitter: submitter,
		shops:     shops,
		logger:    logger,
		lastJob:   make(map[int64]uuid.UUID),
	}
}

// Start starts the cron trigger
func (c *OrderSyncCronTrigger) Start(ctx context.Context) error {
	if c.config.Interval <= 0 {
		c.logger.Info("Order sync cron trigger disabled")
		return nil
	}

	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Order sync cron trigger started",
		zap.Duration("interval", c.config.Interval),
		zap.Int("range_days", c.config.RangeDays),
	)

	return nil
}

// Stop stops the cron trigger
func (c *OrderSyncCronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Order sync cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop periodically triggers sync jobs
func (c *OrderSyncCronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	c.runRound(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runRound(ctx)
		}
	}
}

func (c *OrderSyncCronTrigger) runRound(ctx context.Context) {
	submitted, err := c.Trigger(ctx)
	if err != nil {
		c.logger.Error("Order sync cron round failed", zap.Error(err))
		return
	}
	c.logger.Debug("Order sync cron round done", zap.Int("submitted", submitted))
}

// Trigger submits one job per active shop and returns how many were
// submitted. Shops whose previous cron job has not finished are skipped.
func (c *OrderSyncCronTrigger) Trigger(ctx context.Context) (int, error) {
	shops, err := c.shops.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, shop := range shops {
		if ctx.Err() != nil {
			return submitted, ctx.Err()
		}
		if c.previousJobPending(shop.ShopID) {
			c.logger.Debug("Previous order sync job still pending",
				zap.Int64("shop_id", shop.ShopID),
			)
			continue
		}

		job, err := c.submitter.Submit(ctx, JobRequest{
			ShopID:    shop.ShopID,
			RangeDays: c.config.RangeDays,
			Trigger:   TriggerCron,
		})
		if errors.Is(err, ErrJobQueueFull) {
			c.logger.Warn("Order sync queue full, remaining shops wait for the next round",
				zap.Int("submitted", submitted),
				zap.Int("shops", len(shops)),
			)
			return submitted, nil
		}
		if err != nil {
			return submitted, err
		}

		c.lastJobMu.Lock()
		c.lastJob[shop.ShopID] = job.ID
		c.lastJobMu.Unlock()
		submitted++
	}
	return submitted, nil
}

func (c *OrderSyncCronTrigger) previousJobPending(shopID int64) bool {
	c.lastJobMu.Lock()
	id, ok := c.lastJob[shopID]
	c.lastJobMu.Unlock()
	if !ok {
		return false
	}

	job, err := c.submitter.GetJob(id)
	if err != nil {
		return false
	}
	return !job.Status.IsFinished()
}
