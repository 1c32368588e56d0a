package scheduler

import (
	"context"
	"errors"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
)

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrOrderSyncAlreadyInProgress is returned when a sync is already running
	ErrOrderSyncAlreadyInProgress = errors.New("order sync already in progress for this shop")
)

// IsRetryable reports whether a failed sync is worth running again.
// Configuration errors, rejected credentials and invalid requests repeat
// identically on every attempt; an overlapping run already covers the window.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, ordersync.ErrShopNotRegistered),
		errors.Is(err, integration.ErrShopNotFound),
		errors.Is(err, integration.ErrInvalidShopID),
		errors.Is(err, integration.ErrPlatformNotConfigured),
		errors.Is(err, integration.ErrPlatformAuthFailed),
		errors.Is(err, integration.ErrInvalidTimeRange),
		errors.Is(err, integration.ErrInvalidPageSize),
		errors.Is(err, integration.ErrOrderBatchTooLarge),
		errors.Is(err, ErrOrderSyncAlreadyInProgress):
		return false
	}
	return true
}
