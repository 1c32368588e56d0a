package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
)

// Resolves open address change alerts whose old and new snapshots compare
// equal, left behind by normalization changes.
func main() {
	var (
		batchSize int
		logLevel  string
	)
	flag.IntVar(&batchSize, "batch", 500, "Alerts loaded per batch")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	alerts := ordersync.NewAlertService(
		persistence.NewGormShopRepository(db.DB),
		persistence.NewGormOrderRepository(db.DB),
		persistence.NewGormAddressHistoryRepository(db.DB),
		log,
	)

	result, err := alerts.ResolveFalsePositives(ctx, batchSize)
	if err != nil {
		log.Error("Sweep failed",
			zap.Int("scanned", result.Scanned),
			zap.Int("resolved", result.Resolved),
			zap.Error(err),
		)
		os.Exit(1)
	}

	log.Info("Sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("resolved", result.Resolved),
	)
}
