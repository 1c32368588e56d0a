package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/jobqueue"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
)

// Publishes order sync jobs to the lmstfy queue consumed by the server.
func main() {
	var (
		shopID    int64
		all       bool
		rangeDays int
		delay     time.Duration
		logLevel  string
	)
	flag.Int64Var(&shopID, "shop", 0, "Marketplace shop id to sync")
	flag.BoolVar(&all, "all", false, "Enqueue a job for every active shop")
	flag.IntVar(&rangeDays, "range", ordersync.DefaultRangeDays, "Days of order updates to sync")
	flag.DurationVar(&delay, "delay", 0, "Delay before the job becomes visible")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	if (shopID > 0) == all {
		fmt.Fprintln(os.Stderr, "exactly one of -shop or -all is required")
		flag.Usage()
		os.Exit(2)
	}

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
	if cfg.Queue.Host == "" || cfg.Queue.Namespace == "" || cfg.Queue.Token == "" {
		log.Fatal("queue.host, queue.namespace and queue.token must be configured")
	}

	publisher := jobqueue.NewLmstfyPublisher(jobqueue.NewLmstfyClient(jobqueue.LmstfyConfig{
		Host:      cfg.Queue.Host,
		Port:      cfg.Queue.Port,
		Namespace: cfg.Queue.Namespace,
		Token:     cfg.Queue.Token,
		Queue:     cfg.Queue.Queue,
	}), log)

	shopIDs := []int64{shopID}
	if all {
		shopIDs, err = activeShopIDs(&cfg.Database, log)
		if err != nil {
			log.Fatal("Failed to list active shops", zap.Error(err))
		}
	}

	failed := 0
	for _, id := range shopIDs {
		jobID, err := publisher.PublishSync(id, rangeDays, delay)
		if err != nil {
			failed++
			log.Error("Failed to enqueue sync", zap.Int64("shop_id", id), zap.Error(err))
			continue
		}
		log.Info("Enqueued sync",
			zap.Int64("shop_id", id),
			zap.String("message_id", jobID),
			zap.Int("range_days", rangeDays),
		)
	}

	log.Info("Done", zap.Int("enqueued", len(shopIDs)-failed), zap.Int("failed", failed))
	if failed > 0 {
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func activeShopIDs(dbCfg *config.DatabaseConfig, log *zap.Logger) ([]int64, error) {
	db, err := persistence.NewDatabase(dbCfg,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel("warn"))),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = db.Close()
	}()

	shops, err := persistence.NewGormShopRepository(db.DB).ListActive(context.Background())
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(shops))
	for _, s := range shops {
		ids = append(ids, s.ShopID)
	}
	return ids, nil
}
