package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the gorm handle shared by the repositories
type Database struct {
	DB *gorm.DB
}

// DatabaseOption configures NewDatabase
type DatabaseOption func(*gorm.Config, *[]gorm.Plugin)

// WithGormLogger sets the gorm logger (see logger.NewGormLogger). The
// default is silent.
func WithGormLogger(l logger.Interface) DatabaseOption {
	return func(c *gorm.Config, _ *[]gorm.Plugin) { c.Logger = l }
}

// WithPlugins installs gorm plugins, in order, before the first query
func WithPlugins(plugins ...gorm.Plugin) DatabaseOption {
	return func(_ *gorm.Config, p *[]gorm.Plugin) { *p = append(*p, plugins...) }
}

// NewDatabase opens the PostgreSQL pool described by cfg and checks that
// the server answers.
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	var plugins []gorm.Plugin
	for _, opt := range opts {
		opt(gormCfg, &plugins)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, p := range plugins {
		if err := db.Use(p); err != nil {
			return nil, fmt.Errorf("install gorm plugin %s: %w", p.Name(), err)
		}
	}

	d := &Database{DB: db}
	pool, err := d.SQL()
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return d, nil
}

// SQL returns the underlying connection pool
func (d *Database) SQL() (*sql.DB, error) {
	pool, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	return pool, nil
}

// Close closes the pool
func (d *Database) Close() error {
	pool, err := d.SQL()
	if err != nil {
		return err
	}
	return pool.Close()
}

// Ping checks that the server answers within ctx
func (d *Database) Ping(ctx context.Context) error {
	pool, err := d.SQL()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// Transaction runs fn in a transaction bound to ctx. fn's error rolls it back.
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}

// ShopScope restricts a query to one shop's rows through column. It panics
// on uuid.Nil so a missing id never turns into an unscoped read.
func ShopScope(column string, shopID uuid.UUID) func(*gorm.DB) *gorm.DB {
	if shopID == uuid.Nil {
		panic("persistence: ShopScope with nil shop id")
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", shopID)
	}
}
