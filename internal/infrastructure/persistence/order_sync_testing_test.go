package persistence

import (
	"testing"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupOrderSyncTestDB opens an in-memory SQLite database with the order
// sync schema. A single connection keeps every query on the same database.
func setupOrderSyncTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, shopID uuid.UUID, orderSN string, gmvCents int64, created time.Time) *integration.Order {
	order := &integration.Order{
		ShopID:          shopID,
		OrderSN:         orderSN,
		Status:          integration.OrderStatusReadyToShip,
		GMVCents:        gmvCents,
		SourceCreatedAt: &created,
		LastSyncedAt:    created,
	}
	require.NoError(t, NewGormOrderRepository(db).Upsert(t.Context(), order))
	return order
}
