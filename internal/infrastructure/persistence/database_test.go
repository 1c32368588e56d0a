package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockDatabase opens a Database over sqlmock with the postgres dialect
func mockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return &Database{DB: db}, mock
}

type scopedRow struct {
	ID     uint
	ShopID uuid.UUID
}

func TestShopScope_FiltersByColumn(t *testing.T) {
	db, mock := mockDatabase(t)
	shopID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "scoped_rows" WHERE o\.shop_id = \$1`).
		WithArgs(shopID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id"}).AddRow(1, shopID))

	var rows []scopedRow
	require.NoError(t, db.DB.Scopes(ShopScope("o.shop_id", shopID)).Find(&rows).Error)
	assert.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShopScope_NilShopPanics(t *testing.T) {
	assert.Panics(t, func() { ShopScope("shop_id", uuid.Nil) })
}

func TestDatabase_Ping(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
	}{
		{"server answers", nil},
		{"server down", errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := mockDatabase(t)
			mock.ExpectPing().WillReturnError(tt.pingErr)

			err := db.Ping(context.Background())
			if tt.pingErr != nil {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("commits when fn succeeds", func(t *testing.T) {
		db, mock := mockDatabase(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "scoped_rows"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			return tx.Create(&scopedRow{ShopID: uuid.New()}).Error
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock := mockDatabase(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := db.Transaction(context.Background(), func(*gorm.DB) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_SQLAndClose(t *testing.T) {
	db, mock := mockDatabase(t)

	pool, err := db.SQL()
	require.NoError(t, err)
	assert.NotNil(t, pool)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
