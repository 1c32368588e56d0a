package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAddressHistoryRepository implements integration.AddressHistoryRepository
// using GORM
type GormAddressHistoryRepository struct {
	db *gorm.DB
}

// NewGormAddressHistoryRepository creates a new GormAddressHistoryRepository
func NewGormAddressHistoryRepository(db *gorm.DB) *GormAddressHistoryRepository {
	return &GormAddressHistoryRepository{db: db}
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// LatestSnapshot returns the newest snapshot of the order or nil
func (r *GormAddressHistoryRepository) LatestSnapshot(ctx context.Context, orderID uuid.UUID) (*integration.AddressSnapshot, error) {
	var snapshotModels []models.AddressSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&snapshotModels).Error; err != nil {
		return nil, err
	}
	if len(snapshotModels) == 0 {
		return nil, nil
	}
	return snapshotModels[0].ToDomain(), nil
}

// CreateSnapshot appends a snapshot
func (r *GormAddressHistoryRepository) CreateSnapshot(ctx context.Context, snapshot *integration.AddressSnapshot) error {
	model := &models.AddressSnapshotModel{}
	model.FromDomain(snapshot)
	return r.db.WithContext(ctx).Create(model).Error
}

// RepairSnapshotHash overwrites the stored hash of a snapshot
func (r *GormAddressHistoryRepository) RepairSnapshotHash(ctx context.Context, snapshotID uuid.UUID, hash string) error {
	result := r.db.WithContext(ctx).
		Model(&models.AddressSnapshotModel{}).
		Where("id = ?", snapshotID).
		Update("hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrSnapshotNotFound
	}
	return nil
}

// CountSnapshots returns the number of snapshots of the order
func (r *GormAddressHistoryRepository) CountSnapshots(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AddressSnapshotModel{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

// RecordChange appends the snapshot and upserts the alert atomically
func (r *GormAddressHistoryRepository) RecordChange(ctx context.Context, snapshot *integration.AddressSnapshot, alert *integration.AddressChangeAlert) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshotModel := &models.AddressSnapshotModel{}
		snapshotModel.FromDomain(snapshot)
		if err := tx.Create(snapshotModel).Error; err != nil {
			return err
		}

		alertModel := &models.AddressChangeAlertModel{}
		alertModel.FromDomain(alert)
		alertModel.ResolvedAt = nil
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}, {Name: "new_hash"}},
			DoUpdates: clause.Assignments(map[string]any{
				"resolved_at":     nil,
				"detected_at":     alert.DetectedAt,
				"old_snapshot_id": alert.OldSnapshotID,
				"new_snapshot_id": alert.NewSnapshotID,
				"old_hash":        alert.OldHash,
			}),
		}).Create(alertModel).Error; err != nil {
			return err
		}

		var stored models.AddressChangeAlertModel
		if err := tx.Select("id").
			Where("order_id = ? AND new_hash = ?", alert.OrderID, alert.NewHash).
			First(&stored).Error; err != nil {
			return err
		}
		alert.ID = stored.ID
		alert.ResolvedAt = nil
		return nil
	})
}

// ResolveOpenAlerts resolves all open alerts of the order
func (r *GormAddressHistoryRepository) ResolveOpenAlerts(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AddressChangeAlertModel{}).
		Where("order_id = ? AND resolved_at IS NULL", orderID).
		Update("resolved_at", at)
	return result.RowsAffected, result.Error
}

// FindAlert finds an alert by id
func (r *GormAddressHistoryRepository) FindAlert(ctx context.Context, alertID uuid.UUID) (*integration.AddressChangeAlert, error) {
	var model models.AddressChangeAlertModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrAlertNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ResolveAlert resolves a single alert if it is still open
func (r *GormAddressHistoryRepository) ResolveAlert(ctx context.Context, alertID uuid.UUID, at time.Time) error {
	if _, err := r.FindAlert(ctx, alertID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.AddressChangeAlertModel{}).
		Where("id = ? AND resolved_at IS NULL", alertID).
		Update("resolved_at", at).Error
}

// openAlertRow is one row of the shop listing join
type openAlertRow struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	OldSnapshotID uuid.UUID
	NewSnapshotID uuid.UUID
	OldHash       string
	NewHash       string
	DetectedAt    time.Time
	OrderSN       string `gorm:"column:order_sn"`
	OrderStatus   string `gorm:"column:order_status"`
}

// ListOpenAlertsByShop lists open alerts of a shop with the coarse location
// of both snapshots
func (r *GormAddressHistoryRepository) ListOpenAlertsByShop(ctx context.Context, shopID uuid.UUID, limit int) ([]integration.OpenAlertSummary, error) {
	var rows []openAlertRow
	if err := r.db.WithContext(ctx).
		Table("order_address_change_alerts AS a").
		Select("a.id, a.order_id, a.old_snapshot_id, a.new_snapshot_id, a.old_hash, a.new_hash, a.detected_at, o.order_sn, o.status AS order_status").
		Joins("JOIN marketplace_orders o ON o.id = a.order_id").
		Scopes(ShopScope("o.shop_id", shopID)).
		Where("a.resolved_at IS NULL").
		Order("a.detected_at DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(rows)*2)
	for _, row := range rows {
		ids = append(ids, row.OldSnapshotID, row.NewSnapshotID)
	}
	snapshots, err := r.snapshotsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]integration.OpenAlertSummary, len(rows))
	for i, row := range rows {
		summaries[i] = integration.OpenAlertSummary{
			AlertID:     row.ID,
			OrderID:     row.OrderID,
			OrderSN:     row.OrderSN,
			OrderStatus: integration.OrderStatus(row.OrderStatus),
			OldHash:     row.OldHash,
			NewHash:     row.NewHash,
			DetectedAt:  row.DetectedAt,
		}
		if s, ok := snapshots[row.OldSnapshotID]; ok {
			summaries[i].OldLocation = s.Location()
		}
		if s, ok := snapshots[row.NewSnapshotID]; ok {
			summaries[i].NewLocation = s.Location()
		}
	}
	return summaries, nil
}

// ListOpenAlertsByOrder lists open alerts of an order with both snapshots
func (r *GormAddressHistoryRepository) ListOpenAlertsByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]integration.AlertWithSnapshots, error) {
	var alertModels []models.AddressChangeAlertModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND resolved_at IS NULL", orderID).
		Order("detected_at DESC").
		Limit(limit).
		Find(&alertModels).Error; err != nil {
		return nil, err
	}
	return r.withSnapshots(ctx, alertModels)
}

// ListOpenAlertsAfter pages through open alerts of all shops in id order
func (r *GormAddressHistoryRepository) ListOpenAlertsAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]integration.AlertWithSnapshots, error) {
	var alertModels []models.AddressChangeAlertModel
	if err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL AND id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&alertModels).Error; err != nil {
		return nil, err
	}
	return r.withSnapshots(ctx, alertModels)
}

func (r *GormAddressHistoryRepository) withSnapshots(ctx context.Context, alertModels []models.AddressChangeAlertModel) ([]integration.AlertWithSnapshots, error) {
	ids := make([]uuid.UUID, 0, len(alertModels)*2)
	for _, m := range alertModels {
		ids = append(ids, m.OldSnapshotID, m.NewSnapshotID)
	}
	snapshots, err := r.snapshotsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]integration.AlertWithSnapshots, len(alertModels))
	for i, m := range alertModels {
		result[i] = integration.AlertWithSnapshots{
			Alert:       *m.ToDomain(),
			OldSnapshot: snapshots[m.OldSnapshotID],
			NewSnapshot: snapshots[m.NewSnapshotID],
		}
	}
	return result, nil
}

func (r *GormAddressHistoryRepository) snapshotsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*integration.AddressSnapshot, error) {
	out := make(map[uuid.UUID]*integration.AddressSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var snapshotModels []models.AddressSnapshotModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&snapshotModels).Error; err != nil {
		return nil, err
	}
	for i := range snapshotModels {
		out[snapshotModels[i].ID] = snapshotModels[i].ToDomain()
	}
	return out, nil
}

// Ensure GormAddressHistoryRepository implements the interface
var _ integration.AddressHistoryRepository = (*GormAddressHistoryRepository)(nil)
