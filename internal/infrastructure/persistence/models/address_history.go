package models

import (
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
)

// AddressSnapshotModel is the persistence model for AddressSnapshot.
// Rows are append-only.
type AddressSnapshotModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index:idx_address_snapshots_order_created,priority:1"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Phone       string    `gorm:"type:varchar(64);not null"`
	Town        string    `gorm:"type:varchar(200);not null"`
	District    string    `gorm:"type:varchar(200);not null"`
	City        string    `gorm:"type:varchar(200);not null"`
	State       string    `gorm:"type:varchar(200);not null"`
	Region      string    `gorm:"type:varchar(8);not null"`
	Zipcode     string    `gorm:"type:varchar(32);not null"`
	FullAddress string    `gorm:"type:text;not null"`
	Hash        string    `gorm:"type:varchar(64);not null"`
	CreatedAt   time.Time `gorm:"not null;index:idx_address_snapshots_order_created,priority:2"`
}

// TableName returns the table name for GORM
func (AddressSnapshotModel) TableName() string {
	return "order_address_snapshots"
}

// ToDomain converts the persistence model to a domain AddressSnapshot.
func (m *AddressSnapshotModel) ToDomain() *integration.AddressSnapshot {
	return &integration.AddressSnapshot{
		ID:      m.ID,
		OrderID: m.OrderID,
		Address: integration.RecipientAddress{
			Name:        m.Name,
			Phone:       m.Phone,
			Town:        m.Town,
			District:    m.District,
			City:        m.City,
			State:       m.State,
			Region:      m.Region,
			Zipcode:     m.Zipcode,
			FullAddress: m.FullAddress,
		},
		Hash:      m.Hash,
		CreatedAt: m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain AddressSnapshot.
func (m *AddressSnapshotModel) FromDomain(s *integration.AddressSnapshot) {
	m.ID = s.ID
	m.OrderID = s.OrderID
	m.Name = s.Address.Name
	m.Phone = s.Address.Phone
	m.Town = s.Address.Town
	m.District = s.Address.District
	m.City = s.Address.City
	m.State = s.Address.State
	m.Region = s.Address.Region
	m.Zipcode = s.Address.Zipcode
	m.FullAddress = s.Address.FullAddress
	m.Hash = s.Hash
	m.CreatedAt = s.CreatedAt
}

// AddressChangeAlertModel is the persistence model for AddressChangeAlert.
// A NULL resolved_at marks an open alert.
type AddressChangeAlertModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key"`
	OrderID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_address_alerts_order_new_hash,priority:1"`
	OldSnapshotID uuid.UUID  `gorm:"type:uuid;not null"`
	NewSnapshotID uuid.UUID  `gorm:"type:uuid;not null"`
	OldHash       string     `gorm:"type:varchar(64);not null"`
	NewHash       string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_address_alerts_order_new_hash,priority:2"`
	DetectedAt    time.Time  `gorm:"not null;index"`
	ResolvedAt    *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (AddressChangeAlertModel) TableName() string {
	return "order_address_change_alerts"
}

// ToDomain converts the persistence model to a domain AddressChangeAlert.
func (m *AddressChangeAlertModel) ToDomain() *integration.AddressChangeAlert {
	return &integration.AddressChangeAlert{
		ID:            m.ID,
		OrderID:       m.OrderID,
		OldSnapshotID: m.OldSnapshotID,
		NewSnapshotID: m.NewSnapshotID,
		OldHash:       m.OldHash,
		NewHash:       m.NewHash,
		DetectedAt:    m.DetectedAt,
		ResolvedAt:    m.ResolvedAt,
	}
}

// FromDomain populates the persistence model from a domain AddressChangeAlert.
func (m *AddressChangeAlertModel) FromDomain(a *integration.AddressChangeAlert) {
	m.ID = a.ID
	m.OrderID = a.OrderID
	m.OldSnapshotID = a.OldSnapshotID
	m.NewSnapshotID = a.NewSnapshotID
	m.OldHash = a.OldHash
	m.NewHash = a.NewHash
	m.DetectedAt = a.DetectedAt
	m.ResolvedAt = a.ResolvedAt
}
