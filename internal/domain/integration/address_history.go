package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlertNotFound    = errors.New("integration: address change alert not found")
	ErrSnapshotNotFound = errors.New("integration: address snapshot not found")
)

// ---------------------------------------------------------------------------
// AddressSnapshot
// ---------------------------------------------------------------------------

// AddressSnapshot is an immutable record of one observed address of an
// order. The newest snapshot of an order is its current address.
type AddressSnapshot struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Address   RecipientAddress
	Hash      string
	CreatedAt time.Time
}

// NewAddressSnapshot creates a snapshot of addr with its content hash.
// Snapshot IDs are UUIDv7, so they sort in creation order and break ties
// between snapshots sharing a CreatedAt.
func NewAddressSnapshot(orderID uuid.UUID, addr RecipientAddress, fp AddressFingerprint, now time.Time) *AddressSnapshot {
	return &AddressSnapshot{
		ID:        uuid.Must(uuid.NewV7()),
		OrderID:   orderID,
		Address:   addr,
		Hash:      fp.Hash,
		CreatedAt: now,
	}
}

// Key recomputes the comparison key from the stored fields. Stored hashes
// may come from an older normalization, so comparisons go through Key.
func (s *AddressSnapshot) Key() string {
	return AddressKey(s.Address)
}

// Location returns the non-identifying part of the snapshot
func (s *AddressSnapshot) Location() AddressLocation {
	return AddressLocation{
		Region:  s.Address.Region,
		State:   s.Address.State,
		City:    s.Address.City,
		Zipcode: s.Address.Zipcode,
	}
}

// AddressLocation is the coarse, PII-free part of an address
type AddressLocation struct {
	Region  string
	State   string
	City    string
	Zipcode string
}

// ---------------------------------------------------------------------------
// AddressChangeAlert
// ---------------------------------------------------------------------------

// AddressChangeAlert records a transition between two snapshots of one
// order. At most one alert exists per (OrderID, NewHash); re-detecting the
// same transition reopens it instead of creating another.
type AddressChangeAlert struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	OldSnapshotID uuid.UUID
	NewSnapshotID uuid.UUID
	OldHash       string
	NewHash       string
	DetectedAt    time.Time
	ResolvedAt    *time.Time
}

// NewAddressChangeAlert creates an open alert for the transition old -> new
func NewAddressChangeAlert(old, current *AddressSnapshot, now time.Time) *AddressChangeAlert {
	return &AddressChangeAlert{
		ID:            uuid.New(),
		OrderID:       current.OrderID,
		OldSnapshotID: old.ID,
		NewSnapshotID: current.ID,
		OldHash:       old.Hash,
		NewHash:       current.Hash,
		DetectedAt:    now,
	}
}

// IsOpen returns true until the alert is resolved
func (a *AddressChangeAlert) IsOpen() bool {
	return a.ResolvedAt == nil
}

// AlertWithSnapshots is an alert together with both of its snapshots
type AlertWithSnapshots struct {
	Alert       AddressChangeAlert
	OldSnapshot *AddressSnapshot
	NewSnapshot *AddressSnapshot
}

// IsFalsePositive returns true if both snapshots normalize to the same key,
// which happens for alerts raised before normalization was tightened.
func (a *AlertWithSnapshots) IsFalsePositive() bool {
	if a.OldSnapshot == nil || a.NewSnapshot == nil {
		return false
	}
	return a.OldSnapshot.Key() == a.NewSnapshot.Key()
}

// OpenAlertSummary is the PII-free listing view of an open alert
type OpenAlertSummary struct {
	AlertID     uuid.UUID
	OrderID     uuid.UUID
	OrderSN     string
	OrderStatus OrderStatus
	OldHash     string
	NewHash     string
	DetectedAt  time.Time
	OldLocation AddressLocation
	NewLocation AddressLocation
}

// ---------------------------------------------------------------------------
// AddressHistoryRepository
// ---------------------------------------------------------------------------

// AddressHistoryRepository stores snapshots and alerts
type AddressHistoryRepository interface {
	// LatestSnapshot returns the most recent snapshot of the order, or nil
	// if the order has none.
	LatestSnapshot(ctx context.Context, orderID uuid.UUID) (*AddressSnapshot, error)

	// CreateSnapshot appends a snapshot
	CreateSnapshot(ctx context.Context, snapshot *AddressSnapshot) error

	// RepairSnapshotHash rewrites the stored hash of an existing snapshot
	RepairSnapshotHash(ctx context.Context, snapshotID uuid.UUID, hash string) error

	// RecordChange appends snapshot and upserts alert on (OrderID, NewHash)
	// in a single transaction. On conflict the existing alert is reopened
	// and its detection time, snapshot references and old hash refreshed.
	RecordChange(ctx context.Context, snapshot *AddressSnapshot, alert *AddressChangeAlert) error

	// ResolveOpenAlerts resolves every open alert of the order and returns
	// how many were resolved.
	ResolveOpenAlerts(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error)

	// FindAlert returns ErrAlertNotFound when the alert does not exist
	FindAlert(ctx context.Context, alertID uuid.UUID) (*AddressChangeAlert, error)

	// ResolveAlert resolves one alert; resolving a resolved alert is a no-op
	ResolveAlert(ctx context.Context, alertID uuid.UUID, at time.Time) error

	// ListOpenAlertsByShop lists open alerts of a shop, newest detection first
	ListOpenAlertsByShop(ctx context.Context, shopID uuid.UUID, limit int) ([]OpenAlertSummary, error)

	// ListOpenAlertsByOrder lists open alerts of an order with snapshots,
	// newest detection first
	ListOpenAlertsByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]AlertWithSnapshots, error)

	// ListOpenAlertsAfter pages through all open alerts ordered by ID,
	// starting after the given ID (uuid.Nil for the first page).
	ListOpenAlertsAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]AlertWithSnapshots, error)

	// CountSnapshots returns the number of snapshots of the order
	CountSnapshots(ctx context.Context, orderID uuid.UUID) (int64, error)
}
