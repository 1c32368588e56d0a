package dto

import (
	"time"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
)

// AlertListQuery is the query of the open alert listing
type AlertListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// LocationResponse is the coarse, PII-free part of an address
type LocationResponse struct {
	Region  string `json:"region,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
	Zipcode string `json:"zipcode,omitempty"`
}

func toLocation(l integration.AddressLocation) LocationResponse {
	return LocationResponse{Region: l.Region, State: l.State, City: l.City, Zipcode: l.Zipcode}
}

// OpenAlertResponse is one row of the open alert listing
type OpenAlertResponse struct {
	AlertID     uuid.UUID        `json:"alertId"`
	OrderID     uuid.UUID        `json:"orderId"`
	OrderSN     string           `json:"orderSn"`
	OrderStatus string           `json:"orderStatus"`
	OldHash     string           `json:"oldHash"`
	NewHash     string           `json:"newHash"`
	DetectedAt  time.Time        `json:"detectedAt"`
	Old         LocationResponse `json:"old"`
	New         LocationResponse `json:"new"`
}

// ToOpenAlertResponses converts the listing
func ToOpenAlertResponses(alerts []integration.OpenAlertSummary) []OpenAlertResponse {
	out := make([]OpenAlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, OpenAlertResponse{
			AlertID:     a.AlertID,
			OrderID:     a.OrderID,
			OrderSN:     a.OrderSN,
			OrderStatus: string(a.OrderStatus),
			OldHash:     a.OldHash,
			NewHash:     a.NewHash,
			DetectedAt:  a.DetectedAt,
			Old:         toLocation(a.OldLocation),
			New:         toLocation(a.NewLocation),
		})
	}
	return out
}

// AddressResponse is a full recipient address
type AddressResponse struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Town        string `json:"town"`
	District    string `json:"district"`
	City        string `json:"city"`
	State       string `json:"state"`
	Region      string `json:"region"`
	Zipcode     string `json:"zipcode"`
	FullAddress string `json:"fullAddress"`
}

// SnapshotResponse is a stored address snapshot
type SnapshotResponse struct {
	ID        uuid.UUID       `json:"id"`
	Hash      string          `json:"hash"`
	CreatedAt time.Time       `json:"createdAt"`
	Address   AddressResponse `json:"address"`
}

func toSnapshot(s *integration.AddressSnapshot) *SnapshotResponse {
	if s == nil {
		return nil
	}
	a := s.Address
	return &SnapshotResponse{
		ID:        s.ID,
		Hash:      s.Hash,
		CreatedAt: s.CreatedAt,
		Address: AddressResponse{
			Name:        a.Name,
			Phone:       a.Phone,
			Town:        a.Town,
			District:    a.District,
			City:        a.City,
			State:       a.State,
			Region:      a.Region,
			Zipcode:     a.Zipcode,
			FullAddress: a.FullAddress,
		},
	}
}

// AlertResponse is an alert with both snapshots
type AlertResponse struct {
	ID          uuid.UUID         `json:"id"`
	OldHash     string            `json:"oldHash"`
	NewHash     string            `json:"newHash"`
	DetectedAt  time.Time         `json:"detectedAt"`
	ResolvedAt  *time.Time        `json:"resolvedAt,omitempty"`
	OldSnapshot *SnapshotResponse `json:"oldSnapshot"`
	NewSnapshot *SnapshotResponse `json:"newSnapshot"`
}

// OrderSummaryResponse is the order part of the order alert view
type OrderSummaryResponse struct {
	ID         uuid.UUID  `json:"id"`
	OrderSN    string     `json:"orderSn"`
	Status     string     `json:"status"`
	ShipByDate *time.Time `json:"shipByDate,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// OrderAlertsResponse is an order with its open alerts
type OrderAlertsResponse struct {
	Order  OrderSummaryResponse `json:"order"`
	Alerts []AlertResponse      `json:"alerts"`
}

// ToOrderAlertsResponse converts the single order view
func ToOrderAlertsResponse(oa *ordersync.OrderAlerts) OrderAlertsResponse {
	resp := OrderAlertsResponse{
		Order: OrderSummaryResponse{
			ID:         oa.Order.ID,
			OrderSN:    oa.Order.OrderSN,
			Status:     string(oa.Order.Status),
			ShipByDate: oa.Order.ShipByDate,
			UpdatedAt:  oa.Order.UpdatedAt,
		},
		Alerts: make([]AlertResponse, 0, len(oa.Alerts)),
	}
	for _, a := range oa.Alerts {
		resp.Alerts = append(resp.Alerts, AlertResponse{
			ID:          a.Alert.ID,
			OldHash:     a.Alert.OldHash,
			NewHash:     a.Alert.NewHash,
			DetectedAt:  a.Alert.DetectedAt,
			ResolvedAt:  a.Alert.ResolvedAt,
			OldSnapshot: toSnapshot(a.OldSnapshot),
			NewSnapshot: toSnapshot(a.NewSnapshot),
		})
	}
	return resp
}

// ResolvedAlertResponse is returned by the resolve endpoint
type ResolvedAlertResponse struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"orderId"`
	ResolvedAt *time.Time `json:"resolvedAt"`
}

// ToResolvedAlertResponse converts a resolved alert
func ToResolvedAlertResponse(a *integration.AddressChangeAlert) ResolvedAlertResponse {
	return ResolvedAlertResponse{ID: a.ID, OrderID: a.OrderID, ResolvedAt: a.ResolvedAt}
}
