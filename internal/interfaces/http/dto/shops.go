package dto

import (
	"time"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/google/uuid"
)

// RegisterShopRequest registers a shop or updates its registration. Empty
// fields keep their stored value.
type RegisterShopRequest struct {
	Name        string `json:"name" binding:"omitempty,max=200"`
	Region      string `json:"region" binding:"omitempty,len=2,alpha"`
	AccessToken string `json:"accessToken" binding:"omitempty,max=512"`
	IsActive    *bool  `json:"isActive"`
}

// ShopResponse is the API view of a shop. The access token is never
// returned.
type ShopResponse struct {
	ID        uuid.UUID `json:"id"`
	ShopID    int64     `json:"shopId"`
	Name      string    `json:"name"`
	Region    string    `json:"region"`
	IsActive  bool      `json:"isActive"`
	HasToken  bool      `json:"hasToken"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToShopResponse converts a shop
func ToShopResponse(s *integration.Shop) ShopResponse {
	return ShopResponse{
		ID:        s.ID,
		ShopID:    s.ShopID,
		Name:      s.Name,
		Region:    s.Region,
		IsActive:  s.IsActive,
		HasToken:  s.AccessToken != "",
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// ToShopResponses converts a shop list
func ToShopResponses(shops []integration.Shop) []ShopResponse {
	out := make([]ShopResponse, 0, len(shops))
	for i := range shops {
		out = append(out, ToShopResponse(&shops[i]))
	}
	return out
}
