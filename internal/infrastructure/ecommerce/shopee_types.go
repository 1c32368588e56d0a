package ecommerce

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/ordersync/internal/domain/integration"
)

// shopeeEnvelope is the common response wrapper. A non-empty Error means the
// call failed regardless of the HTTP status.
type shopeeEnvelope struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Response  json.RawMessage `json:"response"`
}

type shopeeOrderListResponse struct {
	More       bool   `json:"more"`
	NextCursor string `json:"next_cursor"`
	OrderList  []struct {
		OrderSN string `json:"order_sn"`
	} `json:"order_list"`
}

type shopeeOrderDetailResponse struct {
	OrderList []json.RawMessage `json:"order_list"`
}

type shopeeRecipientAddress struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Town        string `json:"town"`
	District    string `json:"district"`
	City        string `json:"city"`
	State       string `json:"state"`
	Region      string `json:"region"`
	Zipcode     string `json:"zipcode"`
	FullAddress string `json:"full_address"`
}

type shopeeOrderDetail struct {
	OrderSN               string                  `json:"order_sn"`
	OrderStatus           string                  `json:"order_status"`
	Currency              string                  `json:"currency"`
	Region                string                  `json:"region"`
	CreateTime            int64                   `json:"create_time"`
	UpdateTime            int64                   `json:"update_time"`
	ShipByDate            int64                   `json:"ship_by_date"`
	DaysToShip            *int                    `json:"days_to_ship"`
	BookingSN             string                  `json:"booking_sn"`
	COD                   *bool                   `json:"cod"`
	AdvancePackage        *bool                   `json:"advance_package"`
	HotListingOrder       *bool                   `json:"hot_listing_order"`
	IsBuyerShopCollection *bool                   `json:"is_buyer_shop_collection"`
	MessageToSeller       string                  `json:"message_to_seller"`
	ReverseShippingFee    *decimal.Decimal        `json:"reverse_shipping_fee"`
	RecipientAddress      *shopeeRecipientAddress `json:"recipient_address"`
}

// decodeShopeeOrderDetail maps one raw order of the detail response. Scalar
// fields of the payload are kept in Amounts so the GMV can be extracted from
// whichever total field the marketplace sent.
func decodeShopeeOrderDetail(raw json.RawMessage) (integration.OrderDetail, error) {
	var d shopeeOrderDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		return integration.OrderDetail{}, err
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return integration.OrderDetail{}, err
	}
	amounts := make(map[string]any, len(fields))
	for k, v := range fields {
		switch v.(type) {
		case json.Number, string:
			amounts[k] = v
		}
	}

	detail := integration.OrderDetail{
		OrderSN:               d.OrderSN,
		Status:                d.OrderStatus,
		Currency:              d.Currency,
		Region:                d.Region,
		CreateTime:            epochSeconds(d.CreateTime),
		UpdateTime:            epochSeconds(d.UpdateTime),
		ShipByDate:            epochSeconds(d.ShipByDate),
		DaysToShip:            d.DaysToShip,
		BookingSN:             d.BookingSN,
		COD:                   d.COD,
		AdvancePackage:        d.AdvancePackage,
		HotListingOrder:       d.HotListingOrder,
		IsBuyerShopCollection: d.IsBuyerShopCollection,
		MessageToSeller:       d.MessageToSeller,
		ReverseShippingFee:    d.ReverseShippingFee,
		Amounts:               amounts,
	}
	if a := d.RecipientAddress; a != nil {
		detail.RecipientAddress = &integration.RecipientAddress{
			Name:        a.Name,
			Phone:       a.Phone,
			Town:        a.Town,
			District:    a.District,
			City:        a.City,
			State:       a.State,
			Region:      a.Region,
			Zipcode:     a.Zipcode,
			FullAddress: a.FullAddress,
		}
	}
	return detail, nil
}

// epochSeconds converts a marketplace timestamp; zero means absent
func epochSeconds(v int64) *time.Time {
	if v <= 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
