package integration

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// gmvFields lists the payload fields that may carry the order total, in
// order of preference.
var gmvFields = []string{
	"total_amount",
	"totalAmount",
	"order_total",
	"orderTotal",
	"gmv",
	"total",
}

// gmvCentsThreshold is the smallest integral amount assumed to already be
// expressed in cents.
var gmvCentsThreshold = decimal.NewFromInt(1000)

var hundred = decimal.NewFromInt(100)

// ExtractGMVCents derives a best-effort order total in minor currency units
// from raw payload fields. The first field holding a number wins. Integral
// values of 1000 or more are taken as cents; anything else is a major unit
// amount and is multiplied by 100 and rounded. Returns 0 when no field
// parses.
func ExtractGMVCents(fields map[string]any) int64 {
	for _, name := range gmvFields {
		raw, ok := fields[name]
		if !ok || raw == nil {
			continue
		}
		amount, ok := parseAmount(raw)
		if !ok {
			continue
		}
		if amount.IsInteger() && amount.GreaterThanOrEqual(gmvCentsThreshold) {
			return amount.IntPart()
		}
		return amount.Mul(hundred).Round(0).IntPart()
	}
	return 0
}

func parseAmount(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, true
	case json.Number:
		return parseAmount(v.String())
	case string:
		s := strings.Replace(strings.TrimSpace(v), ",", ".", 1)
		if s == "" {
			// a blank amount is zero, not missing
			return decimal.Zero, true
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return parseAmount(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	default:
		return decimal.Zero, false
	}
}
