package integration

import "time"

// ShippingRiskWindow is how far ahead of the ship-by deadline an order
// starts to count as at risk.
const ShippingRiskWindow = 24 * time.Hour

// ShippingRisk holds the derived shipping flags of an order
type ShippingRisk struct {
	Late   bool
	AtRisk bool
}

// AssessShippingRisk derives shipping flags from the order status and
// ship-by deadline. Only orders waiting to be shipped can be late or at
// risk; a missing deadline yields no flags.
func AssessShippingRisk(status OrderStatus, shipBy *time.Time, now time.Time) ShippingRisk {
	if shipBy == nil || !status.IsReadyToShip() {
		return ShippingRisk{}
	}

	left := shipBy.Sub(now)
	return ShippingRisk{
		Late:   left < 0,
		AtRisk: left >= 0 && left <= ShippingRiskWindow,
	}
}
