// Package shipping computes shipping costs from zone reference data.
// The calculation is pure: it never touches the database and has no
// failure modes, so both the order placement transaction and the
// preview endpoint share it.
package shipping

import (
	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// ItemWeight carries the weight contribution of one order line. Products
// without weight data contribute zero.
type ItemWeight struct {
	WeightKg decimal.Decimal
	Quantity int
}

// Cost returns the shipping cost for an order subtotal shipped to zone.
//
// No zone means no shipping charge. If the zone offers free shipping above a
// threshold and the subtotal reaches it, the cost is zero. Otherwise the cost
// is the zone base rate plus total weight times the zone's per-kg rate, when
// both are present.
func Cost(zone *domain.ShippingZone, subtotal decimal.Decimal, items []ItemWeight) decimal.Decimal {
	if zone == nil {
		return decimal.Zero
	}

	if zone.FreeShippingThreshold.Valid && subtotal.GreaterThanOrEqual(zone.FreeShippingThreshold.Decimal) {
		return decimal.Zero
	}

	cost := zone.BaseRate

	totalWeight := decimal.Zero
	for _, item := range items {
		totalWeight = totalWeight.Add(item.WeightKg.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if totalWeight.IsPositive() && zone.PerKgRate.Valid {
		cost = cost.Add(totalWeight.Mul(zone.PerKgRate.Decimal))
	}

	return cost
}

// Free reports whether shipping to zone would be free for the given subtotal.
func Free(zone *domain.ShippingZone, subtotal decimal.Decimal) bool {
	if zone == nil {
		return true
	}
	return zone.FreeShippingThreshold.Valid && subtotal.GreaterThanOrEqual(zone.FreeShippingThreshold.Decimal)
}
