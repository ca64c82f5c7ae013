package shipping

import (
	"testing"

	"storefront/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func zone(base string, perKg string, threshold string) *domain.ShippingZone {
	z := &domain.ShippingZone{
		Name:     "Test Zone",
		Country:  "US",
		BaseRate: decimal.RequireFromString(base),
	}
	if perKg != "" {
		z.PerKgRate = decimal.NewNullDecimal(decimal.RequireFromString(perKg))
	}
	if threshold != "" {
		z.FreeShippingThreshold = decimal.NewNullDecimal(decimal.RequireFromString(threshold))
	}
	return z
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCost(t *testing.T) {
	cases := []struct {
		name     string
		zone     *domain.ShippingZone
		subtotal string
		items    []ItemWeight
		want     string
	}{
		{
			name:     "no zone ships free",
			zone:     nil,
			subtotal: "100.00",
			want:     "0",
		},
		{
			name:     "subtotal above threshold ships free",
			zone:     zone("25.00", "", "500.00"),
			subtotal: "600.00",
			want:     "0",
		},
		{
			name:     "subtotal at threshold ships free",
			zone:     zone("25.00", "", "500.00"),
			subtotal: "500.00",
			want:     "0",
		},
		{
			name:     "below threshold pays base rate",
			zone:     zone("25.00", "", "500.00"),
			subtotal: "300.00",
			want:     "25.00",
		},
		{
			name:     "no threshold always pays",
			zone:     zone("30.00", "", ""),
			subtotal: "10000.00",
			want:     "30.00",
		},
		{
			name:     "weight adds per-kg rate",
			zone:     zone("5.00", "0.50", ""),
			subtotal: "50.00",
			items:    []ItemWeight{{WeightKg: d("2.0"), Quantity: 3}}, // 6 kg
			want:     "8.00",
		},
		{
			name:     "weightless items pay base only",
			zone:     zone("5.00", "0.50", ""),
			subtotal: "50.00",
			items:    []ItemWeight{{WeightKg: decimal.Zero, Quantity: 10}},
			want:     "5.00",
		},
		{
			name:     "weight ignored without per-kg rate",
			zone:     zone("5.00", "", ""),
			subtotal: "50.00",
			items:    []ItemWeight{{WeightKg: d("10.0"), Quantity: 1}},
			want:     "5.00",
		},
		{
			name:     "threshold beats weight charges",
			zone:     zone("5.00", "0.50", "40.00"),
			subtotal: "45.00",
			items:    []ItemWeight{{WeightKg: d("10.0"), Quantity: 1}},
			want:     "0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cost(tc.zone, d(tc.subtotal), tc.items)
			if !got.Equal(d(tc.want)) {
				t.Errorf("Cost() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFree(t *testing.T) {
	if !Free(nil, d("0.01")) {
		t.Error("nil zone should always be free")
	}
	z := zone("25.00", "", "500.00")
	if Free(z, d("499.99")) {
		t.Error("below threshold should not be free")
	}
	if !Free(z, d("500.00")) {
		t.Error("at threshold should be free")
	}
	if Free(zone("25.00", "", ""), d("1000000.00")) {
		t.Error("zone without threshold is never free")
	}
}

func TestProperty_CostIsNeverNegative(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("cost is non-negative for any zone and basket", prop.ForAll(
		func(baseCents int64, perKgCents int64, thresholdCents int64, subtotalCents int64, weightGrams int64, qty int) bool {
			z := &domain.ShippingZone{
				BaseRate:              decimal.NewFromInt(baseCents).Div(decimal.NewFromInt(100)),
				PerKgRate:             decimal.NewNullDecimal(decimal.NewFromInt(perKgCents).Div(decimal.NewFromInt(100))),
				FreeShippingThreshold: decimal.NewNullDecimal(decimal.NewFromInt(thresholdCents).Div(decimal.NewFromInt(100))),
			}
			subtotal := decimal.NewFromInt(subtotalCents).Div(decimal.NewFromInt(100))
			items := []ItemWeight{{
				WeightKg: decimal.NewFromInt(weightGrams).Div(decimal.NewFromInt(1000)),
				Quantity: qty,
			}}

			cost := Cost(z, subtotal, items)
			if cost.IsNegative() {
				t.Logf("FAIL: negative cost %s", cost)
				return false
			}
			// Reaching the threshold always means zero
			if subtotal.GreaterThanOrEqual(z.FreeShippingThreshold.Decimal) && !cost.IsZero() {
				t.Logf("FAIL: threshold reached but cost %s", cost)
				return false
			}
			return true
		},
		gen.Int64Range(0, 10000),
		gen.Int64Range(0, 1000),
		gen.Int64Range(0, 100000),
		gen.Int64Range(0, 200000),
		gen.Int64Range(0, 50000),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
