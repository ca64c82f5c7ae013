package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShippingZone is immutable reference data describing shipping rates for a region
type ShippingZone struct {
	ID                    uuid.UUID           `json:"id" db:"id"`
	Name                  string              `json:"name" db:"name"`
	Country               string              `json:"country" db:"country"`
	BaseRate              decimal.Decimal     `json:"base_rate" db:"base_rate"`
	PerKgRate             decimal.NullDecimal `json:"per_kg_rate,omitempty" db:"per_kg_rate"`
	FreeShippingThreshold decimal.NullDecimal `json:"free_shipping_threshold,omitempty" db:"free_shipping_threshold"`
}
