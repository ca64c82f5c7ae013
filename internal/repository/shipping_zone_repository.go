package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var ErrShippingZoneNotFound = errors.New("shipping zone not found")

// ShippingZoneRepository reads the immutable shipping zone reference data
type ShippingZoneRepository interface {
	List(ctx context.Context) ([]*domain.ShippingZone, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ShippingZone, error)
}

type shippingZoneRepository struct {
	db *sql.DB
}

// NewShippingZoneRepository creates a new instance of ShippingZoneRepository
func NewShippingZoneRepository(db *sql.DB) ShippingZoneRepository {
	return &shippingZoneRepository{db: db}
}

const zoneColumns = `id, name, country, base_rate, per_kg_rate, free_shipping_threshold`

// List retrieves all shipping zones ordered by name
func (r *shippingZoneRepository) List(ctx context.Context) ([]*domain.ShippingZone, error) {
	query := `SELECT ` + zoneColumns + ` FROM shipping_zones ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list shipping zones: %w", err)
	}
	defer rows.Close()

	zones := []*domain.ShippingZone{}
	for rows.Next() {
		zone := &domain.ShippingZone{}
		err := rows.Scan(
			&zone.ID,
			&zone.Name,
			&zone.Country,
			&zone.BaseRate,
			&zone.PerKgRate,
			&zone.FreeShippingThreshold,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipping zone: %w", err)
		}
		zones = append(zones, zone)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shipping zones: %w", err)
	}

	return zones, nil
}

// FindByID retrieves a shipping zone by ID
func (r *shippingZoneRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ShippingZone, error) {
	query := `SELECT ` + zoneColumns + ` FROM shipping_zones WHERE id = $1`

	zone := &domain.ShippingZone{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&zone.ID,
		&zone.Name,
		&zone.Country,
		&zone.BaseRate,
		&zone.PerKgRate,
		&zone.FreeShippingThreshold,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrShippingZoneNotFound
		}
		return nil, fmt.Errorf("failed to find shipping zone by ID: %w", err)
	}

	return zone, nil
}
