// This file implements the properties accessor: real-estate holdings that
// accrue rent.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

const propertyColumns = `property_id, owner_id, property_type, name, level, rent_per_hour,
	last_collected, active`

// CreateProperty inserts a property for owner and returns its id.
func (b *Backend) CreateProperty(ctx context.Context, owner types.EntityID, p types.Property) (int64, error) {
	if strings.TrimSpace(p.PropertyType) == "" {
		return 0, fmt.Errorf("property type: %w", types.ErrInvalidName)
	}
	if p.Level < 1 {
		p.Level = 1
	}
	if !p.LastCollected.Valid() {
		p.LastCollected = types.NewTimestamp(b.now())
	}

	var id int64
	err := b.withTx(ctx, func(o *ops) error {
		if err := o.ensurePlayer(ctx, owner); err != nil {
			return err
		}
		if err := o.q.QueryRowxContext(ctx,
			`INSERT INTO properties (owner_id, property_type, name, level, rent_per_hour, last_collected, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, 1, ?) RETURNING property_id`,
			int64(owner), p.PropertyType, p.Name, p.Level, p.RentPerHour, p.LastCollected, o.b.timestamp(),
		).Scan(&id); err != nil {
			return fmt.Errorf("inserting property: %w", err)
		}
		return nil
	})
	return id, err
}

// GetProperty returns one property, active or not.
func (b *Backend) GetProperty(ctx context.Context, id int64) (types.Property, error) {
	var p types.Property
	err := b.withDB(func(o *ops) error {
		if err := sqlx.GetContext(ctx, o.q, &p,
			"SELECT "+propertyColumns+" FROM properties WHERE property_id = ?", id,
		); err != nil {
			return notFound(err, fmt.Sprintf("property %d", id))
		}
		return nil
	})
	return p, err
}

// ListProperties returns the owner's active properties.
func (b *Backend) ListProperties(ctx context.Context, owner types.EntityID) ([]types.Property, error) {
	if err := validID(owner); err != nil {
		return nil, err
	}
	list := []types.Property{}
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &list,
			"SELECT "+propertyColumns+" FROM properties WHERE owner_id = ? AND active = 1 ORDER BY property_id",
			int64(owner),
		); err != nil {
			return fmt.Errorf("listing properties of %s: %w", owner, err)
		}
		return nil
	})
	return list, err
}

// UpdatePropertyField writes one field named in types.PropertyFields.
func (b *Backend) UpdatePropertyField(ctx context.Context, id int64, field string, value any) error {
	return b.updateField(ctx, propertiesTable, id, field, value)
}

// DeactivateProperty marks a property inactive.
func (b *Backend) DeactivateProperty(ctx context.Context, id int64) error {
	return b.deactivate(ctx, propertiesTable, id)
}

// CollectRent credits the owner with rent accrued on one property and
// restarts its clock. Returns the amount collected.
func (b *Backend) CollectRent(ctx context.Context, id int64) (int64, error) {
	var amount int64
	err := b.withTx(ctx, func(o *ops) error {
		var p types.Property
		if err := sqlx.GetContext(ctx, o.q, &p,
			"SELECT "+propertyColumns+" FROM properties WHERE property_id = ? AND active = 1", id,
		); err != nil {
			return notFound(err, fmt.Sprintf("property %d", id))
		}
		now := o.b.now()
		amount = p.AccruedAmount(now, o.b.config.AccrualWindow)
		if _, err := o.q.ExecContext(ctx,
			"UPDATE properties SET last_collected = ? WHERE property_id = ?", types.FormatTime(now), id,
		); err != nil {
			return fmt.Errorf("resetting rent clock of property %d: %w", id, err)
		}
		if amount > 0 {
			if _, err := o.addMoney(ctx, p.OwnerID, types.KeyBalance, amount); err != nil {
				return err
			}
		}
		return nil
	})
	return amount, err
}
