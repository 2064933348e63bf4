// This file implements the businesses accessor: creation, listing, field
// updates, deactivation and revenue collection.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

const businessColumns = `business_id, owner_id, name, type, level, balance, revenue_rate,
	last_collection, employees, active`

// CreateBusiness inserts a business for owner and returns its id. The
// collection clock starts now unless LastCollected is set.
func (b *Backend) CreateBusiness(ctx context.Context, owner types.EntityID, biz types.Business) (int64, error) {
	if strings.TrimSpace(biz.BusinessType) == "" {
		return 0, fmt.Errorf("business type: %w", types.ErrInvalidName)
	}
	if biz.Level < 1 {
		biz.Level = 1
	}
	if !biz.LastCollected.Valid() {
		biz.LastCollected = types.NewTimestamp(b.now())
	}

	var id int64
	err := b.withTx(ctx, func(o *ops) error {
		if err := o.ensurePlayer(ctx, owner); err != nil {
			return err
		}
		if err := o.q.QueryRowxContext(ctx,
			`INSERT INTO businesses (owner_id, name, type, level, balance, revenue_rate, last_collection, employees, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?) RETURNING business_id`,
			int64(owner), biz.Name, biz.BusinessType, biz.Level, biz.Balance, biz.RevenuePerHour,
			biz.LastCollected, biz.Employees, o.b.timestamp(),
		).Scan(&id); err != nil {
			return fmt.Errorf("inserting business: %w", err)
		}
		return nil
	})
	return id, err
}

// GetBusiness returns one business, active or not.
func (b *Backend) GetBusiness(ctx context.Context, id int64) (types.Business, error) {
	var biz types.Business
	err := b.withDB(func(o *ops) error {
		err := sqlx.GetContext(ctx, o.q, &biz,
			"SELECT "+businessColumns+" FROM businesses WHERE business_id = ?", id)
		if err != nil {
			return notFound(err, fmt.Sprintf("business %d", id))
		}
		return nil
	})
	return biz, err
}

// ListBusinesses returns the owner's active businesses, oldest first.
func (b *Backend) ListBusinesses(ctx context.Context, owner types.EntityID) ([]types.Business, error) {
	if err := validID(owner); err != nil {
		return nil, err
	}
	list := []types.Business{}
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &list,
			"SELECT "+businessColumns+" FROM businesses WHERE owner_id = ? AND active = 1 ORDER BY business_id",
			int64(owner),
		); err != nil {
			return fmt.Errorf("listing businesses of %s: %w", owner, err)
		}
		return nil
	})
	return list, err
}

// UpdateBusinessField writes one field named in types.BusinessFields.
func (b *Backend) UpdateBusinessField(ctx context.Context, id int64, field string, value any) error {
	return b.updateField(ctx, businessesTable, id, field, value)
}

// DeactivateBusiness marks a business inactive.
func (b *Backend) DeactivateBusiness(ctx context.Context, id int64) error {
	return b.deactivate(ctx, businessesTable, id)
}

// CollectBusiness credits the owner's wallet with the revenue accrued since
// the last collection, capped by the configured accrual window, and restarts
// the clock. Returns the amount collected.
func (b *Backend) CollectBusiness(ctx context.Context, id int64) (int64, error) {
	var amount int64
	err := b.withTx(ctx, func(o *ops) error {
		var biz types.Business
		if err := sqlx.GetContext(ctx, o.q, &biz,
			"SELECT "+businessColumns+" FROM businesses WHERE business_id = ? AND active = 1", id,
		); err != nil {
			return notFound(err, fmt.Sprintf("business %d", id))
		}
		now := o.b.now()
		amount = biz.AccruedAmount(now, o.b.config.AccrualWindow)
		if _, err := o.q.ExecContext(ctx,
			"UPDATE businesses SET last_collection = ? WHERE business_id = ?",
			types.FormatTime(now), id,
		); err != nil {
			return fmt.Errorf("resetting collection clock of business %d: %w", id, err)
		}
		if amount > 0 {
			if _, err := o.addMoney(ctx, biz.OwnerID, types.KeyBalance, amount); err != nil {
				return err
			}
		}
		o.b.logger.Debug("business revenue collected",
			zap.Int64("business_id", id), zap.Int64("amount", amount))
		return nil
	})
	return amount, err
}
