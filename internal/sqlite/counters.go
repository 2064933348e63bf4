// This file implements the numeric helpers. Monotonic quantities use
// in-place arithmetic (col = col + ?) so concurrent increments never lose
// updates; only the non-linear recomputations read before they write.
package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// addMoney adjusts balance or bank by amount and keeps net_worth in step in
// the same statement. Returns the new value of the column.
func (o *ops) addMoney(ctx context.Context, id types.EntityID, column string, amount int64) (int64, error) {
	if err := o.ensurePlayer(ctx, id); err != nil {
		return 0, err
	}
	var query string
	switch column {
	case types.KeyBalance:
		query = `UPDATE players SET balance = balance + ?, net_worth = balance + ? + bank
		         WHERE player_id = ? RETURNING balance`
	case types.KeyBank:
		query = `UPDATE players SET bank = bank + ?, net_worth = balance + bank + ?
		         WHERE player_id = ? RETURNING bank`
	default:
		return 0, fmt.Errorf("%w: %s is not a money column", types.ErrUnknownField, column)
	}
	var v int64
	if err := o.q.QueryRowxContext(ctx, query, amount, amount, int64(id)).Scan(&v); err != nil {
		return 0, fmt.Errorf("adjusting %s for %s: %w", column, id, err)
	}
	return v, nil
}

// AddBalance adds amount (which may be negative) to the wallet and returns
// the new balance.
func (b *Backend) AddBalance(ctx context.Context, id types.EntityID, amount int64) (int64, error) {
	var v int64
	err := b.withTx(ctx, func(o *ops) (err error) {
		v, err = o.addMoney(ctx, id, types.KeyBalance, amount)
		return err
	})
	return v, err
}

// RemoveBalance subtracts amount from the wallet. The balance may go
// negative; affordability checks belong to the caller.
func (b *Backend) RemoveBalance(ctx context.Context, id types.EntityID, amount int64) (int64, error) {
	return b.AddBalance(ctx, id, -amount)
}

// AddBank adds amount to the bank and returns the new bank value.
func (b *Backend) AddBank(ctx context.Context, id types.EntityID, amount int64) (int64, error) {
	var v int64
	err := b.withTx(ctx, func(o *ops) (err error) {
		v, err = o.addMoney(ctx, id, types.KeyBank, amount)
		return err
	})
	return v, err
}

// AddXP adds player xp with level carry-over and returns the new level and
// xp. The read and the write share one immediate transaction, which
// serializes them against other writers on this database.
func (b *Backend) AddXP(ctx context.Context, id types.EntityID, amount int64) (level, xp int64, err error) {
	err = b.withTx(ctx, func(o *ops) error {
		if err := o.ensurePlayer(ctx, id); err != nil {
			return err
		}
		var cur struct {
			Level int64 `db:"level"`
			XP    int64 `db:"xp"`
		}
		if err := o.q.QueryRowxContext(ctx,
			"SELECT level, xp FROM player_vitals WHERE player_id = ?", int64(id),
		).StructScan(&cur); err != nil {
			return fmt.Errorf("reading xp of %s: %w", id, err)
		}
		level, xp = types.ApplyPlayerXP(cur.Level, cur.XP, amount)
		if _, err := o.q.ExecContext(ctx,
			"UPDATE player_vitals SET level = ?, xp = ? WHERE player_id = ?", level, xp, int64(id),
		); err != nil {
			return fmt.Errorf("writing xp of %s: %w", id, err)
		}
		if level > cur.Level {
			o.b.logger.Debug("player leveled up",
				zap.Stringer("player_id", id), zap.Int64("from", cur.Level), zap.Int64("to", level))
		}
		return nil
	})
	return level, xp, err
}

// addSkillXP accumulates skill xp in place, then rewrites the level derived
// from the new total.
func (o *ops) addSkillXP(ctx context.Context, id types.EntityID, skill string, amount int64) (xp, level int64, err error) {
	skill = strings.TrimSpace(strings.TrimPrefix(skill, types.SkillPrefix))
	if skill == "" {
		return 0, 0, fmt.Errorf("%w: empty skill name", types.ErrInvalidName)
	}
	if err := o.ensurePlayer(ctx, id); err != nil {
		return 0, 0, err
	}
	start := amount
	if start < 0 {
		start = 0
	}
	if err := o.q.QueryRowxContext(ctx,
		`INSERT INTO player_skills (player_id, skill_name, xp, level) VALUES (?, ?, ?, 1)
		 ON CONFLICT (player_id, skill_name) DO UPDATE SET xp = MAX(0, player_skills.xp + ?)
		 RETURNING xp`,
		int64(id), skill, start, amount,
	).Scan(&xp); err != nil {
		return 0, 0, fmt.Errorf("adding %s xp for %s: %w", skill, id, err)
	}
	level = types.SkillLevel(xp)
	if _, err := o.q.ExecContext(ctx,
		"UPDATE player_skills SET level = ? WHERE player_id = ? AND skill_name = ?",
		level, int64(id), skill,
	); err != nil {
		return 0, 0, fmt.Errorf("updating %s level for %s: %w", skill, id, err)
	}
	return xp, level, nil
}

// AddSkillXP adds xp to a skill (with or without the skill_ prefix) and
// returns the new xp total and level.
func (b *Backend) AddSkillXP(ctx context.Context, id types.EntityID, skill string, amount int64) (xp, level int64, err error) {
	err = b.withTx(ctx, func(o *ops) error {
		xp, level, err = o.addSkillXP(ctx, id, skill, amount)
		return err
	})
	return xp, level, err
}

// incrementCounter adjusts a numeric attribute in place and returns its new
// value. Integer columns of players and player_vitals are updated directly;
// overflow keys are parsed as integers, falling back to 0 when the stored
// text is not numeric.
func (o *ops) incrementCounter(ctx context.Context, id types.EntityID, key string, delta int64) (int64, error) {
	if err := validID(id); err != nil {
		return 0, err
	}
	kind, err := o.b.resolveKey(key)
	if err != nil {
		return 0, err
	}

	switch kind {
	case types.KindCore, types.KindVitals:
		if types.NetWorthColumns[key] {
			return o.addMoney(ctx, id, key, delta)
		}
		table := "players"
		if kind == types.KindVitals {
			table = "player_vitals"
		}
		if columnTypes[table+"."+key] != colInt {
			return 0, fmt.Errorf("%w: %s is not numeric", types.ErrInvalidValue, key)
		}
		if err := o.ensurePlayer(ctx, id); err != nil {
			return 0, err
		}
		col := quoteIdent(key)
		var v int64
		query := fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE player_id = ? RETURNING %s", table, col, col, col)
		if err := o.q.QueryRowxContext(ctx, query, delta, int64(id)).Scan(&v); err != nil {
			return 0, fmt.Errorf("incrementing %s for %s: %w", key, id, err)
		}
		return v, nil
	case types.KindSkill:
		xp, _, err := o.addSkillXP(ctx, id, key, delta)
		return xp, err
	case types.KindOverflow:
		if err := o.ensurePlayer(ctx, id); err != nil {
			return 0, err
		}
		return o.incrementOverflow(ctx, id, key, delta)
	default:
		return 0, fmt.Errorf("%w: %s (%s) cannot be incremented", types.ErrInvalidValue, key, kind)
	}
}

func (o *ops) incrementOverflow(ctx context.Context, id types.EntityID, key string, delta int64) (int64, error) {
	var v int64
	err := o.q.QueryRowxContext(ctx,
		`INSERT INTO player_attributes (player_id, key, value) VALUES (?, ?, CAST(? AS TEXT))
		 ON CONFLICT (player_id, key) DO UPDATE SET
		     value = CAST(COALESCE(CAST(player_attributes.value AS INTEGER), 0) + ? AS TEXT)
		 RETURNING CAST(value AS INTEGER)`,
		int64(id), key, delta, delta,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("incrementing overflow %s for %s: %w", key, id, err)
	}
	return v, nil
}

// IncrementCounter adds delta to a numeric attribute and returns the new
// value.
func (b *Backend) IncrementCounter(ctx context.Context, id types.EntityID, key string, delta int64) (int64, error) {
	var v int64
	err := b.withTx(ctx, func(o *ops) (err error) {
		v, err = o.incrementCounter(ctx, id, key, delta)
		return err
	})
	return v, err
}

// addItem adds qty of item and returns the new quantity.
func (o *ops) addItem(ctx context.Context, id types.EntityID, item string, qty int64) (int64, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return 0, fmt.Errorf("%w: empty item id", types.ErrInvalidValue)
	}
	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", types.ErrInvalidValue)
	}
	if err := o.ensurePlayer(ctx, id); err != nil {
		return 0, err
	}
	if err := registerItem(ctx, o.q, item); err != nil {
		return 0, err
	}
	var v int64
	if err := o.q.QueryRowxContext(ctx,
		`INSERT INTO player_inventory (player_id, item_id, quantity) VALUES (?, ?, ?)
		 ON CONFLICT (player_id, item_id) DO UPDATE SET quantity = player_inventory.quantity + excluded.quantity
		 RETURNING quantity`,
		int64(id), item, qty,
	).Scan(&v); err != nil {
		return 0, fmt.Errorf("adding %s for %s: %w", item, id, err)
	}
	return v, nil
}

// removeItem removes up to qty of item and returns what is left. A row that
// would reach zero or below is deleted instead.
func (o *ops) removeItem(ctx context.Context, id types.EntityID, item string, qty int64) (int64, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return 0, fmt.Errorf("%w: empty item id", types.ErrInvalidValue)
	}
	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", types.ErrInvalidValue)
	}
	if err := validID(id); err != nil {
		return 0, err
	}
	res, err := o.q.ExecContext(ctx,
		"DELETE FROM player_inventory WHERE player_id = ? AND item_id = ? AND quantity <= ?",
		int64(id), item, qty)
	if err != nil {
		return 0, fmt.Errorf("removing %s for %s: %w", item, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return 0, nil
	}

	rows, err := o.q.QueryxContext(ctx,
		`UPDATE player_inventory SET quantity = quantity - ?
		 WHERE player_id = ? AND item_id = ? RETURNING quantity`,
		qty, int64(id), item)
	if err != nil {
		return 0, fmt.Errorf("removing %s for %s: %w", item, id, err)
	}
	defer rows.Close()
	var left int64
	if rows.Next() {
		if err := rows.Scan(&left); err != nil {
			return 0, fmt.Errorf("reading %s quantity: %w", item, err)
		}
	}
	return left, rows.Err()
}

// AddItem adds qty of item to the inventory and returns the new quantity.
func (b *Backend) AddItem(ctx context.Context, id types.EntityID, item string, qty int64) (int64, error) {
	var v int64
	err := b.withTx(ctx, func(o *ops) (err error) {
		v, err = o.addItem(ctx, id, item, qty)
		return err
	})
	return v, err
}

// RemoveItem removes qty of item and returns the remaining quantity. Removing
// an item the player does not hold is a no-op that returns 0.
func (b *Backend) RemoveItem(ctx context.Context, id types.EntityID, item string, qty int64) (int64, error) {
	var v int64
	err := b.withTx(ctx, func(o *ops) (err error) {
		v, err = o.removeItem(ctx, id, item, qty)
		return err
	})
	return v, err
}

// AddToFamilyBank adds amount to the player's family bank and writes the
// resulting total to the spouse recorded under the spouse key, if any, so
// both hold one shared value. Returns the new family bank value.
func (b *Backend) AddToFamilyBank(ctx context.Context, id types.EntityID, amount int64) (int64, error) {
	var v int64
	err := b.withTx(ctx, func(o *ops) error {
		if err := o.ensurePlayer(ctx, id); err != nil {
			return err
		}
		var err error
		v, err = o.incrementOverflow(ctx, id, types.KeyFamilyBank, amount)
		if err != nil {
			return err
		}
		spouseText, ok, err := o.readOverflow(ctx, id, types.KeySpouse)
		if err != nil || !ok {
			return err
		}
		spouse, perr := types.ParseEntityID(spouseText)
		if perr != nil || spouse == id {
			o.b.logger.Debug("ignoring unusable spouse id",
				zap.Stringer("player_id", id), zap.String("spouse", spouseText))
			return nil
		}
		if err := o.ensurePlayer(ctx, spouse); err != nil {
			return err
		}
		return o.upsertOverflow(ctx, spouse, types.KeyFamilyBank, strconv.FormatInt(v, 10))
	})
	return v, err
}

// RemoveFromFamilyBank subtracts amount from the shared family bank.
func (b *Backend) RemoveFromFamilyBank(ctx context.Context, id types.EntityID, amount int64) (int64, error) {
	return b.AddToFamilyBank(ctx, id, -amount)
}
