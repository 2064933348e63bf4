// This file implements the entity view builder: the merged, dynamically
// keyed map of everything known about one player.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// getEntity merges, later sources winning: players columns, vitals columns,
// overflow pairs (documents decoded), then the computed composite fields.
func (o *ops) getEntity(ctx context.Context, id types.EntityID) (types.Entity, error) {
	if err := o.ensurePlayer(ctx, id); err != nil {
		return nil, err
	}

	e := types.Entity{}
	if err := mapScanRow(ctx, o.q, e, "SELECT * FROM players WHERE player_id = ?", int64(id)); err != nil {
		return nil, fmt.Errorf("reading player %s: %w", id, err)
	}
	vitals := map[string]any{}
	if err := mapScanRow(ctx, o.q, vitals, "SELECT * FROM player_vitals WHERE player_id = ?", int64(id)); err != nil {
		return nil, fmt.Errorf("reading vitals of %s: %w", id, err)
	}
	delete(vitals, "player_id")
	for k, v := range vitals {
		e[k] = v
	}

	if err := o.mergeOverflow(ctx, id, e); err != nil {
		return nil, err
	}
	if err := o.mergeInventory(ctx, id, e); err != nil {
		return nil, err
	}
	if err := o.mergeAchievements(ctx, id, e); err != nil {
		return nil, err
	}
	if err := o.mergeSkills(ctx, id, e); err != nil {
		return nil, err
	}
	if err := o.mergeGuild(ctx, id, e); err != nil {
		return nil, err
	}
	return e, nil
}

// mapScanRow scans one row into dest. Text the driver hands back as bytes
// is converted to string.
func mapScanRow(ctx context.Context, q sqlx.QueryerContext, dest map[string]any, query string, args ...any) error {
	row := q.QueryRowxContext(ctx, query, args...)
	m := map[string]any{}
	if err := row.MapScan(m); err != nil {
		return err
	}
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		dest[k] = v
	}
	return nil
}

func (o *ops) mergeOverflow(ctx context.Context, id types.EntityID, e types.Entity) error {
	rows, err := o.q.QueryxContext(ctx,
		"SELECT key, value FROM player_attributes WHERE player_id = ? ORDER BY key", int64(id))
	if err != nil {
		return fmt.Errorf("reading overflow of %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scanning overflow of %s: %w", id, err)
		}
		if kind, _ := types.ClassifyAttribute(key); kind == types.KindDocument {
			e[key] = decodeDocument(key, value.String)
			continue
		}
		if value.Valid {
			e[key] = value.String
		} else {
			e[key] = nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading overflow of %s: %w", id, err)
	}
	// Documents always appear, empty when never written.
	for _, key := range types.DocumentKeys {
		if _, ok := e[key]; !ok {
			e[key] = decodeDocument(key, nil)
		}
	}
	return nil
}

func (o *ops) mergeInventory(ctx context.Context, id types.EntityID, e types.Entity) error {
	rows, err := o.q.QueryxContext(ctx,
		"SELECT item_id, quantity FROM player_inventory WHERE player_id = ? AND quantity > 0", int64(id))
	if err != nil {
		return fmt.Errorf("reading inventory of %s: %w", id, err)
	}
	defer rows.Close()
	inv := map[string]int64{}
	for rows.Next() {
		var item string
		var qty int64
		if err := rows.Scan(&item, &qty); err != nil {
			return fmt.Errorf("scanning inventory of %s: %w", id, err)
		}
		inv[item] = qty
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading inventory of %s: %w", id, err)
	}
	e[types.KeyInventory] = inv
	return nil
}

func (o *ops) mergeAchievements(ctx context.Context, id types.EntityID, e types.Entity) error {
	ids := []string{}
	if err := sqlx.SelectContext(ctx, o.q, &ids,
		"SELECT achievement_id FROM player_achievements WHERE player_id = ? ORDER BY unlocked_at, achievement_id",
		int64(id),
	); err != nil {
		return fmt.Errorf("reading achievements of %s: %w", id, err)
	}
	e[types.KeyAchievements] = ids
	return nil
}

// mergeSkills adds skill_<name> xp and the <name> level for every ledger
// row. The level is recomputed from xp rather than trusted from the row.
// Base skills always appear. A level never shadows a fixed attribute.
func (o *ops) mergeSkills(ctx context.Context, id types.EntityID, e types.Entity) error {
	xps := map[string]int64{}
	for _, s := range types.BaseSkills {
		xps[s] = 0
	}
	rows, err := o.q.QueryxContext(ctx,
		"SELECT skill_name, xp FROM player_skills WHERE player_id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("reading skills of %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var xp int64
		if err := rows.Scan(&name, &xp); err != nil {
			return fmt.Errorf("scanning skill of %s: %w", id, err)
		}
		xps[name] = xp
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading skills of %s: %w", id, err)
	}
	for name, xp := range xps {
		e[types.SkillPrefix+name] = xp
		if _, fixed := types.ClassifyAttribute(name); !fixed {
			e[name] = types.SkillLevel(xp)
		}
	}
	return nil
}

func (o *ops) mergeGuild(ctx context.Context, id types.EntityID, e types.Entity) error {
	var m struct {
		GuildID string `db:"guild_id"`
		Role    string `db:"guild_role"`
	}
	err := o.q.QueryRowxContext(ctx,
		"SELECT guild_id, guild_role FROM guild_members WHERE player_id = ?", int64(id),
	).StructScan(&m)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		e[types.KeyGuildID] = nil
		e[types.KeyGuildRole] = nil
	case err != nil:
		return fmt.Errorf("reading guild membership of %s: %w", id, err)
	default:
		e[types.KeyGuildID] = m.GuildID
		e[types.KeyGuildRole] = m.Role
	}
	return nil
}

// GetEntity returns the merged view of a player, creating it lazily.
func (b *Backend) GetEntity(ctx context.Context, id types.EntityID) (types.Entity, error) {
	var e types.Entity
	err := b.withTx(ctx, func(o *ops) (err error) {
		e, err = o.getEntity(ctx, id)
		return err
	})
	return e, err
}
