// This file implements the per-kind write handlers the router dispatches to.
// Every handler assumes the player row exists.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// setInventory replaces the player's inventory with the normalized map.
func (o *ops) setInventory(ctx context.Context, id types.EntityID, value any) error {
	inv, err := normalizeInventory(value)
	if err != nil {
		return err
	}
	if _, err := o.q.ExecContext(ctx, "DELETE FROM player_inventory WHERE player_id = ?", int64(id)); err != nil {
		return fmt.Errorf("clearing inventory: %w", err)
	}
	for _, item := range sortedKeys(inv) {
		if err := registerItem(ctx, o.q, item); err != nil {
			return err
		}
		if _, err := o.q.ExecContext(ctx,
			"INSERT INTO player_inventory (player_id, item_id, quantity) VALUES (?, ?, ?)",
			int64(id), item, inv[item],
		); err != nil {
			return fmt.Errorf("inserting item %s: %w", item, err)
		}
	}
	return nil
}

// setAchievements replaces the player's unlocked set. Achievements that
// stay unlocked keep their original unlock time.
func (o *ops) setAchievements(ctx context.Context, id types.EntityID, value any) error {
	ids, err := normalizeAchievements(value)
	if err != nil {
		return err
	}

	unlocked := map[string]string{}
	rows, err := o.q.QueryxContext(ctx,
		"SELECT achievement_id, unlocked_at FROM player_achievements WHERE player_id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("reading achievements: %w", err)
	}
	for rows.Next() {
		var aid, at string
		if err := rows.Scan(&aid, &at); err != nil {
			rows.Close()
			return fmt.Errorf("scanning achievement: %w", err)
		}
		unlocked[aid] = at
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading achievements: %w", err)
	}

	if _, err := o.q.ExecContext(ctx, "DELETE FROM player_achievements WHERE player_id = ?", int64(id)); err != nil {
		return fmt.Errorf("clearing achievements: %w", err)
	}
	now := o.b.timestamp()
	for _, aid := range ids {
		if err := registerAchievement(ctx, o.q, aid); err != nil {
			return err
		}
		at, ok := unlocked[aid]
		if !ok {
			at = now
		}
		if _, err := o.q.ExecContext(ctx,
			"INSERT INTO player_achievements (player_id, achievement_id, unlocked_at) VALUES (?, ?, ?)",
			int64(id), aid, at,
		); err != nil {
			return fmt.Errorf("inserting achievement %s: %w", aid, err)
		}
	}
	return nil
}

// setSkill overwrites a skill's xp and recomputes its level. A nil value
// removes the ledger row.
func (o *ops) setSkill(ctx context.Context, id types.EntityID, name string, value any) error {
	if value == nil {
		if _, err := o.q.ExecContext(ctx,
			"DELETE FROM player_skills WHERE player_id = ? AND skill_name = ?", int64(id), name,
		); err != nil {
			return fmt.Errorf("deleting skill %s: %w", name, err)
		}
		return nil
	}
	xp, err := toInt64(value)
	if err != nil {
		return err
	}
	if xp < 0 {
		xp = 0
	}
	_, err = o.q.ExecContext(ctx,
		`INSERT INTO player_skills (player_id, skill_name, xp, level) VALUES (?, ?, ?, ?)
		 ON CONFLICT (player_id, skill_name) DO UPDATE SET xp = excluded.xp, level = excluded.level`,
		int64(id), name, xp, types.SkillLevel(xp),
	)
	if err != nil {
		return fmt.Errorf("upserting skill %s: %w", name, err)
	}
	return nil
}

// setGuild handles guild_id (join, switch or leave) and guild_role.
func (o *ops) setGuild(ctx context.Context, id types.EntityID, key string, value any) error {
	var text string
	if value != nil {
		s, err := toText(value)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(s)
	}

	if key == types.KeyGuildRole {
		if text == "" {
			text = types.GuildRoleMember
		}
		// A role only means something for an existing membership.
		_, err := o.q.ExecContext(ctx,
			"UPDATE guild_members SET guild_role = ? WHERE player_id = ?", text, int64(id))
		if err != nil {
			return fmt.Errorf("updating guild role: %w", err)
		}
		return nil
	}

	if text == "" || text == "0" {
		if _, err := o.q.ExecContext(ctx, "DELETE FROM guild_members WHERE player_id = ?", int64(id)); err != nil {
			return fmt.Errorf("leaving guild: %w", err)
		}
		return nil
	}
	return o.joinGuild(ctx, id, text, types.GuildRoleMember)
}

// joinGuild upserts the membership row. Re-joining the same guild keeps the
// existing role and join time; switching guilds resets both.
func (o *ops) joinGuild(ctx context.Context, id types.EntityID, guildID, role string) error {
	exists, err := o.guildExists(ctx, guildID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("guild %s: %w", guildID, types.ErrNotFound)
	}
	_, err = o.q.ExecContext(ctx,
		`INSERT INTO guild_members (player_id, guild_id, guild_role, joined_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (player_id) DO UPDATE SET
		     guild_role = CASE WHEN guild_members.guild_id = excluded.guild_id THEN guild_members.guild_role ELSE excluded.guild_role END,
		     joined_at = CASE WHEN guild_members.guild_id = excluded.guild_id THEN guild_members.joined_at ELSE excluded.joined_at END,
		     contribution = CASE WHEN guild_members.guild_id = excluded.guild_id THEN guild_members.contribution ELSE 0 END,
		     guild_id = excluded.guild_id`,
		int64(id), guildID, role, o.b.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("joining guild %s: %w", guildID, err)
	}
	return nil
}

func (o *ops) guildExists(ctx context.Context, guildID string) (bool, error) {
	var n int
	if err := o.q.QueryRowxContext(ctx,
		"SELECT COUNT(*) FROM guilds WHERE guild_id = ?", guildID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("checking guild %s: %w", guildID, err)
	}
	return n > 0, nil
}

// setColumn writes one scalar column of players or player_vitals. Writing
// balance or bank re-derives net_worth in the same statement.
func (o *ops) setColumn(ctx context.Context, table string, id types.EntityID, column string, value any) error {
	v, err := coerceColumn(table, column, value)
	if err != nil {
		return err
	}

	var query string
	var args []any
	switch {
	case table == "players" && column == types.KeyBalance:
		query = "UPDATE players SET balance = ?, net_worth = ? + bank WHERE player_id = ?"
		args = []any{v, v, int64(id)}
	case table == "players" && column == types.KeyBank:
		query = "UPDATE players SET bank = ?, net_worth = balance + ? WHERE player_id = ?"
		args = []any{v, v, int64(id)}
	default:
		// column comes from the static key tables, never from input.
		query = fmt.Sprintf("UPDATE %s SET %s = ? WHERE player_id = ?", table, quoteIdent(column))
		args = []any{v, int64(id)}
	}
	if _, err := o.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating %s.%s: %w", table, column, err)
	}
	return nil
}

// setDocument stores a document attribute as JSON in the overflow table.
func (o *ops) setDocument(ctx context.Context, id types.EntityID, key string, value any) error {
	text, err := encodeDocument(key, value)
	if err != nil {
		return err
	}
	return o.upsertOverflow(ctx, id, key, text)
}

// setOverflow stores a generic attribute. A nil value removes the key.
func (o *ops) setOverflow(ctx context.Context, id types.EntityID, key string, value any) error {
	text, err := encodeOverflow(value)
	if err != nil {
		return err
	}
	if text == nil {
		if _, err := o.q.ExecContext(ctx,
			"DELETE FROM player_attributes WHERE player_id = ? AND key = ?", int64(id), key,
		); err != nil {
			return fmt.Errorf("deleting overflow %s: %w", key, err)
		}
		return nil
	}
	return o.upsertOverflow(ctx, id, key, *text)
}

func (o *ops) upsertOverflow(ctx context.Context, id types.EntityID, key, text string) error {
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO player_attributes (player_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (player_id, key) DO UPDATE SET value = excluded.value`,
		int64(id), key, text,
	)
	if err != nil {
		return fmt.Errorf("upserting overflow %s: %w", key, err)
	}
	return nil
}

// readOverflow returns the stored text of one overflow key, ok=false when
// absent or NULL.
func (o *ops) readOverflow(ctx context.Context, id types.EntityID, key string) (string, bool, error) {
	var value sql.NullString
	err := o.q.QueryRowxContext(ctx,
		"SELECT value FROM player_attributes WHERE player_id = ? AND key = ?", int64(id), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading overflow %s: %w", key, err)
	}
	return value.String, value.Valid, nil
}
