// This file implements the guilds accessor: guild lifecycle, the shared
// guild bank and the member roster.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

const guildSelect = `SELECT g.guild_id, g.name, g.owner_id, g.created_at, g.level, g.xp, g.bank,
	g.perks, g.description, g.icon,
	(SELECT COUNT(*) FROM guild_members m WHERE m.guild_id = g.guild_id) AS member_count
	FROM guilds g`

// CreateGuild inserts a guild and enrolls its owner as leader. An empty
// GuildID is replaced with a UUID v7. Returns the guild id.
func (b *Backend) CreateGuild(ctx context.Context, g types.Guild) (string, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return "", fmt.Errorf("guild name: %w", types.ErrInvalidName)
	}
	if err := validID(g.OwnerID); err != nil {
		return "", err
	}
	if g.GuildID == "" {
		id, err := newGuildID()
		if err != nil {
			return "", err
		}
		g.GuildID = id
	}
	if g.Level < 1 {
		g.Level = 1
	}
	perks, err := encodeJSONText(g.Perks, "[]")
	if err != nil {
		return "", err
	}

	err = b.withTx(ctx, func(o *ops) error {
		if err := o.ensurePlayer(ctx, g.OwnerID); err != nil {
			return err
		}
		if _, err := o.q.ExecContext(ctx,
			`INSERT INTO guilds (guild_id, name, owner_id, created_at, level, xp, bank, perks, description, icon)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.GuildID, g.Name, int64(g.OwnerID), o.b.timestamp(), g.Level, g.XP, g.Bank, perks,
			g.Description, g.Icon,
		); err != nil {
			return fmt.Errorf("inserting guild %s: %w", g.Name, err)
		}
		return o.joinGuild(ctx, g.OwnerID, g.GuildID, types.GuildRoleLeader)
	})
	if err != nil {
		return "", err
	}
	b.logger.Info("guild created", zap.String("guild_id", g.GuildID), zap.Stringer("owner_id", g.OwnerID))
	return g.GuildID, nil
}

// GetGuild returns a guild with its live member count.
func (b *Backend) GetGuild(ctx context.Context, guildID string) (types.Guild, error) {
	var g types.Guild
	err := b.withDB(func(o *ops) error {
		if err := sqlx.GetContext(ctx, o.q, &g, guildSelect+" WHERE g.guild_id = ?", guildID); err != nil {
			return notFound(err, "guild "+guildID)
		}
		return nil
	})
	return g, err
}

// ListGuilds returns every guild ordered by bank, richest first.
func (b *Backend) ListGuilds(ctx context.Context) ([]types.Guild, error) {
	list := []types.Guild{}
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &list, guildSelect+" ORDER BY g.bank DESC, g.name"); err != nil {
			return fmt.Errorf("listing guilds: %w", err)
		}
		return nil
	})
	return list, err
}

// UpdateGuildField writes one field named in types.GuildFields.
func (b *Backend) UpdateGuildField(ctx context.Context, guildID, field string, value any) error {
	col, ok := types.GuildFields[field]
	if !ok {
		return fmt.Errorf("guild field %q: %w", field, types.ErrUnknownField)
	}
	v, err := coerceColumn("guilds", col, value)
	if err != nil {
		return err
	}
	return b.withDB(func(o *ops) error {
		res, err := o.q.ExecContext(ctx,
			fmt.Sprintf("UPDATE guilds SET %s = ? WHERE guild_id = ?", quoteIdent(col)), v, guildID)
		if err != nil {
			return fmt.Errorf("updating guild %s %s: %w", guildID, field, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("guild %s: %w", guildID, types.ErrNotFound)
		}
		return nil
	})
}

// AddToGuildBank adjusts the guild bank in place and returns the new value.
func (b *Backend) AddToGuildBank(ctx context.Context, guildID string, amount int64) (int64, error) {
	var bank int64
	err := b.withDB(func(o *ops) error {
		if err := o.q.QueryRowxContext(ctx,
			"UPDATE guilds SET bank = bank + ? WHERE guild_id = ? RETURNING bank", amount, guildID,
		).Scan(&bank); err != nil {
			return notFound(err, "guild "+guildID)
		}
		return nil
	})
	return bank, err
}

// AddGuildContribution records what a member put into the guild.
func (b *Backend) AddGuildContribution(ctx context.Context, player types.EntityID, amount int64) (int64, error) {
	var total int64
	err := b.withDB(func(o *ops) error {
		if err := o.q.QueryRowxContext(ctx,
			"UPDATE guild_members SET contribution = contribution + ? WHERE player_id = ? RETURNING contribution",
			amount, int64(player),
		).Scan(&total); err != nil {
			return notFound(err, fmt.Sprintf("guild membership of %s", player))
		}
		return nil
	})
	return total, err
}

// GuildMembers returns the roster, leaders first, then by join time.
func (b *Backend) GuildMembers(ctx context.Context, guildID string) ([]types.GuildMember, error) {
	list := []types.GuildMember{}
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &list,
			`SELECT player_id, guild_id, guild_role, joined_at, contribution FROM guild_members
			 WHERE guild_id = ?
			 ORDER BY CASE guild_role WHEN 'leader' THEN 0 ELSE 1 END, joined_at, player_id`,
			guildID,
		); err != nil {
			return fmt.Errorf("listing members of guild %s: %w", guildID, err)
		}
		return nil
	})
	return list, err
}

// DisbandGuild deletes a guild; memberships go with it.
func (b *Backend) DisbandGuild(ctx context.Context, guildID string) error {
	return b.withTx(ctx, func(o *ops) error {
		if _, err := o.q.ExecContext(ctx, "DELETE FROM guild_members WHERE guild_id = ?", guildID); err != nil {
			return fmt.Errorf("removing members of guild %s: %w", guildID, err)
		}
		res, err := o.q.ExecContext(ctx, "DELETE FROM guilds WHERE guild_id = ?", guildID)
		if err != nil {
			return fmt.Errorf("deleting guild %s: %w", guildID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("guild %s: %w", guildID, types.ErrNotFound)
		}
		return nil
	})
}
