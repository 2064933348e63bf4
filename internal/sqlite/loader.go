// This file implements JSONL import: loading entity views written by
// ExportJSONL back into the store.
package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// derivedKeys appear in an exported view but are recomputed by the store,
// so they are never written back.
var derivedKeys = map[string]bool{
	"player_id":       true,
	"created_at":      true,
	types.KeyNetWorth: true,
}

// ImportJSONL reads a file produced by ExportJSONL and applies every record
// with SetAttributes semantics. Loading is transactional: either every
// record applies or none does. Malformed lines are skipped. Guild
// memberships are restored only when the guild still exists. Returns the
// number of players imported.
func (b *Backend) ImportJSONL(ctx context.Context, path string) (int, error) {
	records, err := readJSONL(path)
	if err != nil {
		return 0, err
	}

	count := 0
	err = b.withTx(ctx, func(o *ops) error {
		for i, rec := range records {
			id, attrs, err := decodeViewRecord(rec)
			if err != nil {
				b.logger.Warn("skipping unusable record", zap.Int("line", i+1), zap.Error(err))
				continue
			}
			if err := o.ensurePlayer(ctx, id); err != nil {
				return err
			}
			if err := o.importGuild(ctx, id, attrs); err != nil {
				return err
			}
			for _, key := range sortedKeys(attrs) {
				if err := o.setAttribute(ctx, id, key, attrs[key]); err != nil {
					return fmt.Errorf("importing %s: %w", id, err)
				}
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	b.logger.Info("entities imported", zap.String("path", path), zap.Int("count", count))
	return count, nil
}

// decodeViewRecord turns one exported view into its id and the writable
// attributes. Skill level keys are dropped in favor of their skill_<name>
// xp keys, from which the level is recomputed.
func decodeViewRecord(rec json.RawMessage) (types.EntityID, map[string]any, error) {
	attrs := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(rec))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return 0, nil, fmt.Errorf("decoding record: %w", err)
	}
	id, err := types.ParseEntityID(attrs["player_id"])
	if err != nil {
		return 0, nil, fmt.Errorf("record player_id: %w", err)
	}
	for key := range attrs {
		if name, ok := types.SkillName(key); ok {
			if _, fixed := types.ClassifyAttribute(name); !fixed {
				delete(attrs, name)
			}
		}
	}
	for key := range derivedKeys {
		delete(attrs, key)
	}
	return id, attrs, nil
}

// importGuild consumes the guild keys of attrs, joining the guild only when
// it exists in this store.
func (o *ops) importGuild(ctx context.Context, id types.EntityID, attrs map[string]any) error {
	guildID, _ := attrs[types.KeyGuildID].(string)
	role, _ := attrs[types.KeyGuildRole].(string)
	delete(attrs, types.KeyGuildID)
	delete(attrs, types.KeyGuildRole)

	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return nil
	}
	exists, err := o.guildExists(ctx, guildID)
	if err != nil {
		return err
	}
	if !exists {
		o.b.logger.Debug("dropping membership of missing guild",
			zap.Stringer("player_id", id), zap.String("guild_id", guildID))
		return nil
	}
	if role == "" {
		role = types.GuildRoleMember
	}
	return o.joinGuild(ctx, id, guildID, role)
}
