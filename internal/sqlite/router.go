// This file implements the attribute router: it resolves an attribute key to
// its AttributeKind and dispatches the write to the handler for that kind.
package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// maxTypoDistance bounds how many dropped or doubled characters still make
// an unknown key a probable typo of a known one.
const maxTypoDistance = 2

// suggestAttributes returns known keys that key is a probable misspelling
// of: either key is a subsequence of the known key missing a few characters,
// or the known key is a subsequence of key with a few extra characters.
func suggestAttributes(key string) []string {
	if len(key) < 3 {
		return nil
	}
	known := types.KnownAttributes()
	seen := map[string]bool{}
	var out []string

	for _, m := range fuzzy.Find(key, known) {
		if len(m.Str)-len(key) <= maxTypoDistance && !seen[m.Str] {
			seen[m.Str] = true
			out = append(out, m.Str)
		}
	}
	for _, k := range known {
		if len(k) < 3 || seen[k] || len(key)-len(k) > maxTypoDistance || len(key) < len(k) {
			continue
		}
		if len(fuzzy.Find(k, []string{key})) > 0 {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// resolveKey classifies key. Writes to read-only keys are refused; in strict
// mode unknown keys that look like typos are refused with suggestions.
func (b *Backend) resolveKey(key string) (types.AttributeKind, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: empty key", types.ErrUnknownAttribute)
	}
	if types.ReadOnlyAttributes[key] {
		return 0, fmt.Errorf("%s: %w", key, types.ErrReadOnlyAttribute)
	}
	kind, known := types.ClassifyAttribute(key)
	if known {
		return kind, nil
	}
	if suggestions := suggestAttributes(key); len(suggestions) > 0 {
		if b.config.StrictAttributes {
			return 0, &types.UnknownAttributeError{Key: key, Suggestions: suggestions}
		}
		b.logger.Warn("unknown attribute stored as overflow",
			zap.String("key", key), zap.Strings("did_you_mean", suggestions))
	}
	return types.KindOverflow, nil
}

// setAttribute ensures the player exists and routes one write.
func (o *ops) setAttribute(ctx context.Context, id types.EntityID, key string, value any) error {
	if err := validID(id); err != nil {
		return err
	}
	kind, err := o.b.resolveKey(key)
	if err != nil {
		return err
	}
	if err := o.ensurePlayer(ctx, id); err != nil {
		return err
	}

	switch kind {
	case types.KindInventory:
		err = o.setInventory(ctx, id, value)
	case types.KindAchievements:
		err = o.setAchievements(ctx, id, value)
	case types.KindSkill:
		name, _ := types.SkillName(key)
		err = o.setSkill(ctx, id, name, value)
	case types.KindGuild:
		err = o.setGuild(ctx, id, key, value)
	case types.KindCore:
		err = o.setColumn(ctx, "players", id, key, value)
	case types.KindVitals:
		err = o.setColumn(ctx, "player_vitals", id, key, value)
	case types.KindDocument:
		err = o.setDocument(ctx, id, key, value)
	default:
		err = o.setOverflow(ctx, id, key, value)
	}
	if err != nil {
		return fmt.Errorf("setting %s (%s) for %s: %w", key, kind, id, err)
	}
	return nil
}

// SetAttribute writes one attribute. See types.Store.
func (b *Backend) SetAttribute(ctx context.Context, id types.EntityID, key string, value any) error {
	return b.withTx(ctx, func(o *ops) error {
		return o.setAttribute(ctx, id, key, value)
	})
}

// SetAttributes writes every pair in one transaction; either all of them
// apply or none do. Keys are applied in sorted order.
func (b *Backend) SetAttributes(ctx context.Context, id types.EntityID, attrs map[string]any) error {
	if err := validID(id); err != nil {
		return err
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return b.withTx(ctx, func(o *ops) error {
		for _, k := range keys {
			if err := o.setAttribute(ctx, id, k, attrs[k]); err != nil {
				return err
			}
		}
		return nil
	})
}
