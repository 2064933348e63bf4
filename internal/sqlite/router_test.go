// Tests for attribute routing and the entity view.
package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

func TestSetAttribute_Routing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value any
		check func(t *testing.T, e types.Entity)
	}{
		{
			name:  "core column",
			key:   "username",
			value: "alice",
			check: func(t *testing.T, e types.Entity) {
				assert.Equal(t, "alice", e.String("username"))
			},
		},
		{
			name:  "vitals column",
			key:   "health",
			value: 42,
			check: func(t *testing.T, e types.Entity) {
				assert.Equal(t, int64(42), e.Int("health"))
			},
		},
		{
			name:  "vitals timestamp from unix seconds",
			key:   "last_work",
			value: int64(1700000000),
			check: func(t *testing.T, e types.Entity) {
				assert.Equal(t, "2023-11-14T22:13:20Z", e.String("last_work"))
			},
		},
		{
			name:  "numeric string into integer column",
			key:   "reputation",
			value: "17",
			check: func(t *testing.T, e types.Entity) {
				assert.Equal(t, int64(17), e.Int("reputation"))
			},
		},
		{
			name:  "skill xp",
			key:   "skill_fishing",
			value: 250,
			check: func(t *testing.T, e types.Entity) {
				assert.Equal(t, int64(250), e.Int("skill_fishing"))
				assert.Equal(t, types.SkillLevel(250), e["fishing"])
			},
		},
		{
			name:  "job key goes to overflow",
			key:   "current_job",
			value: "miner",
			check: func(t *testing.T, e types.Entity) {
				assert.Equal(t, "miner", e["current_job"])
			},
		},
		{
			name:  "unknown key goes to overflow as text",
			key:   "favorite_food",
			value: 12,
			check: func(t *testing.T, e types.Entity) {
				assert.Equal(t, "12", e["favorite_food"])
				assert.Equal(t, int64(12), e.Int("favorite_food"))
			},
		},
		{
			name:  "list document",
			key:   "kids",
			value: []any{map[string]any{"name": "Tim"}},
			check: func(t *testing.T, e types.Entity) {
				kids, ok := e["kids"].([]any)
				require.True(t, ok)
				require.Len(t, kids, 1)
				assert.Equal(t, "Tim", kids[0].(map[string]any)["name"])
			},
		},
		{
			name:  "map document",
			key:   "crypto_portfolio",
			value: map[string]any{"BTC": 2},
			check: func(t *testing.T, e types.Entity) {
				assert.Equal(t, map[string]any{"BTC": float64(2)}, e["crypto_portfolio"])
			},
		},
		{
			name:  "achievements",
			key:   "achievements",
			value: []string{"first_steps", "rich", "first_steps"},
			check: func(t *testing.T, e types.Entity) {
				assert.ElementsMatch(t, []string{"first_steps", "rich"}, e.Achievements())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := setupBackend(t)
			require.NoError(t, b.SetAttribute(ctx, 1, tt.key, tt.value))
			e, err := b.GetEntity(ctx, 1)
			require.NoError(t, err)
			tt.check(t, e)
		})
	}
}

func TestSetAttribute_NetWorth(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	// --- S1: direct writes keep net_worth = balance + bank ---
	require.NoError(t, b.SetAttribute(ctx, 1, "balance", 300))
	require.NoError(t, b.SetAttribute(ctx, 1, "bank", 200))
	e, err := b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), e.Int("net_worth"))

	// --- S2: increments keep it too ---
	_, err = b.AddBalance(ctx, 1, 50)
	require.NoError(t, err)
	_, err = b.AddBank(ctx, 1, -25)
	require.NoError(t, err)
	_, err = b.IncrementCounter(ctx, 1, "balance", 5)
	require.NoError(t, err)
	e, err = b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(355), e.Int("balance"))
	assert.Equal(t, int64(175), e.Int("bank"))
	assert.Equal(t, int64(530), e.Int("net_worth"))

	// --- S3: net_worth itself is read-only ---
	err = b.SetAttribute(ctx, 1, "net_worth", 1)
	assert.ErrorIs(t, err, types.ErrReadOnlyAttribute)
}

func TestSetAttribute_Inventory(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	require.NoError(t, b.SetAttribute(ctx, 1, "inventory", map[string]any{"a": 2, "b": 0, "c": -3}))
	e, err := b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 2}, e.Inventory())

	// A second write replaces, not merges.
	require.NoError(t, b.SetAttribute(ctx, 1, "inventory", `{"d": 4}`))
	e, err = b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"d": 4}, e.Inventory())

	err = b.SetAttribute(ctx, 1, "inventory", []string{"nope"})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
}

func TestSetAttribute_AchievementsKeepUnlockTime(t *testing.T) {
	ctx := context.Background()
	b, clock := setupBackend(t)

	require.NoError(t, b.SetAttribute(ctx, 1, "achievements", []string{"first_steps"}))
	clock.Advance(time.Hour)
	require.NoError(t, b.SetAttribute(ctx, 1, "achievements", map[string]any{"first_steps": true, "rich": 1, "gone": false}))

	var unlocked []struct {
		ID string `db:"achievement_id"`
		At string `db:"unlocked_at"`
	}
	db, err := b.handle()
	require.NoError(t, err)
	require.NoError(t, db.Select(&unlocked,
		"SELECT achievement_id, unlocked_at FROM player_achievements WHERE player_id = 1 ORDER BY achievement_id"))
	require.Len(t, unlocked, 2)
	assert.Equal(t, "first_steps", unlocked[0].ID)
	assert.Equal(t, types.FormatTime(testEpoch), unlocked[0].At)
	assert.Equal(t, "rich", unlocked[1].ID)
	assert.Equal(t, types.FormatTime(testEpoch.Add(time.Hour)), unlocked[1].At)
}

func TestSetAttribute_OverflowNilDeletes(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	require.NoError(t, b.SetAttribute(ctx, 1, "nickname", "ace"))
	require.NoError(t, b.SetAttribute(ctx, 1, "nickname", nil))
	e, err := b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.NotContains(t, e, "nickname")
}

func TestSetAttribute_Strict(t *testing.T) {
	ctx := context.Background()

	t.Run("strict mode refuses probable typos", func(t *testing.T) {
		b, _ := setupBackend(t, func(c *types.Config) { c.StrictAttributes = true })
		err := b.SetAttribute(ctx, 1, "balanc", 10)
		require.ErrorIs(t, err, types.ErrUnknownAttribute)
		var uae *types.UnknownAttributeError
		require.True(t, errors.As(err, &uae))
		assert.Contains(t, uae.Suggestions, "balance")

		// Keys that resemble nothing are still accepted.
		require.NoError(t, b.SetAttribute(ctx, 1, "zzqxw_marker", "1"))
	})

	t.Run("lenient mode stores typos as overflow", func(t *testing.T) {
		b, _ := setupBackend(t)
		require.NoError(t, b.SetAttribute(ctx, 1, "balanc", 10))
		e, err := b.GetEntity(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "10", e["balanc"])
		assert.Equal(t, int64(0), e.Int("balance"))
	})
}

func TestSetAttribute_InvalidValues(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	assert.ErrorIs(t, b.SetAttribute(ctx, 1, "balance", "lots"), types.ErrInvalidValue)
	assert.ErrorIs(t, b.SetAttribute(ctx, 1, "health", nil), types.ErrInvalidValue)
	assert.ErrorIs(t, b.SetAttribute(ctx, 1, "kids", map[string]any{"x": 1}), types.ErrInvalidValue)
	assert.ErrorIs(t, b.SetAttribute(ctx, 1, "crypto_portfolio", "not json"), types.ErrInvalidValue)
	assert.ErrorIs(t, b.SetAttribute(ctx, 0, "balance", 1), types.ErrInvalidID)
	assert.ErrorIs(t, b.SetAttribute(ctx, 1, "", 1), types.ErrUnknownAttribute)
}

func TestSetAttributes_Atomic(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	require.NoError(t, b.SetAttributes(ctx, 1, map[string]any{
		"balance":  100,
		"bank":     20,
		"username": "bob",
	}))

	// One bad pair rolls back the whole batch.
	err := b.SetAttributes(ctx, 1, map[string]any{
		"balance":  999,
		"username": "carol",
		"health":   "not a number",
	})
	require.ErrorIs(t, err, types.ErrInvalidValue)

	e, err := b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), e.Int("balance"))
	assert.Equal(t, "bob", e.String("username"))
	assert.Equal(t, int64(120), e.Int("net_worth"))
}

func TestGetEntity_View(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	e, err := b.GetEntity(ctx, 5)
	require.NoError(t, err)

	// --- S1: a fresh player has the full default shape ---
	assert.Equal(t, int64(5), e.Int("player_id"))
	assert.Equal(t, int64(1), e.Int("level"))
	assert.Equal(t, int64(100), e.Int("health"))
	assert.Equal(t, map[string]int64{}, e.Inventory())
	assert.Equal(t, []string{}, e.Achievements())
	for _, s := range types.BaseSkills {
		assert.Equal(t, int64(0), e.Int("skill_"+s), s)
		assert.Equal(t, int64(1), e.Int(s), s)
	}
	for _, k := range types.DocumentKeys {
		assert.Contains(t, e, k)
	}
	assert.Equal(t, map[string]any{}, e["crypto_portfolio"])
	assert.Equal(t, []any{}, e["kids"])
	assert.Nil(t, e["guild_id"])
	assert.Nil(t, e["guild_role"])

	// --- S2: a malformed stored document degrades to empty ---
	db, err := b.handle()
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO player_attributes (player_id, key, value) VALUES (5, 'kids', '{broken')")
	require.NoError(t, err)
	e, err = b.GetEntity(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []any{}, e["kids"])
}

func TestSetAttribute_NilSkillRemovesLedgerRow(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	require.NoError(t, b.SetAttribute(ctx, 1, "skill_fishing", 250))
	require.NoError(t, b.SetAttribute(ctx, 1, "skill_strength", 40))

	require.NoError(t, b.SetAttribute(ctx, 1, "skill_fishing", nil))
	require.NoError(t, b.SetAttribute(ctx, 1, "skill_strength", nil))

	db, err := b.handle()
	require.NoError(t, err)
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM player_skills WHERE player_id = 1"))
	assert.Equal(t, 0, n)

	e, err := b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.NotContains(t, e, "skill_fishing")
	assert.NotContains(t, e, "fishing")
	// Base stats read back at their starting values.
	assert.Equal(t, int64(0), e.Int("skill_strength"))
	assert.Equal(t, int64(1), e.Int("strength"))

	// Removing a skill that was never set is a no-op.
	require.NoError(t, b.SetAttribute(ctx, 1, "skill_cooking", nil))
}

func TestGetEntity_SkillLevelNeverShadowsFixedKey(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	require.NoError(t, b.SetAttribute(ctx, 1, "skill_level", 5000))
	e, err := b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), e.Int("skill_level"))
	assert.Equal(t, int64(1), e.Int("level"), "the vitals level wins")
}

func TestSuggestAttributes(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "balanc", want: "balance"},
		{key: "balancee", want: "balance"},
		{key: "healt", want: "health"},
		{key: "inventroy", want: ""},
		{key: "zz", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := suggestAttributes(tt.key)
			if tt.want == "" {
				assert.NotContains(t, got, "inventory")
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}
