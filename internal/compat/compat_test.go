package compat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/playerdb/internal/sqlite"
	"github.com/mesh-intelligence/playerdb/pkg/types"
)

func setupStore(t *testing.T) (*Store, *sqlite.Backend, *observer.ObservedLogs) {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(context.Background(), types.Config{DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	core, logs := observer.New(zapcore.DebugLevel)
	return New(b, zap.New(core)), b, logs
}

func TestInvalidIDsAreIgnored(t *testing.T) {
	ctx := context.Background()
	s, b, logs := setupStore(t)

	for _, raw := range []any{0, -5, "abc", nil, 1.5, []int{1}} {
		assert.Empty(t, s.GetEntity(ctx, raw), "%v", raw)
		assert.False(t, s.SetAttribute(ctx, raw, "balance", 10), "%v", raw)
		assert.Zero(t, s.AddBalance(ctx, raw, 10), "%v", raw)
		assert.Zero(t, s.AddItem(ctx, raw, "apple", 1), "%v", raw)
		level, xp := s.AddXP(ctx, raw, 100)
		assert.Zero(t, level)
		assert.Zero(t, xp)
	}

	ids, err := b.ListEntityIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "no player rows were created")
	assert.NotZero(t, logs.FilterMessage("ignoring invalid player id").Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestForwardsValidCalls(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	// Ids arrive as strings from chat payloads.
	assert.True(t, s.SetAttribute(ctx, "42", "username", "alice"))
	assert.Equal(t, int64(150), s.AddBalance(ctx, "42", 150))
	assert.Equal(t, int64(100), s.RemoveBalance(ctx, 42, 50))
	assert.Equal(t, int64(25), s.AddBank(ctx, int64(42), 25))
	assert.Equal(t, int64(100), s.Balance(ctx, 42))
	assert.Equal(t, "alice", s.GetAttribute(ctx, 42, "username"))

	assert.Equal(t, int64(3), s.AddItem(ctx, 42, "apple", 3))
	assert.Equal(t, int64(1), s.RemoveItem(ctx, 42, "apple", 2))

	level, xp := s.AddXP(ctx, 42, 350)
	assert.Equal(t, int64(3), level)
	assert.Equal(t, int64(50), xp)

	xp, level = s.AddSkillXP(ctx, 42, "fishing", 220)
	assert.Equal(t, int64(220), xp)
	assert.Equal(t, int64(3), level)

	assert.Equal(t, int64(2), s.IncrementCounter(ctx, 42, "fish_caught", 2))

	assert.True(t, s.SetAttributes(ctx, 42, map[string]any{"health": 80, "energy": 60}))
	e := s.GetEntity(ctx, 42)
	assert.Equal(t, int64(80), e.Int("health"))
	assert.Equal(t, int64(125), e.Int("net_worth"))

	top := s.TopN(ctx, "balance", 5)
	require.Len(t, top, 1)
	assert.Equal(t, types.EntityID(42), top[0].PlayerID)
}

func TestFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	s, b, logs := setupStore(t)

	// A failed batch is all-or-nothing.
	assert.False(t, s.SetAttributes(ctx, 7, map[string]any{"balance": 5, "health": "weak"}))
	assert.Equal(t, int64(0), s.Balance(ctx, 7))

	assert.False(t, s.SetAttribute(ctx, 7, "net_worth", 1))
	assert.Zero(t, s.IncrementCounter(ctx, 7, "username", 1))
	assert.Empty(t, s.TopN(ctx, "no_such_field", 5))
	assert.NotNil(t, s.TopN(ctx, "no_such_field", 5))

	warned := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.NotEmpty(t, warned)
	assert.Equal(t, "set_attributes", warned[0].ContextMap()["op"])

	// Once detached every call degrades to a zero value.
	require.NoError(t, b.Detach())
	assert.Empty(t, s.GetEntity(ctx, 7))
	assert.Zero(t, s.AddBalance(ctx, 7, 1))
	assert.False(t, s.SetAttribute(ctx, 7, "balance", 1))
}
