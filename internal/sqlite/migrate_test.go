// Tests for rename-aside schema migration.
package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// seedLegacyDB creates a database file holding the given statements before
// any backend touches it.
func seedLegacyDB(t *testing.T, dir string, stmts ...string) {
	t.Helper()
	db, err := sqlx.Open("sqlite", filepath.Join(dir, types.DefaultDBFile))
	require.NoError(t, err)
	defer db.Close()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
}

func TestMigrate_RenamesIncompatibleTable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seedLegacyDB(t, dir,
		`CREATE TABLE relationships (user_id INTEGER, target_id INTEGER, affection INTEGER, PRIMARY KEY (user_id, target_id))`,
		`CREATE INDEX idx_relationships_target ON relationships(target_id)`,
		`INSERT INTO relationships VALUES (1, 2, 40), (2, 1, 15)`,
	)

	clock := newFakeClock()
	b := NewBackend(WithClock(clock.Now))
	require.NoError(t, b.Attach(ctx, types.Config{DataDir: dir}))
	defer b.Detach()

	// --- S1: the report names the table, the legacy name and what was missing ---
	report := b.MigrationReport()
	require.Len(t, report.Renamed, 1)
	r := report.Renamed[0]
	legacy := fmt.Sprintf("relationships_legacy_%d", testEpoch.Unix())
	assert.Equal(t, "relationships", r.Table)
	assert.Equal(t, legacy, r.Legacy)
	assert.Contains(t, r.Missing, "status")
	assert.Contains(t, r.Missing, "created_at")

	// --- S2: old rows stay in the legacy table, the live table starts empty ---
	db, err := b.handle()
	require.NoError(t, err)
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+quoteIdent(legacy)))
	assert.Equal(t, 2, n)
	rels, err := b.ListRelationships(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, rels)

	// --- S3: the live table works with the current shape ---
	rel, err := b.UpsertRelationship(ctx, 1, 2, RelationshipUpdate{AffectionDelta: 3, Status: "friend"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rel.Affection)
	assert.Equal(t, "friend", rel.Status)

	// --- S4: the index name was freed and recreated on the live table ---
	var tbl string
	require.NoError(t, db.Get(&tbl, "SELECT tbl_name FROM sqlite_master WHERE type = 'index' AND name = 'idx_relationships_target'"))
	assert.Equal(t, "relationships", tbl)
}

func TestMigrate_ParentRenameKeepsChildReferences(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// A guilds table without perks, description or icon, with a child table
	// that references it.
	seedLegacyDB(t, dir,
		createPlayers,
		`CREATE TABLE guilds (guild_id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE, owner_id INTEGER NOT NULL, created_at TEXT NOT NULL, level INTEGER NOT NULL DEFAULT 1, xp INTEGER NOT NULL DEFAULT 0, bank INTEGER NOT NULL DEFAULT 0)`,
		createGuildMembers,
	)

	b, _ := setupBackendAt(t, dir)

	report := b.MigrationReport()
	require.Len(t, report.Renamed, 1)
	assert.Equal(t, "guilds", report.Renamed[0].Table)

	db, err := b.handle()
	require.NoError(t, err)
	var ddl string
	require.NoError(t, db.Get(&ddl, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'guild_members'"))
	assert.Contains(t, ddl, "REFERENCES guilds(guild_id)")
	assert.NotContains(t, ddl, "guilds_legacy")

	// Joining a guild created in the new table satisfies the foreign key.
	gid, err := b.CreateGuild(ctx, types.Guild{Name: "Knights", OwnerID: 1})
	require.NoError(t, err)
	members, err := b.GuildMembers(ctx, gid)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, types.GuildRoleLeader, members[0].Role)
}

func TestMigrate_LegacyNameCollision(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	legacy := fmt.Sprintf("relationships_legacy_%d", testEpoch.Unix())
	seedLegacyDB(t, dir,
		`CREATE TABLE `+legacy+` (x INTEGER)`,
		`CREATE TABLE relationships (user_id INTEGER, target_id INTEGER)`,
	)

	clock := newFakeClock()
	b := NewBackend(WithClock(clock.Now))
	require.NoError(t, b.Attach(ctx, types.Config{DataDir: dir}))
	defer b.Detach()

	report := b.MigrationReport()
	require.Len(t, report.Renamed, 1)
	assert.Equal(t, legacy+"_1", report.Renamed[0].Legacy)
}

func TestMigrate_CompatibleTableUntouched(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// Extra columns are fine; only missing ones trigger a rename.
	seedLegacyDB(t, dir,
		strings.Replace(createRelationships, "created_at TEXT NOT NULL,", "created_at TEXT NOT NULL,\n    note TEXT,", 1),
		`INSERT INTO relationships (user_id, target_id, created_at) VALUES (1, 2, '2024-01-01T00:00:00Z')`,
	)

	b, _ := setupBackendAt(t, dir)
	assert.Empty(t, b.MigrationReport().Renamed)
	rel, err := b.GetRelationship(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, types.RelationshipStranger, rel.Status)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := NewBackend()
	require.NoError(t, b.Attach(ctx, types.Config{DataDir: dir}))
	require.NoError(t, b.Detach())
	require.NoError(t, b.Attach(ctx, types.Config{DataDir: dir}))
	defer b.Detach()

	assert.Empty(t, b.MigrationReport().Renamed)
	db, err := b.handle()
	require.NoError(t, err)
	var legacyCount int
	require.NoError(t, db.Get(&legacyCount, "SELECT COUNT(*) FROM sqlite_master WHERE name LIKE '%_legacy_%'"))
	assert.Equal(t, 0, legacyCount)
}

func TestTableColumns_Missing(t *testing.T) {
	b, _ := setupBackend(t)
	db, err := b.handle()
	require.NoError(t, err)

	cols, err := tableColumns(context.Background(), db, "no_such_table")
	require.NoError(t, err)
	assert.Empty(t, cols)

	exists, err := tableExists(context.Background(), db, "players")
	require.NoError(t, err)
	assert.True(t, exists)
}

// setupBackendAt attaches a backend to an existing data dir.
func setupBackendAt(t *testing.T, dir string) (*Backend, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	b := NewBackend(WithClock(clock.Now))
	require.NoError(t, b.Attach(context.Background(), types.Config{DataDir: dir}))
	t.Cleanup(func() { b.Detach() })
	return b, clock
}

func TestMigrate_LegacyTableIsInert(t *testing.T) {
	tests := []struct {
		name     string
		onDelete string
	}{
		{name: "cascading reference", onDelete: "ON DELETE CASCADE"},
		{name: "restricting reference", onDelete: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			// An old player_skills shape without level.
			seedLegacyDB(t, dir,
				createPlayers,
				`CREATE TABLE player_skills (player_id INTEGER NOT NULL REFERENCES players(player_id) `+tt.onDelete+`, skill_name TEXT NOT NULL, xp INTEGER NOT NULL DEFAULT 0, PRIMARY KEY (player_id, skill_name))`,
				`INSERT INTO players (player_id, created_at) VALUES (1, '2024-01-01T00:00:00Z')`,
				`INSERT INTO player_skills VALUES (1, 'strength', 40)`,
			)

			b, _ := setupBackendAt(t, dir)
			report := b.MigrationReport()
			require.Len(t, report.Renamed, 1)
			legacy := report.Renamed[0].Legacy

			db, err := b.handle()
			require.NoError(t, err)
			var ddl string
			require.NoError(t, db.Get(&ddl, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", legacy))
			assert.NotContains(t, ddl, "REFERENCES")

			require.NoError(t, b.ResetEntity(ctx, 1))

			var n int
			require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+quoteIdent(legacy)))
			assert.Equal(t, 1, n)
		})
	}
}
