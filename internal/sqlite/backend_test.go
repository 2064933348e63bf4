// Tests for backend lifecycle and player existence.
package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

func TestBackend_Attach(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{DataDir: tmpDir}
	require.NoError(t, b.Attach(ctx, config))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(tmpDir, types.DefaultDBFile))
	assert.NoError(t, err, "database file should be created")

	err = b.Attach(ctx, config)
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)

	got := b.Config()
	assert.Equal(t, filepath.Join(tmpDir, "backups"), got.BackupDir)
	assert.Equal(t, types.DefaultBackupKeep, got.BackupKeep)
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(context.Background(), types.Config{DataDir: t.TempDir(), DBFile: "nested/x.db"})
	assert.ErrorIs(t, err, types.ErrDBFileInvalid)
}

func TestBackend_Detach(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	require.NoError(t, b.Attach(ctx, types.Config{DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	assert.NoError(t, b.Detach(), "second Detach should be a no-op")

	_, err := b.GetEntity(ctx, 1)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	err = b.SetAttribute(ctx, 1, "balance", 10)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.TopN(ctx, "balance", 10)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_ReattachKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := NewBackend()
	require.NoError(t, b.Attach(ctx, types.Config{DataDir: dir}))
	require.NoError(t, b.SetAttribute(ctx, 42, "balance", 700))
	require.NoError(t, b.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(ctx, types.Config{DataDir: dir}))
	defer b2.Detach()

	e, err := b2.GetEntity(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(700), e.Int("balance"))
	assert.Empty(t, b2.MigrationReport().Renamed, "a current schema is never renamed aside")
}

func TestBackend_EnsureEntity(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t, func(c *types.Config) {
		c.StartingBalance = 100
		c.StartingBank = 50
	})

	require.NoError(t, b.EnsureEntity(ctx, 7))
	require.NoError(t, b.EnsureEntity(ctx, 7), "ensuring twice is a no-op")
	require.NoError(t, b.EnsureEntity(ctx, 3))

	ids, err := b.ListEntityIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.EntityID{3, 7}, ids)

	e, err := b.GetEntity(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), e.Int("balance"))
	assert.Equal(t, int64(50), e.Int("bank"))
	assert.Equal(t, int64(150), e.Int("net_worth"))
	assert.Equal(t, int64(types.DefaultStartingBankLimit), e.Int("bank_limit"))

	assert.ErrorIs(t, b.EnsureEntity(ctx, 0), types.ErrInvalidID)
}

func TestBackend_ResetEntity(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	require.NoError(t, b.SetAttributes(ctx, 1, map[string]any{
		"balance":   500,
		"inventory": map[string]any{"apple": 3},
		"nickname":  "ace",
	}))
	_, err := b.CreatePet(ctx, 1, types.Pet{PetType: "dog"})
	require.NoError(t, err)
	_, err = b.UpsertRelationship(ctx, 2, 1, RelationshipUpdate{AffectionDelta: 5})
	require.NoError(t, err)

	require.NoError(t, b.ResetEntity(ctx, 1))

	ids, err := b.ListEntityIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, types.EntityID(1))

	pets, err := b.ListPets(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, pets)
	rels, err := b.ListRelationships(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, rels, "relationships toward the reset player are removed")

	// The next read recreates a fresh player.
	e, err := b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.Int("balance"))
	assert.Empty(t, e.Inventory())
	assert.NotContains(t, e, "nickname")

	assert.ErrorIs(t, b.ResetEntity(ctx, 999), types.ErrNotFound)
}

func TestBackend_Atomically(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	err := b.Atomically(ctx, func(tx *Tx) error {
		if _, err := tx.AddBalance(ctx, 1, 100); err != nil {
			return err
		}
		if _, err := tx.AddItem(ctx, 1, "sword", 1); err != nil {
			return err
		}
		e, err := tx.GetEntity(ctx, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(100), e.Int("balance"), "writes are visible inside the transaction")
		return nil
	})
	require.NoError(t, err)

	// A failing callback rolls everything back.
	err = b.Atomically(ctx, func(tx *Tx) error {
		if _, err := tx.AddBalance(ctx, 1, 900); err != nil {
			return err
		}
		return tx.SetAttribute(ctx, 1, "net_worth", 1)
	})
	require.ErrorIs(t, err, types.ErrReadOnlyAttribute)

	e, err := b.GetEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), e.Int("balance"))
	assert.Equal(t, map[string]int64{"sword": 1}, e.Inventory())
}
