// Tests for quarantine snapshot, release and sweep.
package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

const (
	testScope  types.EntityID = 900
	testMarker types.EntityID = 999
	testUser   types.EntityID = 10
	testMod    types.EntityID = 11
)

// quarantineFixture returns a directory where the user holds roles 101-103,
// the scope's default role and the marker; role 103 sits above the ceiling.
func quarantineFixture() *fakeDirectory {
	dir := newFakeDirectory(50)
	dir.addRole(101, 10)
	dir.addRole(102, 20)
	dir.addRole(103, 60)
	dir.addRole(testMarker, 5)
	dir.setMemberRoles(testUser, testScope, 101, 102, 103, testMarker, 101)
	return dir
}

func newHold(d time.Duration) types.NewQuarantine {
	return types.NewQuarantine{
		Scope:       testScope,
		UserID:      testUser,
		ModeratorID: testMod,
		Reason:      "spam",
		MarkerRole:  testMarker,
		Duration:    d,
	}
}

func TestCreateQuarantine(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)
	dir := quarantineFixture()

	// --- S1: snapshot excludes the default role, the marker and duplicates ---
	rec, err := b.CreateQuarantine(ctx, dir, newHold(time.Hour))
	require.NoError(t, err)
	assert.True(t, rec.Active)
	assert.Equal(t, []types.EntityID{101, 102, 103}, rec.Roles)
	assert.Equal(t, "spam", rec.Reason)
	assert.True(t, testEpoch.Equal(rec.CreatedAt.Time))
	assert.True(t, testEpoch.Add(time.Hour).Equal(rec.ExpiresAt.Time))
	assert.False(t, rec.ReleasedAt.Valid())

	// --- S2: a second active hold for the same member is refused ---
	_, err = b.CreateQuarantine(ctx, dir, newHold(time.Hour))
	assert.ErrorIs(t, err, types.ErrAlreadyQuarantined)

	// --- S3: lookups ---
	active, err := b.ActiveQuarantine(ctx, testScope, testUser)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, active.ID)
	_, err = b.ActiveQuarantine(ctx, testScope, 12345)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.GetQuarantine(ctx, 777)
	assert.ErrorIs(t, err, types.ErrNotFound)

	// --- S4: zero duration means no deadline ---
	dir.setMemberRoles(20, 101)
	hold := newHold(0)
	hold.UserID = 20
	open, err := b.CreateQuarantine(ctx, dir, hold)
	require.NoError(t, err)
	assert.False(t, open.ExpiresAt.Valid())
}

func TestReleaseQuarantine(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)
	dir := quarantineFixture()

	rec, err := b.CreateQuarantine(ctx, dir, newHold(time.Hour))
	require.NoError(t, err)

	// The moderator strips the member down to the marker, role 102 is
	// deleted meanwhile, and the member regains 101 by other means.
	dir.setMemberRoles(testUser, testMarker, 101)
	dir.deleteRole(102)

	// --- S1: first release restores what is still valid and grantable ---
	res, err := b.ReleaseQuarantine(ctx, dir, rec.ID)
	require.NoError(t, err)
	assert.True(t, res.Released)
	assert.Empty(t, res.Restored, "101 is already held, 102 is gone, 103 is above the ceiling")
	assert.ElementsMatch(t, []types.EntityID{102, 103}, res.Skipped)
	assert.Equal(t, 0, dir.grants)

	got, err := b.GetQuarantine(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.True(t, got.ReleasedAt.Valid())
	assert.Equal(t, []types.EntityID{101, 102, 103}, got.Roles, "the snapshot is never modified")

	// --- S2: a second release is a no-op ---
	res, err = b.ReleaseQuarantine(ctx, dir, rec.ID)
	require.NoError(t, err)
	assert.False(t, res.Released)

	// --- S3: a released member can be quarantined again ---
	_, err = b.CreateQuarantine(ctx, dir, newHold(time.Hour))
	require.NoError(t, err)

	_, err = b.ReleaseQuarantine(ctx, dir, 4242)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestReleaseQuarantine_Grants(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)
	dir := quarantineFixture()

	rec, err := b.CreateQuarantine(ctx, dir, newHold(0))
	require.NoError(t, err)
	dir.setMemberRoles(testUser, testMarker)

	res, err := b.ReleaseQuarantine(ctx, dir, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.EntityID{101, 102}, res.Restored)
	assert.Equal(t, []types.EntityID{103}, res.Skipped)
	assert.ElementsMatch(t, []types.EntityID{testMarker, 101, 102}, dir.memberRoles(testUser))
}

func TestReleaseQuarantine_ConcurrentRestoresOnce(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)
	dir := quarantineFixture()

	rec, err := b.CreateQuarantine(ctx, dir, newHold(0))
	require.NoError(t, err)
	dir.setMemberRoles(testUser, testMarker)

	const callers = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	released := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.ReleaseQuarantine(ctx, dir, rec.ID)
			assert.NoError(t, err)
			if res.Released {
				mu.Lock()
				released++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, released)
	assert.Equal(t, 1, dir.grants)
}

func TestListQuarantines(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)
	dir := quarantineFixture()

	first, err := b.CreateQuarantine(ctx, dir, newHold(0))
	require.NoError(t, err)
	_, err = b.ReleaseQuarantine(ctx, dir, first.ID)
	require.NoError(t, err)
	second, err := b.CreateQuarantine(ctx, dir, newHold(0))
	require.NoError(t, err)
	other := newHold(0)
	other.Scope = 901
	_, err = b.CreateQuarantine(ctx, dir, other)
	require.NoError(t, err)

	all, err := b.ListQuarantines(ctx, testScope, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	active, err := b.ListQuarantines(ctx, testScope, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	everywhere, err := b.ListQuarantines(ctx, 0, true)
	require.NoError(t, err)
	assert.Len(t, everywhere, 2)
}

func TestSweepExpiredQuarantines(t *testing.T) {
	ctx := context.Background()
	b, clock := setupBackend(t)
	dir := quarantineFixture()

	short, err := b.CreateQuarantine(ctx, dir, newHold(time.Minute))
	require.NoError(t, err)
	dir.setMemberRoles(21, 101)
	long := newHold(time.Hour)
	long.UserID = 21
	_, err = b.CreateQuarantine(ctx, dir, long)
	require.NoError(t, err)
	dir.setMemberRoles(22, 101)
	forever := newHold(0)
	forever.UserID = 22
	_, err = b.CreateQuarantine(ctx, dir, forever)
	require.NoError(t, err)

	// --- S1: nothing is due yet ---
	n, err := b.SweepExpiredQuarantines(ctx, dir, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// --- S2: the deadline is inclusive ---
	clock.Advance(time.Minute)
	n, err = b.SweepExpiredQuarantines(ctx, dir, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := b.GetQuarantine(ctx, short.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	// --- S3: a later sweep does not release twice, holds without a deadline stay ---
	clock.Advance(48 * time.Hour)
	n, err = b.SweepExpiredQuarantines(ctx, dir, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	active, err := b.ListQuarantines(ctx, testScope, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, types.EntityID(22), active[0].UserID)
}

func TestSnapshotRoles(t *testing.T) {
	got := snapshotRoles([]types.EntityID{0, 5, 7, 5, 9, 8}, 9, 8)
	assert.Equal(t, []types.EntityID{5, 7}, got)
	assert.Equal(t, []types.EntityID{}, snapshotRoles(nil, 1, 2))
}
