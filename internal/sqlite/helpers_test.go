// Shared fixtures for the sqlite package tests.
package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// testEpoch is the fake clock's starting instant.
var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupBackend attaches a fresh backend in a temp dir. mutate, if given,
// adjusts the config before Attach.
func setupBackend(t *testing.T, mutate ...func(*types.Config)) (*Backend, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg := types.Config{DataDir: t.TempDir()}
	for _, m := range mutate {
		m(&cfg)
	}
	b := NewBackend(WithClock(clock.Now))
	require.NoError(t, b.Attach(context.Background(), cfg))
	t.Cleanup(func() { b.Detach() })
	return b, clock
}

// fakeDirectory is an in-memory RoleDirectory.
type fakeDirectory struct {
	mu      sync.Mutex
	roles   map[types.EntityID]int
	members map[types.EntityID][]types.EntityID
	ceiling int
	grants  int
}

func newFakeDirectory(ceiling int) *fakeDirectory {
	return &fakeDirectory{
		roles:   map[types.EntityID]int{},
		members: map[types.EntityID][]types.EntityID{},
		ceiling: ceiling,
	}
}

func (d *fakeDirectory) addRole(id types.EntityID, position int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[id] = position
}

func (d *fakeDirectory) deleteRole(id types.EntityID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.roles, id)
}

func (d *fakeDirectory) setMemberRoles(user types.EntityID, roles ...types.EntityID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[user] = append([]types.EntityID(nil), roles...)
}

func (d *fakeDirectory) memberRoles(user types.EntityID) []types.EntityID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]types.EntityID(nil), d.members[user]...)
}

func (d *fakeDirectory) MemberRoles(_ context.Context, _, user types.EntityID) ([]types.EntityID, error) {
	return d.memberRoles(user), nil
}

func (d *fakeDirectory) LookupRole(_ context.Context, _, role types.EntityID) (types.Role, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pos, ok := d.roles[role]
	if !ok {
		return types.Role{}, false, nil
	}
	return types.Role{ID: role, Position: pos}, true, nil
}

func (d *fakeDirectory) AuthorityCeiling(context.Context, types.EntityID) (int, error) {
	return d.ceiling, nil
}

func (d *fakeDirectory) GrantRoles(_ context.Context, _, user types.EntityID, roles []types.EntityID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grants++
	d.members[user] = append(d.members[user], roles...)
	return nil
}
