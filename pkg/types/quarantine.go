package types

import (
	"context"
	"time"
)

// QuarantineRecord is a moderation hold on a member of a community (Scope).
// Roles is the role set captured at creation; it is immutable and used only
// to restore the member on release. Active goes true→false exactly once.
type QuarantineRecord struct {
	ID          int64      `json:"id"`
	Scope       EntityID   `json:"guild_id"`
	UserID      EntityID   `json:"user_id"`
	ModeratorID EntityID   `json:"moderator_id"`
	Reason      string     `json:"reason"`
	Roles       []EntityID `json:"roles_backup"`
	CreatedAt   Timestamp  `json:"created_at"`
	ExpiresAt   Timestamp  `json:"expires_at"`
	ReleasedAt  Timestamp  `json:"released_at"`
	Active      bool       `json:"active"`
}

// Expired reports whether the hold has a deadline at or before now.
func (q QuarantineRecord) Expired(now time.Time) bool {
	return q.ExpiresAt.Valid() && !q.ExpiresAt.After(now)
}

// NewQuarantine describes a hold to create.
type NewQuarantine struct {
	Scope       EntityID
	UserID      EntityID
	ModeratorID EntityID
	Reason      string
	// MarkerRole is the role that marks quarantine; it is never snapshotted.
	MarkerRole EntityID
	// Duration of zero means the hold never expires on its own.
	Duration time.Duration
}

// Role is a community role as seen by the RoleDirectory. Position orders
// authority: higher positions outrank lower ones.
type Role struct {
	ID       EntityID
	Position int
}

// RoleDirectory is the external collaborator that knows the live role state
// of a community. The store never decides policy; it only snapshots and
// restores through this interface.
type RoleDirectory interface {
	// MemberRoles returns the roles the member currently holds.
	MemberRoles(ctx context.Context, scope, member EntityID) ([]EntityID, error)

	// LookupRole returns the role, or ok=false when it no longer exists.
	LookupRole(ctx context.Context, scope, role EntityID) (Role, bool, error)

	// AuthorityCeiling is the position of the restoring actor's highest role;
	// only roles strictly below it can be granted.
	AuthorityCeiling(ctx context.Context, scope EntityID) (int, error)

	// GrantRoles adds roles to the member.
	GrantRoles(ctx context.Context, scope, member EntityID, roles []EntityID) error
}

// ReleaseResult reports what a release did. Released is false when the record
// was already inactive, in which case nothing was restored.
type ReleaseResult struct {
	Released bool
	Restored []EntityID
	Skipped  []EntityID
}
