// This file implements quarantine records: a moderation hold that snapshots
// a member's roles on creation and restores them exactly once on release.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

const quarantineColumns = `id, guild_id, user_id, moderator_id, reason, roles_backup,
	created_at, expires_at, released_at, active`

// quarantineRow is the stored form; roles_backup is JSON text.
type quarantineRow struct {
	ID          int64           `db:"id"`
	Scope       int64           `db:"guild_id"`
	UserID      int64           `db:"user_id"`
	ModeratorID int64           `db:"moderator_id"`
	Reason      string          `db:"reason"`
	RolesBackup string          `db:"roles_backup"`
	CreatedAt   types.Timestamp `db:"created_at"`
	ExpiresAt   types.Timestamp `db:"expires_at"`
	ReleasedAt  types.Timestamp `db:"released_at"`
	Active      bool            `db:"active"`
}

func (r quarantineRow) record() types.QuarantineRecord {
	return types.QuarantineRecord{
		ID:          r.ID,
		Scope:       types.EntityID(r.Scope),
		UserID:      types.EntityID(r.UserID),
		ModeratorID: types.EntityID(r.ModeratorID),
		Reason:      r.Reason,
		Roles:       decodeRoleSet(r.RolesBackup),
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		ReleasedAt:  r.ReleasedAt,
		Active:      r.Active,
	}
}

// snapshotRoles filters the member's live roles down to what a release
// should give back: the scope's default role (whose id equals the scope id)
// and the quarantine marker are never captured.
func snapshotRoles(held []types.EntityID, scope, marker types.EntityID) []types.EntityID {
	seen := map[types.EntityID]bool{}
	out := []types.EntityID{}
	for _, r := range held {
		if r == 0 || r == scope || r == marker || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// CreateQuarantine snapshots the member's roles through dir and stores an
// active hold. Returns ErrAlreadyQuarantined when the member already has an
// active hold in the scope; a second snapshot would capture the stripped
// role set.
func (b *Backend) CreateQuarantine(ctx context.Context, dir types.RoleDirectory, q types.NewQuarantine) (types.QuarantineRecord, error) {
	if err := validID(q.Scope); err != nil {
		return types.QuarantineRecord{}, err
	}
	if err := validID(q.UserID); err != nil {
		return types.QuarantineRecord{}, err
	}
	held, err := dir.MemberRoles(ctx, q.Scope, q.UserID)
	if err != nil {
		return types.QuarantineRecord{}, fmt.Errorf("reading roles of %s: %w", q.UserID, err)
	}
	roles, err := encodeRoleSet(snapshotRoles(held, q.Scope, q.MarkerRole))
	if err != nil {
		return types.QuarantineRecord{}, err
	}

	now := b.now()
	var expires any
	if q.Duration > 0 {
		expires = types.FormatTime(now.Add(q.Duration))
	}

	var rec types.QuarantineRecord
	err = b.withTx(ctx, func(o *ops) error {
		var active int
		if err := o.q.QueryRowxContext(ctx,
			"SELECT COUNT(*) FROM quarantines WHERE guild_id = ? AND user_id = ? AND active = 1",
			int64(q.Scope), int64(q.UserID),
		).Scan(&active); err != nil {
			return fmt.Errorf("checking active quarantine: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("member %s: %w", q.UserID, types.ErrAlreadyQuarantined)
		}

		var id int64
		if err := o.q.QueryRowxContext(ctx,
			`INSERT INTO quarantines (guild_id, user_id, moderator_id, reason, roles_backup, created_at, expires_at, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1) RETURNING id`,
			int64(q.Scope), int64(q.UserID), int64(q.ModeratorID), q.Reason, roles,
			types.FormatTime(now), expires,
		).Scan(&id); err != nil {
			return fmt.Errorf("inserting quarantine: %w", err)
		}
		return o.getQuarantine(ctx, id, &rec)
	})
	if err != nil {
		return types.QuarantineRecord{}, err
	}
	b.logger.Info("member quarantined",
		zap.Int64("quarantine_id", rec.ID),
		zap.Stringer("scope", rec.Scope),
		zap.Stringer("user_id", rec.UserID),
		zap.Int("roles_captured", len(rec.Roles)),
	)
	return rec, nil
}

func (o *ops) getQuarantine(ctx context.Context, id int64, rec *types.QuarantineRecord) error {
	var row quarantineRow
	if err := sqlx.GetContext(ctx, o.q, &row,
		"SELECT "+quarantineColumns+" FROM quarantines WHERE id = ?", id,
	); err != nil {
		return notFound(err, fmt.Sprintf("quarantine %d", id))
	}
	*rec = row.record()
	return nil
}

// GetQuarantine returns one record.
func (b *Backend) GetQuarantine(ctx context.Context, id int64) (types.QuarantineRecord, error) {
	var rec types.QuarantineRecord
	err := b.withDB(func(o *ops) error {
		return o.getQuarantine(ctx, id, &rec)
	})
	return rec, err
}

// ActiveQuarantine returns the member's active hold in scope.
func (b *Backend) ActiveQuarantine(ctx context.Context, scope, user types.EntityID) (types.QuarantineRecord, error) {
	var row quarantineRow
	err := b.withDB(func(o *ops) error {
		if err := sqlx.GetContext(ctx, o.q, &row,
			"SELECT "+quarantineColumns+" FROM quarantines WHERE guild_id = ? AND user_id = ? AND active = 1 ORDER BY id DESC LIMIT 1",
			int64(scope), int64(user),
		); err != nil {
			return notFound(err, fmt.Sprintf("active quarantine of %s", user))
		}
		return nil
	})
	if err != nil {
		return types.QuarantineRecord{}, err
	}
	return row.record(), nil
}

// ListQuarantines returns the records of a scope, newest first. A zero
// scope lists every scope.
func (b *Backend) ListQuarantines(ctx context.Context, scope types.EntityID, activeOnly bool) ([]types.QuarantineRecord, error) {
	query := "SELECT " + quarantineColumns + " FROM quarantines WHERE (? = 0 OR guild_id = ?)"
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY id DESC"

	var rows []quarantineRow
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &rows, query, int64(scope), int64(scope)); err != nil {
			return fmt.Errorf("listing quarantines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.QuarantineRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// ReleaseQuarantine ends a hold. The active→inactive transition is a
// conditional update, so of any number of concurrent releases exactly one
// wins and restores roles; the rest, and any later call, return
// Released=false and do nothing. Restoration skips roles that no longer
// exist, roles at or above dir's authority ceiling and roles the member
// already holds.
func (b *Backend) ReleaseQuarantine(ctx context.Context, dir types.RoleDirectory, id int64) (types.ReleaseResult, error) {
	var rec types.QuarantineRecord
	won := false
	err := b.withTx(ctx, func(o *ops) error {
		if err := o.getQuarantine(ctx, id, &rec); err != nil {
			return err
		}
		res, err := o.q.ExecContext(ctx,
			"UPDATE quarantines SET active = 0, released_at = ? WHERE id = ? AND active = 1",
			o.b.timestamp(), id)
		if err != nil {
			return fmt.Errorf("releasing quarantine %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("releasing quarantine %d: %w", id, err)
		}
		won = n == 1
		return nil
	})
	if err != nil || !won {
		return types.ReleaseResult{}, err
	}

	result, err := restoreRoles(ctx, dir, rec)
	result.Released = true
	if err != nil {
		b.logger.Error("restoring quarantined roles failed",
			zap.Int64("quarantine_id", id), zap.Stringer("user_id", rec.UserID), zap.Error(err))
		return result, fmt.Errorf("restoring roles for quarantine %d: %w", id, err)
	}
	b.logger.Info("quarantine released",
		zap.Int64("quarantine_id", id),
		zap.Int("restored", len(result.Restored)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// restoreRoles grants back what the snapshot captured, subject to what the
// directory says is still valid and grantable.
func restoreRoles(ctx context.Context, dir types.RoleDirectory, rec types.QuarantineRecord) (types.ReleaseResult, error) {
	result := types.ReleaseResult{Restored: []types.EntityID{}, Skipped: []types.EntityID{}}
	if len(rec.Roles) == 0 {
		return result, nil
	}
	held, err := dir.MemberRoles(ctx, rec.Scope, rec.UserID)
	if err != nil {
		return result, fmt.Errorf("reading current roles: %w", err)
	}
	holding := map[types.EntityID]bool{}
	for _, r := range held {
		holding[r] = true
	}
	ceiling, err := dir.AuthorityCeiling(ctx, rec.Scope)
	if err != nil {
		return result, fmt.Errorf("reading authority ceiling: %w", err)
	}

	for _, roleID := range rec.Roles {
		if holding[roleID] {
			continue
		}
		role, ok, err := dir.LookupRole(ctx, rec.Scope, roleID)
		if err != nil {
			return result, fmt.Errorf("looking up role %s: %w", roleID, err)
		}
		if !ok || role.Position >= ceiling {
			result.Skipped = append(result.Skipped, roleID)
			continue
		}
		result.Restored = append(result.Restored, roleID)
	}
	if len(result.Restored) == 0 {
		return result, nil
	}
	if err := dir.GrantRoles(ctx, rec.Scope, rec.UserID, result.Restored); err != nil {
		return result, fmt.Errorf("granting roles: %w", err)
	}
	return result, nil
}

// SweepExpiredQuarantines releases every active hold whose deadline is at or
// before now. Each release is independent: a failure is reported but does
// not stop the sweep. Returns how many holds this call released.
func (b *Backend) SweepExpiredQuarantines(ctx context.Context, dir types.RoleDirectory, now time.Time) (int, error) {
	var ids []int64
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &ids,
			`SELECT id FROM quarantines
			 WHERE active = 1 AND expires_at IS NOT NULL AND expires_at <= ?
			 ORDER BY expires_at, id`,
			types.FormatTime(now),
		); err != nil {
			return fmt.Errorf("finding expired quarantines: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	released := 0
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := b.ReleaseQuarantine(ctx, dir, id)
		if res.Released {
			released++
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if released > 0 {
		b.logger.Info("expired quarantines released", zap.Int("count", released))
	}
	return released, errors.Join(errs...)
}
