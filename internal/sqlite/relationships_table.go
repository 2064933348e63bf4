// This file implements the relationships accessor. A relationship is
// directional: the row (a, b) is a's view of b and is independent of (b, a).
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

const relationshipColumns = `user_id, target_id, affection, status, relationship_type,
	relationship_level, last_interaction, created_at`

// RelationshipUpdate describes one UpsertRelationship call.
type RelationshipUpdate struct {
	// AffectionDelta is added to the stored affection in place.
	AffectionDelta int64
	// Status overwrites the status when non-empty.
	Status string
	// Type overwrites relationship_type when non-empty.
	Type string
	// Touch sets last_interaction to now.
	Touch bool
}

// GetRelationship returns user's relationship toward target.
func (b *Backend) GetRelationship(ctx context.Context, user, target types.EntityID) (types.Relationship, error) {
	var r types.Relationship
	err := b.withDB(func(o *ops) error {
		return o.getRelationship(ctx, user, target, &r)
	})
	return r, err
}

func (o *ops) getRelationship(ctx context.Context, user, target types.EntityID, r *types.Relationship) error {
	if err := sqlx.GetContext(ctx, o.q, r,
		"SELECT "+relationshipColumns+" FROM relationships WHERE user_id = ? AND target_id = ?",
		int64(user), int64(target),
	); err != nil {
		return notFound(err, fmt.Sprintf("relationship %s->%s", user, target))
	}
	return nil
}

// ListRelationships returns every row in which id appears on either side,
// strongest affection first.
func (b *Backend) ListRelationships(ctx context.Context, id types.EntityID) ([]types.Relationship, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	list := []types.Relationship{}
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &list,
			"SELECT "+relationshipColumns+` FROM relationships
			 WHERE user_id = ? OR target_id = ?
			 ORDER BY affection DESC, user_id, target_id`,
			int64(id), int64(id),
		); err != nil {
			return fmt.Errorf("listing relationships of %s: %w", id, err)
		}
		return nil
	})
	return list, err
}

// UpsertRelationship creates or updates user's relationship toward target
// and returns the resulting row. Affection accumulates in place; status and
// type are overwritten only when given; last_interaction moves only when
// Touch is set.
func (b *Backend) UpsertRelationship(ctx context.Context, user, target types.EntityID, u RelationshipUpdate) (types.Relationship, error) {
	if err := validID(user); err != nil {
		return types.Relationship{}, err
	}
	if err := validID(target); err != nil {
		return types.Relationship{}, err
	}
	if user == target {
		return types.Relationship{}, fmt.Errorf("%w: relationship with self", types.ErrInvalidID)
	}

	var touched any
	if u.Touch {
		touched = b.timestamp()
	}
	var r types.Relationship
	err := b.withTx(ctx, func(o *ops) error {
		if _, err := o.q.ExecContext(ctx,
			`INSERT INTO relationships (user_id, target_id, affection, status, relationship_type, last_interaction, created_at)
			 VALUES (?, ?, ?, COALESCE(NULLIF(?, ''), 'stranger'), ?, ?, ?)
			 ON CONFLICT (user_id, target_id) DO UPDATE SET
			     affection = relationships.affection + excluded.affection,
			     status = CASE WHEN ? = '' THEN relationships.status ELSE excluded.status END,
			     relationship_type = CASE WHEN ? = '' THEN relationships.relationship_type ELSE excluded.relationship_type END,
			     last_interaction = COALESCE(excluded.last_interaction, relationships.last_interaction)`,
			int64(user), int64(target), u.AffectionDelta, u.Status, u.Type, touched, o.b.timestamp(),
			u.Status, u.Type,
		); err != nil {
			return fmt.Errorf("upserting relationship %s->%s: %w", user, target, err)
		}
		return o.getRelationship(ctx, user, target, &r)
	})
	return r, err
}

// SetRelationshipLevel overwrites the relationship level of one direction.
func (b *Backend) SetRelationshipLevel(ctx context.Context, user, target types.EntityID, level int64) error {
	return b.withDB(func(o *ops) error {
		res, err := o.q.ExecContext(ctx,
			"UPDATE relationships SET relationship_level = ? WHERE user_id = ? AND target_id = ?",
			level, int64(user), int64(target))
		if err != nil {
			return fmt.Errorf("setting relationship level %s->%s: %w", user, target, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("relationship %s->%s: %w", user, target, types.ErrNotFound)
		}
		return nil
	})
}
