package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// TopN returns up to limit players ranked by field, descending. Ties break
// on the lower player id. field must be one of types.LeaderboardFields;
// limit is clamped to at least 1.
func (b *Backend) TopN(ctx context.Context, field string, limit int) ([]types.LeaderboardEntry, error) {
	kind, ok := types.LeaderboardFields[field]
	if !ok {
		return nil, fmt.Errorf("leaderboard field %q: %w", field, types.ErrUnknownField)
	}
	if limit < 1 {
		limit = 1
	}
	table := "players"
	if kind == types.KindVitals {
		table = "player_vitals"
	}
	// field is allow-listed above.
	query := fmt.Sprintf(
		"SELECT player_id, %s AS value FROM %s ORDER BY %s DESC, player_id ASC LIMIT ?",
		quoteIdent(field), table, quoteIdent(field),
	)

	var entries []types.LeaderboardEntry
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &entries, query, limit); err != nil {
			return fmt.Errorf("ranking by %s: %w", field, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []types.LeaderboardEntry{}
	}
	return entries, nil
}
