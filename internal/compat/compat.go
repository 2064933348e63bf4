// Package compat exposes the player store through entry points that never
// return errors. Callers written against the old store expect a bad player
// id to be ignored and a failed read to look like an empty player; this
// package keeps that contract on top of the error-returning backend and logs
// whatever it swallows.
package compat

import (
	"context"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// Backend is the subset of the store the shim forwards to. *sqlite.Backend
// satisfies it.
type Backend interface {
	types.Store
	AddBalance(ctx context.Context, id types.EntityID, amount int64) (int64, error)
	RemoveBalance(ctx context.Context, id types.EntityID, amount int64) (int64, error)
	AddBank(ctx context.Context, id types.EntityID, amount int64) (int64, error)
	AddXP(ctx context.Context, id types.EntityID, amount int64) (level, xp int64, err error)
	AddSkillXP(ctx context.Context, id types.EntityID, skill string, amount int64) (xp, level int64, err error)
	AddItem(ctx context.Context, id types.EntityID, item string, qty int64) (int64, error)
	RemoveItem(ctx context.Context, id types.EntityID, item string, qty int64) (int64, error)
	IncrementCounter(ctx context.Context, id types.EntityID, key string, delta int64) (int64, error)
}

// Store wraps a Backend. Player ids are accepted in any form
// types.ParseEntityID understands.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// New returns a Store over backend. A nil logger discards the log.
func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// player coerces raw into an id. Invalid ids are logged at debug level only:
// legacy callers pass them routinely.
func (s *Store) player(op string, raw any) (types.EntityID, bool) {
	id, err := types.ParseEntityID(raw)
	if err != nil {
		s.logger.Debug("ignoring invalid player id",
			zap.String("op", op),
			zap.Any("player_id", raw),
		)
		return 0, false
	}
	return id, true
}

func (s *Store) swallow(op string, id types.EntityID, err error) {
	s.logger.Warn("store operation failed",
		zap.String("op", op),
		zap.Uint64("player_id", uint64(id)),
		zap.Error(err),
	)
}

// GetEntity returns the player view, or an empty view on any failure.
func (s *Store) GetEntity(ctx context.Context, raw any) types.Entity {
	id, ok := s.player("get_entity", raw)
	if !ok {
		return types.Entity{}
	}
	e, err := s.backend.GetEntity(ctx, id)
	if err != nil {
		s.swallow("get_entity", id, err)
		return types.Entity{}
	}
	return e
}

// GetAttribute returns one key of the player view, or nil.
func (s *Store) GetAttribute(ctx context.Context, raw any, key string) any {
	return s.GetEntity(ctx, raw)[key]
}

// SetAttribute writes one attribute and reports whether it was stored.
func (s *Store) SetAttribute(ctx context.Context, raw any, key string, value any) bool {
	id, ok := s.player("set_attribute", raw)
	if !ok {
		return false
	}
	if err := s.backend.SetAttribute(ctx, id, key, value); err != nil {
		s.swallow("set_attribute", id, err)
		return false
	}
	return true
}

// SetAttributes writes a batch. The batch is all-or-nothing.
func (s *Store) SetAttributes(ctx context.Context, raw any, attrs map[string]any) bool {
	id, ok := s.player("set_attributes", raw)
	if !ok {
		return false
	}
	if err := s.backend.SetAttributes(ctx, id, attrs); err != nil {
		s.swallow("set_attributes", id, err)
		return false
	}
	return true
}

// Balance returns the wallet balance, 0 when unknown.
func (s *Store) Balance(ctx context.Context, raw any) int64 {
	return s.GetEntity(ctx, raw).Int(types.KeyBalance)
}

// AddBalance adjusts the wallet and returns the new balance, 0 on failure.
func (s *Store) AddBalance(ctx context.Context, raw any, amount int64) int64 {
	return s.money(ctx, "add_balance", raw, amount, s.backend.AddBalance)
}

// RemoveBalance subtracts from the wallet and returns the new balance.
func (s *Store) RemoveBalance(ctx context.Context, raw any, amount int64) int64 {
	return s.money(ctx, "remove_balance", raw, amount, s.backend.RemoveBalance)
}

// AddBank adjusts the bank and returns the new bank value.
func (s *Store) AddBank(ctx context.Context, raw any, amount int64) int64 {
	return s.money(ctx, "add_bank", raw, amount, s.backend.AddBank)
}

func (s *Store) money(ctx context.Context, op string, raw any, amount int64, fn func(context.Context, types.EntityID, int64) (int64, error)) int64 {
	id, ok := s.player(op, raw)
	if !ok {
		return 0
	}
	v, err := fn(ctx, id, amount)
	if err != nil {
		s.swallow(op, id, err)
		return 0
	}
	return v
}

// AddXP grants player xp and returns the new level and xp, zeros on failure.
func (s *Store) AddXP(ctx context.Context, raw any, amount int64) (level, xp int64) {
	id, ok := s.player("add_xp", raw)
	if !ok {
		return 0, 0
	}
	level, xp, err := s.backend.AddXP(ctx, id, amount)
	if err != nil {
		s.swallow("add_xp", id, err)
		return 0, 0
	}
	return level, xp
}

// AddSkillXP grants skill xp and returns the new xp and level.
func (s *Store) AddSkillXP(ctx context.Context, raw any, skill string, amount int64) (xp, level int64) {
	id, ok := s.player("add_skill_xp", raw)
	if !ok {
		return 0, 0
	}
	xp, level, err := s.backend.AddSkillXP(ctx, id, skill, amount)
	if err != nil {
		s.swallow("add_skill_xp", id, err)
		return 0, 0
	}
	return xp, level
}

// AddItem adds to the inventory and returns the new quantity.
func (s *Store) AddItem(ctx context.Context, raw any, item string, qty int64) int64 {
	id, ok := s.player("add_item", raw)
	if !ok {
		return 0
	}
	v, err := s.backend.AddItem(ctx, id, item, qty)
	if err != nil {
		s.swallow("add_item", id, err)
		return 0
	}
	return v
}

// RemoveItem removes from the inventory and returns the remaining quantity.
func (s *Store) RemoveItem(ctx context.Context, raw any, item string, qty int64) int64 {
	id, ok := s.player("remove_item", raw)
	if !ok {
		return 0
	}
	v, err := s.backend.RemoveItem(ctx, id, item, qty)
	if err != nil {
		s.swallow("remove_item", id, err)
		return 0
	}
	return v
}

// IncrementCounter adds delta to a numeric attribute and returns its value.
func (s *Store) IncrementCounter(ctx context.Context, raw any, key string, delta int64) int64 {
	id, ok := s.player("increment_counter", raw)
	if !ok {
		return 0
	}
	v, err := s.backend.IncrementCounter(ctx, id, key, delta)
	if err != nil {
		s.swallow("increment_counter", id, err)
		return 0
	}
	return v
}

// TopN returns the leaderboard, or an empty one on failure.
func (s *Store) TopN(ctx context.Context, field string, limit int) []types.LeaderboardEntry {
	rows, err := s.backend.TopN(ctx, field, limit)
	if err != nil {
		s.logger.Warn("leaderboard failed", zap.String("field", field), zap.Error(err))
		return []types.LeaderboardEntry{}
	}
	return rows
}
