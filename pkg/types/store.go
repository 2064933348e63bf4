package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is the attribute contract callers code against. The concrete
// implementation lives in internal/sqlite; the compat package wraps it for
// legacy callers that cannot handle errors.
type Store interface {
	// GetEntity returns the merged view of a player, creating the player
	// lazily when it does not exist yet.
	GetEntity(ctx context.Context, id EntityID) (Entity, error)

	// SetAttribute routes key to its table/column or the overflow store.
	SetAttribute(ctx context.Context, id EntityID, key string, value any) error

	// SetAttributes applies SetAttribute for every pair in one transaction.
	SetAttributes(ctx context.Context, id EntityID, attrs map[string]any) error

	// TopN returns up to limit players ordered by field, descending.
	TopN(ctx context.Context, field string, limit int) ([]LeaderboardEntry, error)
}

// Lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Operation errors.
var (
	ErrInvalidID         = errors.New("invalid entity ID")
	ErrNotFound          = errors.New("entity not found")
	ErrUnknownAttribute  = errors.New("unknown attribute")
	ErrReadOnlyAttribute = errors.New("attribute is read-only")
	ErrUnknownField      = errors.New("unknown field")
	ErrInvalidValue      = errors.New("invalid attribute value")
	ErrInvalidName       = errors.New("invalid name")

	ErrAlreadyQuarantined = errors.New("member already has an active quarantine")
)

// UnknownAttributeError is returned in strict attribute mode when a key is
// not part of the key space but looks like a misspelling of one that is.
type UnknownAttributeError struct {
	Key         string
	Suggestions []string
}

func (e *UnknownAttributeError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown attribute %q", e.Key)
	}
	return fmt.Sprintf("unknown attribute %q (did you mean %s?)", e.Key, strings.Join(e.Suggestions, ", "))
}

// Unwrap lets errors.Is match ErrUnknownAttribute.
func (e *UnknownAttributeError) Unwrap() error {
	return ErrUnknownAttribute
}
