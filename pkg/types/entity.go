package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// EntityID identifies a player. Player ids are chat-platform snowflakes, so
// any 63-bit positive integer is valid; zero is reserved as "no id".
type EntityID = snowflake.ID

// ParseEntityID coerces v into an EntityID. Strings are parsed as decimal
// snowflakes; integral floats are accepted because JSON decoding produces
// them. Returns ErrInvalidID for anything else, for zero and for negatives.
func ParseEntityID(v any) (EntityID, error) {
	var id EntityID
	switch x := v.(type) {
	case EntityID:
		id = x
	case int:
		if x <= 0 {
			return 0, ErrInvalidID
		}
		id = EntityID(x)
	case int64:
		if x <= 0 {
			return 0, ErrInvalidID
		}
		id = EntityID(x)
	case uint64:
		id = EntityID(x)
	case float64:
		if x <= 0 || x != math.Trunc(x) || x > math.MaxInt64 {
			return 0, ErrInvalidID
		}
		id = EntityID(x)
	case json.Number:
		n, err := x.Int64()
		if err != nil || n <= 0 {
			return 0, ErrInvalidID
		}
		id = EntityID(n)
	case string:
		parsed, err := snowflake.Parse(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidID, x)
		}
		id = parsed
	default:
		return 0, ErrInvalidID
	}
	if id == 0 || uint64(id) > math.MaxInt64 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// Entity is the merged, dynamically-keyed view of one player. Scalar columns
// come back as int64, string or nil; composite keys carry their decoded
// shapes (map[string]int64 for inventory, []string for achievements).
type Entity map[string]any

// Int returns the attribute as an integer, parsing text values stored in the
// overflow table. Missing or non-numeric values yield 0.
func (e Entity) Int(key string) int64 {
	switch v := e[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}

// String returns the attribute formatted as text, or "" when absent.
func (e Entity) String(key string) string {
	switch v := e[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Inventory returns the reconstituted quantity map (never nil).
func (e Entity) Inventory() map[string]int64 {
	if inv, ok := e[KeyInventory].(map[string]int64); ok {
		return inv
	}
	return map[string]int64{}
}

// Achievements returns the unlocked achievement ids (never nil).
func (e Entity) Achievements() []string {
	if ach, ok := e[KeyAchievements].([]string); ok {
		return ach
	}
	return []string{}
}
