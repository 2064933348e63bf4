// This file implements value coercion between caller-supplied attribute
// values and their stored representation: scalar columns, overflow text,
// JSON documents and the two composite shapes (quantity map, membership set).
package sqlite

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// mapDocuments decode to map[string]any; the other document keys are lists.
var mapDocuments = map[string]bool{
	"crypto_portfolio": true,
}

// toInt64 coerces numeric-looking values. Floats are truncated toward zero.
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", types.ErrInvalidValue, x)
		}
		return int64(x), nil
	case float32:
		return int64(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%w: %v", types.ErrInvalidValue, x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", types.ErrInvalidValue, x.String())
		}
		return int64(f), nil
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", types.ErrInvalidValue, x)
		}
		return int64(f), nil
	case []byte:
		return toInt64(string(x))
	default:
		// Named numeric types.
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return toInt64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			return toInt64(rv.Float())
		}
		return 0, fmt.Errorf("%w: %T is not a number", types.ErrInvalidValue, v)
	}
}

// toText renders scalars as text. Structured values are JSON encoded.
func toText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case json.Number:
		return x.String(), nil
	case time.Time:
		return types.FormatTime(x), nil
	case types.Timestamp:
		if !x.Valid() {
			return "", nil
		}
		return types.FormatTime(x.Time), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return "", fmt.Errorf("%w: encoding %T: %v", types.ErrInvalidValue, v, err)
		}
		return string(data), nil
	}
}

// toTimestamp accepts times, stored-format strings and unix seconds.
func toTimestamp(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if x.IsZero() {
			return nil, nil
		}
		return types.FormatTime(x), nil
	case types.Timestamp:
		return x.Value()
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		t, err := types.ParseTime(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidValue, err)
		}
		return types.FormatTime(t), nil
	default:
		secs, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return types.FormatTime(time.Unix(secs, 0)), nil
	}
}

// coerceColumn converts v to the stored form of table.column.
func coerceColumn(table, column string, v any) (any, error) {
	qualified := table + "." + column
	ct, ok := columnTypes[qualified]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownField, qualified)
	}
	switch ct {
	case colInt:
		if v == nil {
			return nil, fmt.Errorf("%w: %s cannot be null", types.ErrInvalidValue, column)
		}
		return toInt64(v)
	case colBool:
		if v == nil {
			return nil, fmt.Errorf("%w: %s cannot be null", types.ErrInvalidValue, column)
		}
		if s, isStr := v.(string); isStr {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a boolean", types.ErrInvalidValue, s)
			}
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n != 0 {
			return int64(1), nil
		}
		return int64(0), nil
	case colTime:
		return toTimestamp(v)
	case colJSON:
		return encodeJSONText(v, "[]")
	default:
		if v == nil {
			if notNullText[qualified] {
				return "", nil
			}
			return nil, nil
		}
		return toText(v)
	}
}

// encodeJSONText stores v as JSON. Strings that already hold valid JSON are
// kept verbatim.
func encodeJSONText(v any, empty string) (string, error) {
	switch x := v.(type) {
	case nil:
		return empty, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return empty, nil
		}
		if !json.Valid([]byte(x)) {
			return "", fmt.Errorf("%w: malformed JSON document", types.ErrInvalidValue)
		}
		return x, nil
	case []byte:
		return encodeJSONText(string(x), empty)
	case json.RawMessage:
		return encodeJSONText(string(x), empty)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: encoding %T: %v", types.ErrInvalidValue, v, err)
	}
	return string(data), nil
}

// encodeDocument encodes a document attribute. The document must decode to
// the shape its key expects.
func encodeDocument(key string, v any) (string, error) {
	empty := "[]"
	if mapDocuments[key] {
		empty = "{}"
	}
	text, err := encodeJSONText(v, empty)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(text)
	if mapDocuments[key] && !strings.HasPrefix(trimmed, "{") {
		return "", fmt.Errorf("%w: %s must be an object", types.ErrInvalidValue, key)
	}
	if !mapDocuments[key] && !strings.HasPrefix(trimmed, "[") {
		return "", fmt.Errorf("%w: %s must be a list", types.ErrInvalidValue, key)
	}
	return text, nil
}

// decodeDocument decodes a stored document. A NULL or malformed document
// degrades to the empty composite of the key's shape.
func decodeDocument(key string, text any) any {
	var raw []byte
	switch x := text.(type) {
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	}
	if mapDocuments[key] {
		m := map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m); err != nil || m == nil {
				return map[string]any{}
			}
		}
		return m
	}
	list := []any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &list); err != nil || list == nil {
			return []any{}
		}
	}
	return list
}

// encodeOverflow renders an overflow value as stored text. nil means the key
// should be removed.
func encodeOverflow(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := toText(v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// normalizeInventory turns any accepted inventory value into a quantity map.
// Entries with a quantity of zero or less are dropped.
func normalizeInventory(v any) (map[string]int64, error) {
	out := map[string]int64{}
	add := func(item string, q any) error {
		item = strings.TrimSpace(item)
		if item == "" {
			return fmt.Errorf("%w: empty item id", types.ErrInvalidValue)
		}
		n, err := toInt64(q)
		if err != nil {
			return fmt.Errorf("inventory item %s: %w", item, err)
		}
		if n > 0 {
			out[item] = n
		}
		return nil
	}
	switch x := v.(type) {
	case nil:
		return out, nil
	case map[string]int64:
		for k, q := range x {
			if err := add(k, q); err != nil {
				return nil, err
			}
		}
	case map[string]int:
		for k, q := range x {
			if err := add(k, q); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		for k, q := range x {
			if err := add(k, q); err != nil {
				return nil, err
			}
		}
	case string, []byte, json.RawMessage:
		text, err := encodeJSONText(x, "{}")
		if err != nil {
			return nil, err
		}
		var m map[string]any
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: inventory must be an object", types.ErrInvalidValue)
		}
		return normalizeInventory(m)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: inventory must be a map, got %T", types.ErrInvalidValue, v)
		}
		iter := rv.MapRange()
		for iter.Next() {
			if err := add(iter.Key().String(), iter.Value().Interface()); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// normalizeAchievements turns any accepted achievements value into an
// ordered set. A map is read as {id: unlocked}.
func normalizeAchievements(v any) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	switch x := v.(type) {
	case nil:
	case []string:
		for _, id := range x {
			add(id)
		}
	case []any:
		for _, id := range x {
			s, err := toText(id)
			if err != nil {
				return nil, err
			}
			add(s)
		}
	case map[string]bool:
		keys := sortedKeys(x)
		for _, id := range keys {
			if x[id] {
				add(id)
			}
		}
	case map[string]any:
		keys := sortedKeys(x)
		for _, id := range keys {
			if truthy(x[id]) {
				add(id)
			}
		}
	case string, []byte, json.RawMessage:
		text, err := encodeJSONText(x, "[]")
		if err != nil {
			return nil, err
		}
		var decoded any
		if err := json.Unmarshal([]byte(text), &decoded); err != nil {
			return nil, fmt.Errorf("%w: achievements: %v", types.ErrInvalidValue, err)
		}
		switch decoded.(type) {
		case []any, map[string]any:
			return normalizeAchievements(decoded)
		default:
			return nil, fmt.Errorf("%w: achievements must be a list", types.ErrInvalidValue)
		}
	default:
		rv := reflect.ValueOf(v)
		switch {
		case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				s, err := toText(rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				add(s)
			}
		case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
			unlocked := map[string]bool{}
			iter := rv.MapRange()
			for iter.Next() {
				unlocked[iter.Key().String()] = truthy(iter.Value().Interface())
			}
			for _, id := range sortedKeys(unlocked) {
				if unlocked[id] {
					add(id)
				}
			}
		default:
			return nil, fmt.Errorf("%w: achievements must be a list, got %T", types.ErrInvalidValue, v)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0" && !strings.EqualFold(x, "false")
	default:
		n, err := toInt64(v)
		return err != nil || n != 0
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeRoleSet stores a role snapshot as a JSON list of decimal ids.
func encodeRoleSet(roles []types.EntityID) (string, error) {
	if roles == nil {
		roles = []types.EntityID{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("encoding role snapshot: %w", err)
	}
	return string(data), nil
}

// decodeRoleSet reads a role snapshot. Entries may be numbers or strings;
// unparseable entries are dropped.
func decodeRoleSet(text string) []types.EntityID {
	var raw []any
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return []types.EntityID{}
	}
	roles := make([]types.EntityID, 0, len(raw))
	for _, r := range raw {
		id, err := types.ParseEntityID(r)
		if err != nil {
			continue
		}
		roles = append(roles, id)
	}
	return roles
}
