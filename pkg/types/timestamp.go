package types

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TimeLayout is the on-disk format of every timestamp column. It is fixed
// width in UTC, so text comparison in SQL matches chronological order.
const TimeLayout = "2006-01-02T15:04:05Z"

// Timestamp is a nullable UTC time stored as TimeLayout text.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to seconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// Valid reports whether the timestamp is set.
func (ts Timestamp) Valid() bool {
	return !ts.IsZero()
}

// Value implements driver.Valuer; the zero timestamp is NULL.
func (ts Timestamp) Value() (driver.Value, error) {
	if ts.IsZero() {
		return nil, nil
	}
	return ts.UTC().Format(TimeLayout), nil
}

// Scan implements sql.Scanner. It accepts TimeLayout, RFC3339 and the
// ISO format without zone that older rows were written with.
func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		ts.Time = time.Time{}
		return nil
	case time.Time:
		ts.Time = v.UTC()
		return nil
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	default:
		return fmt.Errorf("scanning timestamp: unsupported type %T", src)
	}
}

func (ts *Timestamp) parse(s string) error {
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	ts.Time = t
	return nil
}

// ParseTime parses a stored timestamp in any of the accepted layouts.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: unrecognized layout", s)
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
