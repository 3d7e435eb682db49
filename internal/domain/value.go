package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned when a parameter value cannot be parsed.
var ErrInvalidValue = errors.New("invalid parameter value")

// ValueKind distinguishes plain numbers from time-of-day values.
type ValueKind uint8

const (
	KindNumber ValueKind = iota
	KindClock            // HH:MM, stored as minutes since midnight
)

// Value is a strategy parameter value: a number or a time of day.
// The zero Value is the number 0.
type Value struct {
	kind    ValueKind
	num     float64
	minutes int
}

// Number returns a numeric Value. Negative zero is stored as zero so equal
// values share one canonical key.
func Number(v float64) Value {
	if v == 0 {
		v = 0
	}
	return Value{kind: KindNumber, num: v}
}

// Clock returns a time-of-day Value from minutes since midnight.
func Clock(minutes int) Value {
	return Value{kind: KindClock, minutes: minutes}
}

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Value, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Value{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidValue, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Value{}, fmt.Errorf("%w: bad hour in %q", ErrInvalidValue, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return Value{}, fmt.Errorf("%w: bad minute in %q", ErrInvalidValue, s)
	}
	return Clock(h*60 + m), nil
}

// ParseValue parses either a number or an "HH:MM" string.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		return ParseClock(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return Number(f), nil
}

// ValueOf converts a decoded YAML/JSON scalar into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case json.Number:
		return ParseValue(x.String())
	case string:
		return ParseValue(x)
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// Kind returns the value kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsClock reports whether v is a time of day.
func (v Value) IsClock() bool { return v.kind == KindClock }

// Float returns the numeric value, or minutes since midnight for clock values.
func (v Value) Float() float64 {
	if v.kind == KindClock {
		return float64(v.minutes)
	}
	return v.num
}

// Minutes returns minutes since midnight for clock values, 0 otherwise.
func (v Value) Minutes() int {
	if v.kind == KindClock {
		return v.minutes
	}
	return 0
}

// Equal reports value equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindClock {
		return v.minutes == o.minutes
	}
	return v.num == o.num
}

// Valid reports whether v can be serialized canonically.
func (v Value) Valid() bool {
	if v.kind == KindClock {
		return v.minutes >= 0 && v.minutes < 24*60
	}
	return !math.IsNaN(v.num) && !math.IsInf(v.num, 0)
}

// String formats clock values as HH:MM and numbers in shortest decimal form.
func (v Value) String() string {
	if v.kind == KindClock {
		return fmt.Sprintf("%02d:%02d", v.minutes/60, v.minutes%60)
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

// MarshalJSON encodes numbers as JSON numbers and clock values as "HH:MM".
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, v.Float())
	}
	if v.kind == KindClock {
		return json.Marshal(v.String())
	}
	return []byte(v.String()), nil
}

// UnmarshalJSON accepts a JSON number or an "HH:MM" string.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseValue(s)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, data)
	}
	*v = Number(f)
	return nil
}
