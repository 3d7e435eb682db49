package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNonCanonical is returned when a configuration cannot be turned into a
// cache key. Callers must treat it as fatal.
var ErrNonCanonical = errors.New("configuration is not canonicalizable")

// Params maps parameter names to values. Treat it as immutable: use With
// to derive a modified copy.
type Params map[string]Value

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// With returns a copy of p with name set to v.
func (p Params) With(name string, v Value) Params {
	out := p.Clone()
	out[name] = v
	return out
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether p and o hold the same names and values.
func (p Params) Equal(o Params) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// CanonicalKey serializes p as a JSON object with keys sorted by name.
// Two configurations that are equal value-for-value produce the same key
// regardless of how their maps were built.
func CanonicalKey(p Params) (string, error) {
	for name, v := range p {
		if name == "" {
			return "", fmt.Errorf("%w: empty parameter name", ErrNonCanonical)
		}
		if !v.Valid() {
			return "", fmt.Errorf("%w: parameter %s has value %v", ErrNonCanonical, name, v.Float())
		}
	}
	// encoding/json writes map keys in sorted order.
	data, err := json.Marshal(map[string]Value(p))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNonCanonical, err)
	}
	return string(data), nil
}
