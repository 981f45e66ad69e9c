// Package form holds the in-memory questionnaire state: a control set built
// from the schema, and the snapshot read-outs taken from it.
package form

import (
	"encoding/json"
	"strings"
)

// Snapshot is a complete read-out of all field values at one instant. Values
// are either a string or a []string (repeated/grouped controls). A snapshot
// is always recomputed from live control state, never patched incrementally.
type Snapshot map[string]any

// Values normalizes a snapshot value to a string slice. Nil and unknown
// types yield an empty slice.
func Values(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// IsFilled reports whether a value counts as answered: a non-empty string
// after trimming, or a list with at least one non-empty entry.
func IsFilled(value any) bool {
	for _, item := range Values(value) {
		if strings.TrimSpace(item) != "" {
			return true
		}
	}
	return false
}

// ParseSnapshot decodes persisted snapshot JSON. Values that are neither
// strings nor string lists are dropped; the caller treats unknown keys as
// removed fields and ignores them on fill.
func ParseSnapshot(raw []byte) (Snapshot, error) {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return NormalizeSnapshot(decoded), nil
}

// NormalizeSnapshot coerces a decoded JSON object into snapshot form.
func NormalizeSnapshot(decoded map[string]any) Snapshot {
	snapshot := make(Snapshot, len(decoded))
	for key, value := range decoded {
		switch v := value.(type) {
		case string:
			snapshot[key] = v
		case []string:
			snapshot[key] = v
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					items = append(items, s)
				}
			}
			if len(items) > 0 {
				snapshot[key] = items
			}
		}
	}
	return snapshot
}

// Equal compares two snapshots by key and normalized values.
func Equal(a, b Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		other, ok := b[key]
		if !ok {
			return false
		}
		left := Values(value)
		right := Values(other)
		if len(left) != len(right) {
			return false
		}
		for i := range left {
			if left[i] != right[i] {
				return false
			}
		}
	}
	return true
}
