// Package confirm tracks which answers the user has explicitly marked as
// reviewed-and-correct. A field is confirmed when present in the set; the
// autosave coordinator removes the mark the instant the field is edited.
package confirm

import (
	"encoding/json"
	"sort"
)

// Set maps field name to confirmed. Absent means not confirmed.
type Set map[string]bool

// Parse decodes a persisted confirmation set. Malformed or absent data
// yields an empty set, never an error.
func Parse(raw []byte) Set {
	if len(raw) == 0 {
		return Set{}
	}
	var decoded map[string]bool
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Set{}
	}
	set := make(Set, len(decoded))
	for field, confirmed := range decoded {
		if confirmed {
			set[field] = true
		}
	}
	return set
}

// Encode serializes the set for persistence.
func (s Set) Encode() []byte {
	if s == nil {
		s = Set{}
	}
	raw, _ := json.Marshal(s)
	return raw
}

func (s Set) Confirm(field string) {
	s[field] = true
}

func (s Set) Unconfirm(field string) {
	delete(s, field)
}

// Toggle flips the mark and reports the new state.
func (s Set) Toggle(field string) bool {
	if s[field] {
		delete(s, field)
		return false
	}
	s[field] = true
	return true
}

func (s Set) Confirmed(field string) bool {
	return s[field]
}

func (s Set) Clear() {
	for field := range s {
		delete(s, field)
	}
}

// Names returns the confirmed field names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for field, confirmed := range s {
		if confirmed {
			names = append(names, field)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for field, confirmed := range s {
		if confirmed {
			out[field] = true
		}
	}
	return out
}
