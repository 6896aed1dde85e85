// Package sets provides the small ordered, duplicate-free string set
// operations the data model needs for Group.managers, Group.friends, and
// Group.shared_user_id_hashes: insertion order must survive a TLV
// round-trip, but membership and dedup are still set semantics.
package sets

import (
	"golang.org/x/exp/slices"
)

// OrderedStrings is a duplicate-free, insertion-ordered string list.
type OrderedStrings []string

// Add appends s if not already present. Reports whether it was added.
func (o *OrderedStrings) Add(s string) bool {
	if slices.Contains(*o, s) {
		return false
	}
	*o = append(*o, s)
	return true
}

// Remove deletes s if present. Reports whether it was removed.
func (o *OrderedStrings) Remove(s string) bool {
	idx := slices.Index(*o, s)
	if idx < 0 {
		return false
	}
	*o = slices.Delete(*o, idx, idx+1)
	return true
}

// Contains reports whether s is present.
func (o OrderedStrings) Contains(s string) bool {
	return slices.Contains(o, s)
}

// Clone returns an independent copy.
func (o OrderedStrings) Clone() OrderedStrings {
	return slices.Clone(o)
}

// Merge adds every element of other not already present, preserving the
// order elements first appear in (o's existing order, then other's).
func Merge(o OrderedStrings, other []string) OrderedStrings {
	out := o.Clone()
	for _, s := range other {
		out.Add(s)
	}
	return out
}
