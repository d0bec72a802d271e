package entity

import (
	"iter"
	"maps"
	"slices"
)

// Snapshot is the set of codes visible on the monitored page at one point in
// time. It has no identity beyond membership.
type Snapshot map[Code]struct{}

// NewSnapshot returns a snapshot holding codes.
func NewSnapshot(codes ...Code) Snapshot {
	s := make(Snapshot, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts c.
func (s Snapshot) Add(c Code) {
	s[c] = struct{}{}
}

// Contains reports whether c is in the snapshot.
func (s Snapshot) Contains(c Code) bool {
	_, ok := s[c]
	return ok
}

// Len returns the number of codes.
func (s Snapshot) Len() int {
	return len(s)
}

// All iterates the codes in unspecified order.
func (s Snapshot) All() iter.Seq[Code] {
	return maps.Keys(s)
}

// Sorted returns the codes in ascending order.
// The order carries no meaning; it only keeps logs and delivery reproducible.
func (s Snapshot) Sorted() []Code {
	return slices.Sorted(maps.Keys(s))
}
