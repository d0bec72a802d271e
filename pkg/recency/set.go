// Package recency provides a capacity-bounded "first seen" set.
//
// A Set remembers the most recently inserted keys up to a fixed capacity and
// evicts the oldest-inserted key when a new one arrives at capacity. Unlike an
// LRU cache, re-adding a key that is already tracked does not refresh its
// position: recency is fixed at first sight.
//
// Example usage:
//
//	seen := recency.New[string](20)
//	if seen.Add("ABCDEFGHIJK") {
//	    // first sighting
//	}
package recency

import (
	"fmt"
	"iter"
	"strings"
)

// Set is a FIFO-evicting membership set.
// It pairs an ordered ring (eviction order) with a hash index (O(1) lookups);
// the two always hold exactly the same keys.
//
// A Set is not safe for concurrent use.
type Set[K comparable] struct {
	capacity int // -1 means unbounded
	order    []K // ring of tracked keys; order[head] is the oldest once full
	head     int
	index    map[K]struct{}
}

// New creates a Set holding at most capacity keys.
// A capacity of 0 yields a set that never tracks anything.
// New panics if capacity is negative.
func New[K comparable](capacity int) *Set[K] {
	if capacity < 0 {
		panic(fmt.Sprintf("recency: negative capacity %d", capacity))
	}
	return &Set[K]{
		capacity: capacity,
		order:    make([]K, 0, capacity),
		index:    make(map[K]struct{}, capacity),
	}
}

// NewUnbounded creates a Set that never evicts.
func NewUnbounded[K comparable]() *Set[K] {
	return &Set[K]{
		capacity: -1,
		index:    make(map[K]struct{}),
	}
}

// Contains reports whether k is currently tracked.
func (s *Set[K]) Contains(k K) bool {
	_, ok := s.index[k]
	return ok
}

// Add tracks k as the newest key and reports whether it was inserted.
// Adding a tracked key is a no-op. At capacity the oldest key is evicted first.
func (s *Set[K]) Add(k K) bool {
	if s.capacity == 0 {
		return false
	}
	if _, ok := s.index[k]; ok {
		return false
	}

	if s.capacity > 0 && len(s.order) == s.capacity {
		delete(s.index, s.order[s.head])
		s.order[s.head] = k
		s.head = (s.head + 1) % s.capacity
	} else {
		s.order = append(s.order, k)
	}
	s.index[k] = struct{}{}
	return true
}

// AddAll adds every key yielded by seq and returns how many were inserted.
func (s *Set[K]) AddAll(seq iter.Seq[K]) int {
	n := 0
	for k := range seq {
		if s.Add(k) {
			n++
		}
	}
	return n
}

// AddSlice is AddAll for a list of keys.
func (s *Set[K]) AddSlice(keys ...K) int {
	n := 0
	for _, k := range keys {
		if s.Add(k) {
			n++
		}
	}
	return n
}

// All yields the tracked keys from oldest to newest.
// The sequence is lazy and may be ranged over any number of times; it reads
// the set as it is at iteration time and never mutates it.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		n := len(s.order)
		for i := 0; i < n; i++ {
			if !yield(s.order[(s.head+i)%n]) {
				return
			}
		}
	}
}

// Len returns the number of tracked keys.
func (s *Set[K]) Len() int {
	return len(s.index)
}

// Cap returns the capacity, or -1 for an unbounded set.
func (s *Set[K]) Cap() int {
	return s.capacity
}

// String renders the keys oldest first, e.g. "[a b c]".
func (s *Set[K]) String() string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for k := range s.All() {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		fmt.Fprint(&b, k)
	}
	b.WriteByte(']')
	return b.String()
}
