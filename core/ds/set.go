// Package ds provides generic data structures shared by the topology views.
package ds

import (
	"cmp"
	"fmt"
	"slices"
)

type StringSet = Set[string]

// Set is an ordered set with O(1) membership tests that keeps insertion
// order, so results derived from it iterate deterministically.
type Set[T comparable] struct {
	items map[T]struct{}
	order []T
}

func (s *Set[T]) String() string {
	return fmt.Sprintf("%v", s.order)
}

// Add adds v to the set. No-op if already present. (mutates)
func (s *Set[T]) Add(v T) {
	if s.Contains(v) {
		return
	}
	s.items[v] = struct{}{}
	s.order = append(s.order, v)
}

// Len returns the number of elements in the set.
func (s *Set[T]) Len() int { return len(s.items) }

// IsEmpty returns true if the set contains no elements.
func (s *Set[T]) IsEmpty() bool { return len(s.items) == 0 }

// Contains returns true if v is present in the set.
func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

// Removals returns the elements of s that are not in other, in the
// receiver's insertion order.
func (s *Set[T]) Removals(other *Set[T]) *Set[T] {
	out := NewSet[T]()
	for _, v := range s.order {
		if !other.Contains(v) {
			out.Add(v)
		}
	}
	return out
}

// Union returns a new set with the elements of s followed by the new
// elements of other.
func (s *Set[T]) Union(other *Set[T]) *Set[T] {
	out := NewSet(s.order...)
	for _, v := range other.order {
		out.Add(v)
	}
	return out
}

// Filter returns a new set containing only elements for which fn returns true.
func (s *Set[T]) Filter(fn func(T) bool) *Set[T] {
	out := NewSet[T]()
	for _, v := range s.order {
		if fn(v) {
			out.Add(v)
		}
	}
	return out
}

// Values returns a copy of the elements in insertion order.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

// NewSet creates a new set with the given items.
func NewSet[T comparable](items ...T) *Set[T] {
	set := &Set[T]{items: map[T]struct{}{}, order: make([]T, 0, len(items))}
	for _, item := range items {
		set.Add(item)
	}
	return set
}

// NewStringSet creates a new string set with the given items.
func NewStringSet(items ...string) *StringSet {
	return NewSet(items...)
}

// KeySet builds a set from the keys of m in ascending order.
func KeySet[K cmp.Ordered, V any](m map[K]V) *Set[K] {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return NewSet(keys...)
}
