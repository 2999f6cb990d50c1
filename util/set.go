// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package util

// A set is a map from objects to the empty struct.  Bank selection
// uses one to remember which instructions already have a mapping.

type SetT[E comparable] map[E]struct{}

func NewSet[E comparable](members ...E) SetT[E] {
	set := SetT[E]{}
	set.Add(members...)
	return set
}

func (set SetT[E]) Add(members ...E) {
	for _, member := range members {
		set[member] = struct{}{}
	}
}

func (set SetT[E]) Remove(member E) {
	delete(set, member)
}

func (set SetT[E]) Contains(member E) bool {
	_, found := set[member]
	return found
}
