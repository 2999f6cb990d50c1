// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Stacks and LIFO work lists.

package util

type StackT[T any] struct {
	elts []T
}

func (stack *StackT[T]) Len() int {
	return len(stack.elts)
}

func (stack *StackT[T]) Empty() bool {
	return len(stack.elts) == 0
}

func (stack *StackT[T]) Push(elt T) {
	stack.elts = append(stack.elts, elt)
}

func (stack *StackT[T]) Pop() T {
	if len(stack.elts) == 0 {
		panic("popping from empty stack")
	}
	last := len(stack.elts) - 1
	elt := stack.elts[last]
	var zero T
	stack.elts[last] = zero
	stack.elts = stack.elts[:last]
	return elt
}

// A work list is a stack that ignores pushes of elements it already
// holds.  Elements come back out most-recently-inserted first, which
// is the order new instructions are handed to the materializer.

type WorkListT[T comparable] struct {
	stack   StackT[T]
	members SetT[T]
}

func (list *WorkListT[T]) Insert(elt T) {
	if list.members == nil {
		list.members = NewSet[T]()
	}
	if list.members.Contains(elt) {
		return
	}
	list.members.Add(elt)
	list.stack.Push(elt)
}

func (list *WorkListT[T]) Empty() bool {
	return list.stack.Empty()
}

func (list *WorkListT[T]) Len() int {
	return list.stack.Len()
}

func (list *WorkListT[T]) Pop() T {
	elt := list.stack.Pop()
	list.members.Remove(elt)
	return elt
}
