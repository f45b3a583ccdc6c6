// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ilist

// List is an intrusive circular list anchored at a head entry. Entries can
// be added to or removed from the list in O(1) time and with no additional
// memory allocations. Every mutation goes through the list's Validator.
//
// A List must be initialized with Init before use and must not be copied
// afterwards, since the ring points at the embedded head.
//
// To iterate over a list (where l is a List):
//
//	for e := l.Front(); e != nil; e = l.NextOf(e) {
//		// do something with e.
//	}
type List struct {
	head Entry
	v    *Validator
}

// Init resets l to the empty state and binds it to v.
func (l *List) Init(v *Validator) {
	l.head.Init()
	l.v = v
}

// Validator returns the validator l was initialized with.
func (l *List) Validator() *Validator {
	return l.v
}

// Head returns the head entry of l. It is not an element.
func (l *List) Head() *Entry {
	return &l.head
}

// Empty returns true iff the list is empty.
func (l *List) Empty() bool {
	return l.head.next == &l.head
}

// Front returns the first element of list l or nil.
func (l *List) Front() *Entry {
	if l.Empty() {
		return nil
	}
	return l.head.next
}

// Back returns the last element of list l or nil.
func (l *List) Back() *Entry {
	if l.Empty() {
		return nil
	}
	return l.head.prev
}

// NextOf returns the element after e, or nil if e is the last one.
func (l *List) NextOf(e *Entry) *Entry {
	if e.next == &l.head {
		return nil
	}
	return e.next
}

// PrevOf returns the element before e, or nil if e is the first one.
func (l *List) PrevOf(e *Entry) *Entry {
	if e.prev == &l.head {
		return nil
	}
	return e.prev
}

// Len returns the number of elements in the list.
//
// NOTE: This is an O(n) operation.
func (l *List) Len() (count int) {
	for e := l.Front(); e != nil; e = l.NextOf(e) {
		count++
	}
	return count
}

// ForEach calls fn for every element, front to back, until fn returns false.
// fn must not modify the list.
func (l *List) ForEach(fn func(e *Entry) bool) {
	for e := l.Front(); e != nil; e = l.NextOf(e) {
		if !fn(e) {
			return
		}
	}
}

// PushFront inserts the element e at the front of list l.
func (l *List) PushFront(e *Entry) error {
	return l.v.Insert(e, &l.head, l.head.next)
}

// PushBack inserts the element e at the back of list l.
func (l *List) PushBack(e *Entry) error {
	return l.v.Insert(e, l.head.prev, &l.head)
}

// InsertAfter inserts e after b.
func (l *List) InsertAfter(b, e *Entry) error {
	return l.v.Insert(e, b, b.next)
}

// InsertBefore inserts e before a.
func (l *List) InsertBefore(a, e *Entry) error {
	return l.v.Insert(e, a.prev, a)
}

// Remove removes e from l and poisons it.
func (l *List) Remove(e *Entry) error {
	return l.v.Remove(e)
}

// MoveToFront moves e to the front of l. e must already be an element of l.
// If the move is rejected, e stays where it was.
func (l *List) MoveToFront(e *Entry) error {
	return l.move(e, true)
}

// MoveToBack moves e to the back of l. e must already be an element of l.
// If the move is rejected, e stays where it was.
func (l *List) MoveToBack(e *Entry) error {
	return l.move(e, false)
}

func (l *List) move(e *Entry, front bool) error {
	prev, next := e.prev, e.next
	if err := l.v.Delete(e); err != nil {
		return err
	}
	var err error
	if front {
		err = l.v.Insert(e, &l.head, l.head.next)
	} else {
		err = l.v.Insert(e, l.head.prev, &l.head)
	}
	if err != nil {
		// Delete validated prev and next, so e can be put back between them.
		link(e, prev, next)
	}
	return err
}
