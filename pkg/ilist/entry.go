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

// Package ilist provides validated operations on intrusive circular
// doubly-linked lists.
//
// Entries are embedded in caller-owned structures. Insertion and removal go
// through a Validator, which checks the local consistency of the entries
// involved before relinking them and refuses to proceed when it detects
// corruption: stray writes, double insertion, double removal or use of an
// entry after it was removed.
//
// The package performs no locking. Each operation assumes exclusive access
// to the entries it touches for the duration of the call.
package ilist

import "fmt"

// State is the logical state of an Entry.
type State uint8

const (
	// Uninitialized is the zero state. The links hold nothing meaningful and
	// the entry must be initialized with Init before use.
	Uninitialized State = iota

	// Linked means the entry participates in a ring, possibly a ring of one.
	Linked

	// Poisoned means the entry was removed by Validator.Remove. Its links
	// hold Poison1 and Poison2.
	Poisoned
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Linked:
		return "linked"
	case Poisoned:
		return "poisoned"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Entry is the link node of an intrusive ring. Users embed it in their own
// structures.
//
// The zero value is Uninitialized; call Init to turn it into a ring of one.
type Entry struct {
	next  *Entry
	prev  *Entry
	state State
}

// Poison1 and Poison2 are written into the next and prev links of an entry
// removed by Validator.Remove. They never participate in a ring and are
// distinct from every caller entry.
var (
	Poison1 = &Entry{state: Poisoned}
	Poison2 = &Entry{state: Poisoned}
)

// IsPoison returns true iff e is one of the poison sentinels.
func IsPoison(e *Entry) bool {
	return e == Poison1 || e == Poison2
}

// Init makes e a ring of one.
func (e *Entry) Init() {
	e.next = e
	e.prev = e
	e.state = Linked
}

// Next returns the entry that follows e.
func (e *Entry) Next() *Entry {
	return e.next
}

// Prev returns the entry that precedes e.
func (e *Entry) Prev() *Entry {
	return e.prev
}

// SetNext assigns the entry that follows e without any validation.
func (e *Entry) SetNext(n *Entry) {
	e.next = n
}

// SetPrev assigns the entry that precedes e without any validation.
func (e *Entry) SetPrev(p *Entry) {
	e.prev = p
}

// State returns the logical state of e.
func (e *Entry) State() State {
	return e.state
}

// Poisoned returns true iff e was removed and not re-initialized since.
func (e *Entry) Poisoned() bool {
	return e.state == Poisoned || e.next == Poison1 || e.prev == Poison2
}

// Solitary returns true iff e is a ring of one.
func (e *Entry) Solitary() bool {
	return e.state == Linked && e.next == e && e.prev == e
}

// live returns true iff e can be dereferenced as a ring member.
func live(e *Entry) bool {
	return e != nil && !IsPoison(e)
}

// Identity returns a printable identity for e, as used in diagnostics.
func Identity(e *Entry) string {
	switch e {
	case nil:
		return "nil"
	case Poison1:
		return "poison1"
	case Poison2:
		return "poison2"
	default:
		return fmt.Sprintf("%p", e)
	}
}

// link splices e between prev and next without any validation.
func link(e, prev, next *Entry) {
	next.prev = e
	e.next = next
	e.prev = prev
	prev.next = e
	e.state = Linked
}

// unlink joins e's neighbours to each other without any validation. The
// links of e itself are left untouched.
func unlink(e *Entry) {
	prev, next := e.prev, e.next
	next.prev = prev
	prev.next = next
}

// poison marks a removed entry.
func poison(e *Entry) {
	e.next = Poison1
	e.prev = Poison2
	e.state = Poisoned
}
