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

import (
	"encoding/json"
	"fmt"
)

// Op identifies the validated operation that produced a Report.
type Op uint8

const (
	// OpInsert is Validator.Insert.
	OpInsert Op = iota
	// OpDelete is Validator.ValidateDelete and everything built on it.
	OpDelete
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Kind classifies a detected corruption.
type Kind uint8

const (
	// LinkMismatch means a neighbour's link does not point back as expected.
	LinkMismatch Kind = iota
	// DoubleAdd means the inserted entry is one of its intended neighbours.
	DoubleAdd
	// UseAfterFree means a removed entry was found where a live one was
	// expected.
	UseAfterFree
	// DoubleFree means an entry was removed twice.
	DoubleFree

	numKinds
)

// NumKinds is the number of distinct Kind values.
const NumKinds = int(numKinds)

var kindNames = [...]string{
	LinkMismatch: "link-mismatch",
	DoubleAdd:    "double-add",
	UseAfterFree: "use-after-free",
	DoubleFree:   "double-free",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown corruption kind %q", s)
}

// Check identifies the individual check that failed.
type Check uint8

const (
	// InsertNextPrev: next.prev should be prev.
	InsertNextPrev Check = iota
	// InsertPrevNext: prev.next should be next.
	InsertPrevNext
	// InsertDoubleAdd: the new entry should differ from both neighbours.
	InsertDoubleAdd
	// InsertPoisoned: the new entry should not be a removed entry.
	InsertPoisoned
	// InsertNil: the new entry and both neighbours must be non-nil.
	InsertNil
	// DeleteNextPoisoned: entry.next should not be Poison1.
	DeleteNextPoisoned
	// DeletePrevPoisoned: entry.prev should not be Poison2.
	DeletePrevPoisoned
	// DeletePrevNext: entry.prev.next should be entry.
	DeletePrevNext
	// DeleteNextPrev: entry.next.prev should be entry.
	DeleteNextPrev
	// DeleteUninitialized: the entry and its links should be non-nil.
	DeleteUninitialized
	// DeleteStrayWrite: a removed entry should still hold the poison
	// sentinels.
	DeleteStrayWrite
)

var checkNames = [...]string{
	InsertNextPrev:      "insert-next-prev",
	InsertPrevNext:      "insert-prev-next",
	InsertDoubleAdd:     "insert-double-add",
	InsertPoisoned:      "insert-poisoned",
	InsertNil:           "insert-nil",
	DeleteNextPoisoned:  "delete-next-poisoned",
	DeletePrevPoisoned:  "delete-prev-poisoned",
	DeletePrevNext:      "delete-prev-next",
	DeleteNextPrev:      "delete-next-prev",
	DeleteUninitialized: "delete-uninitialized",
	DeleteStrayWrite:    "delete-stray-write",
}

// String implements fmt.Stringer.
func (c Check) String() string {
	if int(c) < len(checkNames) {
		return checkNames[c]
	}
	return fmt.Sprintf("Check(%d)", uint8(c))
}

// Report describes a single failed check.
//
// Entry is the entry being inserted or deleted. For deletions, Prev and Next
// are the links read from Entry when validation started.
type Report struct {
	Op       Op
	Check    Check
	Kind     Kind
	Expected *Entry
	Observed *Entry
	Entry    *Entry
	Prev     *Entry
	Next     *Entry
}

// String renders r as a single line.
func (r *Report) String() string {
	switch r.Check {
	case InsertNextPrev:
		return fmt.Sprintf("%s corruption (%s): next.prev should be prev (%s), but was %s (next=%s)",
			r.Op, r.Kind, Identity(r.Expected), Identity(r.Observed), Identity(r.Next))
	case InsertPrevNext:
		return fmt.Sprintf("%s corruption (%s): prev.next should be next (%s), but was %s (prev=%s)",
			r.Op, r.Kind, Identity(r.Expected), Identity(r.Observed), Identity(r.Prev))
	case InsertDoubleAdd:
		return fmt.Sprintf("%s corruption (%s): new=%s, prev=%s, next=%s",
			r.Op, r.Kind, Identity(r.Entry), Identity(r.Prev), Identity(r.Next))
	case InsertPoisoned:
		return fmt.Sprintf("%s corruption (%s): new=%s was removed and not re-initialized (next is %s)",
			r.Op, r.Kind, Identity(r.Entry), Identity(r.Observed))
	case InsertNil:
		return fmt.Sprintf("%s corruption (%s): nil entry, new=%s, prev=%s, next=%s",
			r.Op, r.Kind, Identity(r.Entry), Identity(r.Prev), Identity(r.Next))
	case DeleteNextPoisoned:
		return fmt.Sprintf("%s corruption (%s): %s.next is %s",
			r.Op, r.Kind, Identity(r.Entry), Identity(r.Observed))
	case DeletePrevPoisoned:
		return fmt.Sprintf("%s corruption (%s): %s.prev is %s",
			r.Op, r.Kind, Identity(r.Entry), Identity(r.Observed))
	case DeletePrevNext:
		return fmt.Sprintf("%s corruption (%s): prev.next should be %s, but was %s (prev=%s)",
			r.Op, r.Kind, Identity(r.Expected), Identity(r.Observed), Identity(r.Prev))
	case DeleteNextPrev:
		return fmt.Sprintf("%s corruption (%s): next.prev should be %s, but was %s (next=%s)",
			r.Op, r.Kind, Identity(r.Expected), Identity(r.Observed), Identity(r.Next))
	case DeleteUninitialized:
		return fmt.Sprintf("%s corruption (%s): %s has nil links (prev=%s, next=%s)",
			r.Op, r.Kind, Identity(r.Entry), Identity(r.Prev), Identity(r.Next))
	case DeleteStrayWrite:
		return fmt.Sprintf("%s corruption (%s): removed %s was written to (prev=%s, next=%s)",
			r.Op, r.Kind, Identity(r.Entry), Identity(r.Prev), Identity(r.Next))
	default:
		return fmt.Sprintf("%s corruption (%s): %s", r.Op, r.Kind, r.Check)
	}
}

type jsonReport struct {
	Op       string `json:"op"`
	Check    string `json:"check"`
	Kind     string `json:"kind"`
	Expected string `json:"expected,omitempty"`
	Observed string `json:"observed"`
	Entry    string `json:"entry"`
	Prev     string `json:"prev"`
	Next     string `json:"next"`
}

// MarshalJSON implements json.Marshaler.MarshalJSON. Entries are rendered as
// identities.
func (r *Report) MarshalJSON() ([]byte, error) {
	j := jsonReport{
		Op:       r.Op.String(),
		Check:    r.Check.String(),
		Kind:     r.Kind.String(),
		Observed: Identity(r.Observed),
		Entry:    Identity(r.Entry),
		Prev:     Identity(r.Prev),
		Next:     Identity(r.Next),
	}
	if r.Expected != nil {
		j.Expected = Identity(r.Expected)
	}
	return json.Marshal(j)
}

// Reporter receives a Report for every failed check. Implementations used by
// a shared Validator must be safe for concurrent use.
type Reporter interface {
	Report(r *Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(r *Report)

// Report implements Reporter.Report.
func (f ReporterFunc) Report(r *Report) {
	f(r)
}

type discard struct{}

func (discard) Report(*Report) {}
