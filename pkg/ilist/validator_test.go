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
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	reports []*Report
}

func (r *recorder) Report(rep *Report) {
	r.reports = append(r.reports, rep)
}

func (r *recorder) checks() []Check {
	var cs []Check
	for _, rep := range r.reports {
		cs = append(cs, rep.Check)
	}
	return cs
}

func newTestValidator(p Policy) (*Validator, *recorder) {
	rec := &recorder{}
	return NewValidator(Options{OnCorruption: p, Validation: true, Reporter: rec}), rec
}

// makeRing returns n entries linked into a ring, in order.
func makeRing(n int) []*Entry {
	es := make([]*Entry, n)
	for i := range es {
		es[i] = &Entry{}
	}
	for i, e := range es {
		e.next = es[(i+1)%n]
		e.prev = es[(i+n-1)%n]
		e.state = Linked
	}
	return es
}

type links struct {
	next, prev *Entry
	state      State
}

func snapshot(es ...*Entry) []links {
	ls := make([]links, len(es))
	for i, e := range es {
		ls[i] = links{e.next, e.prev, e.state}
	}
	return ls
}

func sameLinks(a, b []links) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertConsistent(t *testing.T) {
	for _, n := range []int{1, 2, 3, 8} {
		ring := makeRing(n)
		for i := range ring {
			v, rec := newTestValidator(PolicySoft)
			ring = makeRing(n)
			prev, next := ring[i], ring[i].next
			e := &Entry{}
			if err := v.Insert(e, prev, next); err != nil {
				t.Fatalf("n=%d i=%d: Insert failed: %v", n, i, err)
			}
			if prev.next != e || e.prev != prev || e.next != next || next.prev != e {
				t.Errorf("n=%d i=%d: links not updated: prev.next=%s e.prev=%s e.next=%s next.prev=%s",
					n, i, Identity(prev.next), Identity(e.prev), Identity(e.next), Identity(next.prev))
			}
			if got, want := e.State(), Linked; got != want {
				t.Errorf("n=%d i=%d: state got %v, want %v", n, i, got, want)
			}
			if len(rec.reports) != 0 {
				t.Errorf("n=%d i=%d: unexpected reports: %v", n, i, rec.reports)
			}
		}
	}
}

func TestInsertUninitializedEntry(t *testing.T) {
	v, _ := newTestValidator(PolicySoft)
	var head, e Entry
	head.Init()
	if err := v.Insert(&e, &head, &head); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if head.next != &e || head.prev != &e {
		t.Errorf("head not linked to e")
	}
}

func TestInsertNotAdjacentRejected(t *testing.T) {
	for _, p := range []Policy{PolicySoft, PolicyFatal} {
		t.Run(p.String(), func(t *testing.T) {
			v, rec := newTestValidator(p)
			ring := makeRing(4)
			// ring[0] and ring[2] are not adjacent.
			prev, next := ring[0], ring[2]
			e := &Entry{}
			e.Init()
			before := snapshot(append(ring, e)...)

			err := v.Insert(e, prev, next)
			if err == nil {
				t.Fatalf("Insert succeeded on non-adjacent neighbours")
			}
			if !errors.Is(err, ErrCorruption) {
				t.Errorf("error %v does not wrap ErrCorruption", err)
			}
			if got, want := IsFatal(err), p == PolicyFatal; got != want {
				t.Errorf("IsFatal got %v, want %v", got, want)
			}
			if after := snapshot(append(ring, e)...); !sameLinks(before, after) {
				t.Errorf("links modified by rejected insert")
			}
			if diff := cmp.Diff([]Check{InsertNextPrev, InsertPrevNext}, rec.checks()); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInsertDoubleAdd(t *testing.T) {
	for _, tc := range []struct {
		name string
		pick func(ring []*Entry) (e, prev, next *Entry)
	}{
		{
			name: "new is prev",
			pick: func(ring []*Entry) (*Entry, *Entry, *Entry) { return ring[0], ring[0], ring[1] },
		},
		{
			name: "new is next",
			pick: func(ring []*Entry) (*Entry, *Entry, *Entry) { return ring[1], ring[0], ring[1] },
		},
		{
			name: "solitary",
			pick: func(ring []*Entry) (*Entry, *Entry, *Entry) { return ring[2], ring[2], ring[2] },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v, rec := newTestValidator(PolicySoft)
			ring := makeRing(2)
			solo := &Entry{}
			solo.Init()
			ring = append(ring, solo)
			e, prev, next := tc.pick(ring)
			before := snapshot(ring...)

			err := v.Insert(e, prev, next)
			ce, ok := AsCorruption(err)
			if !ok {
				t.Fatalf("Insert returned %v, want *CorruptionError", err)
			}
			if diff := cmp.Diff([]Kind{DoubleAdd}, ce.Kinds()); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]Check{InsertDoubleAdd}, rec.checks()); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
			if after := snapshot(ring...); !sameLinks(before, after) {
				t.Errorf("links modified by rejected insert")
			}
		})
	}
}

func TestInsertCorruptedNeighbourReportsExpectedAndObserved(t *testing.T) {
	v, rec := newTestValidator(PolicySoft)
	ring := makeRing(3)
	a, b := ring[0], ring[1]
	x := &Entry{}
	x.Init()
	// Stray write: b.prev no longer points at a.
	b.prev = x

	if err := v.Insert(&Entry{}, a, b); err == nil {
		t.Fatalf("Insert succeeded across a corrupted link")
	}
	if len(rec.reports) != 1 {
		t.Fatalf("got %d reports, want 1: %v", len(rec.reports), rec.reports)
	}
	r := rec.reports[0]
	if r.Check != InsertNextPrev || r.Kind != LinkMismatch {
		t.Errorf("got check %v kind %v, want %v %v", r.Check, r.Kind, InsertNextPrev, LinkMismatch)
	}
	if r.Expected != a {
		t.Errorf("expected got %s, want a=%s", Identity(r.Expected), Identity(a))
	}
	if r.Observed != x {
		t.Errorf("observed got %s, want x=%s", Identity(r.Observed), Identity(x))
	}
	if r.Prev != a || r.Next != b {
		t.Errorf("report nodes got prev=%s next=%s", Identity(r.Prev), Identity(r.Next))
	}
}

func TestInsertNextToRemovedEntry(t *testing.T) {
	v, rec := newTestValidator(PolicySoft)
	ring := makeRing(3)
	a, b := ring[0], ring[1]
	if err := v.Remove(b); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	rec.reports = nil

	// A caller holding a stale reference to b tries to insert after it.
	err := v.Insert(&Entry{}, b, a)
	ce, ok := AsCorruption(err)
	if !ok {
		t.Fatalf("Insert returned %v, want *CorruptionError", err)
	}
	if !ce.Has(UseAfterFree) {
		t.Errorf("kinds %v do not include %v", ce.Kinds(), UseAfterFree)
	}
}

func TestInsertRemovedEntryRejected(t *testing.T) {
	v, rec := newTestValidator(PolicySoft)
	ring := makeRing(3)
	b := ring[1]
	if err := v.Remove(b); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if err := v.Insert(b, ring[0], ring[2]); err == nil {
		t.Fatalf("Insert of a removed entry succeeded")
	}
	if diff := cmp.Diff([]Check{InsertPoisoned}, rec.checks()); diff != "" {
		t.Errorf("checks mismatch (-want +got):\n%s", diff)
	}

	// Re-initialized entries can be reused.
	rec.reports = nil
	b.Init()
	if err := v.Insert(b, ring[0], ring[2]); err != nil {
		t.Errorf("Insert after Init failed: %v", err)
	}
}

func TestInsertNil(t *testing.T) {
	v, rec := newTestValidator(PolicySoft)
	var e, head Entry
	head.Init()
	if err := v.Insert(&e, &head, nil); err == nil {
		t.Fatalf("Insert with nil next succeeded")
	}
	if diff := cmp.Diff([]Check{InsertNil, InsertPrevNext}, rec.checks()); diff != "" {
		t.Errorf("checks mismatch (-want +got):\n%s", diff)
	}
	if !head.Solitary() {
		t.Errorf("head modified by rejected insert")
	}
}

func TestDeleteNil(t *testing.T) {
	for _, tc := range []struct {
		name string
		op   func(v *Validator) error
	}{
		{name: "validate", op: func(v *Validator) error { return v.ValidateDelete(nil) }},
		{name: "delete", op: func(v *Validator) error { return v.Delete(nil) }},
		{name: "remove", op: func(v *Validator) error { return v.Remove(nil) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v, rec := newTestValidator(PolicyFatal)
			err := tc.op(v)
			if !IsFatal(err) {
				t.Fatalf("got %v, want fatal corruption", err)
			}
			if diff := cmp.Diff([]Check{DeleteUninitialized}, rec.checks()); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
			if r := rec.reports[0]; r.Entry != nil || r.Kind != LinkMismatch {
				t.Errorf("got report %v", r)
			}
		})
	}
}

func TestRemoveThreeRing(t *testing.T) {
	v, rec := newTestValidator(PolicySoft)
	ring := makeRing(3)
	a, b, c := ring[0], ring[1], ring[2]

	if err := v.Remove(b); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if a.next != c || c.prev != a {
		t.Errorf("ring not relinked: a.next=%s c.prev=%s", Identity(a.next), Identity(c.prev))
	}
	if b.next != Poison1 || b.prev != Poison2 {
		t.Errorf("b not poisoned: next=%s prev=%s", Identity(b.next), Identity(b.prev))
	}
	if !b.Poisoned() || b.State() != Poisoned {
		t.Errorf("b state got %v, want %v", b.State(), Poisoned)
	}
	if len(rec.reports) != 0 {
		t.Errorf("unexpected reports: %v", rec.reports)
	}
}

func TestRemoveTwice(t *testing.T) {
	for _, p := range []Policy{PolicySoft, PolicyFatal} {
		t.Run(p.String(), func(t *testing.T) {
			v, rec := newTestValidator(p)
			ring := makeRing(3)
			b := ring[1]
			if err := v.Remove(b); err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			before := snapshot(ring...)

			err := v.Remove(b)
			ce, ok := AsCorruption(err)
			if !ok {
				t.Fatalf("second Remove returned %v, want *CorruptionError", err)
			}
			if got, want := ce.Fatal(), p == PolicyFatal; got != want {
				t.Errorf("Fatal got %v, want %v", got, want)
			}
			if diff := cmp.Diff([]Kind{DoubleFree}, ce.Kinds()); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]Check{DeleteNextPoisoned, DeletePrevPoisoned}, rec.checks()); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
			if after := snapshot(ring...); !sameLinks(before, after) {
				t.Errorf("links modified by rejected remove")
			}
		})
	}
}

func TestDeleteCorruptedNeighbours(t *testing.T) {
	for _, tc := range []struct {
		name    string
		corrupt func(ring []*Entry, x *Entry)
		want    []Check
	}{
		{
			name:    "prev.next",
			corrupt: func(ring []*Entry, x *Entry) { ring[0].next = x },
			want:    []Check{DeletePrevNext},
		},
		{
			name:    "next.prev",
			corrupt: func(ring []*Entry, x *Entry) { ring[2].prev = x },
			want:    []Check{DeleteNextPrev},
		},
		{
			name: "both",
			corrupt: func(ring []*Entry, x *Entry) {
				ring[0].next = x
				ring[2].prev = x
			},
			want: []Check{DeletePrevNext, DeleteNextPrev},
		},
		{
			name:    "uninitialized",
			corrupt: func(ring []*Entry, x *Entry) { ring[1].next, ring[1].prev = nil, nil },
			want:    []Check{DeleteUninitialized},
		},
		{
			name: "stray write after remove",
			corrupt: func(ring []*Entry, x *Entry) {
				ring[1].state = Poisoned
				ring[1].next, ring[1].prev = x, x
			},
			want: []Check{DeleteStrayWrite, DeletePrevNext, DeleteNextPrev},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v, rec := newTestValidator(PolicySoft)
			ring := makeRing(3)
			x := &Entry{}
			x.Init()
			tc.corrupt(ring, x)
			before := snapshot(append(ring, x)...)

			if err := v.Remove(ring[1]); err == nil {
				t.Fatalf("Remove succeeded on a corrupted ring")
			}
			if diff := cmp.Diff(tc.want, rec.checks()); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
			if after := snapshot(append(ring, x)...); !sameLinks(before, after) {
				t.Errorf("links modified by rejected remove")
			}
		})
	}
}

func TestValidateDeleteDoesNotMutate(t *testing.T) {
	v, _ := newTestValidator(PolicySoft)
	ring := makeRing(3)
	before := snapshot(ring...)
	if err := v.ValidateDelete(ring[1]); err != nil {
		t.Fatalf("ValidateDelete failed: %v", err)
	}
	if after := snapshot(ring...); !sameLinks(before, after) {
		t.Errorf("ValidateDelete modified links")
	}
}

func TestDeleteDoesNotPoison(t *testing.T) {
	v, _ := newTestValidator(PolicySoft)
	ring := makeRing(3)
	a, b, c := ring[0], ring[1], ring[2]
	if err := v.Delete(b); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if a.next != c || c.prev != a {
		t.Errorf("ring not relinked")
	}
	if b.Poisoned() {
		t.Errorf("Delete poisoned the entry")
	}
	if b.next != c || b.prev != a {
		t.Errorf("Delete modified the entry's own links")
	}
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	v, _ := newTestValidator(PolicySoft)
	for _, n := range []int{1, 2, 5} {
		ring := makeRing(n)
		p, q := ring[n-1], ring[0]
		before := snapshot(ring...)
		e := &Entry{}
		if err := v.Insert(e, p, q); err != nil {
			t.Fatalf("n=%d: Insert failed: %v", n, err)
		}
		if err := v.Remove(e); err != nil {
			t.Fatalf("n=%d: Remove failed: %v", n, err)
		}
		if p.next != q || q.prev != p {
			t.Errorf("n=%d: got p.next=%s q.prev=%s, want p.next=q q.prev=p", n, Identity(p.next), Identity(q.prev))
		}
		if after := snapshot(ring...); !sameLinks(before, after) {
			t.Errorf("n=%d: ring not restored", n)
		}
	}
}

func TestValidationDisabled(t *testing.T) {
	rec := &recorder{}
	v := NewValidator(Options{OnCorruption: PolicyFatal, Validation: false, Reporter: rec})
	ring := makeRing(3)
	b := ring[1]

	if err := v.Remove(b); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if b.Poisoned() {
		t.Errorf("entry poisoned with validation disabled")
	}
	// A double add is not detected.
	e := &Entry{}
	e.Init()
	if err := v.Insert(e, e, e); err != nil {
		t.Errorf("Insert failed with validation disabled: %v", err)
	}
	if len(rec.reports) != 0 {
		t.Errorf("reports emitted with validation disabled: %v", rec.reports)
	}
}

func TestCorruptionErrorMessage(t *testing.T) {
	v, _ := newTestValidator(PolicyFatal)
	ring := makeRing(3)
	v.Remove(ring[1])
	err := v.Remove(ring[1])
	if err == nil {
		t.Fatalf("second Remove succeeded")
	}
	msg := err.Error()
	for _, want := range []string{"fatal delete corruption", "double-free", "poison1", "poison2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not contain %q", msg, want)
		}
	}
	if !errors.Is(err, ErrFatalCorruption) || !errors.Is(err, ErrCorruption) {
		t.Errorf("error %v does not wrap both sentinels", err)
	}
}

func TestReportJSON(t *testing.T) {
	v, rec := newTestValidator(PolicySoft)
	ring := makeRing(2)
	v.Insert(ring[0], ring[0], ring[1])
	if len(rec.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(rec.reports))
	}
	b, err := json.Marshal(rec.reports[0])
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	want := map[string]string{
		"op":       "insert",
		"check":    "insert-double-add",
		"kind":     "double-add",
		"observed": Identity(ring[0]),
		"entry":    Identity(ring[0]),
		"prev":     Identity(ring[0]),
		"next":     Identity(ring[1]),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyFlag(t *testing.T) {
	var p Policy
	if err := p.Set("fatal"); err != nil {
		t.Fatalf("Set(fatal) failed: %v", err)
	}
	if p != PolicyFatal {
		t.Errorf("got %v, want %v", p, PolicyFatal)
	}
	if err := p.Set("panic"); err == nil {
		t.Errorf("Set(panic) succeeded")
	}
	var q Policy
	if err := q.UnmarshalText([]byte("soft")); err != nil || q != PolicySoft {
		t.Errorf("UnmarshalText(soft) got %v, %v", q, err)
	}
}

func TestParseKind(t *testing.T) {
	for k := Kind(0); int(k) < NumKinds; k++ {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) got %v, want %v", k, got, k)
		}
	}
	if _, err := ParseKind("bogus"); err == nil {
		t.Errorf("ParseKind(bogus) succeeded")
	}
}

func TestReporterFunc(t *testing.T) {
	var got []Kind
	v := NewValidator(Options{
		OnCorruption: PolicyFatal,
		Validation:   true,
		Reporter: ReporterFunc(func(r *Report) {
			got = append(got, r.Kind)
		}),
	})
	es := makeRing(2)
	err := v.Insert(es[0], es[0], es[1])
	if !IsFatal(err) {
		t.Fatalf("Insert got %v, want fatal corruption", err)
	}
	// Reports are delivered before the error is returned.
	if diff := cmp.Diff([]Kind{DoubleAdd}, got); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}
