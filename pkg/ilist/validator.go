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

// Options configures a Validator. They are fixed at construction.
type Options struct {
	// OnCorruption selects the response to a failed check.
	OnCorruption Policy

	// Validation enables the checks. When false, Insert, Delete and Remove
	// are plain relinking: nothing is checked, nothing is reported and
	// removed entries are not poisoned.
	Validation bool

	// Reporter receives one Report per failed check. Nil discards reports.
	Reporter Reporter
}

// DefaultOptions returns validation enabled with PolicySoft.
func DefaultOptions() Options {
	return Options{
		OnCorruption: PolicySoft,
		Validation:   true,
	}
}

// Validator performs validated insertion and removal on intrusive rings.
//
// A Validator is immutable and may be shared between goroutines, provided
// its Reporter is safe for concurrent use. The entries passed to a single
// call must not be touched concurrently by anyone else.
type Validator struct {
	policy   Policy
	enabled  bool
	reporter Reporter
}

// NewValidator returns a Validator configured by opts.
func NewValidator(opts Options) *Validator {
	v := &Validator{
		policy:   opts.OnCorruption,
		enabled:  opts.Validation,
		reporter: opts.Reporter,
	}
	if v.reporter == nil {
		v.reporter = discard{}
	}
	return v
}

// Policy returns the configured corruption policy.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Enabled returns true if checks are performed.
func (v *Validator) Enabled() bool {
	return v.enabled
}

// failures accumulates the reports of a single validated call. Every report
// is emitted as soon as the check fails so the diagnostic is out before the
// caller sees the error.
type failures struct {
	v       *Validator
	op      Op
	entry   *Entry
	prev    *Entry
	next    *Entry
	reports []*Report
}

func (f *failures) add(c Check, k Kind, expected, observed *Entry) {
	r := &Report{
		Op:       f.op,
		Check:    c,
		Kind:     k,
		Expected: expected,
		Observed: observed,
		Entry:    f.entry,
		Prev:     f.prev,
		Next:     f.next,
	}
	f.reports = append(f.reports, r)
	f.v.reporter.Report(r)
}

func (f *failures) err() error {
	if len(f.reports) == 0 {
		return nil
	}
	return &CorruptionError{
		Op:      f.op,
		Reports: f.reports,
		fatal:   f.v.policy == PolicyFatal,
	}
}

// neighborKind classifies a broken back link read from n.
func neighborKind(n, observed *Entry) Kind {
	if n.Poisoned() || IsPoison(observed) {
		return UseAfterFree
	}
	return LinkMismatch
}

// Insert splices e between prev and next, where prev.next is expected to be
// next.
//
// All checks are evaluated before anything is decided so that every
// inconsistency is reported. If any fails, nothing is modified and a
// *CorruptionError is returned.
func (v *Validator) Insert(e, prev, next *Entry) error {
	if !v.enabled {
		link(e, prev, next)
		return nil
	}
	f := failures{v: v, op: OpInsert, entry: e, prev: prev, next: next}

	if e == nil || prev == nil || next == nil {
		f.add(InsertNil, LinkMismatch, nil, nil)
	}
	if next != nil && next.prev != prev {
		f.add(InsertNextPrev, neighborKind(next, next.prev), prev, next.prev)
	}
	if prev != nil && prev.next != next {
		f.add(InsertPrevNext, neighborKind(prev, prev.next), next, prev.next)
	}
	if e != nil {
		if e == prev || e == next {
			f.add(InsertDoubleAdd, DoubleAdd, nil, e)
		}
		if e.Poisoned() {
			f.add(InsertPoisoned, UseAfterFree, nil, e.next)
		}
	}

	if err := f.err(); err != nil {
		return err
	}
	link(e, prev, next)
	return nil
}

// checkDelete evaluates every removal check against e without modifying
// anything.
func (v *Validator) checkDelete(e *Entry) error {
	if e == nil {
		f := failures{v: v, op: OpDelete}
		f.add(DeleteUninitialized, LinkMismatch, nil, nil)
		return f.err()
	}
	prev, next := e.prev, e.next
	f := failures{v: v, op: OpDelete, entry: e, prev: prev, next: next}

	if prev == nil || next == nil {
		f.add(DeleteUninitialized, LinkMismatch, nil, nil)
	}
	if next == Poison1 {
		f.add(DeleteNextPoisoned, DoubleFree, nil, next)
	}
	if prev == Poison2 {
		f.add(DeletePrevPoisoned, DoubleFree, nil, prev)
	}
	if e.state == Poisoned && next != Poison1 && prev != Poison2 {
		f.add(DeleteStrayWrite, UseAfterFree, nil, next)
	}
	if live(prev) && prev.next != e {
		f.add(DeletePrevNext, neighborKind(prev, prev.next), e, prev.next)
	}
	if live(next) && next.prev != e {
		f.add(DeleteNextPrev, neighborKind(next, next.prev), e, next.prev)
	}
	return f.err()
}

// ValidateDelete checks that e can be unlinked from its ring. It never
// modifies anything.
func (v *Validator) ValidateDelete(e *Entry) error {
	if !v.enabled {
		return nil
	}
	return v.checkDelete(e)
}

// Delete validates e and unlinks it from its ring. The links of e are left
// as they were, so e must be re-linked or re-initialized before it is used
// again. Use Remove for entries that are going away.
func (v *Validator) Delete(e *Entry) error {
	if err := v.ValidateDelete(e); err != nil {
		return err
	}
	unlink(e)
	return nil
}

// Remove validates e, unlinks it and poisons it so that any later validated
// operation involving e is detected.
//
// With validation disabled, Remove only unlinks.
func (v *Validator) Remove(e *Entry) error {
	if err := v.Delete(e); err != nil {
		return err
	}
	if v.enabled {
		poison(e)
	}
	return nil
}
