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

package listscript

import (
	"fmt"

	"gvisor.dev/listguard/pkg/ilist"
)

// StepResult is the outcome of a single step.
type StepResult struct {
	Index int
	Step  Step

	// Err is the error returned by the validated operation, if any.
	Err error

	// Failure describes how the step missed its expectation. Empty when the
	// step behaved as declared.
	Failure string

	// Skipped is set for steps after a fatal corruption.
	Skipped bool
}

// Result is the outcome of a script.
type Result struct {
	Script *Script
	Steps  []StepResult

	// Halted is set when a fatal corruption stopped the script.
	Halted bool

	entries map[string]*ilist.Entry
}

// Failures returns the steps that missed their expectation.
func (r *Result) Failures() []StepResult {
	var fs []StepResult
	for _, s := range r.Steps {
		if s.Failure != "" {
			fs = append(fs, s)
		}
	}
	return fs
}

// Passed returns true if every step behaved as declared and the script halted
// iff it was expected to.
func (r *Result) Passed() bool {
	return len(r.Failures()) == 0 && r.Halted == r.Script.Halts
}

// Entry returns the entry named name after the run.
func (r *Result) Entry(name string) *ilist.Entry {
	return r.entries[name]
}

// Runner executes scripts.
type Runner struct {
	// Options are used for every script that does not override them.
	Options ilist.Options
}

func (r *Runner) options(s *Script) ilist.Options {
	opts := r.Options
	if s.Policy != "" {
		// Already checked by Parse.
		_ = opts.OnCorruption.Set(s.Policy)
	}
	if s.Validate != nil {
		opts.Validation = *s.Validate
	}
	return opts
}

// Run executes s with a fresh set of entries.
func (r *Runner) Run(s *Script) *Result {
	v := ilist.NewValidator(r.options(s))
	res := &Result{
		Script:  s,
		entries: make(map[string]*ilist.Entry, len(s.Entries)),
	}
	for _, name := range s.Entries {
		res.entries[name] = &ilist.Entry{}
	}

	for i, st := range s.Steps {
		sr := StepResult{Index: i, Step: st}
		if res.Halted {
			sr.Skipped = true
			res.Steps = append(res.Steps, sr)
			continue
		}
		switch st.Op {
		case OpExpect:
			sr.Failure = res.expect(st)
		case OpSetNext:
			res.get(st.Entry).SetNext(res.get(st.Target))
		case OpSetPrev:
			res.get(st.Entry).SetPrev(res.get(st.Target))
		default:
			sr.Err = res.apply(v, st)
			sr.Failure = res.checkOutcome(st, sr.Err)
			res.Halted = ilist.IsFatal(sr.Err)
		}
		res.Steps = append(res.Steps, sr)
	}
	return res
}

func (r *Result) get(name string) *ilist.Entry {
	switch name {
	case namePoison1:
		return ilist.Poison1
	case namePoison2:
		return ilist.Poison2
	case nameNil:
		return nil
	default:
		return r.entries[name]
	}
}

func (r *Result) apply(v *ilist.Validator, st Step) error {
	switch st.Op {
	case OpInit:
		r.get(st.Entry).Init()
		return nil
	case OpRing:
		first := r.get(st.Ring[0])
		first.Init()
		prev := first
		for _, name := range st.Ring[1:] {
			e := r.get(name)
			if err := v.Insert(e, prev, first); err != nil {
				return err
			}
			prev = e
		}
		return nil
	case OpInsert:
		return v.Insert(r.get(st.Entry), r.get(st.Prev), r.get(st.Next))
	case OpRemove:
		return v.Remove(r.get(st.Entry))
	case OpDelete:
		return v.Delete(r.get(st.Entry))
	case OpValidateDelete:
		return v.ValidateDelete(r.get(st.Entry))
	default:
		panic(fmt.Sprintf("unexpected op %q", st.Op))
	}
}

func (r *Result) checkOutcome(st Step, err error) string {
	if st.Want == "" || st.Want == WantOK {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		return ""
	}
	want, _ := ilist.ParseKind(st.Want)
	ce, ok := ilist.AsCorruption(err)
	if !ok {
		if err != nil {
			return fmt.Sprintf("want %s, got error: %v", want, err)
		}
		return fmt.Sprintf("want %s, operation succeeded", want)
	}
	if !ce.Has(want) {
		return fmt.Sprintf("want %s, got %v", want, ce.Kinds())
	}
	if st.Expected == "" && st.Observed == "" {
		return ""
	}
	for _, rep := range ce.Reports {
		if st.Expected != "" && rep.Expected != r.get(st.Expected) {
			continue
		}
		if st.Observed != "" && rep.Observed != r.get(st.Observed) {
			continue
		}
		return ""
	}
	return fmt.Sprintf("no report with expected=%q observed=%q in: %v", st.Expected, st.Observed, err)
}

func (r *Result) expect(st Step) string {
	e := r.get(st.Entry)
	if st.Next != "" {
		if want := r.get(st.Next); e.Next() != want {
			return fmt.Sprintf("%s.next is %s, want %s (%s)", st.Entry, r.Name(e.Next()), st.Next, ilist.Identity(want))
		}
	}
	if st.Prev != "" {
		if want := r.get(st.Prev); e.Prev() != want {
			return fmt.Sprintf("%s.prev is %s, want %s (%s)", st.Entry, r.Name(e.Prev()), st.Prev, ilist.Identity(want))
		}
	}
	if st.State != "" {
		if want, _ := parseState(st.State); e.State() != want {
			return fmt.Sprintf("%s is %v, want %v", st.Entry, e.State(), want)
		}
	}
	return ""
}

// Name maps an entry back to its script name, falling back to its identity.
func (r *Result) Name(e *ilist.Entry) string {
	for name, x := range r.entries {
		if x == e {
			return name
		}
	}
	return ilist.Identity(e)
}
