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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/listguard/pkg/corruption"
	"gvisor.dev/listguard/pkg/ilist"
)

func TestBuiltinScenariosPass(t *testing.T) {
	scripts, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin failed: %v", err)
	}
	if len(scripts) == 0 {
		t.Fatalf("no builtin scenarios")
	}
	for _, policy := range []ilist.Policy{ilist.PolicySoft, ilist.PolicyFatal} {
		for _, s := range scripts {
			t.Run(policy.String()+"/"+s.Name, func(t *testing.T) {
				r := Runner{Options: ilist.Options{OnCorruption: policy, Validation: true}}
				res := r.Run(s)
				for _, f := range res.Failures() {
					t.Errorf("step %d (%s): %s", f.Index, f.Step.Op, f.Failure)
				}
				if res.Halted != s.Halts {
					t.Errorf("halted got %v, want %v", res.Halted, s.Halts)
				}
				if !res.Passed() {
					t.Errorf("scenario did not pass")
				}
			})
		}
	}
}

func TestFatalSkipsRemainingSteps(t *testing.T) {
	s, err := Lookup("remove-twice-fatal")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	rec := &corruption.Recorder{}
	r := Runner{Options: ilist.Options{Validation: true, Reporter: rec}}
	res := r.Run(s)
	var skipped []bool
	for _, st := range res.Steps {
		skipped = append(skipped, st.Skipped)
	}
	if diff := cmp.Diff([]bool{false, false, false, true}, skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	if !ilist.IsFatal(res.Steps[2].Err) {
		t.Errorf("step 2 error %v is not fatal", res.Steps[2].Err)
	}
	if got := rec.Len(); got != 2 {
		t.Errorf("got %d reports, want 2", got)
	}
	// The remaining entries were not touched.
	if a := res.Entry("a"); a.Poisoned() {
		t.Errorf("entry a was removed after the fatal step")
	}
}

func TestUnexpectedOutcomeIsAFailure(t *testing.T) {
	s, err := Parse([]byte(`
name: wrong
validate: true
entries: [a, b, c]
steps:
  - op: ring
    ring: [a, b, c]
  - op: remove
    entry: b
    want: double-free
  - op: remove
    entry: b
  - op: expect
    entry: a
    next: b
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	r := Runner{Options: ilist.DefaultOptions()}
	res := r.Run(s)
	fs := res.Failures()
	if len(fs) != 3 {
		t.Fatalf("got %d failures, want 3: %+v", len(fs), fs)
	}
	for i, want := range []string{"operation succeeded", "unexpected error", "a.next is c"} {
		if !strings.Contains(fs[i].Failure, want) {
			t.Errorf("failure %d: %q does not contain %q", i, fs[i].Failure, want)
		}
	}
	if res.Passed() {
		t.Errorf("script with failures passed")
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no name",
			yaml: "entries: [a]\n",
			want: "no name",
		},
		{
			name: "unknown field",
			yaml: "name: x\nbogus: 1\n",
			want: "bogus",
		},
		{
			name: "unknown op",
			yaml: "name: x\nentries: [a]\nsteps:\n  - op: splice\n    entry: a\n",
			want: "unknown op",
		},
		{
			name: "undeclared entry",
			yaml: "name: x\nentries: [a]\nsteps:\n  - op: remove\n    entry: b\n",
			want: "not a declared entry",
		},
		{
			name: "reserved entry",
			yaml: "name: x\nentries: [poison1]\n",
			want: "reserved",
		},
		{
			name: "duplicate entry",
			yaml: "name: x\nentries: [a, a]\n",
			want: "declared twice",
		},
		{
			name: "bad kind",
			yaml: "name: x\nentries: [a]\nsteps:\n  - op: remove\n    entry: a\n    want: leak\n",
			want: "unknown corruption kind",
		},
		{
			name: "bad policy",
			yaml: "name: x\npolicy: panic\n",
			want: "invalid corruption policy",
		},
		{
			name: "bad state",
			yaml: "name: x\nentries: [a]\nsteps:\n  - op: expect\n    entry: a\n    state: freed\n",
			want: "unknown entry state",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("Parse succeeded")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	s, err := Lookup("corrupted-neighbour")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	b, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s2, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff(s, s2); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
}
