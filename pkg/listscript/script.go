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

// Package listscript runs scripted sequences of validated list operations.
//
// A script names a set of entries and a sequence of steps. Steps either
// perform a validated operation, write a link directly (to simulate a stray
// write), or assert the state of an entry. Each operation step may declare
// the corruption it is expected to trigger.
package listscript

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	"gvisor.dev/listguard/pkg/ilist"
)

// Operations understood in Step.Op.
const (
	OpInit           = "init"
	OpRing           = "ring"
	OpInsert         = "insert"
	OpRemove         = "remove"
	OpDelete         = "delete"
	OpValidateDelete = "validate-delete"
	OpSetNext        = "set-next"
	OpSetPrev        = "set-prev"
	OpExpect         = "expect"
)

// WantOK is the default outcome of an operation step.
const WantOK = "ok"

// Names that refer to something other than a script entry.
const (
	namePoison1 = "poison1"
	namePoison2 = "poison2"
	nameNil     = "nil"
)

// Script is a named sequence of steps over a set of entries.
type Script struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Entries     []string `yaml:"entries"`
	Steps       []Step   `yaml:"steps"`

	// Policy and Validate override the runner's options when set.
	Policy   string `yaml:"policy,omitempty"`
	Validate *bool  `yaml:"validate,omitempty"`

	// Halts declares that the script is expected to stop on a fatal
	// corruption.
	Halts bool `yaml:"halts,omitempty"`
}

// Step is a single scripted action.
type Step struct {
	Op    string `yaml:"op"`
	Entry string `yaml:"entry,omitempty"`
	Prev  string `yaml:"prev,omitempty"`
	Next  string `yaml:"next,omitempty"`

	// Ring lists the entries linked, in order, by OpRing.
	Ring []string `yaml:"ring,omitempty"`

	// Target is the link value written by OpSetNext and OpSetPrev.
	Target string `yaml:"target,omitempty"`

	// State is checked by OpExpect.
	State string `yaml:"state,omitempty"`

	// Want is "ok" or the name of an ilist.Kind the step must report.
	Want string `yaml:"want,omitempty"`

	// Expected and Observed, when set, must match one of the reports.
	Expected string `yaml:"expected,omitempty"`
	Observed string `yaml:"observed,omitempty"`
}

// Parse decodes a single script.
func Parse(data []byte) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Read decodes a single script from r.
func Read(r io.Reader) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return Parse(data)
}

// Load decodes the script stored at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Marshal encodes s back to YAML.
func (s *Script) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

func reserved(name string) bool {
	return name == namePoison1 || name == namePoison2 || name == nameNil
}

// validate checks that every step is well formed and only refers to declared
// entries.
func (s *Script) validate() error {
	if s.Name == "" {
		return fmt.Errorf("script has no name")
	}
	if s.Policy != "" {
		var p ilist.Policy
		if err := p.Set(s.Policy); err != nil {
			return fmt.Errorf("script %q: %w", s.Name, err)
		}
	}
	declared := make(map[string]bool, len(s.Entries))
	for _, e := range s.Entries {
		if reserved(e) {
			return fmt.Errorf("script %q: entry name %q is reserved", s.Name, e)
		}
		if declared[e] {
			return fmt.Errorf("script %q: entry %q declared twice", s.Name, e)
		}
		declared[e] = true
	}
	entry := func(i int, what, name string) error {
		if !declared[name] {
			return fmt.Errorf("script %q step %d: %s %q is not a declared entry", s.Name, i, what, name)
		}
		return nil
	}
	link := func(i int, what, name string) error {
		if reserved(name) {
			return nil
		}
		return entry(i, what, name)
	}
	for i, st := range s.Steps {
		var errs []error
		switch st.Op {
		case OpInit, OpRemove, OpDelete, OpValidateDelete:
			errs = append(errs, entry(i, "entry", st.Entry))
		case OpRing:
			if len(st.Ring) == 0 {
				return fmt.Errorf("script %q step %d: empty ring", s.Name, i)
			}
			for _, name := range st.Ring {
				errs = append(errs, entry(i, "ring member", name))
			}
		case OpInsert:
			errs = append(errs, link(i, "entry", st.Entry), link(i, "prev", st.Prev), link(i, "next", st.Next))
		case OpSetNext, OpSetPrev:
			errs = append(errs, entry(i, "entry", st.Entry), link(i, "target", st.Target))
		case OpExpect:
			errs = append(errs, entry(i, "entry", st.Entry))
			if st.Prev != "" {
				errs = append(errs, link(i, "prev", st.Prev))
			}
			if st.Next != "" {
				errs = append(errs, link(i, "next", st.Next))
			}
			if st.State != "" {
				if _, err := parseState(st.State); err != nil {
					return fmt.Errorf("script %q step %d: %w", s.Name, i, err)
				}
			}
		default:
			return fmt.Errorf("script %q step %d: unknown op %q", s.Name, i, st.Op)
		}
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		if st.Want != "" && st.Want != WantOK {
			if _, err := ilist.ParseKind(st.Want); err != nil {
				return fmt.Errorf("script %q step %d: %w", s.Name, i, err)
			}
		}
		for _, name := range []string{st.Expected, st.Observed} {
			if name != "" {
				if err := link(i, "report entry", name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func parseState(s string) (ilist.State, error) {
	for _, st := range []ilist.State{ilist.Uninitialized, ilist.Linked, ilist.Poisoned} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown entry state %q", s)
}
