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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCorruption is wrapped by every error returned for a failed check.
	ErrCorruption = errors.New("list corruption")

	// ErrFatalCorruption is additionally wrapped when the validator runs with
	// PolicyFatal. The caller must not continue past it.
	ErrFatalCorruption = errors.New("fatal list corruption")
)

// CorruptionError is returned by validated operations that detected
// corruption. Nothing was mutated.
type CorruptionError struct {
	// Op is the rejected operation.
	Op Op

	// Reports holds one report per failed check, in evaluation order.
	Reports []*Report

	fatal bool
}

// Fatal returns true if the error was raised under PolicyFatal.
func (e *CorruptionError) Fatal() bool {
	return e.fatal
}

// Kinds returns the distinct kinds of the reports, in first-seen order.
func (e *CorruptionError) Kinds() []Kind {
	var seen [NumKinds]bool
	var kinds []Kind
	for _, r := range e.Reports {
		if !seen[r.Kind] {
			seen[r.Kind] = true
			kinds = append(kinds, r.Kind)
		}
	}
	return kinds
}

// Has returns true if any report is of kind k.
func (e *CorruptionError) Has(k Kind) bool {
	for _, r := range e.Reports {
		if r.Kind == k {
			return true
		}
	}
	return false
}

// Error implements error.Error.
func (e *CorruptionError) Error() string {
	var b strings.Builder
	if e.fatal {
		b.WriteString("fatal ")
	}
	fmt.Fprintf(&b, "%s corruption", e.Op)
	for i, r := range e.Reports {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(r.String())
	}
	return b.String()
}

// Unwrap returns the sentinel errors matched by errors.Is.
func (e *CorruptionError) Unwrap() []error {
	if e.fatal {
		return []error{ErrCorruption, ErrFatalCorruption}
	}
	return []error{ErrCorruption}
}

// IsFatal returns true if err carries a fatal corruption.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalCorruption)
}

// AsCorruption extracts the CorruptionError from err, if any.
func AsCorruption(err error) (*CorruptionError, bool) {
	var ce *CorruptionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
