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

import "fmt"

// Policy selects what a Validator does once a check fails.
type Policy uint8

const (
	// PolicySoft rejects the operation and returns a CorruptionError. The
	// caller decides whether to continue.
	PolicySoft Policy = iota

	// PolicyFatal returns a CorruptionError that wraps ErrFatalCorruption.
	// The caller must not continue.
	PolicyFatal
)

// String implements flag.Value.
func (p Policy) String() string {
	switch p {
	case PolicySoft:
		return "soft"
	case PolicyFatal:
		return "fatal"
	default:
		panic(fmt.Sprintf("Invalid corruption policy %d", p))
	}
}

// Set implements flag.Value.
func (p *Policy) Set(v string) error {
	switch v {
	case "soft":
		*p = PolicySoft
	case "fatal":
		*p = PolicyFatal
	default:
		return fmt.Errorf("invalid corruption policy %q, must be one of: soft, fatal", v)
	}
	return nil
}

// Get implements flag.Getter.
func (p *Policy) Get() any {
	return *p
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	return p.Set(string(b))
}
