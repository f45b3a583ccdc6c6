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

// Package corruption provides sinks for the diagnostics emitted by ilist
// validators.
package corruption

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"gvisor.dev/listguard/pkg/ilist"
	"gvisor.dev/listguard/pkg/log"
)

// LogReporter writes every report to a log.Logger at Warning level.
type LogReporter struct {
	logger log.Logger
	json   bool
}

// NewLogReporter returns a reporter that logs to logger. If interval is
// non-zero, no more than burst reports are logged per interval and the rest
// are dropped.
func NewLogReporter(logger log.Logger, interval time.Duration, burst int) *LogReporter {
	if interval > 0 {
		logger = log.RateLimitedLogger(logger, interval, burst)
	}
	return &LogReporter{logger: logger}
}

// WithJSON makes r log reports as JSON objects instead of text.
func (r *LogReporter) WithJSON() *LogReporter {
	r.json = true
	return r
}

// Dropped returns how many reports were suppressed by rate limiting.
func (r *LogReporter) Dropped() uint64 {
	if rl, ok := r.logger.(*log.RateLimited); ok {
		return rl.Dropped()
	}
	return 0
}

// Report implements ilist.Reporter.Report.
func (r *LogReporter) Report(rep *ilist.Report) {
	if r.json {
		b, err := json.Marshal(rep)
		if err == nil {
			r.logger.Warningf("%s", b)
			return
		}
	}
	r.logger.Warningf("%s", rep)
}

// Recorder keeps every report in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	reports []*ilist.Report
}

// Report implements ilist.Reporter.Report.
func (r *Recorder) Report(rep *ilist.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

// Reports returns a copy of the recorded reports.
func (r *Recorder) Reports() []*ilist.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*ilist.Report(nil), r.reports...)
}

// Len returns the number of recorded reports.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

// Reset drops every recorded report.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = nil
}

// Counters counts reports by kind and by operation.
type Counters struct {
	kinds [ilist.NumKinds]atomic.Uint64
	ops   [2]atomic.Uint64
}

// Report implements ilist.Reporter.Report.
func (c *Counters) Report(rep *ilist.Report) {
	if int(rep.Kind) < len(c.kinds) {
		c.kinds[rep.Kind].Add(1)
	}
	if int(rep.Op) < len(c.ops) {
		c.ops[rep.Op].Add(1)
	}
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Kinds  map[string]uint64 `json:"kinds" toml:"kinds"`
	Insert uint64            `json:"insert" toml:"insert"`
	Delete uint64            `json:"delete" toml:"delete"`
}

// Total returns the number of reports counted.
func (s Snapshot) Total() uint64 {
	return s.Insert + s.Delete
}

// Snapshot returns the current counts.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{Kinds: make(map[string]uint64, ilist.NumKinds)}
	for k := range c.kinds {
		s.Kinds[ilist.Kind(k).String()] = c.kinds[k].Load()
	}
	s.Insert = c.ops[ilist.OpInsert].Load()
	s.Delete = c.ops[ilist.OpDelete].Load()
	return s
}

// Multi fans a report out to several reporters, in order.
type Multi []ilist.Reporter

// Report implements ilist.Reporter.Report.
func (m Multi) Report(rep *ilist.Report) {
	for _, r := range m {
		r.Report(rep)
	}
}
