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

package corruption

import (
	"github.com/sirupsen/logrus"
	"gvisor.dev/listguard/pkg/ilist"
)

// FieldReporter logs each report as one logrus entry, with the report's
// fields attached as structured fields.
type FieldReporter struct {
	logger logrus.FieldLogger
}

// NewFieldReporter returns a reporter that logs to logger at warning level.
func NewFieldReporter(logger logrus.FieldLogger) *FieldReporter {
	return &FieldReporter{logger: logger}
}

// Report implements ilist.Reporter.Report.
func (r *FieldReporter) Report(rep *ilist.Report) {
	fields := logrus.Fields{
		"op":       rep.Op.String(),
		"check":    rep.Check.String(),
		"kind":     rep.Kind.String(),
		"entry":    ilist.Identity(rep.Entry),
		"prev":     ilist.Identity(rep.Prev),
		"next":     ilist.Identity(rep.Next),
		"observed": ilist.Identity(rep.Observed),
	}
	if rep.Expected != nil {
		fields["expected"] = ilist.Identity(rep.Expected)
	}
	r.logger.WithFields(fields).Warn("list corruption")
}
