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
	"fmt"
	"io"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric names written by WriteMetrics, without the prefix.
const (
	reportsMetric   = "corruption_reports_total"
	opReportsMetric = "corruption_reports_by_op_total"
)

func counter(labelName, labelValue string, v uint64) *dto.Metric {
	value := float64(v)
	return &dto.Metric{
		Label: []*dto.LabelPair{{
			Name:  &labelName,
			Value: &labelValue,
		}},
		Counter: &dto.Counter{Value: &value},
	}
}

func family(name, help string, metrics []*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: metrics,
	}
}

// WriteMetrics writes s in the Prometheus text exposition format. Metric
// names are prefixed with prefix and an underscore, if prefix is not empty.
func (s Snapshot) WriteMetrics(w io.Writer, prefix string) error {
	if prefix != "" {
		prefix += "_"
	}

	kinds := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	var byKind []*dto.Metric
	for _, k := range kinds {
		byKind = append(byKind, counter("kind", k, s.Kinds[k]))
	}
	byOp := []*dto.Metric{
		counter("op", "insert", s.Insert),
		counter("op", "delete", s.Delete),
	}

	for _, mf := range []*dto.MetricFamily{
		family(prefix+reportsMetric, "List corruption reports by kind.", byKind),
		family(prefix+opReportsMetric, "List corruption reports by operation.", byOp),
	} {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
