/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics registers the Prometheus series exposed by the
// reconciliation loop.
package metrics

import (
	opmetrics "github.com/awslabs/operatorpkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	Namespace = "lb_reconciler"
	Subsystem = "reconciler"

	ReasonLabel = "reason"
	StateLabel  = "state"
	KindLabel   = "kind"
)

// DurationBuckets returns the default histogram buckets (seconds) for
// latency-shaped series in this package.
func DurationBuckets() []float64 {
	return []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 15, 30, 60, 120, 300}
}

var (
	// TicksTotal counts every tick the loop driver starts, whether or not it
	// completed within the tick timeout.
	TicksTotal = opmetrics.NewPrometheusCounter(
		crmetrics.Registry,
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "ticks_total",
			Help:      "Number of reconciliation ticks started.",
		},
		[]string{},
	)

	// TransitionsEmittedTotal counts TargetTransition records published on
	// the event stream, labeled by the reason the phase engine fired and the
	// desired state it requested.
	TransitionsEmittedTotal = opmetrics.NewPrometheusCounter(
		crmetrics.Registry,
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "transitions_emitted_total",
			Help:      "Number of target transitions emitted by the phase engine.",
		},
		[]string{ReasonLabel, StateLabel},
	)

	// ErrorsTotal counts store errors observed during a tick, labeled by kind:
	// store-read-failure, snapshot-gather-failure or store-write-failure.
	// Connector and job operations errors are logged, not counted here.
	ErrorsTotal = opmetrics.NewPrometheusCounter(
		crmetrics.Registry,
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "errors_total",
			Help:      "Number of per-association errors observed during reconciliation.",
		},
		[]string{KindLabel},
	)

	// TickDurationSeconds observes the duration of one full tick, from its
	// start until every dispatched association has returned. A tick that
	// fails to list associations is not observed.
	TickDurationSeconds = opmetrics.NewPrometheusHistogram(
		crmetrics.Registry,
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Duration of a full reconciliation tick.",
			Buckets:   DurationBuckets(),
		},
		[]string{},
	)
)
