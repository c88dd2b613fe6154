// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/pairpool/program"
)

const (
	outcomeCommitted = "committed"
	outcomeReverted  = "reverted"
)

// Metrics collects execution statistics. A nil *Metrics records nothing.
type Metrics struct {
	executions   *prometheus.CounterVec
	instructions *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics registers the pool collectors with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pairpool",
			Name:      "executions_total",
			Help:      "Program executions by outcome.",
		}, []string{"outcome"}),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pairpool",
			Name:      "instructions_total",
			Help:      "Instructions executed by op.",
		}, []string{"op"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pairpool",
			Name:      "execute_duration_seconds",
			Help:      "Time spent in Execute.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.executions, m.instructions, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeExecution(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeInstruction(op program.Op) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(op.String()).Inc()
}
