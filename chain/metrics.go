// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/countervm/executor"
)

var _ executor.Metrics = (*executorMetrics)(nil)

type Metrics struct {
	txsSucceeded prometheus.Counter
	txsFailed    prometheus.Counter
	txsRejected  prometheus.Counter

	stateChanges    prometheus.Counter
	stateOperations prometheus.Counter

	executeTime metric.Averager

	executor *executorMetrics
}

type executorMetrics struct {
	blocked    prometheus.Counter
	executable prometheus.Counter
}

func (em *executorMetrics) RecordBlocked() {
	em.blocked.Inc()
}

func (em *executorMetrics) RecordExecutable() {
	em.executable.Inc()
}

func NewMetrics(r prometheus.Registerer) (*Metrics, error) {
	executeTime, err := metric.NewAverager(
		"chain_execute_time",
		"time spent executing a transaction",
		r,
	)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		txsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "txs_succeeded",
			Help:      "number of transactions that executed successfully",
		}),
		txsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "txs_failed",
			Help:      "number of transactions whose action failed",
		}),
		txsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "txs_rejected",
			Help:      "number of transactions rejected before execution",
		}),
		stateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "state_changes",
			Help:      "number of keys changed by committed transactions",
		}),
		stateOperations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "state_operations",
			Help:      "number of state operations performed by committed transactions",
		}),
		executeTime: executeTime,
		executor: &executorMetrics{
			blocked: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chain",
				Name:      "executor_blocked",
				Help:      "executor tasks blocked during processing",
			}),
			executable: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chain",
				Name:      "executor_executable",
				Help:      "executor tasks executable during processing",
			}),
		},
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.txsSucceeded),
		r.Register(m.txsFailed),
		r.Register(m.txsRejected),
		r.Register(m.stateChanges),
		r.Register(m.stateOperations),
		r.Register(m.executor.blocked),
		r.Register(m.executor.executable),
	)
	return m, errs.Err
}
