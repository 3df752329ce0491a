// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	txsSubmitted     prometheus.Counter
	batchesSubmitted prometheus.Counter
	keysCommitted    prometheus.Counter
	txsPruned        prometheus.Counter
	commit           metric.Averager
}

func newMetrics(r prometheus.Registerer) (*Metrics, error) {
	commit, err := metric.NewAverager(
		"vm_commit",
		"time spent writing state changes to disk",
		r,
	)
	if err != nil {
		return nil, err
	}
	m := &Metrics{
		txsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "txs_submitted",
			Help:      "number of txs submitted to vm",
		}),
		batchesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "batches_submitted",
			Help:      "number of tx batches submitted to vm",
		}),
		keysCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "keys_committed",
			Help:      "number of keys written to disk",
		}),
		txsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "txs_pruned",
			Help:      "number of expired tx records removed from disk",
		}),
		commit: commit,
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.txsSubmitted),
		r.Register(m.batchesSubmitted),
		r.Register(m.keysCommitted),
		r.Register(m.txsPruned),
	)
	return m, errs.Err
}
