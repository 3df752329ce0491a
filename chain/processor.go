// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/executor"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
	"github.com/ava-labs/countervm/tstate"
)

// Processor executes transactions against a [tstate.TState]. Every
// transaction runs in its own view: failures are rolled back, successes are
// committed to the parent state together with a record of their ID.
type Processor struct {
	log         logging.Logger
	tracer      trace.Tracer
	metrics     *Metrics
	rules       Rules
	parallelism int
}

func NewProcessor(
	log logging.Logger,
	tracer trace.Tracer,
	metrics *Metrics,
	rules Rules,
	parallelism int,
) *Processor {
	return &Processor{
		log:         log,
		tracer:      tracer,
		metrics:     metrics,
		rules:       rules,
		parallelism: parallelism,
	}
}

// Execute runs [tx] at time [now] (in milliseconds). State is read from
// [ts] first and then from [im]. The returned error is only set when
// state could not be read; transaction failures are reported in [Result].
func (p *Processor) Execute(
	ctx context.Context,
	ts *tstate.TState,
	im state.Immutable,
	now int64,
	tx *Transaction,
) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "Processor.Execute")
	defer span.End()

	return p.execute(ctx, ts, im, now, tx)
}

// ExecuteBatch runs [txs] concurrently. Transactions touching the same
// account execute in the order given; results are returned in that order.
func (p *Processor) ExecuteBatch(
	ctx context.Context,
	ts *tstate.TState,
	im state.Immutable,
	now int64,
	txs []*Transaction,
) ([]*Result, error) {
	ctx, span := p.tracer.Start(ctx, "Processor.ExecuteBatch")
	defer span.End()

	results := make([]*Result, len(txs))
	e := executor.New(len(txs), p.parallelism, p.metrics.executor)
	for i, tx := range txs {
		if tx.Auth == nil {
			p.metrics.txsRejected.Inc()
			results[i] = newResult(tx.ID(), nil, ErrMissingAuth)
			continue
		}
		i, tx := i, tx
		e.Run(tx.StateKeys(), func() error {
			r, err := p.execute(ctx, ts, im, now, tx)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := e.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Processor) execute(
	ctx context.Context,
	ts *tstate.TState,
	im state.Immutable,
	now int64,
	tx *Transaction,
) (*Result, error) {
	start := time.Now()
	defer func() {
		p.metrics.executeTime.Observe(float64(time.Since(start)))
	}()

	if err := p.verify(ctx, now, tx); err != nil {
		p.metrics.txsRejected.Inc()
		p.log.Debug("transaction rejected",
			zap.Stringer("txID", tx.ID()),
			zap.Error(err),
		)
		return newResult(tx.ID(), nil, err), nil
	}

	// Prefetch every key the action may touch
	stateKeys := tx.StateKeys()
	prefetched := make(map[string][]byte, len(stateKeys))
	for k := range stateKeys {
		v, err := im.GetValue(ctx, []byte(k))
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %x: %w", k, err)
		}
		prefetched[k] = v
	}

	view := ts.NewView(stateKeys, prefetched)
	executed, err := storage.HasTx(ctx, view, tx.ID())
	if err != nil {
		return nil, err
	}
	if executed {
		p.metrics.txsRejected.Inc()
		err := fmt.Errorf("%w: %s", ErrDuplicateTx, tx.ID())
		p.log.Debug("transaction rejected",
			zap.Stringer("txID", tx.ID()),
			zap.Error(err),
		)
		return newResult(tx.ID(), nil, err), nil
	}

	restore := view.OpIndex()
	l := ledger.New(view, p.rules.GetProgramID(), p.rules.GetRentSchedule())
	output, err := tx.Action.Execute(ctx, p.rules, l, tx.Auth.Actor())
	if err != nil {
		view.Rollback(ctx, restore)
		p.metrics.txsFailed.Inc()
		p.log.Debug("action failed",
			zap.Stringer("txID", tx.ID()),
			zap.Uint8("action", tx.Action.GetTypeID()),
			zap.Stringer("actor", tx.Auth.Actor()),
			zap.Error(err),
		)
		return newResult(tx.ID(), nil, err), nil
	}
	if err := storage.StoreTx(ctx, view, tx.ID(), tx.Expiry()); err != nil {
		return nil, err
	}
	p.metrics.stateChanges.Add(float64(view.PendingChanges()))
	p.metrics.stateOperations.Add(float64(view.OpIndex()))
	view.Commit()
	p.metrics.txsSucceeded.Inc()
	return newResult(tx.ID(), output, nil), nil
}

func (p *Processor) verify(ctx context.Context, now int64, tx *Transaction) error {
	if err := tx.Base.Execute(p.rules.GetChainID(), p.rules, now); err != nil {
		return err
	}
	return tx.Authenticate(ctx)
}
