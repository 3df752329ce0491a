// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/emap"
	"github.com/ava-labs/countervm/genesis"
	"github.com/ava-labs/countervm/registry"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
	"github.com/ava-labs/countervm/tstate"
	"github.com/ava-labs/countervm/utils"
)

// Database is the persistence the VM needs. Both memdb and pebble
// satisfy it.
type Database interface {
	database.KeyValueReader
	database.Batcher
	database.Iteratee
	io.Closer
}

// txRecord is an executed tx ID tracked until its expiry passes.
type txRecord struct {
	id     ids.ID
	expiry int64
}

func (r *txRecord) ID() ids.ID { return r.id }

func (r *txRecord) Expiry() int64 { return r.expiry }

// VM applies transactions to a database. Each call to [VM.Submit] or
// [VM.SubmitBatch] executes and commits atomically: either every change of a
// successful transaction reaches disk or none do.
type VM struct {
	log         logging.Logger
	tracer      trace.Tracer
	db          Database
	clock       *mockable.Clock
	parallelism int

	genesis      *genesis.Genesis
	genesisBytes []byte
	chainID      ids.ID
	rules        *genesis.Rules

	metrics   *Metrics
	processor *chain.Processor

	// executed mirrors the tx records on disk so they can be pruned once
	// expired.
	executed *emap.EMap[*txRecord]

	// lock serializes execution and commit so every transaction observes
	// the durable result of the ones before it.
	lock   sync.Mutex
	closed bool
}

func New(
	ctx context.Context,
	log logging.Logger,
	tracer trace.Tracer,
	registerer prometheus.Registerer,
	db Database,
	g *genesis.Genesis,
	opts ...Option,
) (*VM, error) {
	vm := &VM{
		log:         log,
		tracer:      tracer,
		db:          db,
		clock:       &mockable.Clock{},
		parallelism: runtime.NumCPU(),
		genesis:     g,
		executed:    emap.New[*txRecord](),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.parallelism <= 0 {
		return nil, ErrInvalidParallelism
	}

	if err := g.Verify(); err != nil {
		return nil, err
	}
	gb, err := g.Bytes()
	if err != nil {
		return nil, err
	}
	vm.genesisBytes = gb
	vm.chainID = utils.ToID(gb)
	vm.rules, err = g.Rules(vm.chainID)
	if err != nil {
		return nil, err
	}

	vm.metrics, err = newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	chainMetrics, err := chain.NewMetrics(registerer)
	if err != nil {
		return nil, err
	}
	vm.processor = chain.NewProcessor(log, tracer, chainMetrics, vm.rules, vm.parallelism)

	if err := vm.loadGenesis(ctx); err != nil {
		return nil, err
	}
	if err := vm.loadExecuted(ctx); err != nil {
		return nil, err
	}
	log.Info("initialized vm",
		zap.Stringer("chainID", vm.chainID),
		zap.Stringer("programID", vm.rules.GetProgramID()),
		zap.Uint64("interactionFee", vm.rules.GetInteractionFee()),
		zap.Int("parallelism", vm.parallelism),
	)
	return vm, nil
}

// loadGenesis writes the genesis allocations once. Later starts verify that
// the stored genesis matches.
func (vm *VM) loadGenesis(ctx context.Context) error {
	ctx, span := vm.tracer.Start(ctx, "VM.loadGenesis")
	defer span.End()

	stored, err := vm.db.Get(storage.GenesisKey())
	switch {
	case err == nil:
		if !bytes.Equal(stored, vm.genesisBytes) {
			return ErrGenesisMismatch
		}
		vm.log.Info("genesis already loaded")
		return nil
	case !errors.Is(err, database.ErrNotFound):
		return err
	}

	keys, err := vm.genesis.StateKeys()
	if err != nil {
		return err
	}
	prefetched := make(map[string][]byte, len(keys))
	for k := range keys {
		v, err := vm.db.Get([]byte(k))
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		prefetched[k] = v
	}
	ts := tstate.New(len(keys))
	view := ts.NewView(keys, prefetched)
	if err := vm.genesis.Load(ctx, vm.tracer, view); err != nil {
		return err
	}
	view.Commit()

	batch := vm.db.NewBatch()
	if err := ts.WriteChanges(batch); err != nil {
		return err
	}
	if err := batch.Put(storage.GenesisKey(), vm.genesisBytes); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	vm.log.Info("loaded genesis",
		zap.Int("allocations", len(vm.genesis.CustomAllocation)),
	)
	return nil
}

// loadExecuted tracks the tx records left by a previous run and drops the
// ones that have expired.
func (vm *VM) loadExecuted(ctx context.Context) error {
	_, span := vm.tracer.Start(ctx, "VM.loadExecuted")
	defer span.End()

	var (
		now     = vm.now()
		batch   = vm.db.NewBatch()
		loaded  int
		expired int
	)
	it := vm.db.NewIteratorWithPrefix(storage.TxPrefix())
	defer it.Release()
	for it.Next() {
		id, expiry, err := storage.ParseTx(it.Key(), it.Value())
		if err != nil {
			return err
		}
		if expiry < now {
			if err := batch.Delete(it.Key()); err != nil {
				return err
			}
			expired++
			continue
		}
		vm.executed.Add(&txRecord{id: id, expiry: expiry})
		loaded++
	}
	if err := it.Error(); err != nil {
		return err
	}
	if expired > 0 {
		if err := batch.Write(); err != nil {
			return err
		}
	}
	vm.log.Info("loaded executed txs",
		zap.Int("loaded", loaded),
		zap.Int("pruned", expired),
	)
	return nil
}

// ParseTx decodes a signed transaction.
func (vm *VM) ParseTx(b []byte) (*chain.Transaction, error) {
	return chain.ParseTx(b, registry.Action, registry.Auth)
}

// Submit executes [tx] and persists its effects. The returned error is set
// only when the VM could not read or write state; transaction failures are
// reported in the [chain.Result].
func (vm *VM) Submit(ctx context.Context, tx *chain.Transaction) (*chain.Result, error) {
	ctx, span := vm.tracer.Start(ctx, "VM.Submit")
	defer span.End()

	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.closed {
		return nil, ErrClosed
	}
	vm.metrics.txsSubmitted.Inc()
	now := vm.now()
	ts := tstate.New(len(tx.StateKeys()))
	result, err := vm.processor.Execute(ctx, ts, state.NewReader(vm.db), now, tx)
	if err != nil {
		return nil, err
	}
	if err := vm.commit(ts, now, []*chain.Transaction{tx}, []*chain.Result{result}); err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitBatch executes [txs] in parallel where they touch different
// accounts and in order where they share one. All successful transactions
// are persisted together.
func (vm *VM) SubmitBatch(ctx context.Context, txs []*chain.Transaction) ([]*chain.Result, error) {
	ctx, span := vm.tracer.Start(ctx, "VM.SubmitBatch")
	defer span.End()

	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.closed {
		return nil, ErrClosed
	}
	vm.metrics.batchesSubmitted.Inc()
	vm.metrics.txsSubmitted.Add(float64(len(txs)))
	now := vm.now()
	ts := tstate.New(len(txs) * 4)
	results, err := vm.processor.ExecuteBatch(ctx, ts, state.NewReader(vm.db), now, txs)
	if err != nil {
		return nil, err
	}
	if err := vm.commit(ts, now, txs, results); err != nil {
		return nil, err
	}
	return results, nil
}

// commit writes [ts] and removes tx records that expired before [now].
// Successful [txs] are tracked for pruning only once they are on disk. If the
// write fails, expired records stay on disk until the next start.
func (vm *VM) commit(ts *tstate.TState, now int64, txs []*chain.Transaction, results []*chain.Result) error {
	expired := vm.executed.SetMin(now)
	changes := ts.PendingChanges()
	if changes == 0 && len(expired) == 0 {
		return nil
	}
	start := time.Now()
	batch := vm.db.NewBatch()
	if err := ts.WriteChanges(batch); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	for _, id := range expired {
		if err := batch.Delete(storage.TxKey(id)); err != nil {
			return fmt.Errorf("failed to stage tx pruning: %w", err)
		}
	}
	if err := batch.Write(); err != nil {
		vm.log.Error("failed to commit changes", zap.Error(err))
		return fmt.Errorf("failed to commit changes: %w", err)
	}
	for i, r := range results {
		if r.Success {
			vm.executed.Add(&txRecord{id: txs[i].ID(), expiry: txs[i].Expiry()})
		}
	}
	vm.metrics.commit.Observe(float64(time.Since(start)))
	vm.metrics.keysCommitted.Add(float64(changes))
	vm.metrics.txsPruned.Add(float64(len(expired)))
	return nil
}

func (vm *VM) now() int64 {
	return vm.clock.Time().UnixMilli()
}

// GetCounter returns the counter stored at [slot] and the balance it holds.
func (vm *VM) GetCounter(ctx context.Context, slot codec.Address) (*actions.CounterAccount, uint64, error) {
	ctx, span := vm.tracer.Start(ctx, "VM.GetCounter")
	defer span.End()

	return actions.ReadCounter(ctx, state.NewReader(vm.db), vm.rules.GetProgramID(), slot)
}

func (vm *VM) GetBalance(ctx context.Context, addr codec.Address) (uint64, error) {
	ctx, span := vm.tracer.Start(ctx, "VM.GetBalance")
	defer span.End()

	return storage.GetBalance(ctx, state.NewReader(vm.db), addr)
}

func (vm *VM) Genesis() *genesis.Genesis { return vm.genesis }

func (vm *VM) ChainID() ids.ID { return vm.chainID }

func (vm *VM) Rules() chain.Rules { return vm.rules }

func (vm *VM) Tracer() trace.Tracer { return vm.tracer }

func (vm *VM) Logger() logging.Logger { return vm.log }

func (vm *VM) Registry() (chain.ActionRegistry, chain.AuthRegistry) {
	return registry.Action, registry.Auth
}

// Shutdown waits for in-flight submissions and closes the database.
func (vm *VM) Shutdown(context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.closed {
		return nil
	}
	vm.closed = true
	vm.log.Info("shutting down vm")
	return vm.db.Close()
}
