// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/genesis"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/registry"
	"github.com/ava-labs/countervm/storage"
	"github.com/ava-labs/countervm/utils"
)

const (
	testFee     = 10
	testBalance = 1_000
	// PerByte=1, Overhead=2
	testRent = actions.CounterAccountSize + 2
)

var testNow = time.UnixMilli(1_700_000_000_000)

type signer struct {
	factory *auth.ED25519Factory
	addr    codec.Address
}

func newSigner(t *testing.T) *signer {
	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	f := auth.NewED25519Factory(priv)
	return &signer{factory: f, addr: f.Address()}
}

func newSlot(t *testing.T) codec.Address {
	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	return auth.NewED25519Address(priv.PublicKey())
}

func testGenesis(funded ...*signer) *genesis.Genesis {
	g := genesis.Default()
	g.InteractionFee = testFee
	g.RentPerByte = 1
	g.AccountOverhead = 2
	for _, s := range funded {
		g.CustomAllocation = append(g.CustomAllocation, &genesis.CustomAllocation{
			Address: s.addr.String(),
			Balance: testBalance,
		})
	}
	return g
}

type testVM struct {
	*VM
	t     *testing.T
	clock *mockable.Clock
	nonce atomic.Uint64
}

func newTestVM(t *testing.T, db Database, g *genesis.Genesis) *testVM {
	clock := &mockable.Clock{}
	clock.Set(testNow)
	vm, err := New(
		context.Background(),
		logging.NoLog{},
		trace.Noop,
		prometheus.NewRegistry(),
		db,
		g,
		WithClock(clock),
		WithParallelism(4),
	)
	require.NoError(t, err)
	return &testVM{VM: vm, t: t, clock: clock}
}

func (v *testVM) tx(s *signer, action chain.Action) *chain.Transaction {
	base := &chain.Base{
		Timestamp: utils.UnixRMilli(v.clock.Time().UnixMilli(), v.Rules().GetValidityWindow()),
		ChainID:   v.ChainID(),
		Nonce:     v.nonce.Inc(),
	}
	tx, err := chain.NewTx(base, action).Sign(s.factory, registry.Action, registry.Auth)
	require.NoError(v.t, err)
	return tx
}

func (v *testVM) submit(s *signer, action chain.Action) *chain.Result {
	r, err := v.Submit(context.Background(), v.tx(s, action))
	require.NoError(v.t, err)
	return r
}

func (v *testVM) balance(addr codec.Address) uint64 {
	bal, err := v.GetBalance(context.Background(), addr)
	require.NoError(v.t, err)
	return bal
}

func TestGenesisAllocations(t *testing.T) {
	require := require.New(t)
	alice, bob := newSigner(t), newSigner(t)
	db := memdb.New()
	g := testGenesis(alice, bob)

	vm := newTestVM(t, db, g)
	require.Equal(uint64(testBalance), vm.balance(alice.addr))
	require.Equal(uint64(testBalance), vm.balance(bob.addr))
	require.Zero(vm.balance(newSlot(t)))

	// Restarting over the same database does not allocate twice.
	vm = newTestVM(t, db, g)
	require.Equal(uint64(testBalance), vm.balance(alice.addr))

	// A different genesis is refused.
	other := testGenesis(alice)
	_, err := New(context.Background(), logging.NoLog{}, trace.Noop, prometheus.NewRegistry(), db, other)
	require.ErrorIs(err, ErrGenesisMismatch)
}

func TestChainIDFromGenesis(t *testing.T) {
	require := require.New(t)
	alice := newSigner(t)

	a := newTestVM(t, memdb.New(), testGenesis(alice))
	b := newTestVM(t, memdb.New(), testGenesis(alice))
	require.Equal(a.ChainID(), b.ChainID())

	g := testGenesis(alice)
	g.InteractionFee++
	c := newTestVM(t, memdb.New(), g)
	require.NotEqual(a.ChainID(), c.ChainID())

	// Transactions for another chain are rejected.
	r, err := c.Submit(context.Background(), a.tx(alice, &actions.Increment{Counter: newSlot(t)}))
	require.NoError(err)
	require.ErrorIs(r.Err(), chain.ErrInvalidChainID)
}

func TestInvalidOptions(t *testing.T) {
	_, err := New(
		context.Background(),
		logging.NoLog{},
		trace.Noop,
		prometheus.NewRegistry(),
		memdb.New(),
		genesis.Default(),
		WithParallelism(0),
	)
	require.ErrorIs(t, err, ErrInvalidParallelism)
}

func TestLifecycle(t *testing.T) {
	require := require.New(t)
	owner, other := newSigner(t), newSigner(t)
	vm := newTestVM(t, memdb.New(), testGenesis(owner, other))
	slot := newSlot(t)

	r := vm.submit(owner, &actions.Initialize{Counter: slot, StartValue: 1, InitialFunding: 100})
	require.True(r.Success, r.Error)
	require.Equal(uint64(testBalance-100-testRent), vm.balance(owner.addr))

	r = vm.submit(other, &actions.Increment{Counter: slot})
	require.True(r.Success, r.Error)
	require.Equal(int64(2), r.Output.(*actions.CountResult).Count)

	// Finalize checks the count before the owner.
	r = vm.submit(other, &actions.Finalize{Counter: slot})
	require.ErrorIs(r.Err(), actions.ErrCountNotHighEnough)

	r = vm.submit(other, &actions.Increment{Counter: slot})
	require.True(r.Success, r.Error)

	r = vm.submit(other, &actions.Finalize{Counter: slot})
	require.ErrorIs(r.Err(), actions.ErrNotOwner)

	c, bal, err := vm.GetCounter(context.Background(), slot)
	require.NoError(err)
	require.Equal(int64(3), c.Count)
	require.Equal(owner.addr, c.Owner)
	require.Equal(uint64(100+testRent+2*testFee), bal)
	require.Equal(uint64(testBalance-2*testFee), vm.balance(other.addr))

	r = vm.submit(owner, &actions.Finalize{Counter: slot})
	require.True(r.Success, r.Error)
	out := r.Output.(*actions.FinalizeResult)
	require.Equal(uint64(100+testRent+2*testFee), out.Residual)
	require.Equal(uint64(testBalance+2*testFee), vm.balance(owner.addr))

	_, _, err = vm.GetCounter(context.Background(), slot)
	require.ErrorIs(err, ledger.ErrAccountNotFound)

	r = vm.submit(other, &actions.Increment{Counter: slot})
	require.ErrorIs(r.Err(), ledger.ErrAccountNotFound)
}

func TestFailedTxNotPersisted(t *testing.T) {
	require := require.New(t)
	owner, poor := newSigner(t), newSigner(t)
	g := testGenesis(owner)
	g.CustomAllocation = append(g.CustomAllocation, &genesis.CustomAllocation{
		Address: poor.addr.String(),
		Balance: testFee - 1,
	})
	vm := newTestVM(t, memdb.New(), g)
	slot := newSlot(t)

	require.True(vm.submit(owner, &actions.Initialize{Counter: slot}).Success)

	r := vm.submit(poor, &actions.Decrement{Counter: slot})
	require.ErrorIs(r.Err(), ledger.ErrInsufficientFunds)
	c, _, err := vm.GetCounter(context.Background(), slot)
	require.NoError(err)
	require.Zero(c.Count)
	require.Equal(uint64(testFee-1), vm.balance(poor.addr))
}

func TestDuplicateAndExpiry(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	vm := newTestVM(t, memdb.New(), testGenesis(owner))
	slot := newSlot(t)

	tx := vm.tx(owner, &actions.Initialize{Counter: slot})
	r, err := vm.Submit(context.Background(), tx)
	require.NoError(err)
	require.True(r.Success)

	r, err = vm.Submit(context.Background(), tx)
	require.NoError(err)
	require.ErrorIs(r.Err(), chain.ErrDuplicateTx)

	stale := vm.tx(owner, &actions.Increment{Counter: slot})
	vm.clock.Set(testNow.Add(2 * time.Minute))
	r, err = vm.Submit(context.Background(), stale)
	require.NoError(err)
	require.ErrorIs(r.Err(), chain.ErrTimestampTooLate)
}

func TestReplayAfterRestart(t *testing.T) {
	require := require.New(t)
	owner, other := newSigner(t), newSigner(t)
	db := memdb.New()
	g := testGenesis(owner, other)
	vm := newTestVM(t, db, g)
	slot := newSlot(t)

	require.True(vm.submit(owner, &actions.Initialize{Counter: slot}).Success)
	inc := vm.tx(other, &actions.Increment{Counter: slot})
	r, err := vm.Submit(context.Background(), inc)
	require.NoError(err)
	require.True(r.Success, r.Error)

	restarted := newTestVM(t, db, g)
	tx, err := restarted.ParseTx(inc.Bytes())
	require.NoError(err)
	r, err = restarted.Submit(context.Background(), tx)
	require.NoError(err)
	require.ErrorIs(r.Err(), chain.ErrDuplicateTx)

	c, _, err := restarted.GetCounter(context.Background(), slot)
	require.NoError(err)
	require.Equal(int64(1), c.Count)
	require.Equal(uint64(testBalance-testFee), restarted.balance(other.addr))

	results, err := restarted.SubmitBatch(context.Background(), []*chain.Transaction{tx})
	require.NoError(err)
	require.ErrorIs(results[0].Err(), chain.ErrDuplicateTx)
}

func TestExecutedTxPruning(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	db := memdb.New()
	g := testGenesis(owner)
	vm := newTestVM(t, db, g)

	first := vm.tx(owner, &actions.Initialize{Counter: newSlot(t)})
	r, err := vm.Submit(context.Background(), first)
	require.NoError(err)
	require.True(r.Success, r.Error)
	has, err := db.Has(storage.TxKey(first.ID()))
	require.NoError(err)
	require.True(has)

	// The next commit past the expiry removes the record
	vm.clock.Set(testNow.Add(2 * time.Minute))
	second := vm.tx(owner, &actions.Initialize{Counter: newSlot(t)})
	r, err = vm.Submit(context.Background(), second)
	require.NoError(err)
	require.True(r.Success, r.Error)
	has, err = db.Has(storage.TxKey(first.ID()))
	require.NoError(err)
	require.False(has)

	// Records that expire while the node is down are removed on start
	clock := &mockable.Clock{}
	clock.Set(testNow.Add(4 * time.Minute))
	_, err = New(
		context.Background(),
		logging.NoLog{},
		trace.Noop,
		prometheus.NewRegistry(),
		db,
		g,
		WithClock(clock),
	)
	require.NoError(err)
	has, err = db.Has(storage.TxKey(second.ID()))
	require.NoError(err)
	require.False(has)
}

var errWriteFailed = errors.New("write failed")

type flakyDB struct {
	*memdb.Database
	fail bool
}

func (d *flakyDB) NewBatch() database.Batch {
	return &flakyBatch{Batch: d.Database.NewBatch(), db: d}
}

type flakyBatch struct {
	database.Batch
	db *flakyDB
}

func (b *flakyBatch) Write() error {
	if b.db.fail {
		return errWriteFailed
	}
	return b.Batch.Write()
}

func TestFailedCommitCanRetry(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	db := &flakyDB{Database: memdb.New()}
	vm := newTestVM(t, db, testGenesis(owner))
	slot := newSlot(t)

	tx := vm.tx(owner, &actions.Initialize{Counter: slot})
	db.fail = true
	_, err := vm.Submit(context.Background(), tx)
	require.ErrorIs(err, errWriteFailed)
	_, _, err = vm.GetCounter(context.Background(), slot)
	require.ErrorIs(err, ledger.ErrAccountNotFound)

	db.fail = false
	r, err := vm.Submit(context.Background(), tx)
	require.NoError(err)
	require.True(r.Success, r.Error)
	_, _, err = vm.GetCounter(context.Background(), slot)
	require.NoError(err)
}

func TestConcurrentSubmit(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	callers := []*signer{newSigner(t), newSigner(t), newSigner(t)}
	vm := newTestVM(t, memdb.New(), testGenesis(append(callers, owner)...))
	slot := newSlot(t)

	require.True(vm.submit(owner, &actions.Initialize{Counter: slot}).Success)

	const perCaller = 10
	var g errgroup.Group
	for _, s := range callers {
		s := s
		g.Go(func() error {
			for i := 0; i < perCaller; i++ {
				r, err := vm.Submit(context.Background(), vm.tx(s, &actions.Increment{Counter: slot}))
				if err != nil {
					return err
				}
				if err := r.Err(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(g.Wait())

	c, bal, err := vm.GetCounter(context.Background(), slot)
	require.NoError(err)
	require.Equal(int64(len(callers)*perCaller), c.Count)
	require.Equal(uint64(testRent+len(callers)*perCaller*testFee), bal)
	for _, s := range callers {
		require.Equal(uint64(testBalance-perCaller*testFee), vm.balance(s.addr))
	}
}

func TestSubmitBatch(t *testing.T) {
	require := require.New(t)
	owner, a, b := newSigner(t), newSigner(t), newSigner(t)
	vm := newTestVM(t, memdb.New(), testGenesis(owner, a, b))
	first, second := newSlot(t), newSlot(t)

	results, err := vm.SubmitBatch(context.Background(), []*chain.Transaction{
		vm.tx(owner, &actions.Initialize{Counter: first, StartValue: 2}),
		vm.tx(owner, &actions.Initialize{Counter: second}),
		vm.tx(a, &actions.Increment{Counter: first}),
		vm.tx(b, &actions.Decrement{Counter: second}),
		vm.tx(owner, &actions.Finalize{Counter: first}),
		vm.tx(a, &actions.Increment{Counter: first}),
	})
	require.NoError(err)
	require.Len(results, 6)
	for i, r := range results[:5] {
		require.True(r.Success, "tx %d: %s", i, r.Error)
	}
	// The counter was finalized earlier in the batch.
	require.ErrorIs(results[5].Err(), ledger.ErrAccountNotFound)

	_, _, err = vm.GetCounter(context.Background(), first)
	require.ErrorIs(err, ledger.ErrAccountNotFound)
	c, _, err := vm.GetCounter(context.Background(), second)
	require.NoError(err)
	require.Equal(int64(-1), c.Count)
	require.Equal(uint64(testBalance-testFee), vm.balance(a.addr))
}

func TestShutdown(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	vm := newTestVM(t, memdb.New(), testGenesis(owner))

	require.NoError(vm.Shutdown(context.Background()))
	require.NoError(vm.Shutdown(context.Background()))
	_, err := vm.Submit(context.Background(), vm.tx(owner, &actions.Increment{Counter: newSlot(t)}))
	require.ErrorIs(err, ErrClosed)
}
