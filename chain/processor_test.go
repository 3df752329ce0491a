// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain_test

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/crypto"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/registry"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
	"github.com/ava-labs/countervm/tstate"
)

var counterSlot = codec.Address{0xc0}

func TestProcessorLifecycle(t *testing.T) {
	require := require.New(t)
	owner, alice, bob, carol := newSigner(t), newSigner(t), newSigner(t), newSigner(t)
	c := newTestChain(t, owner, alice, bob, carol)

	r := c.execute(c.tx(owner, &actions.Initialize{Counter: counterSlot}))
	require.True(r.Success, r.Error)
	rent := uint64(actions.CounterAccountSize)
	require.Equal(&actions.InitializeResult{Owner: owner.addr, Balance: rent}, r.Output)

	for _, s := range []*signer{alice, bob, carol} {
		r := c.execute(c.tx(s, &actions.Increment{Counter: counterSlot}))
		require.True(r.Success, r.Error)
	}
	acct, bal, err := c.counter(counterSlot)
	require.NoError(err)
	require.Equal(int64(3), acct.Count)
	require.Equal(rent+3*testFee, bal)

	before := c.balance(owner.addr)
	r = c.execute(c.tx(owner, &actions.Finalize{Counter: counterSlot}))
	require.True(r.Success, r.Error)
	require.Equal(before+rent+3*testFee, c.balance(owner.addr))
	_, _, err = c.counter(counterSlot)
	require.ErrorIs(err, ledger.ErrAccountNotFound)
}

func TestProcessorRollback(t *testing.T) {
	require := require.New(t)
	owner, alice := newSigner(t), newSigner(t)
	c := newTestChain(t, owner, alice)

	r := c.execute(c.tx(owner, &actions.Initialize{Counter: counterSlot, StartValue: 2}))
	require.True(r.Success, r.Error)
	balance := c.balance(owner.addr)

	ts := tstate.New(8)
	r, err := c.p.Execute(context.Background(), ts, state.NewReader(c.db), testNow, c.tx(owner, &actions.Finalize{Counter: counterSlot}))
	require.NoError(err)
	require.False(r.Success)
	require.ErrorIs(r.Err(), actions.ErrCountNotHighEnough)
	require.Equal(actions.ErrCountNotHighEnough.Error()+": count=2", r.Error)
	require.Zero(ts.PendingChanges())

	r = c.execute(c.tx(alice, &actions.Increment{Counter: counterSlot}))
	require.True(r.Success, r.Error)
	r = c.execute(c.tx(alice, &actions.Finalize{Counter: counterSlot}))
	require.ErrorIs(r.Err(), actions.ErrNotOwner)

	acct, _, err := c.counter(counterSlot)
	require.NoError(err)
	require.Equal(int64(3), acct.Count)
	require.Equal(balance, c.balance(owner.addr))
}

func TestProcessorInsufficientFunds(t *testing.T) {
	require := require.New(t)
	owner, broke := newSigner(t), newSigner(t)
	c := newTestChain(t, owner)

	r := c.execute(c.tx(owner, &actions.Initialize{Counter: counterSlot}))
	require.True(r.Success, r.Error)

	r = c.execute(c.tx(broke, &actions.Increment{Counter: counterSlot}))
	require.False(r.Success)
	require.ErrorIs(r.Err(), ledger.ErrInsufficientFunds)
	acct, _, err := c.counter(counterSlot)
	require.NoError(err)
	require.Zero(acct.Count)
}

func TestProcessorRejects(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	c := newTestChain(t, owner)

	tx := c.tx(owner, &actions.Initialize{Counter: counterSlot})
	r := c.execute(tx)
	require.True(r.Success, r.Error)

	// Replaying the same bytes is rejected
	r = c.execute(tx)
	require.ErrorIs(r.Err(), chain.ErrDuplicateTx)

	tests := []struct {
		name string
		base *chain.Base
		err  error
	}{
		{
			name: "chain id",
			base: &chain.Base{Timestamp: testNow, ChainID: ids.ID{9}},
			err:  chain.ErrInvalidChainID,
		},
		{
			name: "expired",
			base: &chain.Base{Timestamp: testNow - 1_000, ChainID: testChainID},
			err:  chain.ErrTimestampTooLate,
		},
		{
			name: "too far ahead",
			base: &chain.Base{Timestamp: testNow + testWindow + 1_000, ChainID: testChainID},
			err:  chain.ErrTimestampTooEarly,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := chain.NewTx(tt.base, &actions.Increment{Counter: counterSlot}).Sign(owner.factory, registry.Action, registry.Auth)
			require.NoError(err)
			r := c.execute(tx)
			require.False(r.Success)
			require.ErrorIs(r.Err(), tt.err)
		})
	}

	// Bad signature
	forged := chain.NewTx(tx.Base, &actions.Increment{Counter: counterSlot})
	forged.Auth = tx.Auth
	r = c.execute(forged)
	require.ErrorIs(r.Err(), crypto.ErrInvalidSignature)

	acct, _, err := c.counter(counterSlot)
	require.NoError(err)
	require.Zero(acct.Count)
}

func TestProcessorDuplicateExpires(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	c := newTestChain(t, owner)

	tx := c.tx(owner, &actions.Initialize{Counter: counterSlot})
	r := c.execute(tx)
	require.True(r.Success, r.Error)

	// Once the expiry passes the tx is evicted but also no longer valid
	ts := tstate.New(8)
	r, err := c.p.Execute(context.Background(), ts, state.NewReader(c.db), testNow+testWindow+1_000, tx)
	require.NoError(err)
	require.ErrorIs(r.Err(), chain.ErrTimestampTooLate)
}

func TestProcessorBatchSameCounter(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	callers := make([]*signer, 8)
	for i := range callers {
		callers[i] = newSigner(t)
	}
	c := newTestChain(t, append(callers, owner)...)

	r := c.execute(c.tx(owner, &actions.Initialize{Counter: counterSlot, StartValue: 100}))
	require.True(r.Success, r.Error)

	var (
		txs      []*chain.Transaction
		expected = int64(100)
	)
	for i := 0; i < 40; i++ {
		s := callers[i%len(callers)]
		if i%3 == 0 {
			txs = append(txs, c.tx(s, &actions.Decrement{Counter: counterSlot}))
			expected--
			continue
		}
		txs = append(txs, c.tx(s, &actions.Increment{Counter: counterSlot}))
		expected++
	}

	ts := tstate.New(len(txs) * 4)
	results, err := c.p.ExecuteBatch(context.Background(), ts, state.NewReader(c.db), testNow, txs)
	require.NoError(err)
	require.Len(results, len(txs))

	// Same-counter txs run in submission order
	running := int64(100)
	for i, r := range results {
		require.True(r.Success, r.Error)
		require.Equal(txs[i].ID(), r.TxID)
		if i%3 == 0 {
			running--
		} else {
			running++
		}
		require.Equal(running, r.Output.(*actions.CountResult).Count)
	}
	c.commit(ts)

	acct, bal, err := c.counter(counterSlot)
	require.NoError(err)
	require.Equal(expected, acct.Count)
	require.Equal(uint64(actions.CounterAccountSize)+uint64(len(txs))*testFee, bal)
}

func TestProcessorBatchIndependentCounters(t *testing.T) {
	require := require.New(t)
	owners := make([]*signer, 6)
	for i := range owners {
		owners[i] = newSigner(t)
	}
	c := newTestChain(t, owners...)

	var txs []*chain.Transaction
	for i, s := range owners {
		txs = append(txs, c.tx(s, &actions.Initialize{Counter: codec.Address{0xd0, byte(i)}, StartValue: int64(i)}))
	}
	for i, s := range owners {
		txs = append(txs, c.tx(s, &actions.Increment{Counter: codec.Address{0xd0, byte(i)}}))
	}
	// Finalize fails for every counter below 3 without affecting the rest
	for i, s := range owners {
		txs = append(txs, c.tx(s, &actions.Finalize{Counter: codec.Address{0xd0, byte(i)}}))
	}

	ts := tstate.New(len(txs) * 4)
	results, err := c.p.ExecuteBatch(context.Background(), ts, state.NewReader(c.db), testNow, txs)
	require.NoError(err)
	c.commit(ts)

	for i := range owners {
		fin := results[2*len(owners)+i]
		_, _, err := c.counter(codec.Address{0xd0, byte(i)})
		if i+1 >= 3 {
			require.True(fin.Success, fin.Error)
			require.ErrorIs(err, ledger.ErrAccountNotFound)
			continue
		}
		require.ErrorIs(fin.Err(), actions.ErrCountNotHighEnough)
		require.NoError(err)
	}
}

func TestProcessorRecordsExecutedTx(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	c := newTestChain(t, owner)

	r := c.execute(c.tx(owner, &actions.Initialize{Counter: counterSlot, StartValue: 2}))
	require.True(r.Success, r.Error)

	// Failures leave no record so the same tx can be retried
	finalize := c.tx(owner, &actions.Finalize{Counter: counterSlot})
	r = c.execute(finalize)
	require.ErrorIs(r.Err(), actions.ErrCountNotHighEnough)
	executed, err := storage.HasTx(context.Background(), state.NewReader(c.db), finalize.ID())
	require.NoError(err)
	require.False(executed)

	r = c.execute(c.tx(owner, &actions.Increment{Counter: counterSlot}))
	require.True(r.Success, r.Error)
	r = c.execute(finalize)
	require.True(r.Success, r.Error)

	v, err := c.db.Get(storage.TxKey(finalize.ID()))
	require.NoError(err)
	id, expiry, err := storage.ParseTx(storage.TxKey(finalize.ID()), v)
	require.NoError(err)
	require.Equal(finalize.ID(), id)
	require.Equal(finalize.Expiry(), expiry)
}

func TestProcessorDuplicateAcrossProcessors(t *testing.T) {
	require := require.New(t)
	owner := newSigner(t)
	c := newTestChain(t, owner)

	tx := c.tx(owner, &actions.Initialize{Counter: counterSlot})
	r := c.execute(tx)
	require.True(r.Success, r.Error)

	// A fresh processor over the same database still sees the tx
	metrics, err := chain.NewMetrics(prometheus.NewRegistry())
	require.NoError(err)
	c.p = chain.NewProcessor(logging.NoLog{}, trace.Noop, metrics, &testRules{}, 4)
	r = c.execute(tx)
	require.ErrorIs(r.Err(), chain.ErrDuplicateTx)
}

func TestProcessorBatchDuplicate(t *testing.T) {
	require := require.New(t)
	owner, alice := newSigner(t), newSigner(t)
	c := newTestChain(t, owner, alice)

	r := c.execute(c.tx(owner, &actions.Initialize{Counter: counterSlot}))
	require.True(r.Success, r.Error)

	inc := c.tx(alice, &actions.Increment{Counter: counterSlot})
	txs := []*chain.Transaction{inc, inc}
	ts := tstate.New(8)
	results, err := c.p.ExecuteBatch(context.Background(), ts, state.NewReader(c.db), testNow, txs)
	require.NoError(err)
	require.True(results[0].Success, results[0].Error)
	require.ErrorIs(results[1].Err(), chain.ErrDuplicateTx)
	c.commit(ts)

	acct, _, err := c.counter(counterSlot)
	require.NoError(err)
	require.Equal(int64(1), acct.Count)
	require.Equal(uint64(testBalance-testFee), c.balance(alice.addr))
}
