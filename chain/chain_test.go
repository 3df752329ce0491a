// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/registry"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
	"github.com/ava-labs/countervm/tstate"
)

const (
	testFee     = 5
	testBalance = 10_000
	testNow     = int64(1_000_000)
	testWindow  = int64(60_000)
)

var (
	testChainID = ids.ID{1, 2, 3}
	program     = codec.Address{0xff}

	_ chain.Rules = (*testRules)(nil)
)

type testRules struct{}

func (*testRules) GetChainID() ids.ID          { return testChainID }
func (*testRules) GetProgramID() codec.Address { return program }
func (*testRules) GetValidityWindow() int64    { return testWindow }
func (*testRules) GetInteractionFee() uint64   { return testFee }
func (*testRules) GetRentSchedule() ledger.RentSchedule {
	return ledger.RentSchedule{PerByte: 1}
}

type signer struct {
	priv    ed25519.PrivateKey
	factory *auth.ED25519Factory
	addr    codec.Address
}

func newSigner(t *testing.T) *signer {
	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	f := auth.NewED25519Factory(priv)
	return &signer{priv: priv, factory: f, addr: f.Address()}
}

type testChain struct {
	t  *testing.T
	db *memdb.Database
	p  *chain.Processor

	nonce uint64
}

func newTestChain(t *testing.T, funded ...*signer) *testChain {
	require := require.New(t)
	metrics, err := chain.NewMetrics(prometheus.NewRegistry())
	require.NoError(err)

	db := memdb.New()
	for _, s := range funded {
		require.NoError(db.Put(storage.BalanceKey(s.addr), binary.BigEndian.AppendUint64(nil, testBalance)))
	}
	return &testChain{
		t:  t,
		db: db,
		p:  chain.NewProcessor(logging.NoLog{}, trace.Noop, metrics, &testRules{}, 4),
	}
}

func (c *testChain) tx(s *signer, action chain.Action) *chain.Transaction {
	c.nonce++
	base := &chain.Base{
		Timestamp: testNow + testWindow,
		ChainID:   testChainID,
		Nonce:     c.nonce,
	}
	tx, err := chain.NewTx(base, action).Sign(s.factory, registry.Action, registry.Auth)
	require.NoError(c.t, err)
	return tx
}

// commit writes [ts] to the database.
func (c *testChain) commit(ts *tstate.TState) {
	require.NoError(c.t, ts.WriteChanges(c.db))
}

func (c *testChain) execute(tx *chain.Transaction) *chain.Result {
	ts := tstate.New(8)
	r, err := c.p.Execute(context.Background(), ts, state.NewReader(c.db), testNow, tx)
	require.NoError(c.t, err)
	c.commit(ts)
	return r
}

func (c *testChain) counter(slot codec.Address) (*actions.CounterAccount, uint64, error) {
	return actions.ReadCounter(context.Background(), state.NewReader(c.db), program, slot)
}

func (c *testChain) balance(addr codec.Address) uint64 {
	bal, err := storage.GetBalance(context.Background(), state.NewReader(c.db), addr)
	require.NoError(c.t, err)
	return bal
}
