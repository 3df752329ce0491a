// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package emap

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"
)

type testTx struct {
	id ids.ID
	t  int64
}

func (tx *testTx) ID() ids.ID    { return tx.id }
func (tx *testTx) Expiry() int64 { return tx.t }

func TestEmapAddDuplicate(t *testing.T) {
	require := require.New(t)
	e := New[*testTx]()
	tx := &testTx{id: ids.GenerateTestID(), t: 1_000}

	require.True(e.Add(tx))
	require.False(e.Add(tx))
	require.True(e.Has(tx.id))
	require.Equal(1, e.Len())
}

func TestEmapSetMin(t *testing.T) {
	require := require.New(t)
	e := New[*testTx]()

	txs := []*testTx{
		{id: ids.GenerateTestID(), t: 1_000},
		{id: ids.GenerateTestID(), t: 1_500},
		{id: ids.GenerateTestID(), t: 3_000},
	}
	for _, tx := range txs {
		require.True(e.Add(tx))
	}
	require.True(e.Any(txs))

	// 1_000 and 1_500 share a bucket
	evicted := e.SetMin(2_000)
	require.ElementsMatch([]ids.ID{txs[0].id, txs[1].id}, evicted)
	require.False(e.Has(txs[0].id))
	require.False(e.Has(txs[1].id))
	require.True(e.Has(txs[2].id))
	require.Equal(1, e.Len())

	// Evicted items can be added again
	require.True(e.Add(txs[0]))

	require.Len(e.SetMin(10_000), 2)
	require.False(e.Any(txs))
	require.Zero(e.Len())
}

func TestEmapSetMinEmpty(t *testing.T) {
	require := require.New(t)
	e := New[*testTx]()
	require.Empty(e.SetMin(5_000))
}
