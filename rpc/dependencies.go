// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/genesis"
)

type VM interface {
	Genesis() *genesis.Genesis
	ChainID() ids.ID
	Tracer() trace.Tracer
	Logger() logging.Logger
	ParseTx(b []byte) (*chain.Transaction, error)
	Submit(ctx context.Context, tx *chain.Transaction) (*chain.Result, error)
	SubmitBatch(ctx context.Context, txs []*chain.Transaction) ([]*chain.Result, error)
	GetCounter(ctx context.Context, slot codec.Address) (*actions.CounterAccount, uint64, error)
	GetBalance(ctx context.Context, addr codec.Address) (uint64, error)
}
