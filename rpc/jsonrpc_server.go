// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"go.uber.org/zap"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/genesis"
	"github.com/ava-labs/countervm/ledger"
)

// MaxBatchSize bounds the number of txs accepted by a single submitTxs call.
const MaxBatchSize = 256

type JSONRPCServer struct {
	vm VM
}

func NewJSONRPCServer(vm VM) *JSONRPCServer {
	return &JSONRPCServer{vm}
}

type PingReply struct {
	Success bool `json:"success"`
}

func (j *JSONRPCServer) Ping(_ *http.Request, _ *struct{}, reply *PingReply) (err error) {
	j.vm.Logger().Info("ping")
	reply.Success = true
	return nil
}

type GenesisReply struct {
	Genesis *genesis.Genesis `json:"genesis"`
	ChainID ids.ID           `json:"chainId"`
}

func (j *JSONRPCServer) Genesis(_ *http.Request, _ *struct{}, reply *GenesisReply) (err error) {
	reply.Genesis = j.vm.Genesis()
	reply.ChainID = j.vm.ChainID()
	return nil
}

type SubmitTxArgs struct {
	Tx []byte `json:"tx"`
}

type SubmitTxReply struct {
	TxID       ids.ID          `json:"txId"`
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	OutputType uint8           `json:"outputType"`
	Output     json.RawMessage `json:"output,omitempty"`
}

func newSubmitTxReply(r *chain.Result, reply *SubmitTxReply) error {
	reply.TxID = r.TxID
	reply.Success = r.Success
	reply.Error = r.Error
	if r.Output == nil {
		return nil
	}
	b, err := json.Marshal(r.Output)
	if err != nil {
		return err
	}
	reply.OutputType = r.Output.GetTypeID()
	reply.Output = b
	return nil
}

// SubmitTx executes a signed tx. A tx that fails execution is not an RPC
// error: the failure is reported in the reply.
func (j *JSONRPCServer) SubmitTx(
	req *http.Request,
	args *SubmitTxArgs,
	reply *SubmitTxReply,
) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "JSONRPCServer.SubmitTx")
	defer span.End()

	tx, err := j.vm.ParseTx(args.Tx)
	if err != nil {
		return err
	}
	r, err := j.vm.Submit(ctx, tx)
	if err != nil {
		j.vm.Logger().Warn("failed to submit tx",
			zap.Stringer("txID", tx.ID()),
			zap.Error(err),
		)
		return err
	}
	return newSubmitTxReply(r, reply)
}

type SubmitTxsArgs struct {
	Txs [][]byte `json:"txs"`
}

type SubmitTxsReply struct {
	Results []*SubmitTxReply `json:"results"`
}

// SubmitTxs executes a batch of signed txs. Txs on different counters run
// in parallel; the reply preserves the submitted order.
func (j *JSONRPCServer) SubmitTxs(
	req *http.Request,
	args *SubmitTxsArgs,
	reply *SubmitTxsReply,
) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "JSONRPCServer.SubmitTxs")
	defer span.End()

	switch {
	case len(args.Txs) == 0:
		return ErrEmptyBatch
	case len(args.Txs) > MaxBatchSize:
		return ErrBatchTooLarge
	}
	txs := make([]*chain.Transaction, len(args.Txs))
	for i, b := range args.Txs {
		tx, err := j.vm.ParseTx(b)
		if err != nil {
			return err
		}
		txs[i] = tx
	}
	results, err := j.vm.SubmitBatch(ctx, txs)
	if err != nil {
		return err
	}
	reply.Results = make([]*SubmitTxReply, len(results))
	for i, r := range results {
		reply.Results[i] = &SubmitTxReply{}
		if err := newSubmitTxReply(r, reply.Results[i]); err != nil {
			return err
		}
	}
	return nil
}

type AddressArgs struct {
	Address codec.Address `json:"address"`
}

type CounterReply struct {
	Exists  bool          `json:"exists"`
	Count   int64         `json:"count"`
	Owner   codec.Address `json:"owner"`
	Balance uint64        `json:"balance"`
}

func (j *JSONRPCServer) Counter(req *http.Request, args *AddressArgs, reply *CounterReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "JSONRPCServer.Counter")
	defer span.End()

	c, bal, err := j.vm.GetCounter(ctx, args.Address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	reply.Exists = true
	reply.Count = c.Count
	reply.Owner = c.Owner
	reply.Balance = bal
	return nil
}

type BalanceReply struct {
	Amount uint64 `json:"amount"`
}

func (j *JSONRPCServer) Balance(req *http.Request, args *AddressArgs, reply *BalanceReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "JSONRPCServer.Balance")
	defer span.End()

	balance, err := j.vm.GetBalance(ctx, args.Address)
	if err != nil {
		return err
	}
	reply.Amount = balance
	return nil
}
