// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/genesis"
	"github.com/ava-labs/countervm/registry"
	"github.com/ava-labs/countervm/utils"
)

type JSONRPCClient struct {
	requester rpc.EndpointRequester

	l       sync.Mutex
	genesis *genesis.Genesis
	chainID ids.ID
}

func NewJSONRPCClient(uri string) *JSONRPCClient {
	uri = strings.TrimSuffix(uri, "/")
	uri += JSONRPCEndpoint
	return &JSONRPCClient{requester: rpc.NewEndpointRequester(uri)}
}

func (cli *JSONRPCClient) Ping(ctx context.Context) (bool, error) {
	resp := new(PingReply)
	err := cli.requester.SendRequest(ctx,
		Name+".ping",
		nil,
		resp,
	)
	return resp.Success, err
}

// Genesis is fetched once and cached.
func (cli *JSONRPCClient) Genesis(ctx context.Context) (*genesis.Genesis, ids.ID, error) {
	cli.l.Lock()
	defer cli.l.Unlock()

	if cli.genesis != nil {
		return cli.genesis, cli.chainID, nil
	}
	resp := new(GenesisReply)
	if err := cli.requester.SendRequest(
		ctx,
		Name+".genesis",
		nil,
		resp,
	); err != nil {
		return nil, ids.Empty, err
	}
	cli.genesis = resp.Genesis
	cli.chainID = resp.ChainID
	return resp.Genesis, resp.ChainID, nil
}

func (cli *JSONRPCClient) SubmitTx(ctx context.Context, tx []byte) (*SubmitTxReply, error) {
	resp := new(SubmitTxReply)
	err := cli.requester.SendRequest(
		ctx,
		Name+".submitTx",
		&SubmitTxArgs{Tx: tx},
		resp,
	)
	return resp, err
}

func (cli *JSONRPCClient) SubmitTxs(ctx context.Context, txs [][]byte) ([]*SubmitTxReply, error) {
	resp := new(SubmitTxsReply)
	err := cli.requester.SendRequest(
		ctx,
		Name+".submitTxs",
		&SubmitTxsArgs{Txs: txs},
		resp,
	)
	return resp.Results, err
}

func (cli *JSONRPCClient) Counter(ctx context.Context, addr codec.Address) (*CounterReply, error) {
	resp := new(CounterReply)
	err := cli.requester.SendRequest(
		ctx,
		Name+".counter",
		&AddressArgs{Address: addr},
		resp,
	)
	return resp, err
}

func (cli *JSONRPCClient) Balance(ctx context.Context, addr codec.Address) (uint64, error) {
	resp := new(BalanceReply)
	err := cli.requester.SendRequest(
		ctx,
		Name+".balance",
		&AddressArgs{Address: addr},
		resp,
	)
	return resp.Amount, err
}

// GenerateTransaction signs [action] with [authFactory] for the chain the
// client is connected to. The tx expires after the chain's validity window.
func (cli *JSONRPCClient) GenerateTransaction(
	ctx context.Context,
	action chain.Action,
	authFactory chain.AuthFactory,
) (*chain.Transaction, error) {
	g, chainID, err := cli.Genesis(ctx)
	if err != nil {
		return nil, err
	}

	// Not safe to call [rand] concurrently, so we create our own instance
	// for this transaction
	r := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	base := &chain.Base{
		Timestamp: utils.UnixRMilli(-1, g.ValidityWindow),
		ChainID:   chainID,
		Nonce:     r.Uint64(),
	}
	tx, err := chain.NewTx(base, action).Sign(authFactory, registry.Action, registry.Auth)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign transaction", err)
	}
	return tx, nil
}

// ParseOutput decodes the typed output of a successful tx.
func ParseOutput(reply *SubmitTxReply) (codec.Typed, error) {
	var out codec.Typed
	switch reply.OutputType {
	case consts.InitializeID:
		out = &actions.InitializeResult{}
	case consts.IncrementID:
		out = &actions.CountResult{}
	case consts.FinalizeID:
		out = &actions.FinalizeResult{}
	default:
		return nil, fmt.Errorf("%w: %d", chain.ErrActionNotRegistered, reply.OutputType)
	}
	if err := json.Unmarshal(reply.Output, out); err != nil {
		return nil, err
	}
	return out, nil
}
