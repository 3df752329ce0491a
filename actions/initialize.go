// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"context"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/state"
)

var _ chain.Action = (*Initialize)(nil)

// Initialize creates a counter at [Counter] owned by the caller. The
// caller pays the account rent and any [InitialFunding].
type Initialize struct {
	// Counter is the slot the new account is created at.
	Counter codec.Address `json:"counter"`

	// StartValue may be negative.
	StartValue int64 `json:"startValue"`

	// InitialFunding is moved from the caller to the counter balance.
	InitialFunding uint64 `json:"initialFunding"`
}

func (*Initialize) GetTypeID() uint8 {
	return consts.InitializeID
}

func (i *Initialize) StateKeys(actor codec.Address) state.Keys {
	return counterKeys(i.Counter, actor, state.Allocate|state.Write)
}

func (i *Initialize) Execute(
	ctx context.Context,
	_ chain.Rules,
	l ledger.Ledger,
	actor codec.Address,
) (codec.Typed, error) {
	if i.Counter == actor {
		return nil, ErrCounterIsActor
	}
	if err := l.CreateAccount(ctx, i.Counter, actor, CounterAccountSize); err != nil {
		return nil, err
	}
	if err := l.Transfer(ctx, actor, i.Counter, i.InitialFunding); err != nil {
		return nil, err
	}
	c := &CounterAccount{
		Count: i.StartValue,
		Owner: actor,
	}
	if err := storeCounter(ctx, l, i.Counter, c); err != nil {
		return nil, err
	}
	bal, err := l.Balance(ctx, i.Counter)
	if err != nil {
		return nil, err
	}
	return &InitializeResult{
		Count:   c.Count,
		Owner:   c.Owner,
		Balance: bal,
	}, nil
}

func (i *Initialize) Marshal(p *codec.Packer) {
	p.PackAddress(i.Counter)
	p.PackInt64(i.StartValue)
	p.PackUint64(i.InitialFunding)
}

func UnmarshalInitialize(p *codec.Packer) (chain.Action, error) {
	var ini Initialize
	p.UnpackAddress(&ini.Counter)
	ini.StartValue = p.UnpackInt64()
	ini.InitialFunding = p.UnpackUint64(false)
	return &ini, p.Err()
}

var _ codec.Typed = (*InitializeResult)(nil)

type InitializeResult struct {
	Count   int64         `json:"count"`
	Owner   codec.Address `json:"owner"`
	Balance uint64        `json:"balance"`
}

func (*InitializeResult) GetTypeID() uint8 {
	return consts.InitializeID
}
