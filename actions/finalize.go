// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"context"
	"fmt"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/state"
)

var _ chain.Action = (*Finalize)(nil)

// Finalize closes [Counter] and pays its balance to the owner. The count
// gate is checked before ownership.
type Finalize struct {
	Counter codec.Address `json:"counter"`
}

func (*Finalize) GetTypeID() uint8 {
	return consts.FinalizeID
}

func (f *Finalize) StateKeys(actor codec.Address) state.Keys {
	return counterKeys(f.Counter, actor, state.Write)
}

func (f *Finalize) Execute(
	ctx context.Context,
	_ chain.Rules,
	l ledger.Ledger,
	actor codec.Address,
) (codec.Typed, error) {
	c, err := loadCounter(ctx, l, f.Counter)
	if err != nil {
		return nil, err
	}
	if c.Count < consts.MinFinalizeCount {
		return nil, fmt.Errorf("%w: count=%d", ErrCountNotHighEnough, c.Count)
	}
	if c.Owner != actor {
		return nil, fmt.Errorf("%w: owner=%s", ErrNotOwner, c.Owner)
	}
	residual, err := l.CloseAccount(ctx, f.Counter, c.Owner)
	if err != nil {
		return nil, err
	}
	bal, err := l.Balance(ctx, c.Owner)
	if err != nil {
		return nil, err
	}
	return &FinalizeResult{
		Count:        c.Count,
		Residual:     residual,
		OwnerBalance: bal,
	}, nil
}

func (f *Finalize) Marshal(p *codec.Packer) {
	p.PackAddress(f.Counter)
}

func UnmarshalFinalize(p *codec.Packer) (chain.Action, error) {
	var fin Finalize
	p.UnpackAddress(&fin.Counter)
	return &fin, p.Err()
}

var _ codec.Typed = (*FinalizeResult)(nil)

type FinalizeResult struct {
	Count        int64  `json:"count"`
	Residual     uint64 `json:"residual"`
	OwnerBalance uint64 `json:"ownerBalance"`
}

func (*FinalizeResult) GetTypeID() uint8 {
	return consts.FinalizeID
}
