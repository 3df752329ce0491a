// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"context"
	"math"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/state"
)

var (
	_ chain.Action = (*Increment)(nil)
	_ chain.Action = (*Decrement)(nil)
)

// Increment adds one to [Counter]. Any caller may increment as long as
// they pay the interaction fee.
type Increment struct {
	Counter codec.Address `json:"counter"`
}

func (*Increment) GetTypeID() uint8 {
	return consts.IncrementID
}

func (i *Increment) StateKeys(actor codec.Address) state.Keys {
	return counterKeys(i.Counter, actor, state.Write)
}

func (i *Increment) Execute(
	ctx context.Context,
	r chain.Rules,
	l ledger.Ledger,
	actor codec.Address,
) (codec.Typed, error) {
	return step(ctx, r, l, actor, i.Counter, 1)
}

func (i *Increment) Marshal(p *codec.Packer) {
	p.PackAddress(i.Counter)
}

func UnmarshalIncrement(p *codec.Packer) (chain.Action, error) {
	var inc Increment
	p.UnpackAddress(&inc.Counter)
	return &inc, p.Err()
}

// Decrement subtracts one from [Counter] under the same rules as
// [Increment].
type Decrement struct {
	Counter codec.Address `json:"counter"`
}

func (*Decrement) GetTypeID() uint8 {
	return consts.DecrementID
}

func (d *Decrement) StateKeys(actor codec.Address) state.Keys {
	return counterKeys(d.Counter, actor, state.Write)
}

func (d *Decrement) Execute(
	ctx context.Context,
	r chain.Rules,
	l ledger.Ledger,
	actor codec.Address,
) (codec.Typed, error) {
	return step(ctx, r, l, actor, d.Counter, -1)
}

func (d *Decrement) Marshal(p *codec.Packer) {
	p.PackAddress(d.Counter)
}

func UnmarshalDecrement(p *codec.Packer) (chain.Action, error) {
	var dec Decrement
	p.UnpackAddress(&dec.Counter)
	return &dec, p.Err()
}

// step charges the interaction fee and then moves the count by [delta].
func step(
	ctx context.Context,
	r chain.Rules,
	l ledger.Ledger,
	actor codec.Address,
	slot codec.Address,
	delta int64,
) (*CountResult, error) {
	c, err := loadCounter(ctx, l, slot)
	if err != nil {
		return nil, err
	}
	if (delta > 0 && c.Count > math.MaxInt64-delta) || (delta < 0 && c.Count < math.MinInt64-delta) {
		return nil, ErrCountOverflow
	}
	fee := r.GetInteractionFee()
	if err := l.Transfer(ctx, actor, slot, fee); err != nil {
		return nil, err
	}
	c.Count += delta
	if err := storeCounter(ctx, l, slot, c); err != nil {
		return nil, err
	}
	return &CountResult{
		Count:   c.Count,
		FeePaid: fee,
	}, nil
}

var _ codec.Typed = (*CountResult)(nil)

// CountResult is returned by both Increment and Decrement.
type CountResult struct {
	Count   int64  `json:"count"`
	FeePaid uint64 `json:"feePaid"`
}

func (*CountResult) GetTypeID() uint8 {
	return consts.IncrementID
}
