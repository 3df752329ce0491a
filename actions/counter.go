// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"
)

const (
	DiscriminatorLen = 8

	// CounterAccountSize is the account data allocated by Initialize.
	CounterAccountSize = DiscriminatorLen + consts.Int64Len + codec.AddressLen
)

var counterDiscriminator = discriminator("account:CounterAccount")

func discriminator(name string) [DiscriminatorLen]byte {
	h := sha256.Sum256([]byte(name))
	return [DiscriminatorLen]byte(h[:DiscriminatorLen])
}

// CounterAccount is the data held by a counter slot. The owner is set once
// by Initialize.
type CounterAccount struct {
	Count int64         `json:"count"`
	Owner codec.Address `json:"owner"`
}

type counterLayout struct {
	Count int64
	Owner [codec.AddressLen]byte
}

// Marshal encodes [c] as discriminator|borsh(count, owner).
func (c *CounterAccount) Marshal() ([]byte, error) {
	body, err := borsh.Serialize(counterLayout{
		Count: c.Count,
		Owner: c.Owner,
	})
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, CounterAccountSize)
	b = append(b, counterDiscriminator[:]...)
	b = append(b, body...)
	if len(b) != CounterAccountSize {
		return nil, fmt.Errorf("%w: encoded %d bytes", ErrInvalidCounterAccount, len(b))
	}
	return b, nil
}

func UnmarshalCounterAccount(b []byte) (*CounterAccount, error) {
	if len(b) != CounterAccountSize {
		return nil, fmt.Errorf("%w: have %d bytes", ErrInvalidCounterAccount, len(b))
	}
	if [DiscriminatorLen]byte(b[:DiscriminatorLen]) != counterDiscriminator {
		return nil, ErrInvalidDiscriminator
	}
	var layout counterLayout
	if err := borsh.Deserialize(&layout, b[DiscriminatorLen:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCounterAccount, err)
	}
	return &CounterAccount{
		Count: layout.Count,
		Owner: layout.Owner,
	}, nil
}

func loadCounter(ctx context.Context, l ledger.Ledger, slot codec.Address) (*CounterAccount, error) {
	data, err := l.GetAccountData(ctx, slot)
	if err != nil {
		return nil, err
	}
	return UnmarshalCounterAccount(data)
}

func storeCounter(ctx context.Context, l ledger.Ledger, slot codec.Address, c *CounterAccount) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	return l.SetAccountData(ctx, slot, data)
}

// ReadCounter loads the counter at [slot] outside of a transaction. It
// returns [ledger.ErrAccountNotFound] once the counter is finalized.
func ReadCounter(
	ctx context.Context,
	im state.Immutable,
	program codec.Address,
	slot codec.Address,
) (*CounterAccount, uint64, error) {
	acct, err := ledger.ReadAccount(ctx, im, program, slot)
	if err != nil {
		return nil, 0, err
	}
	c, err := UnmarshalCounterAccount(acct.Data)
	if err != nil {
		return nil, 0, err
	}
	bal, err := storage.GetBalance(ctx, im, slot)
	if err != nil {
		return nil, 0, err
	}
	return c, bal, nil
}

// counterKeys are the keys touched by any operation on [slot] paid for by
// [actor].
func counterKeys(slot codec.Address, actor codec.Address, account state.Permissions) state.Keys {
	keys := state.Keys{}
	keys.Add(string(storage.AccountKey(slot)), account)
	keys.Add(string(storage.BalanceKey(slot)), state.All)
	keys.Add(string(storage.BalanceKey(actor)), state.All)
	return keys
}
