// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/state"
)

var (
	alice = codec.Address{1}
	slot  = codec.Address{2}
)

func TestKeysDoNotCollide(t *testing.T) {
	require := require.New(t)

	require.NotEqual(BalanceKey(alice), AccountKey(alice))
	require.Len(BalanceKey(alice), 1+codec.AddressLen)
	require.Len(AccountKey(alice), 1+codec.AddressLen)
}

func TestBalance(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	mu := state.NewInMemoryStore()

	bal, err := GetBalance(ctx, mu, alice)
	require.NoError(err)
	require.Zero(bal)

	_, err = SubBalance(ctx, mu, alice, 1)
	require.ErrorIs(err, ErrInvalidBalance)

	bal, err = AddBalance(ctx, mu, alice, 10)
	require.NoError(err)
	require.Equal(uint64(10), bal)

	_, err = SubBalance(ctx, mu, alice, 11)
	require.ErrorIs(err, ErrInvalidBalance)

	bal, err = SubBalance(ctx, mu, alice, 4)
	require.NoError(err)
	require.Equal(uint64(6), bal)

	// Draining the balance removes the record
	bal, err = SubBalance(ctx, mu, alice, 6)
	require.NoError(err)
	require.Zero(bal)
	require.NotContains(mu.Storage, string(BalanceKey(alice)))
}

func TestAddBalanceOverflow(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	mu := state.NewInMemoryStore()

	require.NoError(SetBalance(ctx, mu, alice, consts.MaxUint64))
	_, err := AddBalance(ctx, mu, alice, 1)
	require.ErrorIs(err, ErrInvalidBalance)

	bal, err := GetBalance(ctx, mu, alice)
	require.NoError(err)
	require.Equal(consts.MaxUint64, bal)
}

func TestAccount(t *testing.T) {
	require := require.New(t)
	ctx := context.TODO()
	mu := state.NewInMemoryStore()

	_, exists, err := GetAccount(ctx, mu, slot)
	require.NoError(err)
	require.False(exists)

	acct := &Account{Program: alice, Data: []byte{1, 2, 3}}
	require.NoError(SetAccount(ctx, mu, slot, acct))

	stored, exists, err := GetAccount(ctx, mu, slot)
	require.NoError(err)
	require.True(exists)
	require.Equal(acct, stored)

	require.NoError(RemoveAccount(ctx, mu, slot))
	_, exists, err = GetAccount(ctx, mu, slot)
	require.NoError(err)
	require.False(exists)
}

func TestAccountTooLarge(t *testing.T) {
	require := require.New(t)

	err := SetAccount(context.TODO(), state.NewInMemoryStore(), slot, &Account{
		Program: alice,
		Data:    make([]byte, MaxAccountDataSize+1),
	})
	require.ErrorIs(err, ErrInvalidAccount)
}

func TestUnmarshalAccountInvalid(t *testing.T) {
	require := require.New(t)

	acct := &Account{Program: alice, Data: []byte{7}}
	b, err := acct.Marshal()
	require.NoError(err)

	_, err = UnmarshalAccount(append(b, 0))
	require.ErrorIs(err, ErrInvalidAccount)
	_, err = UnmarshalAccount(b[:10])
	require.ErrorIs(err, ErrInvalidAccount)
}
