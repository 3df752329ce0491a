// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/state"

	smath "github.com/ava-labs/avalanchego/utils/math"
)

// State
// 0x0/ (balance)
//   -> [address] => balance
// 0x1/ (account)
//   -> [slot] => program|data
// 0x2/ (metadata)
//   -> genesis => loaded marker
//   -> tx|[txID] => expiry of an executed tx

const (
	balancePrefix  byte = 0x0
	accountPrefix  byte = 0x1
	metadataPrefix byte = 0x2
)

var (
	genesisKey = []byte{metadataPrefix, 'g'}
	txPrefix   = []byte{metadataPrefix, 't'}
)

// MaxAccountDataSize bounds the data a single account may hold.
const MaxAccountDataSize = 10 * 1024

// [balancePrefix] + [address]
func BalanceKey(addr codec.Address) []byte {
	k := make([]byte, consts.ByteLen+codec.AddressLen)
	k[0] = balancePrefix
	copy(k[1:], addr[:])
	return k
}

// [accountPrefix] + [slot]
func AccountKey(slot codec.Address) []byte {
	k := make([]byte, consts.ByteLen+codec.AddressLen)
	k[0] = accountPrefix
	copy(k[1:], slot[:])
	return k
}

// GenesisKey marks that genesis allocations have been written.
func GenesisKey() []byte {
	return genesisKey
}

// [metadataPrefix] + 't' + [txID]
func TxKey(id ids.ID) []byte {
	k := make([]byte, len(txPrefix)+ids.IDLen)
	copy(k, txPrefix)
	copy(k[len(txPrefix):], id[:])
	return k
}

// TxPrefix is shared by every [TxKey].
func TxPrefix() []byte {
	return txPrefix
}

// HasTx reports whether a successful execution of [id] is recorded.
func HasTx(ctx context.Context, im state.Immutable, id ids.ID) (bool, error) {
	_, err := im.GetValue(ctx, TxKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// StoreTx records that [id] executed. [expiry] is kept so the record can be
// pruned once the tx could no longer be accepted.
func StoreTx(ctx context.Context, mu state.Mutable, id ids.ID, expiry int64) error {
	return mu.Insert(ctx, TxKey(id), binary.BigEndian.AppendUint64(nil, uint64(expiry)))
}

// ParseTx decodes a record written by [StoreTx].
func ParseTx(k []byte, v []byte) (ids.ID, int64, error) {
	if len(k) != len(txPrefix)+ids.IDLen || len(v) != consts.Uint64Len {
		return ids.Empty, 0, fmt.Errorf("%w: key=%x value=%x", ErrInvalidTxRecord, k, v)
	}
	id, err := ids.ToID(k[len(txPrefix):])
	if err != nil {
		return ids.Empty, 0, err
	}
	return id, int64(binary.BigEndian.Uint64(v)), nil
}

// GetBalance returns 0 if [addr] holds no balance.
func GetBalance(
	ctx context.Context,
	im state.Immutable,
	addr codec.Address,
) (uint64, error) {
	_, bal, _, err := getBalance(ctx, im, addr)
	return bal, err
}

func getBalance(
	ctx context.Context,
	im state.Immutable,
	addr codec.Address,
) ([]byte, uint64, bool, error) {
	k := BalanceKey(addr)
	bal, exists, err := innerGetBalance(im.GetValue(ctx, k))
	return k, bal, exists, err
}

func innerGetBalance(
	v []byte,
	err error,
) (uint64, bool, error) {
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	val, err := database.ParseUInt64(v)
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func SetBalance(
	ctx context.Context,
	mu state.Mutable,
	addr codec.Address,
	balance uint64,
) error {
	k := BalanceKey(addr)
	return setBalance(ctx, mu, k, balance)
}

func setBalance(
	ctx context.Context,
	mu state.Mutable,
	key []byte,
	balance uint64,
) error {
	return mu.Insert(ctx, key, binary.BigEndian.AppendUint64(nil, balance))
}

func AddBalance(
	ctx context.Context,
	mu state.Mutable,
	addr codec.Address,
	amount uint64,
) (uint64, error) {
	key, bal, _, err := getBalance(ctx, mu, addr)
	if err != nil {
		return 0, err
	}
	nbal, err := smath.Add(bal, amount)
	if err != nil {
		return 0, fmt.Errorf(
			"%w: could not add balance (bal=%d, addr=%v, amount=%d)",
			ErrInvalidBalance,
			bal,
			addr,
			amount,
		)
	}
	return nbal, setBalance(ctx, mu, key, nbal)
}

func SubBalance(
	ctx context.Context,
	mu state.Mutable,
	addr codec.Address,
	amount uint64,
) (uint64, error) {
	key, bal, ok, err := getBalance(ctx, mu, addr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: no balance (addr=%v, amount=%d)", ErrInvalidBalance, addr, amount)
	}
	nbal, err := smath.Sub(bal, amount)
	if err != nil {
		return 0, fmt.Errorf(
			"%w: could not subtract balance (bal=%d, addr=%v, amount=%d)",
			ErrInvalidBalance,
			bal,
			addr,
			amount,
		)
	}
	if nbal == 0 {
		// If there is no balance left, we should delete the record instead of
		// setting it to 0.
		return 0, mu.Remove(ctx, key)
	}
	return nbal, setBalance(ctx, mu, key, nbal)
}

// Account is the ledger record behind a slot. [Program] is the program
// allowed to mutate [Data].
type Account struct {
	Program codec.Address
	Data    []byte
}

func (a *Account) Marshal() ([]byte, error) {
	p := codec.NewWriter(codec.AddressLen+consts.Uint64Len+len(a.Data), consts.NetworkSizeLimit)
	p.PackAddress(a.Program)
	p.PackBytes(a.Data)
	return p.Bytes(), p.Err()
}

func UnmarshalAccount(b []byte) (*Account, error) {
	p := codec.NewReader(b, consts.NetworkSizeLimit)
	var a Account
	p.UnpackAddress(&a.Program)
	p.UnpackBytes(MaxAccountDataSize, false, &a.Data)
	if err := p.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}
	if !p.Empty() {
		return nil, fmt.Errorf("%w: trailing bytes", ErrInvalidAccount)
	}
	return &a, nil
}

// GetAccount returns false if no account is stored at [slot].
func GetAccount(
	ctx context.Context,
	im state.Immutable,
	slot codec.Address,
) (*Account, bool, error) {
	v, err := im.GetValue(ctx, AccountKey(slot))
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	a, err := UnmarshalAccount(v)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func SetAccount(
	ctx context.Context,
	mu state.Mutable,
	slot codec.Address,
	a *Account,
) error {
	if len(a.Data) > MaxAccountDataSize {
		return fmt.Errorf("%w: data size %d exceeds %d", ErrInvalidAccount, len(a.Data), MaxAccountDataSize)
	}
	v, err := a.Marshal()
	if err != nil {
		return err
	}
	return mu.Insert(ctx, AccountKey(slot), v)
}

func RemoveAccount(
	ctx context.Context,
	mu state.Mutable,
	slot codec.Address,
) error {
	return mu.Remove(ctx, AccountKey(slot))
}
