// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

//go:generate go run go.uber.org/mock/mockgen -package=ledger -destination=mock_ledger.go . Ledger

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"

	smath "github.com/ava-labs/avalanchego/utils/math"
)

// Ledger persists accounts and moves native value between them. Every call
// made while executing a single request is applied atomically with the rest
// of that request.
type Ledger interface {
	// CreateAccount allocates [size] bytes of data at [slot] owned by the
	// running program. [payer] funds the rent deposit.
	CreateAccount(ctx context.Context, slot codec.Address, payer codec.Address, size uint64) error
	// Transfer moves [amount] from [from] to [to]. A zero amount is a no-op.
	Transfer(ctx context.Context, from codec.Address, to codec.Address, amount uint64) error
	// CloseAccount removes [slot] and pays its residual balance to
	// [beneficiary]. It returns the amount paid.
	CloseAccount(ctx context.Context, slot codec.Address, beneficiary codec.Address) (uint64, error)
	GetAccountData(ctx context.Context, slot codec.Address) ([]byte, error)
	SetAccountData(ctx context.Context, slot codec.Address, data []byte) error
	Balance(ctx context.Context, addr codec.Address) (uint64, error)
}

// RentSchedule prices account space. The deposit stays in the account and
// is returned when the account is closed.
type RentSchedule struct {
	PerByte  uint64 `json:"perByte" yaml:"perByte"`
	Overhead uint64 `json:"overhead" yaml:"overhead"`
}

// Cost returns the deposit required to hold [size] bytes.
func (r RentSchedule) Cost(size uint64) (uint64, error) {
	total, err := smath.Add(r.Overhead, size)
	if err != nil {
		return 0, ErrRentOverflow
	}
	cost, err := smath.Mul(total, r.PerByte)
	if err != nil {
		return 0, ErrRentOverflow
	}
	return cost, nil
}

var _ Ledger = (*StateLedger)(nil)

// StateLedger implements [Ledger] on top of a [state.Mutable]. Atomicity is
// provided by the caller, which discards the mutable on failure.
type StateLedger struct {
	mu      state.Mutable
	program codec.Address
	rent    RentSchedule
}

func New(mu state.Mutable, program codec.Address, rent RentSchedule) *StateLedger {
	return &StateLedger{
		mu:      mu,
		program: program,
		rent:    rent,
	}
}

func (l *StateLedger) CreateAccount(ctx context.Context, slot codec.Address, payer codec.Address, size uint64) error {
	if size > storage.MaxAccountDataSize {
		return fmt.Errorf("%w: size %d exceeds %d", storage.ErrInvalidAccount, size, storage.MaxAccountDataSize)
	}
	_, exists, err := storage.GetAccount(ctx, l.mu, slot)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, slot)
	}
	rent, err := l.rent.Cost(size)
	if err != nil {
		return err
	}
	if err := l.Transfer(ctx, payer, slot, rent); err != nil {
		return err
	}
	return storage.SetAccount(ctx, l.mu, slot, &storage.Account{
		Program: l.program,
		Data:    make([]byte, size),
	})
}

func (l *StateLedger) Transfer(ctx context.Context, from codec.Address, to codec.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if _, err := storage.SubBalance(ctx, l.mu, from, amount); err != nil {
		if errors.Is(err, storage.ErrInvalidBalance) {
			return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
		}
		return err
	}
	_, err := storage.AddBalance(ctx, l.mu, to, amount)
	return err
}

func (l *StateLedger) CloseAccount(ctx context.Context, slot codec.Address, beneficiary codec.Address) (uint64, error) {
	if _, err := l.load(ctx, slot); err != nil {
		return 0, err
	}
	residual, err := storage.GetBalance(ctx, l.mu, slot)
	if err != nil {
		return 0, err
	}
	if err := l.Transfer(ctx, slot, beneficiary, residual); err != nil {
		return 0, err
	}
	if err := storage.RemoveAccount(ctx, l.mu, slot); err != nil {
		return 0, err
	}
	return residual, nil
}

func (l *StateLedger) GetAccountData(ctx context.Context, slot codec.Address) ([]byte, error) {
	a, err := l.load(ctx, slot)
	if err != nil {
		return nil, err
	}
	return a.Data, nil
}

// SetAccountData overwrites the data of [slot]. The size allocated at
// creation cannot change.
func (l *StateLedger) SetAccountData(ctx context.Context, slot codec.Address, data []byte) error {
	a, err := l.load(ctx, slot)
	if err != nil {
		return err
	}
	if len(data) != len(a.Data) {
		return fmt.Errorf("%w: have %d bytes, got %d", ErrDataSizeMismatch, len(a.Data), len(data))
	}
	a.Data = data
	return storage.SetAccount(ctx, l.mu, slot, a)
}

func (l *StateLedger) Balance(ctx context.Context, addr codec.Address) (uint64, error) {
	return storage.GetBalance(ctx, l.mu, addr)
}

func (l *StateLedger) load(ctx context.Context, slot codec.Address) (*storage.Account, error) {
	return ReadAccount(ctx, l.mu, l.program, slot)
}

// ReadAccount loads [slot] and checks it is owned by [program].
func ReadAccount(ctx context.Context, im state.Immutable, program codec.Address, slot codec.Address) (*storage.Account, error) {
	a, exists, err := storage.GetAccount(ctx, im, slot)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, slot)
	}
	if a.Program != program {
		return nil, fmt.Errorf("%w: %s", ErrWrongProgram, slot)
	}
	return a, nil
}
