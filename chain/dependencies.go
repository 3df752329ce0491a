// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/ledger"
	"github.com/ava-labs/countervm/state"
)

type (
	ActionRegistry = *codec.TypeParser[Action]
	AuthRegistry   = *codec.TypeParser[Auth]
)

type Rules interface {
	GetChainID() ids.ID
	// GetProgramID is the identity that owns every counter account.
	GetProgramID() codec.Address

	GetValidityWindow() int64 // in milliseconds

	// GetInteractionFee is charged for every Increment and Decrement.
	GetInteractionFee() uint64
	GetRentSchedule() ledger.RentSchedule
}

type Action interface {
	codec.Typed

	// StateKeys is a full enumeration of all database keys that could be touched during execution
	// of an [Action]. This is used to prefetch state and will be used to parallelize execution.
	//
	// If any key is touched during execution that is not included in this list,
	// the action fails.
	StateKeys(actor codec.Address) state.Keys

	// Execute actually runs the [Action]. Any state changes that the [Action] performs should
	// be done through [ledger]. If an error is returned, every change is discarded.
	Execute(
		ctx context.Context,
		r Rules,
		l ledger.Ledger,
		actor codec.Address,
	) (codec.Typed, error)

	Marshal(p *codec.Packer)
}

type Auth interface {
	codec.Typed

	// Verify is run concurrently during transaction verification. It may not
	// access state.
	Verify(ctx context.Context, msg []byte) error

	// Actor is the subject of the [Action] signed.
	Actor() codec.Address

	Marshal(p *codec.Packer)
}

type AuthFactory interface {
	// Sign is used by helpers, auth object should store internally to be ready for marshaling
	Sign(msg []byte) (Auth, error)
	Address() codec.Address
}
