// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "errors"

var (
	// Parsing
	ErrInvalidObject       = errors.New("invalid object")
	ErrActionNotRegistered = errors.New("action not registered")
	ErrAuthNotRegistered   = errors.New("auth not registered")

	// Verify
	ErrInvalidChainID    = errors.New("invalid chain id")
	ErrTimestampTooLate  = errors.New("timestamp too late")
	ErrTimestampTooEarly = errors.New("timestamp too early")
	ErrMissingAuth       = errors.New("missing auth")
	ErrDuplicateTx       = errors.New("duplicate transaction")
	ErrMisalignedTime    = errors.New("misaligned time")
)
