// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import "errors"

var (
	ErrCountNotHighEnough    = errors.New("count must be at least 3 to finalize")
	ErrNotOwner              = errors.New("not owner")
	ErrCountOverflow         = errors.New("count overflow")
	ErrInvalidDiscriminator  = errors.New("invalid account discriminator")
	ErrInvalidCounterAccount = errors.New("invalid counter account")
	ErrCounterIsActor        = errors.New("counter address must differ from the caller")
)
