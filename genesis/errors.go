// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import "errors"

var (
	ErrInvalidProgramID      = errors.New("invalid program id")
	ErrInvalidValidityWindow = errors.New("validity window must be positive")
	ErrInvalidAllocation     = errors.New("invalid allocation")
)
