// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import "errors"

var (
	ErrClosed             = errors.New("vm closed")
	ErrGenesisMismatch    = errors.New("stored genesis does not match")
	ErrInvalidParallelism = errors.New("parallelism must be positive")
)
