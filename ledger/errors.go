// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account does not exist")
	ErrAccountExists     = errors.New("account already exists")
	ErrWrongProgram      = errors.New("account is owned by another program")
	ErrDataSizeMismatch  = errors.New("account data size mismatch")
	ErrRentOverflow      = errors.New("rent overflow")
)
