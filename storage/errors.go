// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import "errors"

var (
	ErrInvalidBalance  = errors.New("invalid balance")
	ErrInvalidAccount  = errors.New("invalid account")
	ErrInvalidTxRecord = errors.New("invalid tx record")
)
