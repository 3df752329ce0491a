// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consts

const (
	// Action TypeIDs
	InitializeID uint8 = 0
	IncrementID  uint8 = 1
	DecrementID  uint8 = 2
	FinalizeID   uint8 = 3

	// Auth TypeIDs
	ED25519ID uint8 = 0
)
