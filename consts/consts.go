// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consts

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/version"
)

const (
	ByteLen   = 1
	Uint16Len = 2
	Int64Len  = 8
	Uint64Len = 8
	MaxUint8  = ^uint8(0)
	MaxUint64 = ^uint64(0)

	// NetworkSizeLimit bounds any single message accepted over the API.
	NetworkSizeLimit = 64 * 1024
)

const (
	Name     = "countervm"
	Symbol   = "CTR"
	Decimals = 9

	// MinFinalizeCount is the lowest count at which the owner may
	// finalize a counter.
	MinFinalizeCount int64 = 3

	DefaultInteractionFee  uint64 = 1_000
	DefaultRentPerByte     uint64 = 10
	DefaultAccountOverhead uint64 = 128
)

var ID ids.ID

func init() {
	b := make([]byte, ids.IDLen)
	copy(b, []byte(Name))
	vmID, err := ids.ToID(b)
	if err != nil {
		panic(err)
	}
	ID = vmID
}

var Version = &version.Semantic{
	Major: 0,
	Minor: 0,
	Patch: 1,
}
