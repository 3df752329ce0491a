// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/ledger"
)

var _ chain.Rules = (*Rules)(nil)

type Rules struct {
	g *Genesis

	chainID   ids.ID
	programID codec.Address
}

func (g *Genesis) Rules(chainID ids.ID) (*Rules, error) {
	programID, err := codec.ParseAddress(g.ProgramID)
	if err != nil {
		return nil, err
	}
	return &Rules{g: g, chainID: chainID, programID: programID}, nil
}

func (r *Rules) GetChainID() ids.ID {
	return r.chainID
}

func (r *Rules) GetProgramID() codec.Address {
	return r.programID
}

func (r *Rules) GetValidityWindow() int64 {
	return r.g.ValidityWindow
}

func (r *Rules) GetInteractionFee() uint64 {
	return r.g.InteractionFee
}

func (r *Rules) GetRentSchedule() ledger.RentSchedule {
	return ledger.RentSchedule{
		PerByte:  r.g.RentPerByte,
		Overhead: r.g.AccountOverhead,
	}
}
