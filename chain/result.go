// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/countervm/codec"
)

// Result is the outcome of executing a single [Transaction]. A failed
// transaction leaves no trace in state.
type Result struct {
	TxID    ids.ID      `json:"txId"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Output  codec.Typed `json:"output,omitempty"`

	err error
}

func newResult(txID ids.ID, output codec.Typed, err error) *Result {
	r := &Result{
		TxID:    txID,
		Success: err == nil,
		Output:  output,
		err:     err,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Err returns the error that caused the transaction to fail, usable with
// [errors.Is]. It is nil for successful transactions.
func (r *Result) Err() error {
	return r.err
}
