// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import "github.com/ava-labs/avalanchego/utils/timer/mockable"

type Option func(*VM)

// WithClock overrides the clock used to check transaction expiry.
func WithClock(clock *mockable.Clock) Option {
	return func(vm *VM) {
		vm.clock = clock
	}
}

// WithParallelism sets how many transactions of a batch may run at once.
func WithParallelism(n int) Option {
	return func(vm *VM) {
		vm.parallelism = n
	}
}
