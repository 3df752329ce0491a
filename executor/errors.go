// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import "errors"

var (
	ErrStopped          = errors.New("stopped")
	ErrTooManyTasks     = errors.New("too many tasks created")
)
