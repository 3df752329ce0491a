// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

const (
	Read     Permissions = 1
	Allocate             = 1<<1 | Read
	Write                = 1<<2 | Read

	None Permissions = 0
	All              = Read | Allocate | Write
)

// Keys maps a key to the permissions an action requires on it. To prevent
// duplicate insertions from overriding the original permissions, use the
// Add function below.
type Keys map[string]Permissions

// All acceptable permission options
type Permissions byte

// Add merges [permission] into any permission already recorded for [name].
func (k Keys) Add(name string, permission Permissions) {
	k[name] |= permission
}

// Has returns true if [p] has all the permissions that are contained in require
func (p Permissions) Has(require Permissions) bool {
	return require&^p == 0
}

// ReadOnly reports whether [p] grants nothing beyond [Read].
func (p Permissions) ReadOnly() bool {
	return p == Read
}
