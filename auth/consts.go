// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auth

import "github.com/ava-labs/countervm/crypto/ed25519"

const ED25519Size = ed25519.PublicKeyLen + ed25519.SignatureLen
