// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ava-labs/avalanchego/trace"
	"gopkg.in/yaml.v2"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/state"
	"github.com/ava-labs/countervm/storage"

	smath "github.com/ava-labs/avalanchego/utils/math"
)

type CustomAllocation struct {
	Address string `json:"address" yaml:"address"` // base58 address
	Balance uint64 `json:"balance" yaml:"balance"`
}

type Genesis struct {
	// ProgramID owns every counter account created on this chain.
	ProgramID string `json:"programID" yaml:"programID"`

	// Tx Parameters
	ValidityWindow int64 `json:"validityWindow" yaml:"validityWindow"` // ms

	// Fee Parameters
	InteractionFee  uint64 `json:"interactionFee" yaml:"interactionFee"`
	RentPerByte     uint64 `json:"rentPerByte" yaml:"rentPerByte"`
	AccountOverhead uint64 `json:"accountOverhead" yaml:"accountOverhead"`

	// Allocations
	CustomAllocation []*CustomAllocation `json:"customAllocation" yaml:"customAllocation"`
}

func Default() *Genesis {
	return &Genesis{
		ProgramID: codec.Address(consts.ID).String(),

		// Tx Parameters
		ValidityWindow: 60 * 1_000, // ms

		// Fee Parameters
		InteractionFee:  consts.DefaultInteractionFee,
		RentPerByte:     consts.DefaultRentPerByte,
		AccountOverhead: consts.DefaultAccountOverhead,
	}
}

// New parses JSON genesis bytes over [Default].
func New(b []byte) (*Genesis, error) {
	g := Default()
	if len(b) > 0 {
		if err := json.Unmarshal(b, g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal genesis %s: %w", string(b), err)
		}
	}
	if err := g.Verify(); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadFile reads a genesis from [path]. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Genesis, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		g := Default()
		if err := yaml.Unmarshal(b, g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal genesis %s: %w", path, err)
		}
		if err := g.Verify(); err != nil {
			return nil, err
		}
		return g, nil
	default:
		return New(b)
	}
}

func (g *Genesis) Verify() error {
	if _, err := codec.ParseAddress(g.ProgramID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProgramID, err)
	}
	if g.ValidityWindow <= 0 {
		return ErrInvalidValidityWindow
	}
	for _, alloc := range g.CustomAllocation {
		if _, err := codec.ParseAddress(alloc.Address); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAllocation, err)
		}
	}
	return nil
}

func (g *Genesis) Bytes() ([]byte, error) {
	return json.Marshal(g)
}

// StateKeys are the balance keys written by [Load].
func (g *Genesis) StateKeys() (state.Keys, error) {
	keys := state.Keys{}
	for _, alloc := range g.CustomAllocation {
		addr, err := codec.ParseAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAllocation, err)
		}
		keys.Add(string(storage.BalanceKey(addr)), state.All)
	}
	return keys, nil
}

// Load writes the allocations to [mu].
func (g *Genesis) Load(ctx context.Context, tracer trace.Tracer, mu state.Mutable) error {
	ctx, span := tracer.Start(ctx, "Genesis.Load")
	defer span.End()

	supply := uint64(0)
	for _, alloc := range g.CustomAllocation {
		addr, err := codec.ParseAddress(alloc.Address)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAllocation, err)
		}
		supply, err = smath.Add(supply, alloc.Balance)
		if err != nil {
			return err
		}
		if _, err := storage.AddBalance(ctx, mu, addr, alloc.Balance); err != nil {
			return fmt.Errorf("%w: addr=%s, bal=%d", err, alloc.Address, alloc.Balance)
		}
	}
	return nil
}
