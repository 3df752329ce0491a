// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ava-labs/countervm/codec"
)

// addressFlag reads an address from [flag], prompting when it is unset.
func addressFlag(cmd *cobra.Command, flag string, label string) (codec.Address, error) {
	if value, _ := cmd.Flags().GetString(flag); len(value) > 0 {
		return codec.ParseAddress(strings.TrimSpace(value))
	}
	p := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			_, err := codec.ParseAddress(strings.TrimSpace(input))
			return err
		},
	}
	input, err := p.Run()
	if err != nil {
		return codec.EmptyAddress, err
	}
	return codec.ParseAddress(strings.TrimSpace(input))
}

// confirm asks for a yes/no answer. Declining returns [promptui.ErrAbort].
func confirm(label string) error {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := p.Run()
	return err
}
