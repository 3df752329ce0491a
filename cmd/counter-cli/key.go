// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/utils"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage keys",
}

type keyResponse struct {
	Address string `json:"address"`
	File    string `json:"file,omitempty"`
}

func (r keyResponse) String() string {
	if len(r.File) > 0 {
		return fmt.Sprintf("{{green}}address:{{/}} %s {{yellow}}(saved to %s){{/}}", r.Address, r.File)
	}
	return fmt.Sprintf("{{green}}address:{{/}} %s", r.Address)
}

var generateKeyCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key and make it the default",
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := ed25519.GeneratePrivateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		if err := setConfigValue("key", key.String()); err != nil {
			return fmt.Errorf("failed to save key: %w", err)
		}
		file, _ := cmd.Flags().GetString("file")
		if len(file) > 0 {
			if err := utils.SaveBytes(file, key[:]); err != nil {
				return fmt.Errorf("failed to write key file: %w", err)
			}
		}
		return printValue(cmd, keyResponse{
			Address: auth.NewED25519Address(key.PublicKey()).String(),
			File:    file,
		})
	},
}

var importKeyCmd = &cobra.Command{
	Use:   "import [hex or file]",
	Short: "Import a private key and make it the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := privateKeyFromString(args[0])
		if err != nil {
			b, ferr := utils.LoadBytes(args[0], ed25519.PrivateKeyLen)
			if ferr != nil {
				return fmt.Errorf("unable to decode input as hex (%w) or read as key file (%w)", err, ferr)
			}
			key, err = privateKeyFromString(ed25519.PrivateKey(b).String())
			if err != nil {
				return err
			}
		}
		if err := setConfigValue("key", key.String()); err != nil {
			return fmt.Errorf("failed to save key: %w", err)
		}
		return printValue(cmd, keyResponse{
			Address: auth.NewED25519Address(key.PublicKey()).String(),
		})
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print current key address",
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := loadKey(cmd)
		if err != nil {
			return err
		}
		return printValue(cmd, keyResponse{
			Address: auth.NewED25519Address(key.PublicKey()).String(),
		})
	},
}

func init() {
	generateKeyCmd.Flags().String("file", "", "also write the raw key to this file")
	keyCmd.AddCommand(generateKeyCmd, importKeyCmd, addressCmd)
	rootCmd.AddCommand(keyCmd)
}
