// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/rpc"
	"github.com/ava-labs/countervm/utils"
)

type counterResponse struct {
	Address codec.Address `json:"address"`
	*rpc.CounterReply
}

func (r counterResponse) String() string {
	if !r.Exists {
		return fmt.Sprintf("{{red}}%s does not exist{{/}}", r.Address)
	}
	return fmt.Sprintf(
		"{{green}}count:{{/}} %d {{green}}owner:{{/}} %s {{green}}balance:{{/}} %s",
		r.Count,
		r.Owner,
		utils.FormatBalance(r.Balance),
	)
}

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Read a counter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, err := addressFlag(cmd, "counter", "counter address")
		if err != nil {
			return err
		}
		cli, err := newClient(cmd)
		if err != nil {
			return err
		}
		reply, err := cli.Counter(context.Background(), addr)
		if err != nil {
			return err
		}
		return printValue(cmd, counterResponse{Address: addr, CounterReply: reply})
	},
}

type balanceResponse struct {
	Address codec.Address `json:"address"`
	Balance uint64        `json:"balance"`
}

func (r balanceResponse) String() string {
	return fmt.Sprintf("{{green}}%s:{{/}} %s", r.Address, utils.FormatBalance(r.Balance))
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Read the balance of an address, defaulting to the current key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			addr codec.Address
			err  error
		)
		if value, _ := cmd.Flags().GetString("address"); len(value) > 0 {
			addr, err = codec.ParseAddress(value)
		} else {
			key, kerr := loadKey(cmd)
			if kerr != nil {
				return kerr
			}
			addr = auth.NewED25519Address(key.PublicKey())
		}
		if err != nil {
			return err
		}
		cli, err := newClient(cmd)
		if err != nil {
			return err
		}
		bal, err := cli.Balance(context.Background(), addr)
		if err != nil {
			return err
		}
		return printValue(cmd, balanceResponse{Address: addr, Balance: bal})
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the endpoint is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cli, err := newClient(cmd)
		if err != nil {
			return err
		}
		ok, err := cli.Ping(context.Background())
		if err != nil {
			return err
		}
		_, chainID, err := cli.Genesis(context.Background())
		if err != nil {
			return err
		}
		utils.Outf("{{green}}ping succeeded:{{/}} %t {{green}}chainID:{{/}} %s\n", ok, chainID)
		return nil
	},
}

func init() {
	counterCmd.Flags().String("counter", "", "counter address")
	balanceCmd.Flags().String("address", "", "address to query")
	rootCmd.AddCommand(counterCmd, balanceCmd, pingCmd)
}
