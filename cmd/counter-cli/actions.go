// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/spf13/cobra"

	"github.com/ava-labs/countervm/actions"
	"github.com/ava-labs/countervm/auth"
	"github.com/ava-labs/countervm/chain"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/rpc"
	"github.com/ava-labs/countervm/utils"
)

const txTimeout = 30 * time.Second

type txResponse struct {
	TxID    ids.ID          `json:"txId"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
}

func (r txResponse) String() string {
	if !r.Success {
		return fmt.Sprintf("{{red}}tx failed:{{/}} %s {{light-gray}}(txID=%s){{/}}", r.Error, r.TxID)
	}
	return fmt.Sprintf("{{green}}tx succeeded:{{/}} %s {{light-gray}}(txID=%s){{/}}", r.Output, r.TxID)
}

func newClient(cmd *cobra.Command) (*rpc.JSONRPCClient, error) {
	endpoint, err := getConfigValue(cmd, "endpoint", true)
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}
	return rpc.NewJSONRPCClient(endpoint), nil
}

// sendAction signs [action] with the configured key and submits it.
func sendAction(cmd *cobra.Command, action chain.Action) error {
	ctx, cancel := context.WithTimeout(context.Background(), txTimeout)
	defer cancel()

	key, err := loadKey(cmd)
	if err != nil {
		return err
	}
	cli, err := newClient(cmd)
	if err != nil {
		return err
	}
	tx, err := cli.GenerateTransaction(ctx, action, auth.NewED25519Factory(key))
	if err != nil {
		return fmt.Errorf("failed to generate tx: %w", err)
	}
	reply, err := cli.SubmitTx(ctx, tx.Bytes())
	if err != nil {
		return fmt.Errorf("failed to submit tx: %w", err)
	}
	return printValue(cmd, txResponse{
		TxID:    reply.TxID,
		Success: reply.Success,
		Error:   reply.Error,
		Output:  reply.Output,
	})
}

var initializeCmd = &cobra.Command{
	Use:   "initialize",
	Short: "Create a counter owned by the current key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		counterString, _ := cmd.Flags().GetString("counter")
		var action actions.Initialize
		if len(counterString) == 0 {
			slot, err := ed25519.GeneratePrivateKey()
			if err != nil {
				return err
			}
			action.Counter = auth.NewED25519Address(slot.PublicKey())
			utils.Outf("{{yellow}}counter address:{{/}} %s\n", action.Counter)
		} else {
			counter, err := addressFlag(cmd, "counter", "counter address")
			if err != nil {
				return err
			}
			action.Counter = counter
		}
		start, err := cmd.Flags().GetInt64("start")
		if err != nil {
			return err
		}
		action.StartValue = start
		funding, err := cmd.Flags().GetString("funding")
		if err != nil {
			return err
		}
		action.InitialFunding, err = utils.ParseBalance(funding)
		if err != nil {
			return err
		}
		return sendAction(cmd, &action)
	},
}

var incrementCmd = &cobra.Command{
	Use:   "increment",
	Short: "Add one to a counter, paying the interaction fee",
	RunE: func(cmd *cobra.Command, _ []string) error {
		counter, err := addressFlag(cmd, "counter", "counter address")
		if err != nil {
			return err
		}
		return sendAction(cmd, &actions.Increment{Counter: counter})
	},
}

var decrementCmd = &cobra.Command{
	Use:   "decrement",
	Short: "Subtract one from a counter, paying the interaction fee",
	RunE: func(cmd *cobra.Command, _ []string) error {
		counter, err := addressFlag(cmd, "counter", "counter address")
		if err != nil {
			return err
		}
		return sendAction(cmd, &actions.Decrement{Counter: counter})
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Close a counter and withdraw its balance to the owner",
	RunE: func(cmd *cobra.Command, _ []string) error {
		counter, err := addressFlag(cmd, "counter", "counter address")
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			if err := confirm(fmt.Sprintf("finalize %s", counter)); err != nil {
				return err
			}
		}
		return sendAction(cmd, &actions.Finalize{Counter: counter})
	},
}

func init() {
	for _, c := range []*cobra.Command{initializeCmd, incrementCmd, decrementCmd, finalizeCmd} {
		c.Flags().String("counter", "", "counter address")
		rootCmd.AddCommand(c)
	}
	initializeCmd.Flags().Int64("start", 0, "initial count")
	initializeCmd.Flags().String("funding", "0", "amount moved into the counter")
	finalizeCmd.Flags().BoolP("yes", "y", false, "skip confirmation")
}
