// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/crypto/ed25519"
	"github.com/ava-labs/countervm/rpc"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("endpoint", "", "")
	cmd.Flags().String("key", "", "")
	return cmd
}

func TestGetConfigValue(t *testing.T) {
	require := require.New(t)

	const key = "test-value"
	t.Cleanup(func() { viper.Set(key, "") })

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String(key, "", "")

	_, err := getConfigValue(cmd, key, true)
	require.ErrorContains(err, "required value")

	v, err := getConfigValue(cmd, key, false)
	require.NoError(err)
	require.Empty(v)

	viper.Set(key, "from-config")
	v, err = getConfigValue(cmd, key, true)
	require.NoError(err)
	require.Equal("from-config", v)

	require.NoError(cmd.Flags().Set(key, "from-flag"))
	v, err = getConfigValue(cmd, key, true)
	require.NoError(err)
	require.Equal("from-flag", v)
}

func TestLoadKey(t *testing.T) {
	require := require.New(t)

	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(err)

	cmd := newTestCommand()
	require.NoError(cmd.Flags().Set("key", " "+priv.String()+"\n"))
	loaded, err := loadKey(cmd)
	require.NoError(err)
	require.Equal(priv, loaded)

	cmd = newTestCommand()
	require.NoError(cmd.Flags().Set("key", "zz"))
	_, err = loadKey(cmd)
	require.ErrorContains(err, "failed to decode key")
}

func TestResponseStrings(t *testing.T) {
	require := require.New(t)

	addr := codec.Address{1}
	missing := counterResponse{Address: addr, CounterReply: &rpc.CounterReply{}}
	require.Contains(missing.String(), "does not exist")

	found := counterResponse{
		Address: addr,
		CounterReply: &rpc.CounterReply{
			Exists:  true,
			Count:   3,
			Owner:   codec.Address{2},
			Balance: 1_500_000_000,
		},
	}
	s := found.String()
	require.Contains(s, "count:{{/}} 3")
	require.Contains(s, codec.Address{2}.String())
	require.Contains(s, "1.500000000")

	bal := balanceResponse{Address: addr, Balance: 42}
	require.True(strings.HasSuffix(bal.String(), "0.000000042"))
}
