// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"

	"github.com/ava-labs/countervm/consts"
)

type flags struct {
	configFile  *string
	genesisFile *string
	dataDir     *string
	logLevel    *string
	httpPort    *int
	version     *bool
}

func parseFlags(args []string) (*flags, error) {
	parser := argparse.NewParser(consts.Name, "Runs a countervm node serving the counter JSON-RPC API")
	f := &flags{
		configFile: parser.String("c", "config", &argparse.Options{
			Help: "path to the node config (JSON)",
		}),
		genesisFile: parser.String("g", "genesis", &argparse.Options{
			Help: "path to the genesis (JSON or YAML); defaults are used when unset",
		}),
		dataDir: parser.String("d", "data-dir", &argparse.Options{
			Help: "overrides databaseDir from the config; empty keeps state in memory",
		}),
		logLevel: parser.String("l", "log-level", &argparse.Options{
			Help: "overrides logLevel from the config",
		}),
		httpPort: parser.Int("p", "http-port", &argparse.Options{
			Help: "overrides httpPort from the config",
		}),
		version: parser.Flag("v", "version", &argparse.Options{
			Help: "print the version and exit",
		}),
	}
	if err := parser.Parse(args); err != nil {
		return nil, fmt.Errorf("%w\n%s", err, parser.Usage(nil))
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *f.version {
		fmt.Printf("%s@%s\n", consts.Name, consts.Version)
		os.Exit(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, f); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
