// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/countervm/config"
	"github.com/ava-labs/countervm/genesis"
	"github.com/ava-labs/countervm/pebble"
	"github.com/ava-labs/countervm/rpc"
	"github.com/ava-labs/countervm/server"
	"github.com/ava-labs/countervm/trace"
	"github.com/ava-labs/countervm/utils"
	"github.com/ava-labs/countervm/vm"
)

const (
	metricsEndpoint = "metrics"
	stateDir        = "state"
	logsDir         = "logs"
)

// loadConfig applies command line overrides on top of the config file.
func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load(*f.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if len(*f.dataDir) > 0 {
		cfg.DatabaseDir = *f.dataDir
	}
	if len(*f.logLevel) > 0 {
		cfg.LogLevel, err = logging.ToLevel(*f.logLevel)
		if err != nil {
			return nil, err
		}
	}
	if *f.httpPort > 0 {
		cfg.HTTPPort = uint16(*f.httpPort)
	}
	return cfg, cfg.Verify()
}

func loadGenesis(path string) (*genesis.Genesis, error) {
	if len(path) == 0 {
		return genesis.Default(), nil
	}
	return genesis.LoadFile(path)
}

func newLogger(cfg *config.Config) (*logFactory, logging.Logger, error) {
	logDir := cfg.LogDir
	if len(logDir) == 0 {
		logDir = filepath.Join(os.TempDir(), "countervm", logsDir)
	}
	factory := newLogFactory(logging.Config{
		RotatingWriterConfig: logging.RotatingWriterConfig{
			MaxSize:   8, // megabytes
			MaxFiles:  4,
			MaxAge:    7, // days
			Directory: logDir,
			Compress:  true,
		},
		LogLevel:     cfg.LogLevel,
		DisplayLevel: cfg.LogDisplayLevel,
		LogFormat:    logging.JSON,
	})
	log, err := factory.Make("countervm")
	if err != nil {
		factory.Close()
		return nil, nil, err
	}
	return factory, log, nil
}

func openDatabase(cfg *config.Config, registerer prometheus.Registerer) (vm.Database, error) {
	if len(cfg.DatabaseDir) == 0 {
		return memdb.New(), nil
	}
	dir, err := utils.InitSubDirectory(cfg.DatabaseDir, stateDir)
	if err != nil {
		return nil, err
	}
	db, err := pebble.New(dir, cfg.Pebble, registerer)
	if err != nil {
		return nil, err
	}
	return db, nil
}

type route struct {
	base    string
	handler http.Handler
}

// newServer serves [routes] on [listener]. The listener is closed if any
// route cannot be added.
func newServer(log logging.Logger, cfg *config.Config, listener net.Listener, routes []route) (server.Server, error) {
	srv, err := server.New(
		"",
		log,
		listener,
		cfg.HTTP,
		cfg.AllowedOrigins,
		cfg.AllowedHosts,
		cfg.ShutdownTimeout,
	)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	for _, r := range routes {
		if err := srv.AddRoute(r.handler, r.base, ""); err != nil {
			_ = srv.Shutdown()
			_ = listener.Close()
			return nil, err
		}
	}
	return srv, nil
}

func run(ctx context.Context, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	g, err := loadGenesis(*f.genesisFile)
	if err != nil {
		return fmt.Errorf("failed to load genesis: %w", err)
	}

	factory, log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer factory.Close()

	tracer, err := trace.New(&cfg.Trace)
	if err != nil {
		return err
	}
	defer tracer.Close()

	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}

	db, err := openDatabase(cfg, registry)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	v, err := vm.New(ctx, log, tracer, registry, db, g, vm.WithParallelism(cfg.Parallelism))
	if err != nil {
		_ = db.Close()
		return err
	}

	handler, err := server.NewJSONRPCHandler(rpc.NewJSONRPCServer(v), rpc.Name)
	if err != nil {
		_ = v.Shutdown(ctx)
		return err
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(int(cfg.HTTPPort))))
	if err != nil {
		_ = v.Shutdown(ctx)
		return err
	}
	srv, err := newServer(log, cfg, listener, []route{
		{base: rpc.JSONRPCEndpoint[1:], handler: handler},
		{base: metricsEndpoint, handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})},
	})
	if err != nil {
		_ = v.Shutdown(ctx)
		return err
	}

	log.Info("starting countervm",
		zap.Stringer("addr", srv.Addr()),
		zap.Stringer("chainID", v.ChainID()),
		zap.String("databaseDir", cfg.DatabaseDir),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(srv.Dispatch)
	eg.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return errors.Join(srv.Shutdown(), v.Shutdown(context.Background()))
	})
	return eg.Wait()
}
