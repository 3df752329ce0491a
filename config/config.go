// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/countervm/pebble"
	"github.com/ava-labs/countervm/server"
	"github.com/ava-labs/countervm/trace"
)

var (
	ErrInvalidParallelism = errors.New("parallelism must be positive")
	ErrInvalidPort        = errors.New("invalid http port")
)

type Config struct {
	// Logging
	LogLevel        logging.Level `json:"logLevel"`
	LogDisplayLevel logging.Level `json:"logDisplayLevel"`
	LogDir          string        `json:"logDir"`

	// Storage. An empty directory keeps state in memory.
	DatabaseDir string        `json:"databaseDir"`
	Pebble      pebble.Config `json:"pebble"`

	// API
	HTTPHost        string            `json:"httpHost"`
	HTTPPort        uint16            `json:"httpPort"`
	HTTP            server.HTTPConfig `json:"http"`
	AllowedOrigins  []string          `json:"allowedOrigins"`
	AllowedHosts    []string          `json:"allowedHosts"`
	ShutdownTimeout time.Duration     `json:"shutdownTimeout"`

	// Execution
	Parallelism int `json:"parallelism"`

	Trace trace.Config `json:"trace"`
}

func New(b []byte) (*Config, error) {
	c := &Config{
		LogLevel:        logging.Info,
		LogDisplayLevel: logging.Info,
		Pebble:          pebble.NewDefaultConfig(),
		HTTPHost:        "127.0.0.1",
		HTTPPort:        9650,
		HTTP: server.HTTPConfig{
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		AllowedOrigins:  []string{"*"},
		AllowedHosts:    []string{"localhost"},
		ShutdownTimeout: 10 * time.Second,
		Parallelism:     runtime.NumCPU(),
		Trace: trace.Config{
			SampleRate: 0.1,
			AppName:    "countervm",
			Agent:      "countervm",
		},
	}

	if len(b) > 0 {
		if err := json.Unmarshal(b, c); err != nil {
			return nil, err
		}
	}
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a config file. A missing path yields the defaults.
func Load(path string) (*Config, error) {
	if len(path) == 0 {
		return New(nil)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(b)
}

func (c *Config) Verify() error {
	if c.Parallelism <= 0 {
		return ErrInvalidParallelism
	}
	if c.HTTPPort == 0 {
		return ErrInvalidPort
	}
	return nil
}
