// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/database/plugin"
	"github.com/blinklabs-io/ballot/internal/devnet"
)

type ctxKey string

const configContextKey ctxKey = "ballot.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultConfirmTimeout = "2m"
	DefaultQueryTimeout   = "15s"
	DefaultWatchInterval  = "30s"
)

// ErrInvalidStore is returned when the configured store plugin is not registered
var ErrInvalidStore = errors.New("unknown store plugin")

type Config struct {
	KeyFile          string `yaml:"keyFile"          split_words:"true"`
	DatabasePath     string `yaml:"databasePath"     split_words:"true"`
	Store            string `yaml:"store"`
	ContractAddress  string `yaml:"contractAddress"  split_words:"true"`
	ConfirmTimeout   string `yaml:"confirmTimeout"   split_words:"true"`
	QueryTimeout     string `yaml:"queryTimeout"     split_words:"true"`
	ConfirmDelay     string `yaml:"confirmDelay"     split_words:"true"`
	MetricsBindAddr  string `yaml:"metricsBindAddr"  split_words:"true"`
	WatchInterval    string `yaml:"watchInterval"    split_words:"true"`
	MaxProbe         int    `yaml:"maxProbe"         split_words:"true"`
	ProbeLimit       int    `yaml:"probeLimit"       split_words:"true"`
	RetryMaxAttempts uint   `yaml:"retryMaxAttempts" split_words:"true"`
	ProposalDuration uint64 `yaml:"proposalDuration" split_words:"true"`
	MetricsPort      uint   `yaml:"metricsPort"      split_words:"true"`
	AutoApprove      bool   `yaml:"autoApprove"      split_words:"true"`
	Tracing          bool   `yaml:"tracing"`
	TracingStdout    bool   `yaml:"tracingStdout"    split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		KeyFile:          filepath.Join(".ballot", "payment.skey"),
		DatabasePath:     ".ballot",
		Store:            database.DefaultPlugin,
		ContractAddress:  devnet.DefaultContractAddress,
		ConfirmTimeout:   DefaultConfirmTimeout,
		QueryTimeout:     DefaultQueryTimeout,
		ConfirmDelay:     devnet.DefaultConfirmDelay.String(),
		MetricsBindAddr:  "127.0.0.1",
		WatchInterval:    DefaultWatchInterval,
		MetricsPort:      12799,
		MaxProbe:         10,
		RetryMaxAttempts: 3,
		ProposalDuration: 10,
	}
}

// searchPaths returns the config files consulted when none is given
func searchPaths() []string {
	var ret []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		ret = append(ret, filepath.Join(homeDir, ".ballot", "ballot.yaml"))
	}
	return append(ret, "/etc/ballot/ballot.yaml")
}

// Load builds the config from defaults, then the YAML file, then BALLOT_*
// environment variables. An empty configFile uses the first file found in the
// search paths, if any.
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile == "" {
		for _, path := range searchPaths() {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("ballot", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !slices.ContainsFunc(
		database.Plugins(),
		func(p plugin.PluginEntry) bool { return p.Name == c.Store },
	) {
		return fmt.Errorf("%w: %q", ErrInvalidStore, c.Store)
	}
	if _, err := c.ParseDurations(); err != nil {
		return err
	}
	if c.MaxProbe < 1 {
		return fmt.Errorf("invalid maxProbe: %d", c.MaxProbe)
	}
	return nil
}

// Durations holds the parsed duration settings
type Durations struct {
	ConfirmTimeout time.Duration
	QueryTimeout   time.Duration
	ConfirmDelay   time.Duration
	WatchInterval  time.Duration
}

func (c *Config) ParseDurations() (Durations, error) {
	var ret Durations
	for _, d := range []struct {
		dest *time.Duration
		name string
		val  string
	}{
		{&ret.ConfirmTimeout, "confirmTimeout", c.ConfirmTimeout},
		{&ret.QueryTimeout, "queryTimeout", c.QueryTimeout},
		{&ret.ConfirmDelay, "confirmDelay", c.ConfirmDelay},
		{&ret.WatchInterval, "watchInterval", c.WatchInterval},
	} {
		parsed, err := time.ParseDuration(d.val)
		if err != nil {
			return Durations{}, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dest = parsed
	}
	if ret.WatchInterval <= 0 {
		return Durations{}, fmt.Errorf("invalid watchInterval: %s", c.WatchInterval)
	}
	return ret, nil
}
