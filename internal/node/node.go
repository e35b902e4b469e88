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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/ballot"
	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/internal/config"
	"github.com/blinklabs-io/ballot/internal/devnet"
	"github.com/blinklabs-io/ballot/state"
	"github.com/blinklabs-io/ballot/wallet"
)

// Options carries the runtime dependencies that do not come from the config file
type Options struct {
	PromRegistry prometheus.Registerer
	// Approve is consulted for wallet access and signatures. Nil approves
	// everything.
	Approve wallet.ApproveFunc
}

// Node owns the store, the devnet contract, the wallet and the client built
// on top of them
type Node struct {
	config   *config.Config
	logger   *slog.Logger
	db       *database.Database
	ledger   *devnet.Ledger
	provider *wallet.KeyfileProvider
	client   *ballot.Client
}

func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Node, error) {
	durations, err := cfg.ParseDurations()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	n := &Node{
		config: cfg,
		logger: logger,
	}
	n.db, err = database.New(&database.Config{
		Logger:       logger,
		PromRegistry: opts.PromRegistry,
		Plugin:       cfg.Store,
		DataDir:      cfg.DatabasePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	n.ledger, err = devnet.New(devnet.Config{
		Database:        n.db,
		Logger:          logger,
		ContractAddress: cfg.ContractAddress,
		ConfirmDelay:    durations.ConfirmDelay,
	})
	if err != nil {
		_ = n.db.Close()
		return nil, fmt.Errorf("failed to start devnet: %w", err)
	}
	n.provider = wallet.NewKeyfileProvider(wallet.KeyfileConfig{
		Path:    cfg.KeyFile,
		Approve: opts.Approve,
		Logger:  logger,
	})
	n.client, err = ballot.New(
		ballot.NewConfig(
			ballot.WithContract(n.ledger),
			ballot.WithLogger(logger),
			ballot.WithPrometheusRegistry(opts.PromRegistry),
			ballot.WithMaxProbe(cfg.MaxProbe),
			ballot.WithProbeLimit(cfg.ProbeLimit),
			ballot.WithConfirmTimeout(durations.ConfirmTimeout),
			ballot.WithQueryTimeout(durations.QueryTimeout),
			ballot.WithRetryMaxAttempts(cfg.RetryMaxAttempts),
			ballot.WithProposalDuration(cfg.ProposalDuration),
			ballot.WithTracing(cfg.Tracing),
			ballot.WithTracingStdout(cfg.TracingStdout),
		),
	)
	if err != nil {
		_ = n.ledger.Close()
		_ = n.db.Close()
		return nil, err
	}
	return n, nil
}

// App returns the application state driver
func (n *Node) App() *state.App {
	return n.client.App()
}

func (n *Node) Client() *ballot.Client {
	return n.client
}

// Ledger returns the devnet contract
func (n *Node) Ledger() *devnet.Ledger {
	return n.ledger
}

// Connect opens a session for the configured key file
func (n *Node) Connect(ctx context.Context) error {
	return n.client.App().Connect(ctx, n.provider)
}

// Close stops the client, fails any unconfirmed transactions and closes the store
func (n *Node) Close() error {
	var err error
	if stopErr := n.client.Stop(); stopErr != nil {
		err = errors.Join(err, fmt.Errorf("client shutdown: %w", stopErr))
	}
	if closeErr := n.ledger.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("devnet shutdown: %w", closeErr))
	}
	if closeErr := n.db.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
	}
	return err
}
