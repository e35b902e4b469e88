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

// Package ballot wires a wallet session, a voting ledger client, proposal
// discovery and the application state into a single client.
package ballot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/discovery"
	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/session"
	"github.com/blinklabs-io/ballot/state"
)

const defaultShutdownTimeout = 30 * time.Second

type Client struct {
	eventBus      *event.EventBus
	sessions      *session.Manager
	scanner       *discovery.Scanner
	app           *state.App
	shutdownFuncs []func(context.Context) error
	config        Config
	stopOnce      sync.Once
}

func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c := &Client{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
	}
	if cfg.tracing {
		if err := c.setupTracing(context.Background()); err != nil {
			return nil, err
		}
	}
	sessions, err := session.NewManager(session.ManagerConfig{
		Contract: cfg.contract,
		Logger:   cfg.logger,
		EventBus: c.eventBus,
		Ledger: ledger.ClientConfig{
			Metrics:          ledger.NewMetrics(cfg.promRegistry),
			ConfirmTimeout:   cfg.confirmTimeout,
			QueryTimeout:     cfg.queryTimeout,
			RetryMaxAttempts: cfg.retryMaxAttempts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	c.sessions = sessions
	c.scanner = discovery.NewScanner(
		discovery.WithLogger(cfg.logger),
		discovery.WithPrometheusRegistry(cfg.promRegistry),
		discovery.WithMaxProbe(cfg.maxProbe),
		discovery.WithProbeLimit(cfg.probeLimit),
	)
	app, err := state.NewApp(state.AppConfig{
		Sessions:         sessions,
		Scanner:          c.scanner,
		Logger:           cfg.logger,
		EventBus:         c.eventBus,
		ProposalDuration: cfg.proposalDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	c.app = app
	return c, nil
}

// App returns the application driving user actions
func (c *Client) App() *state.App {
	return c.app
}

func (c *Client) Sessions() *session.Manager {
	return c.sessions
}

func (c *Client) EventBus() *event.EventBus {
	return c.eventBus
}

// Scanner returns the proposal scanner used by the app
func (c *Client) Scanner() *discovery.Scanner {
	return c.scanner
}

// Stop disconnects any session, flushes traces and stops the event bus. It
// is safe to call more than once.
func (c *Client) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		err = c.shutdown()
	})
	return err
}

func (c *Client) shutdown() error {
	timeout := defaultShutdownTimeout
	if c.config.shutdownTimeout > 0 {
		timeout = c.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c.config.logger.Debug("shutting down", "component", "ballot")
	c.sessions.Disconnect()
	var err error
	for _, fn := range c.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	c.shutdownFuncs = nil
	c.eventBus.Stop()
	return err
}
