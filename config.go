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

package ballot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/ballot/discovery"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/state"
)

type Config struct {
	contract         ledger.Contract
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	maxProbe         int
	probeLimit       int
	confirmTimeout   time.Duration
	queryTimeout     time.Duration
	retryMaxAttempts uint
	proposalDuration uint64
	shutdownTimeout  time.Duration
	tracing          bool
	tracingStdout    bool
}

func (c *Config) validate() error {
	if c.contract == nil {
		return errors.New("no contract configured")
	}
	if c.maxProbe < 1 {
		return fmt.Errorf("max probe %d: %w", c.maxProbe, discovery.ErrInvalidProbeBound)
	}
	if c.probeLimit != 0 && c.probeLimit < c.maxProbe {
		return fmt.Errorf(
			"probe limit (%d) must not be below max probe (%d)",
			c.probeLimit,
			c.maxProbe,
		)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the client config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new ballot config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		logger:           slog.New(slog.NewJSONHandler(io.Discard, nil)),
		maxProbe:         discovery.DefaultMaxProbe,
		proposalDuration: state.DefaultProposalDuration,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithContract specifies the voting contract to operate against. This is required
func WithContract(contract ledger.Contract) ConfigOptionFunc {
	return func(c *Config) {
		c.contract = contract
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithMaxProbe specifies how many proposal ids are probed per scan. The default is 10
func WithMaxProbe(maxProbe int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxProbe = maxProbe
	}
}

// WithProbeLimit enables adaptive widening of the probe bound up to limit. The default of 0 disables widening
func WithProbeLimit(limit int) ConfigOptionFunc {
	return func(c *Config) {
		c.probeLimit = limit
	}
}

// WithConfirmTimeout specifies how long to wait for a transaction to be confirmed. The default is 2 minutes
func WithConfirmTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.confirmTimeout = timeout
	}
}

// WithQueryTimeout specifies the timeout for a single ledger read. The default is 15 seconds
func WithQueryTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.queryTimeout = timeout
	}
}

// WithRetryMaxAttempts specifies how many times a read is attempted on transport failure. The default is 3
func WithRetryMaxAttempts(attempts uint) ConfigOptionFunc {
	return func(c *Config) {
		c.retryMaxAttempts = attempts
	}
}

// WithProposalDuration specifies the voting period in minutes for new proposals. The default is 10
func WithProposalDuration(minutes uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.proposalDuration = minutes
	}
}

// WithShutdownTimeout specifies the timeout for flushing traces on Stop. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
