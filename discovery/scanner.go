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

package discovery

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/blinklabs-io/ballot/discovery")

type scannerMetrics struct {
	scans  *prometheus.CounterVec
	probes prometheus.Counter
	found  prometheus.Gauge
}

// Scanner runs scans with a fixed configuration, logging and metrics
type Scanner struct {
	logger     *slog.Logger
	metrics    *scannerMetrics
	maxProbe   int
	probeLimit int
}

type ScannerOptionFunc func(*Scanner)

// NewScanner returns a Scanner probing up to DefaultMaxProbe ids
func NewScanner(opts ...ScannerOptionFunc) *Scanner {
	s := &Scanner{
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		maxProbe: DefaultMaxProbe,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.initMetrics(nil)
	}
	s.logger = s.logger.With("component", "discovery")
	return s
}

func WithLogger(logger *slog.Logger) ScannerOptionFunc {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPrometheusRegistry(reg prometheus.Registerer) ScannerOptionFunc {
	return func(s *Scanner) {
		s.initMetrics(reg)
	}
}

// WithMaxProbe sets the initial probe bound
func WithMaxProbe(maxProbe int) ScannerOptionFunc {
	return func(s *Scanner) {
		s.maxProbe = maxProbe
	}
}

// WithProbeLimit enables widening: when a scan reaches its bound without
// finding the end of the sequence, the bound doubles until it reaches limit.
// A limit at or below the probe bound disables widening.
func WithProbeLimit(limit int) ScannerOptionFunc {
	return func(s *Scanner) {
		s.probeLimit = limit
	}
}

func (s *Scanner) MaxProbe() int {
	return s.maxProbe
}

// Scan rebuilds the full proposal set
func (s *Scanner) Scan(ctx context.Context, getter ProposalGetter) (Result, error) {
	ctx, span := tracer.Start(ctx, "discovery.Scan")
	defer span.End()
	span.SetAttributes(
		attribute.Int("discovery.max_probe", s.maxProbe),
		attribute.Int("discovery.probe_limit", s.probeLimit),
	)
	ret, err := scan(
		ctx,
		getter,
		s.maxProbe,
		s.probeLimit,
		func(id uint64, err error) {
			s.metrics.probes.Inc()
			s.logger.Debug("probed proposal", "id", id, "error", err)
		},
	)
	span.SetAttributes(
		attribute.Int("discovery.probes", ret.Probes),
		attribute.Int("discovery.found", len(ret.Proposals)),
		attribute.Bool("discovery.truncated", ret.Truncated),
	)
	if err != nil {
		s.metrics.scans.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("proposal scan failed", "error", err)
		return ret, err
	}
	s.metrics.found.Set(float64(len(ret.Proposals)))
	if ret.Truncated {
		s.metrics.scans.WithLabelValues("truncated").Inc()
		s.logger.Warn(
			"proposal scan reached probe bound, more proposals may exist",
			"found", len(ret.Proposals),
			"probes", ret.Probes,
		)
	} else {
		s.metrics.scans.WithLabelValues("complete").Inc()
		s.logger.Debug(
			"proposal scan complete",
			"found", len(ret.Proposals),
			"probes", ret.Probes,
		)
	}
	return ret, nil
}

func (s *Scanner) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	s.metrics = &scannerMetrics{
		scans: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ballot_discovery_scans_total",
				Help: "proposal scans by outcome",
			},
			[]string{"outcome"},
		),
		probes: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "ballot_discovery_probes_total",
				Help: "proposal lookups issued by scans",
			},
		),
		found: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ballot_discovery_proposals",
				Help: "proposals found by the last successful scan",
			},
		),
	}
}
