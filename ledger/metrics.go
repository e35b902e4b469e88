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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger client collectors. A single Metrics is shared by
// every Client built for a session manager, since collectors can only be
// registered once.
type Metrics struct {
	txSubmitted     *prometheus.CounterVec
	txConfirmed     *prometheus.CounterVec
	txFailed        *prometheus.CounterVec
	pendingRejected prometheus.Counter
	queries         *prometheus.CounterVec
	queryRetries    *prometheus.CounterVec
	confirmSeconds  prometheus.Histogram
}

// NewMetrics creates the collectors. A nil registry yields unregistered
// collectors.
func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(promRegistry)
	return &Metrics{
		txSubmitted: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ballot_ledger_tx_submitted_total",
				Help: "transactions submitted to the ledger",
			},
			[]string{"op"},
		),
		txConfirmed: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ballot_ledger_tx_confirmed_total",
				Help: "transactions confirmed by the ledger",
			},
			[]string{"op"},
		),
		txFailed: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ballot_ledger_tx_failed_total",
				Help: "transactions that did not confirm, by reason",
			},
			[]string{"op", "reason"},
		),
		pendingRejected: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "ballot_ledger_tx_pending_rejected_total",
				Help: "mutations rejected locally because another was in flight",
			},
		),
		queries: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ballot_ledger_queries_total",
				Help: "ledger read queries by outcome",
			},
			[]string{"op", "outcome"},
		),
		queryRetries: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ballot_ledger_query_retries_total",
				Help: "ledger read queries retried after a transport failure",
			},
			[]string{"op"},
		),
		confirmSeconds: promautoFactory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ballot_ledger_tx_confirm_seconds",
				Help:    "time from submission to confirmation",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
	}
}
