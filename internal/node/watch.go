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
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/state"
)

const metricsShutdownTimeout = 5 * time.Second

// Watch connects, then refreshes the proposal set on every watch interval
// and serves metrics from gatherer until ctx is done. A nil gatherer disables
// the metrics listener.
func (n *Node) Watch(ctx context.Context, gatherer prometheus.Gatherer) error {
	durations, err := n.config.ParseDurations()
	if err != nil {
		return err
	}
	if err := n.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	logger := n.logger.With("component", "node")
	bus := n.client.EventBus()
	txSubs := []event.EventType{
		ledger.TransactionConfirmedEventType,
		ledger.TransactionFailedEventType,
	}
	var subIds []event.EventSubscriberId
	for _, evtType := range txSubs {
		subIds = append(subIds, bus.SubscribeFunc(evtType, func(evt event.Event) {
			if data, ok := evt.Data.(ledger.TransactionEvent); ok {
				logger.Info(
					"transaction "+string(evt.Type),
					"op", data.Op,
					"tx_hash", data.Receipt.TxHash,
				)
			}
		}))
	}
	defer func() {
		for i, evtType := range txSubs {
			bus.Unsubscribe(evtType, subIds[i])
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if gatherer != nil {
		addr := net.JoinHostPort(
			n.config.MetricsBindAddr,
			strconv.FormatUint(uint64(n.config.MetricsPort), 10),
		)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		logger.Info("serving prometheus metrics on " + addr)
		g.Go(func() error {
			err := metricsServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				metricsShutdownTimeout,
			)
			defer cancel()
			//nolint:contextcheck
			return metricsServer.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		return n.refreshLoop(gctx, durations.WatchInterval)
	})
	return g.Wait()
}

func (n *Node) refreshLoop(ctx context.Context, interval time.Duration) error {
	logger := n.logger.With("component", "node")
	app := n.client.App()
	last := app.Snapshot()
	logProposals(n, last)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := app.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The previous proposal set is kept
			logger.Warn(fmt.Sprintf("refresh failed: %s", err))
			continue
		}
		current := app.Snapshot()
		if proposalsChanged(last, current) {
			logProposals(n, current)
		}
		last = current
	}
}

func logProposals(n *Node, s state.State) {
	n.logger.Info(
		"proposals",
		"component", "node",
		"count", len(s.Proposals),
		"truncated", s.Truncated,
	)
}

func proposalsChanged(prev, cur state.State) bool {
	if len(prev.Proposals) != len(cur.Proposals) {
		return true
	}
	for i := range prev.Proposals {
		if prev.Proposals[i].VoteCount != cur.Proposals[i].VoteCount ||
			prev.Proposals[i].Active != cur.Proposals[i].Active {
			return true
		}
	}
	return false
}
