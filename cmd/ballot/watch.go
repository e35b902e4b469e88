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

package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/ballot/internal/node"
)

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the proposal set and serve prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFromCommand(cmd)
			if err != nil {
				return err
			}
			logger := commonRun(slog.LevelInfo)
			var opts node.Options
			opts.PromRegistry = prometheus.DefaultRegisterer
			if !cfg.AutoApprove {
				opts.Approve = node.PromptApprover(cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			n, err := node.New(cfg, logger, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(
				cmd.Context(),
				syscall.SIGINT,
				syscall.SIGTERM,
			)
			defer stop()
			watchErr := n.Watch(ctx, prometheus.DefaultGatherer)
			if err := n.Close(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
			}
			if watchErr != nil {
				return watchErr
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}
