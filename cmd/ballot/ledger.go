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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/ballot/internal/node"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/state"
	"github.com/blinklabs-io/ballot/wallet"
)

// runWithNode opens a node, connects the configured wallet and runs fn. The
// context is cancelled on SIGINT or SIGTERM.
func runWithNode(
	cmd *cobra.Command,
	fn func(ctx context.Context, n *node.Node) error,
) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}
	logger := commonRun(slog.LevelWarn)
	ctx, stop := signal.NotifyContext(
		cmd.Context(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()
	var approve wallet.ApproveFunc
	if !cfg.AutoApprove {
		approve = node.PromptApprover(os.Stdin, os.Stderr)
	}
	n, err := node.New(cfg, logger, node.Options{Approve: approve})
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
		}
	}()
	if err := n.Connect(ctx); err != nil {
		return err
	}
	return fn(ctx, n)
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the connected identity and its registration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithNode(cmd, func(_ context.Context, n *node.Node) error {
				s := n.App().Snapshot()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "Address:\t%s\n", s.Session.Address)
				fmt.Fprintf(w, "Session:\t%s\n", s.Session.ID)
				fmt.Fprintf(w, "Registered:\t%t\n", s.Registered)
				fmt.Fprintf(w, "Proposals:\t%d\n", len(s.Proposals))
				fmt.Fprintf(w, "Block:\t%d\n", n.Ledger().Block())
				return w.Flush()
			})
		},
	}
}

func registerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register the connected identity as a voter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithNode(cmd, func(ctx context.Context, n *node.Node) error {
				if n.App().Snapshot().Registered {
					fmt.Fprintln(cmd.OutOrStdout(), "Already registered")
					return nil
				}
				if err := n.App().Register(ctx); err != nil {
					return err
				}
				printReceipt(cmd.OutOrStdout(), n.App().Snapshot())
				return nil
			})
		},
	}
}

func proposeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "propose <description>",
		Short: "Create a new proposal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(ctx context.Context, n *node.Node) error {
				app := n.App()
				app.SetDescriptionDraft(strings.Join(args, " "))
				if err := app.CreateProposal(ctx); err != nil {
					return err
				}
				s := app.Snapshot()
				printReceipt(cmd.OutOrStdout(), s)
				return printProposals(cmd.OutOrStdout(), s)
			})
		},
	}
}

func voteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <proposal-id>",
		Short: "Vote for a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithNode(cmd, func(ctx context.Context, n *node.Node) error {
				app := n.App()
				app.SetVoteDraft(args[0])
				if err := app.Vote(ctx); err != nil {
					return err
				}
				s := app.Snapshot()
				printReceipt(cmd.OutOrStdout(), s)
				return printProposals(cmd.OutOrStdout(), s)
			})
		},
	}
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithNode(cmd, func(_ context.Context, n *node.Node) error {
				return printProposals(cmd.OutOrStdout(), n.App().Snapshot())
			})
		},
	}
}

func printReceipt(out io.Writer, s state.State) {
	if s.LastReceipt == nil {
		return
	}
	fmt.Fprintf(
		out,
		"Confirmed %s in block %d (tx %s)\n",
		s.LastReceipt.Op,
		s.LastReceipt.Block,
		s.LastReceipt.TxHash,
	)
}

func printProposals(out io.Writer, s state.State) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tVOTES\tENDS\tDESCRIPTION")
	for _, p := range s.Proposals {
		fmt.Fprintf(
			w,
			"%s\t%s\t%d\t%s\t%s\n",
			strconv.FormatUint(p.ID, 10),
			proposalStatus(p),
			p.VoteCount,
			p.EndTime.Local().Format(time.DateTime),
			p.Description,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if s.Truncated {
		fmt.Fprintln(out, "More proposals may exist beyond the probe bound")
	}
	return nil
}

func proposalStatus(p ledger.Proposal) string {
	if p.Active {
		return "active"
	}
	return "closed"
}
