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
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/ballot/internal/config"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/wallet"
)

func testConfig(t *testing.T, store string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		KeyFile:          filepath.Join(dir, "payment.skey"),
		DatabasePath:     filepath.Join(dir, "data"),
		Store:            store,
		ContractAddress:  "test",
		ConfirmTimeout:   "5s",
		QueryTimeout:     "1s",
		ConfirmDelay:     "1ms",
		WatchInterval:    "5ms",
		MetricsBindAddr:  "127.0.0.1",
		MaxProbe:         10,
		RetryMaxAttempts: 1,
		ProposalDuration: 10,
	}
	require.NoError(t, cfg.Validate())
	_, err := wallet.GenerateKeyFile(cfg.KeyFile)
	require.NoError(t, err)
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNodeLifecycle(t *testing.T) {
	for _, store := range []string{"sqlite", "badger"} {
		t.Run(store, func(t *testing.T) {
			cfg := testConfig(t, store)
			ctx := context.Background()

			n, err := New(cfg, discardLogger(), Options{})
			require.NoError(t, err)
			require.NoError(t, n.Connect(ctx))
			app := n.App()
			require.NoError(t, app.Register(ctx))
			app.SetDescriptionDraft("Upgrade protocol")
			require.NoError(t, app.CreateProposal(ctx))
			app.SetVoteDraft("1")
			require.NoError(t, app.Vote(ctx))
			require.NoError(t, n.Close())

			// Ledger state survives a restart with the same data directory
			n, err = New(cfg, discardLogger(), Options{})
			require.NoError(t, err)
			defer n.Close()
			require.NoError(t, n.Connect(ctx))
			s := n.App().Snapshot()
			assert.True(t, s.Registered)
			require.Len(t, s.Proposals, 1)
			assert.Equal(t, "Upgrade protocol", s.Proposals[0].Description)
			assert.Equal(t, uint64(1), s.Proposals[0].VoteCount)
		})
	}
}

func TestNodeMissingKeyFile(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	cfg.KeyFile = filepath.Join(t.TempDir(), "missing.skey")
	n, err := New(cfg, discardLogger(), Options{})
	require.NoError(t, err)
	defer n.Close()
	require.Error(t, n.Connect(context.Background()))
	_, ok := n.Client().Sessions().Current()
	assert.False(t, ok)
}

func TestNodeRejectedSignature(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	// Approve access, then refuse to sign
	answers := strings.NewReader("y\nn\n")
	var prompts bytes.Buffer
	n, err := New(cfg, discardLogger(), Options{
		Approve: PromptApprover(answers, &prompts),
	})
	require.NoError(t, err)
	defer n.Close()
	ctx := context.Background()
	require.NoError(t, n.Connect(ctx))

	err = n.App().Register(ctx)
	var txErr *ledger.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, ledger.TxRejected, txErr.Kind)
	assert.Contains(t, prompts.String(), "Allow access to")
	assert.Contains(t, prompts.String(), "Sign ")
	assert.Equal(t, uint64(0), n.Ledger().Block())
}

func TestPromptApprover(t *testing.T) {
	testDefs := []struct {
		input    string
		expected bool
	}{
		{input: "y\n", expected: true},
		{input: "YES\n", expected: true},
		{input: "  y  \n", expected: true},
		{input: "n\n", expected: false},
		{input: "\n", expected: false},
		{input: "", expected: false},
		{input: "y", expected: true},
	}
	for _, testDef := range testDefs {
		var out bytes.Buffer
		approve := PromptApprover(strings.NewReader(testDef.input), &out)
		ok, err := approve(context.Background(), wallet.Request{
			Kind:    wallet.RequestAccess,
			Address: "addr_test",
		})
		require.NoError(t, err, "input %q", testDef.input)
		assert.Equal(t, testDef.expected, ok, "input %q", testDef.input)
		assert.Equal(t, "Allow access to addr_test? [y/N] ", out.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PromptApprover(strings.NewReader("y\n"), io.Discard)(
		ctx,
		wallet.Request{Kind: wallet.RequestSignature},
	)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWatch(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	reg := prometheus.NewRegistry()
	n, err := New(cfg, discardLogger(), Options{PromRegistry: reg})
	require.NoError(t, err)
	defer n.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// Port 0 binds an ephemeral port
	require.NoError(t, n.Watch(ctx, reg))
	s := n.App().Snapshot()
	assert.True(t, s.Session.Connected)
	assert.False(t, s.Pending)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "ballot_discovery_scans_total")
}
