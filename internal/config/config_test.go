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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ballot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Keep the search paths away from the real home directory
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	durations, err := cfg.ParseDurations()
	require.NoError(t, err)
	assert.Equal(t, Durations{
		ConfirmTimeout: 2 * time.Minute,
		QueryTimeout:   15 * time.Second,
		ConfirmDelay:   500 * time.Millisecond,
		WatchInterval:  30 * time.Second,
	}, durations)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
keyFile: "/keys/voter.skey"
databasePath: "/var/lib/ballot"
store: "badger"
contractAddress: "governance"
confirmTimeout: "30s"
maxProbe: 25
probeLimit: 100
proposalDuration: 60
autoApprove: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	expected := defaultConfig()
	expected.KeyFile = "/keys/voter.skey"
	expected.DatabasePath = "/var/lib/ballot"
	expected.Store = "badger"
	expected.ContractAddress = "governance"
	expected.ConfirmTimeout = "30s"
	expected.MaxProbe = 25
	expected.ProbeLimit = 100
	expected.ProposalDuration = 60
	expected.AutoApprove = true
	assert.Equal(t, expected, cfg)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
store: "badger"
maxProbe: 25
`)
	t.Setenv("BALLOT_STORE", "sqlite")
	t.Setenv("BALLOT_MAX_PROBE", "5")
	t.Setenv("BALLOT_KEY_FILE", "env.skey")
	t.Setenv("BALLOT_TRACING", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, 5, cfg.MaxProbe)
	assert.Equal(t, "env.skey", cfg.KeyFile)
	assert.True(t, cfg.Tracing)
}

func TestLoadErrors(t *testing.T) {
	testDefs := []struct {
		name    string
		content string
		errIs   error
	}{
		{name: "unknown store", content: `store: "postgres"`, errIs: ErrInvalidStore},
		{name: "bad duration", content: `queryTimeout: "soon"`},
		{name: "zero probe", content: `maxProbe: 0`},
		{name: "zero watch interval", content: `watchInterval: "0s"`},
		{name: "malformed yaml", content: `maxProbe: [`},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, testDef.content))
			require.Error(t, err)
			if testDef.errIs != nil {
				require.ErrorIs(t, err, testDef.errIs)
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
