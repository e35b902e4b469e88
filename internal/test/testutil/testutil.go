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

// Package testutil provides shared fixtures for tests that need a running
// devnet ledger, a wallet, or deterministic waits on asynchronous results.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/internal/devnet"
	"github.com/blinklabs-io/ballot/wallet"
)

// DefaultTimeout bounds every wait in this package
const DefaultTimeout = 2 * time.Second

// NewDevnet returns a devnet ledger over an in-memory store that confirms
// transactions after one millisecond. Both are closed when the test ends.
func NewDevnet(t *testing.T, opts ...func(*devnet.Config)) *devnet.Ledger {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	cfg := devnet.Config{
		Database:     db,
		ConfirmDelay: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	l, err := devnet.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = l.Close()
		_ = db.Close()
	})
	return l
}

// NewProvider returns a wallet with a fresh random key
func NewProvider(t *testing.T, approve wallet.ApproveFunc) *wallet.StaticProvider {
	t.Helper()
	p, err := wallet.NewRandomProvider(approve)
	require.NoError(t, err)
	return p
}

// WaitForCondition polls condition until it returns true or DefaultTimeout
// expires
func WaitForCondition(t *testing.T, condition func() bool, msg string) {
	t.Helper()
	require.Eventually(t, condition, DefaultTimeout, time.Millisecond, msg)
}

// RequireReceive returns the next value from ch, failing the test if none
// arrives within DefaultTimeout
func RequireReceive[T any](t *testing.T, ch <-chan T, msg string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed: %s", msg)
		}
		return v
	case <-time.After(DefaultTimeout):
		t.Fatalf("timeout waiting for channel receive: %s", msg)
	}
	var zero T
	return zero
}

// RequireNoReceive fails the test if anything arrives on ch within d
func RequireNoReceive[T any](t *testing.T, ch <-chan T, d time.Duration, msg string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value received on channel: %v: %s", v, msg)
	case <-time.After(d):
	}
}
