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

package state_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/ballot/discovery"
	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/internal/devnet"
	"github.com/blinklabs-io/ballot/internal/test/testutil"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/session"
	"github.com/blinklabs-io/ballot/state"
	"github.com/blinklabs-io/ballot/wallet"
)

// gatedContract wraps a contract, holding confirmations until released and
// optionally failing proposal lookups
type gatedContract struct {
	ledger.Contract
	gate       chan struct{}
	failLookup atomic.Bool
	gated      atomic.Bool
}

type gatedTx struct {
	ledger.PendingTx
	gate chan struct{}
}

func (t *gatedTx) Wait(ctx context.Context) (ledger.Receipt, error) {
	select {
	case <-t.gate:
	case <-ctx.Done():
		return ledger.Receipt{}, ctx.Err()
	}
	return t.PendingTx.Wait(ctx)
}

func (c *gatedContract) wrap(tx ledger.PendingTx, err error) (ledger.PendingTx, error) {
	if err != nil || !c.gated.Load() {
		return tx, err
	}
	return &gatedTx{PendingTx: tx, gate: c.gate}, nil
}

func (c *gatedContract) CreateProposal(
	ctx context.Context,
	signer wallet.Signer,
	description string,
	durationMinutes uint64,
) (ledger.PendingTx, error) {
	return c.wrap(c.Contract.CreateProposal(ctx, signer, description, durationMinutes))
}

func (c *gatedContract) GetProposal(ctx context.Context, id uint64) (ledger.Proposal, error) {
	if c.failLookup.Load() {
		return ledger.Proposal{}, errors.New("rpc unavailable")
	}
	return c.Contract.GetProposal(ctx, id)
}

type testEnv struct {
	app      *state.App
	devnet   *devnet.Ledger
	contract *gatedContract
	provider *wallet.StaticProvider
	bus      *event.EventBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := testutil.NewDevnet(t)
	contract := &gatedContract{Contract: l, gate: make(chan struct{})}
	bus := event.NewEventBus(nil, nil)
	sessions, err := session.NewManager(session.ManagerConfig{
		Contract: contract,
		EventBus: bus,
		Ledger: ledger.ClientConfig{
			RetryMaxAttempts:     1,
			RetryInitialInterval: time.Millisecond,
		},
	})
	require.NoError(t, err)
	app, err := state.NewApp(state.AppConfig{
		Sessions: sessions,
		Scanner:  discovery.NewScanner(discovery.WithMaxProbe(10)),
		EventBus: bus,
	})
	require.NoError(t, err)
	return &testEnv{
		app:      app,
		devnet:   l,
		contract: contract,
		provider: testutil.NewProvider(t, nil),
		bus:      bus,
	}
}

func (e *testEnv) connectAndRegister(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.app.Connect(ctx, e.provider))
	require.NoError(t, e.app.Register(ctx))
}

func requireValidationError(t *testing.T, err error) {
	t.Helper()
	var validationErr *ledger.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestConnectRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.app.Connect(ctx, env.provider))
	s := env.app.Snapshot()
	assert.True(t, s.Session.Connected)
	assert.Equal(t, env.provider.Address(), s.Session.Address)
	assert.False(t, s.Registered)
	assert.Empty(t, s.Proposals)
	assert.False(t, s.Pending)

	require.NoError(t, env.app.Register(ctx))
	s = env.app.Snapshot()
	assert.True(t, s.Registered)
	require.NotNil(t, s.LastReceipt)
	assert.Equal(t, ledger.OpRegisterUser, s.LastReceipt.Op)

	ok, err := env.devnet.IsRegistered(ctx, env.provider.Address())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateAndVote(t *testing.T) {
	env := newTestEnv(t)
	env.connectAndRegister(t)
	ctx := context.Background()

	env.app.SetDescriptionDraft("Upgrade protocol")
	require.NoError(t, env.app.CreateProposal(ctx))
	s := env.app.Snapshot()
	require.Len(t, s.Proposals, 1)
	p := s.Proposals[0]
	assert.Equal(t, uint64(1), p.ID)
	assert.Equal(t, "Upgrade protocol", p.Description)
	assert.Equal(t, uint64(0), p.VoteCount)
	assert.True(t, p.Active)
	assert.Equal(t, p.StartTime.Add(10*time.Minute), p.EndTime)
	assert.Empty(t, s.DescriptionDraft)
	assert.False(t, s.Truncated)

	env.app.SetVoteDraft("1")
	require.NoError(t, env.app.Vote(ctx))
	s = env.app.Snapshot()
	require.Len(t, s.Proposals, 1)
	assert.Equal(t, uint64(1), s.Proposals[0].VoteCount)
	assert.Empty(t, s.VoteDraft)
	require.NotNil(t, s.Notice)
	assert.Equal(t, state.NoticeInfo, s.Notice.Level)
}

func TestEmptyDescriptionMakesNoLedgerCall(t *testing.T) {
	env := newTestEnv(t)
	env.connectAndRegister(t)
	block := env.devnet.Block()

	for _, draft := range []string{"", "   "} {
		env.app.SetDescriptionDraft(draft)
		err := env.app.CreateProposal(context.Background())
		requireValidationError(t, err)
	}
	assert.Equal(t, block, env.devnet.Block())
	s := env.app.Snapshot()
	assert.False(t, s.Pending)
	require.NotNil(t, s.Notice)
	assert.Equal(t, state.NoticeError, s.Notice.Level)
	assert.Equal(t, "   ", s.DescriptionDraft)
}

func TestInvalidVoteDraft(t *testing.T) {
	env := newTestEnv(t)
	env.connectAndRegister(t)
	block := env.devnet.Block()

	for _, draft := range []string{"", "0", "-1", "abc", "1.5"} {
		env.app.SetVoteDraft(draft)
		err := env.app.Vote(context.Background())
		requireValidationError(t, err)
		assert.Equal(t, draft, env.app.Snapshot().VoteDraft)
	}
	assert.Equal(t, block, env.devnet.Block())
}

func TestRevertRetainsState(t *testing.T) {
	env := newTestEnv(t)
	env.connectAndRegister(t)
	before := env.app.Snapshot()

	// Voting on a proposal that does not exist is rejected by the ledger
	env.app.SetVoteDraft("5")
	err := env.app.Vote(context.Background())
	var txErr *ledger.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, ledger.TxReverted, txErr.Kind)

	s := env.app.Snapshot()
	assert.False(t, s.Pending)
	assert.Equal(t, "5", s.VoteDraft)
	assert.Equal(t, before.Proposals, s.Proposals)
	assert.Equal(t, before.LastReceipt, s.LastReceipt)
	require.NotNil(t, s.Notice)
	assert.Equal(t, state.NoticeError, s.Notice.Level)

	// Registering twice is reportable, not fatal
	err = env.app.Register(context.Background())
	require.ErrorAs(t, err, &txErr)
	assert.True(t, env.app.Snapshot().Registered)
}

func TestPendingRejectsSecondOperation(t *testing.T) {
	env := newTestEnv(t)
	env.connectAndRegister(t)
	ctx := context.Background()
	env.contract.gated.Store(true)

	env.app.SetDescriptionDraft("Upgrade protocol")
	done := make(chan error, 1)
	go func() {
		done <- env.app.CreateProposal(ctx)
	}()
	testutil.WaitForCondition(
		t,
		func() bool { return env.app.Snapshot().Pending },
		"operation never became pending",
	)

	env.app.SetVoteDraft("1")
	require.ErrorIs(t, env.app.Vote(ctx), ledger.ErrOperationPending)
	require.ErrorIs(t, env.app.Refresh(ctx), ledger.ErrOperationPending)
	require.ErrorIs(t, env.app.Disconnect(), ledger.ErrOperationPending)

	close(env.contract.gate)
	require.NoError(t, <-done)
	s := env.app.Snapshot()
	assert.False(t, s.Pending)
	assert.Len(t, s.Proposals, 1)
}

func TestRefreshFailureRetainsProposals(t *testing.T) {
	env := newTestEnv(t)
	env.connectAndRegister(t)
	ctx := context.Background()
	env.app.SetDescriptionDraft("Upgrade protocol")
	require.NoError(t, env.app.CreateProposal(ctx))
	before := env.app.Snapshot()

	env.contract.failLookup.Store(true)
	err := env.app.Refresh(ctx)
	var discErr *discovery.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	assert.Equal(t, uint64(1), discErr.ID)
	s := env.app.Snapshot()
	assert.Equal(t, before.Proposals, s.Proposals)
	assert.False(t, s.Pending)

	// A confirmed vote whose rescan fails names the transaction
	env.app.SetVoteDraft("1")
	err = env.app.Vote(ctx)
	require.ErrorAs(t, err, &discErr)
	s = env.app.Snapshot()
	require.NotNil(t, s.Notice)
	assert.Contains(t, s.Notice.Message, "refresh after transaction")
	assert.Equal(t, before.Proposals, s.Proposals)
	// The failed transition leaves the receipt and draft as they were
	assert.Equal(t, before.LastReceipt, s.LastReceipt)
	assert.Equal(t, "1", s.VoteDraft)

	env.contract.failLookup.Store(false)
	require.NoError(t, env.app.Refresh(ctx))
	assert.Equal(t, uint64(1), env.app.Snapshot().Proposals[0].VoteCount)
}

func TestOperationsRequireSession(t *testing.T) {
	env := newTestEnv(t)
	err := env.app.Register(context.Background())
	require.ErrorIs(t, err, session.ErrNotConnected)
	err = env.app.Refresh(context.Background())
	require.ErrorIs(t, err, session.ErrNotConnected)
	assert.False(t, env.app.Snapshot().Pending)
}

func TestDisconnectResetsState(t *testing.T) {
	env := newTestEnv(t)
	env.connectAndRegister(t)
	require.NoError(t, env.app.Disconnect())
	assert.Equal(t, state.State{}, env.app.Snapshot())
}

func TestNoticePublished(t *testing.T) {
	env := newTestEnv(t)
	_, noticeCh := env.bus.Subscribe(state.NoticeEventType)
	err := env.app.Connect(context.Background(), nil)
	var connErr *session.ConnectionError
	require.ErrorAs(t, err, &connErr)

	evt := testutil.RequireReceive(t, noticeCh, "notice")
	notice, ok := evt.Data.(state.Notice)
	require.True(t, ok)
	assert.Equal(t, state.NoticeError, notice.Level)
	assert.Contains(t, notice.Message, "connect")
}
