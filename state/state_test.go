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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/ballot/discovery"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/state"
)

func TestApplyDoesNotModifyInput(t *testing.T) {
	before := state.State{
		Proposals: []ledger.Proposal{{ID: 1, VoteCount: 3}},
		VoteDraft: "1",
	}
	after := state.Apply(before, state.VoteCast{
		Receipt: ledger.Receipt{TxHash: "abcd", Block: 9},
		Result: discovery.Result{
			Proposals: []ledger.Proposal{{ID: 1, VoteCount: 4}},
		},
		ProposalID: 1,
	})
	assert.Equal(t, uint64(3), before.Proposals[0].VoteCount)
	assert.Equal(t, "1", before.VoteDraft)
	assert.Nil(t, before.LastReceipt)

	assert.Equal(t, uint64(4), after.Proposals[0].VoteCount)
	assert.Empty(t, after.VoteDraft)
	require.NotNil(t, after.LastReceipt)
	assert.Equal(t, uint64(9), after.LastReceipt.Block)
}

func TestOperationFailedRetainsState(t *testing.T) {
	before := state.State{
		Proposals:        []ledger.Proposal{{ID: 1}},
		Registered:       true,
		DescriptionDraft: "draft",
	}
	pending := state.Apply(before, state.OperationStarted{})
	assert.True(t, pending.Pending)

	failed := state.Apply(pending, state.OperationFailed{
		Err:     errors.New("boom"),
		Message: "create proposal: boom",
	})
	assert.False(t, failed.Pending)
	require.NotNil(t, failed.Notice)
	assert.Equal(t, state.NoticeError, failed.Notice.Level)
	// Everything else is unchanged
	failed.Pending = false
	failed.Notice = nil
	assert.Equal(t, before, failed)
}

func TestConnectedWithoutResultKeepsProposals(t *testing.T) {
	before := state.State{Proposals: []ledger.Proposal{{ID: 1}, {ID: 2}}}
	after := state.Apply(before, state.Connected{
		Registered: true,
		ScanErr:    errors.New("rpc unavailable"),
	})
	assert.Len(t, after.Proposals, 2)
	assert.True(t, after.Registered)
	require.NotNil(t, after.Notice)
	assert.Equal(t, state.NoticeError, after.Notice.Level)
}

func TestProposalsLoadedTruncated(t *testing.T) {
	after := state.Apply(state.State{}, state.ProposalsLoaded{
		Result: discovery.Result{
			Proposals: []ledger.Proposal{{ID: 1}},
			Truncated: true,
		},
	})
	assert.True(t, after.Truncated)
	require.NotNil(t, after.Notice)
	assert.Equal(t, state.NoticeInfo, after.Notice.Level)

	p, ok := after.Proposal(1)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), p.ID)
	_, ok = after.Proposal(2)
	assert.False(t, ok)
}

func TestDisconnectedResets(t *testing.T) {
	before := state.State{
		Proposals:  []ledger.Proposal{{ID: 1}},
		Registered: true,
		VoteDraft:  "1",
	}
	assert.Equal(t, state.State{}, state.Apply(before, state.Disconnected{}))
}
