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
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/state"
)

func TestListPlugins(t *testing.T) {
	out := listPlugins()
	assert.True(t, strings.HasPrefix(out, "Available store plugins:\n"))
	assert.Contains(t, out, "  badger: ")
	assert.Contains(t, out, "  sqlite: ")
	assert.Contains(t, out, "(default)")
}

func TestPrintProposals(t *testing.T) {
	end := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	s := state.State{
		Proposals: []ledger.Proposal{
			{ID: 1, Description: "Upgrade protocol", VoteCount: 3, EndTime: end, Active: true},
			{ID: 2, Description: "Raise fees", EndTime: end},
		},
		Truncated: true,
	}
	var buf bytes.Buffer
	require.NoError(t, printProposals(&buf, s))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"ID", "STATUS", "VOTES", "ENDS", "DESCRIPTION"}, strings.Fields(lines[0]))
	assert.Equal(
		t,
		[]string{"1", "active", "3", "2026-01-02", "03:04:05", "Upgrade", "protocol"},
		strings.Fields(lines[1]),
	)
	assert.Equal(t, "2", strings.Fields(lines[2])[0])
	assert.Equal(t, "closed", strings.Fields(lines[2])[1])
	assert.Contains(t, lines[3], "probe bound")
}

func TestPrintReceipt(t *testing.T) {
	var buf bytes.Buffer
	printReceipt(&buf, state.State{})
	assert.Empty(t, buf.String())

	printReceipt(&buf, state.State{LastReceipt: &ledger.Receipt{
		Op:     ledger.OpVote,
		TxHash: "abcd",
		Block:  7,
	}})
	assert.Equal(t, "Confirmed vote in block 7 (tx abcd)\n", buf.String())
}
