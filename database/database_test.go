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

package database_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/database/models"
)

var testPlugins = []string{"sqlite", "badger"}

const (
	testVoterA = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c"
	testVoterB = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4"
)

func openTestDatabase(t *testing.T, pluginName, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{
		Plugin:  pluginName,
		DataDir: dataDir,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestPluginsRegistered(t *testing.T) {
	names := []string{}
	for _, p := range database.Plugins() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"badger", "sqlite"}, names)
}

func TestUnknownPlugin(t *testing.T) {
	_, err := database.New(&database.Config{Plugin: "postgres"})
	require.Error(t, err)
}

func TestRegistration(t *testing.T) {
	for _, pluginName := range testPlugins {
		t.Run(pluginName, func(t *testing.T) {
			db := openTestDatabase(t, pluginName, "")
			ok, err := db.IsRegistered(testVoterA)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, db.AddRegistration(models.Registration{
				Address:    testVoterA,
				TxHash:     make([]byte, 32),
				AddedBlock: 1,
			}))
			ok, err = db.IsRegistered(testVoterA)
			require.NoError(t, err)
			assert.True(t, ok)

			err = db.AddRegistration(models.Registration{Address: testVoterA})
			require.ErrorIs(t, err, models.ErrAlreadyRegistered)
		})
	}
}

func TestProposalSequentialIDs(t *testing.T) {
	for _, pluginName := range testPlugins {
		t.Run(pluginName, func(t *testing.T) {
			db := openTestDatabase(t, pluginName, "")
			for i := uint64(1); i <= 3; i++ {
				id, err := db.AddProposal(models.Proposal{
					Description: "Upgrade protocol",
					Creator:     testVoterA,
					StartTime:   1000,
					EndTime:     1600,
					TxHash:      make([]byte, 32),
				})
				require.NoError(t, err)
				assert.Equal(t, i, id)
			}
			count, err := db.ProposalCount()
			require.NoError(t, err)
			assert.Equal(t, uint64(3), count)

			p, err := db.GetProposal(2)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), p.ID)
			assert.Equal(t, "Upgrade protocol", p.Description)
			assert.Equal(t, int64(1600), p.EndTime)

			_, err = db.GetProposal(4)
			require.ErrorIs(t, err, models.ErrProposalNotFound)
			_, err = db.GetProposal(0)
			require.ErrorIs(t, err, models.ErrProposalNotFound)
		})
	}
}

func TestVotes(t *testing.T) {
	for _, pluginName := range testPlugins {
		t.Run(pluginName, func(t *testing.T) {
			db := openTestDatabase(t, pluginName, "")
			id, err := db.AddProposal(models.Proposal{
				Description: "Raise fee",
				Creator:     testVoterA,
			})
			require.NoError(t, err)

			require.NoError(t, db.AddVote(models.Vote{ProposalID: id, Voter: testVoterA}))
			require.NoError(t, db.AddVote(models.Vote{ProposalID: id, Voter: testVoterB}))
			err = db.AddVote(models.Vote{ProposalID: id, Voter: testVoterA})
			require.ErrorIs(t, err, models.ErrAlreadyVoted)
			err = db.AddVote(models.Vote{ProposalID: 99, Voter: testVoterA})
			require.ErrorIs(t, err, models.ErrProposalNotFound)

			voted, err := db.HasVoted(id, testVoterB)
			require.NoError(t, err)
			assert.True(t, voted)

			p, err := db.GetProposal(id)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), p.VoteCount)
		})
	}
}

func TestPersistence(t *testing.T) {
	for _, pluginName := range testPlugins {
		t.Run(pluginName, func(t *testing.T) {
			dataDir := t.TempDir()
			db, err := database.New(&database.Config{
				Plugin:  pluginName,
				DataDir: dataDir,
			})
			require.NoError(t, err)
			_, err = db.AddProposal(models.Proposal{Description: "persisted"})
			require.NoError(t, err)
			require.NoError(t, db.Close())

			db = openTestDatabase(t, pluginName, dataDir)
			p, err := db.GetProposal(1)
			require.NoError(t, err)
			assert.Equal(t, "persisted", p.Description)
			id, err := db.AddProposal(models.Proposal{Description: "next"})
			require.NoError(t, err)
			assert.Equal(t, uint64(2), id)
		})
	}
}

func TestDatabaseMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	db, err := database.New(&database.Config{PromRegistry: reg})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, database.DefaultPlugin, db.Plugin())

	_, err = db.GetProposal(1)
	require.ErrorIs(t, err, models.ErrProposalNotFound)
	count, err := testutil.GatherAndCount(reg, "ballot_database_ops_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
