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

package plugin

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/blinklabs-io/ballot/database/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Store is implemented by every storage plugin. Each method is atomic.
type Store interface {
	IsRegistered(addr string) (bool, error)
	// AddRegistration returns models.ErrAlreadyRegistered for a known address
	AddRegistration(reg models.Registration) error
	// AddProposal assigns the next sequential id, stores the proposal and
	// returns the id
	AddProposal(proposal models.Proposal) (uint64, error)
	// GetProposal returns models.ErrProposalNotFound for an unknown id
	GetProposal(id uint64) (models.Proposal, error)
	ProposalCount() (uint64, error)
	HasVoted(proposalID uint64, voter string) (bool, error)
	// AddVote stores the vote and increments the proposal vote count. It
	// returns models.ErrAlreadyVoted for a repeat vote.
	AddVote(vote models.Vote) error
	Close() error
}

// Config is passed to a plugin constructor. An empty DataDir selects an
// in-memory store.
type Config struct {
	DataDir      string
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

type PluginEntry struct {
	Name        string
	Description string
	NewFunc     func(Config) (Store, error)
}

var (
	pluginEntries      []PluginEntry
	pluginEntriesMutex sync.RWMutex
)

// Register adds a plugin to the registry, replacing any entry with the same name
func Register(entry PluginEntry) {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	pluginEntries = slices.DeleteFunc(
		pluginEntries,
		func(p PluginEntry) bool { return p.Name == entry.Name },
	)
	pluginEntries = append(pluginEntries, entry)
}

// GetPlugin returns the named plugin entry, or nil
func GetPlugin(name string) *PluginEntry {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, p := range pluginEntries {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

// GetPlugins returns all registered plugins sorted by name
func GetPlugins() []PluginEntry {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	ret := slices.Clone(pluginEntries)
	slices.SortFunc(ret, func(a, b PluginEntry) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return ret
}

// New creates a store from the named plugin
func New(name string, cfg Config) (Store, error) {
	p := GetPlugin(name)
	if p == nil {
		return nil, fmt.Errorf("storage plugin '%s' not found", name)
	}
	store, err := p.NewFunc(cfg)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to start storage plugin '%s': %w",
			name,
			err,
		)
	}
	return store, nil
}
