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

// Package database stores the state of the devnet voting contract behind a
// pluggable backend.
package database

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/plugin"

	// Register storage plugins
	_ "github.com/blinklabs-io/ballot/database/plugin/badger"
	_ "github.com/blinklabs-io/ballot/database/plugin/sqlite"
)

const DefaultPlugin = "sqlite"

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Plugin       string
	DataDir      string
}

// Database wraps a storage plugin with logging and metrics
type Database struct {
	store   plugin.Store
	logger  *slog.Logger
	metrics *databaseMetrics
	name    string
}

type databaseMetrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a new database using the configured plugin. An empty DataDir
// keeps all state in memory.
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	name := config.Plugin
	if name == "" {
		name = DefaultPlugin
	}
	store, err := plugin.New(
		name,
		plugin.Config{
			DataDir:      config.DataDir,
			Logger:       config.Logger,
			PromRegistry: config.PromRegistry,
		},
	)
	if err != nil {
		return nil, err
	}
	d := &Database{
		store:  store,
		logger: config.Logger.With("component", "database"),
		name:   name,
	}
	d.initMetrics(config.PromRegistry)
	d.logger.Debug(
		"opened database",
		"plugin", name,
		"in_memory", config.DataDir == "",
	)
	return d, nil
}

// Plugins returns the registered storage plugins
func Plugins() []plugin.PluginEntry {
	return plugin.GetPlugins()
}

func (d *Database) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	d.metrics = &databaseMetrics{
		ops: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ballot_database_ops_total",
				Help: "database operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ballot_database_op_seconds",
				Help:    "database operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

// observe records the outcome of an operation. Expected domain errors count
// as rejections rather than failures.
func (d *Database) observe(op string, start time.Time, err error) {
	d.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, models.ErrProposalNotFound),
		errors.Is(err, models.ErrAlreadyRegistered),
		errors.Is(err, models.ErrAlreadyVoted):
		outcome = "rejected"
	default:
		outcome = "error"
		d.logger.Error(
			"database operation failed",
			"op", op,
			"plugin", d.name,
			"error", err,
		)
	}
	d.metrics.ops.WithLabelValues(op, outcome).Inc()
}

// Plugin returns the name of the active storage plugin
func (d *Database) Plugin() string {
	return d.name
}

func (d *Database) Close() error {
	return d.store.Close()
}

func (d *Database) IsRegistered(addr string) (bool, error) {
	start := time.Now()
	ret, err := d.store.IsRegistered(addr)
	d.observe("is_registered", start, err)
	return ret, err
}

func (d *Database) AddRegistration(reg models.Registration) error {
	start := time.Now()
	err := d.store.AddRegistration(reg)
	d.observe("add_registration", start, err)
	return err
}

func (d *Database) AddProposal(proposal models.Proposal) (uint64, error) {
	start := time.Now()
	id, err := d.store.AddProposal(proposal)
	d.observe("add_proposal", start, err)
	return id, err
}

func (d *Database) GetProposal(id uint64) (models.Proposal, error) {
	start := time.Now()
	ret, err := d.store.GetProposal(id)
	d.observe("get_proposal", start, err)
	return ret, err
}

func (d *Database) ProposalCount() (uint64, error) {
	start := time.Now()
	ret, err := d.store.ProposalCount()
	d.observe("proposal_count", start, err)
	return ret, err
}

func (d *Database) HasVoted(proposalID uint64, voter string) (bool, error) {
	start := time.Now()
	ret, err := d.store.HasVoted(proposalID, voter)
	d.observe("has_voted", start, err)
	return ret, err
}

func (d *Database) AddVote(vote models.Vote) error {
	start := time.Now()
	err := d.store.AddVote(vote)
	d.observe("add_vote", start, err)
	return err
}
