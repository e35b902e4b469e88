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

package sqlite

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/plugin"
)

const databaseFile = "ballot.sqlite"

func init() {
	plugin.Register(
		plugin.PluginEntry{
			Name:        "sqlite",
			Description: "SQLite relational store (GORM)",
			NewFunc: func(cfg plugin.Config) (plugin.Store, error) {
				return New(cfg.DataDir, cfg.Logger)
			},
		},
	)
}

// StoreSqlite keeps devnet contract state in SQLite
type StoreSqlite struct {
	db      *gorm.DB
	logger  *slog.Logger
	dataDir string
}

// New creates a SQLite store. Uses a private in-memory database if dataDir is empty.
func New(dataDir string, logger *slog.Logger) (*StoreSqlite, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	var dsn string
	if dataDir == "" {
		// Each in-memory store gets its own named database so that stores
		// in the same process do not share state
		dsn = fmt.Sprintf(
			"file:%s?mode=memory&cache=shared",
			uuid.NewString(),
		)
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		// WAL journal mode, wait on locks instead of failing immediately
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dsn = fmt.Sprintf(
			"file:%s?%s",
			filepath.Join(dataDir, databaseFile),
			connOpts,
		)
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, err
	}
	s := &StoreSqlite{
		db:      db,
		logger:  logger.With("component", "database", "plugin", "sqlite"),
		dataDir: dataDir,
	}
	if err := s.init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *StoreSqlite) init() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	// A single connection serializes writers and keeps the in-memory
	// database alive for the lifetime of the store
	sqlDb.SetMaxOpenConns(1)
	// Configure tracing for GORM
	if err := s.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	for _, model := range models.MigrateModels {
		s.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := s.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the database handle
func (s *StoreSqlite) DB() *gorm.DB {
	return s.db
}

func (s *StoreSqlite) Close() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

func (s *StoreSqlite) IsRegistered(addr string) (bool, error) {
	var count int64
	result := s.db.Model(&models.Registration{}).
		Where("address = ?", addr).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (s *StoreSqlite) AddRegistration(reg models.Registration) error {
	return s.db.Transaction(func(txn *gorm.DB) error {
		var count int64
		result := txn.Model(&models.Registration{}).
			Where("address = ?", reg.Address).
			Count(&count)
		if result.Error != nil {
			return result.Error
		}
		if count > 0 {
			return models.ErrAlreadyRegistered
		}
		return txn.Create(&reg).Error
	})
}

func (s *StoreSqlite) AddProposal(proposal models.Proposal) (uint64, error) {
	err := s.db.Transaction(func(txn *gorm.DB) error {
		var maxID uint64
		result := txn.Model(&models.Proposal{}).
			Select("COALESCE(MAX(id), 0)").
			Scan(&maxID)
		if result.Error != nil {
			return result.Error
		}
		proposal.ID = maxID + 1
		return txn.Create(&proposal).Error
	})
	if err != nil {
		return 0, err
	}
	return proposal.ID, nil
}

func (s *StoreSqlite) GetProposal(id uint64) (models.Proposal, error) {
	var ret models.Proposal
	result := s.db.First(&ret, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.Proposal{}, models.ErrProposalNotFound
		}
		return models.Proposal{}, result.Error
	}
	return ret, nil
}

func (s *StoreSqlite) ProposalCount() (uint64, error) {
	var count int64
	if result := s.db.Model(&models.Proposal{}).Count(&count); result.Error != nil {
		return 0, result.Error
	}
	return uint64(count), nil // #nosec G115
}

func (s *StoreSqlite) HasVoted(proposalID uint64, voter string) (bool, error) {
	return hasVoted(s.db, proposalID, voter)
}

func hasVoted(db *gorm.DB, proposalID uint64, voter string) (bool, error) {
	var count int64
	result := db.Model(&models.Vote{}).
		Where("proposal_id = ? AND voter = ?", proposalID, voter).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (s *StoreSqlite) AddVote(vote models.Vote) error {
	return s.db.Transaction(func(txn *gorm.DB) error {
		var proposal models.Proposal
		result := txn.First(&proposal, vote.ProposalID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return models.ErrProposalNotFound
			}
			return result.Error
		}
		voted, err := hasVoted(txn, vote.ProposalID, vote.Voter)
		if err != nil {
			return err
		}
		if voted {
			return models.ErrAlreadyVoted
		}
		if err := txn.Create(&vote).Error; err != nil {
			return err
		}
		return txn.Model(&models.Proposal{}).
			Where("id = ?", vote.ProposalID).
			Update("vote_count", gorm.Expr("vote_count + ?", 1)).
			Error
	})
}
