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

package badger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/database/plugin"
)

const gcInterval = 5 * time.Minute

// Key layout
var (
	keyPrefixRegistration = []byte("reg:")
	keyPrefixProposal     = []byte("prop:")
	keyPrefixVote         = []byte("vote:")
	keyNextProposalID     = []byte("meta:next_proposal_id")
)

func init() {
	plugin.Register(
		plugin.PluginEntry{
			Name:        "badger",
			Description: "BadgerDB local key-value store",
			NewFunc: func(cfg plugin.Config) (plugin.Store, error) {
				return New(cfg.DataDir, cfg.Logger)
			},
		},
	)
}

// StoreBadger keeps devnet contract state in badger with CBOR encoded values
type StoreBadger struct {
	db       *badger.DB
	logger   *slog.Logger
	gcTicker *time.Ticker
	gcStopCh chan struct{}
	gcWg     sync.WaitGroup
}

// New creates a badger store. Uses an in-memory database if dataDir is empty.
func New(dataDir string, logger *slog.Logger) (*StoreBadger, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &StoreBadger{
		logger: logger.With("component", "database", "plugin", "badger"),
	}
	var badgerOpts badger.Options
	if dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
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
		badgerOpts = badger.DefaultOptions(filepath.Join(dataDir, "badger"))
	}
	badgerOpts = badgerOpts.
		WithLogger(NewBadgerLogger(s.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	s.db = db
	if dataDir != "" {
		s.gcTicker = time.NewTicker(gcInterval)
		s.gcStopCh = make(chan struct{})
		s.gcWg.Add(1)
		go s.valueLogGc(s.gcTicker, s.gcStopCh)
	}
	return s, nil
}

func (s *StoreBadger) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer s.gcWg.Done()
	for {
		select {
		case <-t.C:
			// Keep collecting while there is something to rewrite
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn(
						fmt.Sprintf("value log GC failure: %s", err),
					)
				}
				break
			}
		case <-stop:
			return
		}
	}
}

// DB returns the database handle
func (s *StoreBadger) DB() *badger.DB {
	return s.db
}

func (s *StoreBadger) Close() error {
	if s.gcTicker != nil {
		s.gcTicker.Stop()
		close(s.gcStopCh)
		s.gcWg.Wait()
		s.gcTicker = nil
	}
	return s.db.Close()
}

func registrationKey(addr string) []byte {
	return append(append([]byte{}, keyPrefixRegistration...), addr...)
}

func proposalKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(
		append([]byte{}, keyPrefixProposal...),
		id,
	)
}

func voteKey(proposalID uint64, voter string) []byte {
	key := binary.BigEndian.AppendUint64(
		append([]byte{}, keyPrefixVote...),
		proposalID,
	)
	key = append(key, ':')
	return append(key, voter...)
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func getDecoded(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if _, err := cbor.Decode(val, dest); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

func setEncoded(txn *badger.Txn, key []byte, src any) error {
	val, err := cbor.Encode(src)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return txn.Set(key, val)
}

func (s *StoreBadger) IsRegistered(addr string) (bool, error) {
	var ret bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ret, err = keyExists(txn, registrationKey(addr))
		return err
	})
	return ret, err
}

func (s *StoreBadger) AddRegistration(reg models.Registration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := registrationKey(reg.Address)
		exists, err := keyExists(txn, key)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrAlreadyRegistered
		}
		return setEncoded(txn, key, reg)
	})
}

func nextProposalID(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(keyNextProposalID)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 1, nil
		}
		return 0, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt proposal id counter: %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

func (s *StoreBadger) AddProposal(proposal models.Proposal) (uint64, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		id, err := nextProposalID(txn)
		if err != nil {
			return err
		}
		proposal.ID = id
		if err := setEncoded(txn, proposalKey(id), proposal); err != nil {
			return err
		}
		return txn.Set(
			keyNextProposalID,
			binary.BigEndian.AppendUint64(nil, id+1),
		)
	})
	if err != nil {
		return 0, err
	}
	return proposal.ID, nil
}

func (s *StoreBadger) GetProposal(id uint64) (models.Proposal, error) {
	var ret models.Proposal
	err := s.db.View(func(txn *badger.Txn) error {
		return getDecoded(txn, proposalKey(id), &ret)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.Proposal{}, models.ErrProposalNotFound
		}
		return models.Proposal{}, err
	}
	return ret, nil
}

func (s *StoreBadger) ProposalCount() (uint64, error) {
	var ret uint64
	err := s.db.View(func(txn *badger.Txn) error {
		next, err := nextProposalID(txn)
		if err != nil {
			return err
		}
		ret = next - 1
		return nil
	})
	return ret, err
}

func (s *StoreBadger) HasVoted(proposalID uint64, voter string) (bool, error) {
	var ret bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ret, err = keyExists(txn, voteKey(proposalID, voter))
		return err
	})
	return ret, err
}

func (s *StoreBadger) AddVote(vote models.Vote) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var proposal models.Proposal
		propKey := proposalKey(vote.ProposalID)
		if err := getDecoded(txn, propKey, &proposal); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrProposalNotFound
			}
			return err
		}
		key := voteKey(vote.ProposalID, vote.Voter)
		exists, err := keyExists(txn, key)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrAlreadyVoted
		}
		if err := setEncoded(txn, key, vote); err != nil {
			return err
		}
		proposal.VoteCount++
		return setEncoded(txn, propKey, proposal)
	})
}
