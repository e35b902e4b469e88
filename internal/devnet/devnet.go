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

// Package devnet simulates the voting contract in process.
//
// Transactions are signed by the caller's wallet, verified, and applied to
// the backing database after a configurable confirmation delay, one block
// per transaction.
package devnet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/database/models"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/wallet"
)

const (
	DefaultConfirmDelay    = 500 * time.Millisecond
	DefaultContractAddress = "devnet"
)

var ErrClosed = errors.New("devnet ledger closed")

// MaxProposalDuration is the longest proposal duration in minutes (100 years)
const MaxProposalDuration uint64 = 100 * 365 * 24 * 60

// Revert reasons
const (
	reasonAlreadyRegistered = "user already registered"
	reasonNotRegistered     = "user not registered"
	reasonNoProposal        = "proposal does not exist"
	reasonInactive          = "proposal is not active"
	reasonAlreadyVoted      = "user already voted on this proposal"
	reasonBadDuration       = "duration must be positive"
	reasonLongDuration      = "duration exceeds maximum"
)

type Config struct {
	Database        *database.Database
	Logger          *slog.Logger
	Clock           func() time.Time
	ContractAddress string
	ConfirmDelay    time.Duration
}

// Ledger implements ledger.Contract over a database
type Ledger struct {
	config  Config
	logger  *slog.Logger
	pending map[string]*pendingTx
	block   uint64
	nonce   uint64
	mu      sync.Mutex
	closed  bool
}

var _ ledger.Contract = (*Ledger)(nil)

func New(cfg Config) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, errors.New("devnet ledger requires a database")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ContractAddress == "" {
		cfg.ContractAddress = DefaultContractAddress
	}
	if cfg.ConfirmDelay < 0 {
		cfg.ConfirmDelay = 0
	}
	return &Ledger{
		config: cfg,
		logger: cfg.Logger.With(
			"component", "devnet",
			"contract", cfg.ContractAddress,
		),
		pending: make(map[string]*pendingTx),
		nonce:   uint64(cfg.Clock().UnixNano()),
	}, nil
}

// Block returns the height of the last applied block
func (l *Ledger) Block() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

// Close stops confirmation of outstanding transactions, which fail with ErrClosed
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for hash, tx := range l.pending {
		// A timer that already fired is finished by confirm
		if tx.timer.Stop() {
			tx.finish(ledger.Receipt{}, ErrClosed)
			delete(l.pending, hash)
		}
	}
	return nil
}

func (l *Ledger) IsRegistered(ctx context.Context, addr wallet.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.config.Database.IsRegistered(addr.String())
}

func (l *Ledger) GetProposal(ctx context.Context, id uint64) (ledger.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Proposal{}, err
	}
	p, err := l.config.Database.GetProposal(id)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return ledger.Proposal{}, fmt.Errorf(
				"proposal %d: %w",
				id,
				ledger.ErrProposalNotFound,
			)
		}
		return ledger.Proposal{}, err
	}
	return ledger.Proposal{
		ID:          p.ID,
		Description: p.Description,
		VoteCount:   p.VoteCount,
		StartTime:   time.Unix(p.StartTime, 0),
		EndTime:     time.Unix(p.EndTime, 0),
		Active:      p.Active(l.config.Clock().Unix()),
	}, nil
}

func (l *Ledger) RegisterUser(
	ctx context.Context,
	signer wallet.Signer,
) (ledger.PendingTx, error) {
	return l.submit(ctx, signer, ledger.OpRegisterUser, nil, l.applyRegister)
}

func (l *Ledger) CreateProposal(
	ctx context.Context,
	signer wallet.Signer,
	description string,
	durationMinutes uint64,
) (ledger.PendingTx, error) {
	return l.submit(
		ctx,
		signer,
		ledger.OpCreateProposal,
		[]any{description, durationMinutes},
		func(addr string, txHash []byte, block uint64) error {
			return l.applyCreateProposal(addr, txHash, block, description, durationMinutes)
		},
	)
}

func (l *Ledger) Vote(
	ctx context.Context,
	signer wallet.Signer,
	proposalID uint64,
) (ledger.PendingTx, error) {
	return l.submit(
		ctx,
		signer,
		ledger.OpVote,
		[]any{proposalID},
		func(addr string, txHash []byte, block uint64) error {
			return l.applyVote(addr, txHash, block, proposalID)
		},
	)
}

type applyFunc func(addr string, txHash []byte, block uint64) error

// submit signs and verifies a transaction body and schedules it for
// confirmation
func (l *Ledger) submit(
	ctx context.Context,
	signer wallet.Signer,
	method string,
	args []any,
	apply applyFunc,
) (ledger.PendingTx, error) {
	if signer == nil {
		return nil, errors.New("no signer")
	}
	addr := signer.Address()
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.nonce++
	nonce := l.nonce
	l.mu.Unlock()

	// Transaction body: [method, contract, sender, nonce, args...]
	body := append(
		[]any{method, l.config.ContractAddress, addr.String(), nonce},
		args...,
	)
	bodyCbor, err := cbor.Encode(body)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	sig, err := signer.Sign(ctx, bodyCbor)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if err := verifySignature(signer.PublicKey(), addr, bodyCbor, sig); err != nil {
		return nil, err
	}
	txHash := lcommon.Blake2b256Hash(bodyCbor)
	tx := &pendingTx{
		hash: txHash.String(),
		op:   method,
		done: make(chan struct{}),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	l.pending[tx.hash] = tx
	tx.timer = time.AfterFunc(l.config.ConfirmDelay, func() {
		l.confirm(tx, addr.String(), txHash.Bytes(), apply)
	})
	l.logger.Debug(
		"accepted transaction",
		"op", method,
		"tx_hash", tx.hash,
		"sender", addr.String(),
	)
	return tx, nil
}

func verifySignature(
	pub ed25519.PublicKey,
	addr wallet.Address,
	msg []byte,
	sig []byte,
) error {
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("invalid public key")
	}
	if wallet.AddressFromPublicKey(pub) != addr {
		return errors.New("public key does not match sender address")
	}
	if !ed25519.Verify(pub, msg, sig) {
		return errors.New("invalid transaction signature")
	}
	return nil
}

// confirm applies a transaction in its own block
func (l *Ledger) confirm(tx *pendingTx, addr string, txHash []byte, apply applyFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pending[tx.hash]; !ok {
		return
	}
	delete(l.pending, tx.hash)
	if l.closed {
		tx.finish(ledger.Receipt{}, ErrClosed)
		return
	}
	l.block++
	block := l.block
	if err := apply(addr, txHash, block); err != nil {
		var revertErr *ledger.RevertError
		if errors.As(err, &revertErr) {
			l.logger.Info(
				"transaction reverted",
				"op", tx.op,
				"tx_hash", tx.hash,
				"reason", revertErr.Reason,
				"block", block,
			)
		} else {
			l.logger.Error(
				"transaction failed",
				"op", tx.op,
				"tx_hash", tx.hash,
				"error", err,
			)
		}
		tx.finish(ledger.Receipt{}, err)
		return
	}
	l.logger.Info(
		"transaction confirmed",
		"op", tx.op,
		"tx_hash", tx.hash,
		"block", block,
	)
	tx.finish(
		ledger.Receipt{
			Op:          tx.op,
			TxHash:      tx.hash,
			Block:       block,
			ConfirmedAt: l.config.Clock(),
		},
		nil,
	)
}

func (l *Ledger) applyRegister(addr string, txHash []byte, block uint64) error {
	err := l.config.Database.AddRegistration(models.Registration{
		Address:    addr,
		TxHash:     txHash,
		AddedBlock: block,
	})
	if errors.Is(err, models.ErrAlreadyRegistered) {
		return &ledger.RevertError{Reason: reasonAlreadyRegistered}
	}
	return err
}

func (l *Ledger) requireRegistered(addr string) error {
	ok, err := l.config.Database.IsRegistered(addr)
	if err != nil {
		return err
	}
	if !ok {
		return &ledger.RevertError{Reason: reasonNotRegistered}
	}
	return nil
}

func (l *Ledger) applyCreateProposal(
	addr string,
	txHash []byte,
	block uint64,
	description string,
	durationMinutes uint64,
) error {
	if err := l.requireRegistered(addr); err != nil {
		return err
	}
	if durationMinutes == 0 {
		return &ledger.RevertError{Reason: reasonBadDuration}
	}
	if durationMinutes > MaxProposalDuration {
		return &ledger.RevertError{Reason: reasonLongDuration}
	}
	now := l.config.Clock().Unix()
	_, err := l.config.Database.AddProposal(models.Proposal{
		Description: description,
		Creator:     addr,
		StartTime:   now,
		EndTime:     now + int64(durationMinutes)*60, // #nosec G115
		TxHash:      txHash,
		AddedBlock:  block,
	})
	return err
}

func (l *Ledger) applyVote(
	addr string,
	txHash []byte,
	block uint64,
	proposalID uint64,
) error {
	if err := l.requireRegistered(addr); err != nil {
		return err
	}
	p, err := l.config.Database.GetProposal(proposalID)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return &ledger.RevertError{Reason: reasonNoProposal}
		}
		return err
	}
	if !p.Active(l.config.Clock().Unix()) {
		return &ledger.RevertError{Reason: reasonInactive}
	}
	err = l.config.Database.AddVote(models.Vote{
		ProposalID: proposalID,
		Voter:      addr,
		TxHash:     txHash,
		AddedBlock: block,
	})
	if errors.Is(err, models.ErrAlreadyVoted) {
		return &ledger.RevertError{Reason: reasonAlreadyVoted}
	}
	return err
}

type pendingTx struct {
	timer   *time.Timer
	done    chan struct{}
	err     error
	hash    string
	op      string
	receipt ledger.Receipt
}

func (t *pendingTx) Hash() string {
	return t.hash
}

func (t *pendingTx) Wait(ctx context.Context) (ledger.Receipt, error) {
	select {
	case <-t.done:
		return t.receipt, t.err
	case <-ctx.Done():
		return ledger.Receipt{}, ctx.Err()
	}
}

// finish must be called exactly once
func (t *pendingTx) finish(receipt ledger.Receipt, err error) {
	t.receipt = receipt
	t.err = err
	close(t.done)
}
