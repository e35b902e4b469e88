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

// Package ledger provides a typed client for the proposal/voting contract.
//
// Mutating operations follow a two-phase protocol: the transaction is
// submitted, then the client waits for it to be confirmed. At most one
// mutation may be in flight per client.
package ledger

import (
	"context"
	"time"

	"github.com/blinklabs-io/ballot/wallet"
)

// Operation names, used for logging, metrics and receipts
const (
	OpIsRegistered   = "isRegistered"
	OpRegisterUser   = "registerUser"
	OpCreateProposal = "createProposal"
	OpVote           = "vote"
	OpGetProposal    = "getProposal"
)

// Proposal is a ledger-resident proposal record
type Proposal struct {
	ID          uint64
	Description string
	VoteCount   uint64
	StartTime   time.Time
	EndTime     time.Time
	Active      bool
}

// Receipt describes a confirmed transaction
type Receipt struct {
	Op          string
	TxHash      string
	Block       uint64
	ConfirmedAt time.Time
}

// Contract is the external voting contract. Implementations must return an
// error wrapping ErrProposalNotFound from GetProposal for an id that does not
// exist, and a *RevertError from PendingTx.Wait when the contract rejects a
// transaction.
type Contract interface {
	IsRegistered(ctx context.Context, addr wallet.Address) (bool, error)
	RegisterUser(ctx context.Context, signer wallet.Signer) (PendingTx, error)
	CreateProposal(
		ctx context.Context,
		signer wallet.Signer,
		description string,
		durationMinutes uint64,
	) (PendingTx, error)
	Vote(ctx context.Context, signer wallet.Signer, proposalID uint64) (PendingTx, error)
	GetProposal(ctx context.Context, id uint64) (Proposal, error)
}

// PendingTx is a submitted but not yet confirmed transaction
type PendingTx interface {
	Hash() string
	// Wait blocks until the transaction is confirmed, rejected by the
	// contract, or ctx is done
	Wait(ctx context.Context) (Receipt, error)
}
