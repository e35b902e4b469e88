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

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/ballot/wallet"
)

var (
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrOperationPending    = errors.New("another ledger operation is pending")
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")
)

// RevertError is returned by a contract when it refuses to apply a transaction
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "transaction reverted: " + e.Reason
}

// ValidationError reports bad input caught before any ledger call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type TxFailureKind string

const (
	TxReverted  TxFailureKind = "reverted"
	TxRejected  TxFailureKind = "rejected"
	TxTimeout   TxFailureKind = "timeout"
	TxCanceled  TxFailureKind = "canceled"
	TxTransport TxFailureKind = "transport"
)

// TransactionError reports a mutation that did not confirm. TxHash is empty
// when the failure happened before submission completed.
type TransactionError struct {
	Op     string
	TxHash string
	Kind   TxFailureKind
	Err    error
}

func (e *TransactionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf(
			"%s transaction %s (%s): %v",
			e.Op,
			e.TxHash,
			e.Kind,
			e.Err,
		)
	}
	return fmt.Sprintf("%s transaction %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// QueryError reports a failed read. Use NotFound to tell a missing proposal
// apart from a transport failure.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) NotFound() bool {
	return errors.Is(e.Err, ErrProposalNotFound)
}

// IsNotFound reports whether err identifies a proposal id with no record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProposalNotFound)
}

func classifyTxError(op, txHash string, err error) *TransactionError {
	txErr := &TransactionError{
		Op:     op,
		TxHash: txHash,
		Err:    err,
	}
	var revertErr *RevertError
	switch {
	case errors.As(err, &revertErr):
		txErr.Kind = TxReverted
	case errors.Is(err, wallet.ErrUserRejected):
		txErr.Kind = TxRejected
	case errors.Is(err, context.DeadlineExceeded):
		txErr.Kind = TxTimeout
		txErr.Err = fmt.Errorf("%w: %w", ErrConfirmationTimeout, err)
	case errors.Is(err, context.Canceled):
		txErr.Kind = TxCanceled
	default:
		txErr.Kind = TxTransport
	}
	return txErr
}

// isPermanentQueryError reports failures that retrying cannot fix
func isPermanentQueryError(err error) bool {
	var revertErr *RevertError
	return errors.Is(err, ErrProposalNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &revertErr)
}
