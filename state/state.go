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

// Package state holds the application state as a single value that changes
// only through Apply, and the App that drives those changes from user actions.
package state

import (
	"fmt"
	"slices"
	"time"

	"github.com/blinklabs-io/ballot/discovery"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/session"
)

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-facing message about the outcome of the last operation
type Notice struct {
	At      time.Time
	Err     error
	Level   NoticeLevel
	Message string
}

// State is an immutable snapshot. Proposals must not be modified in place.
type State struct {
	Notice           *Notice
	LastReceipt      *ledger.Receipt
	Session          session.Session
	DescriptionDraft string
	VoteDraft        string
	Proposals        []ledger.Proposal
	Registered       bool
	Truncated        bool
	Pending          bool
}

// Action is a state transition
type Action interface {
	apply(State) State
}

// Apply returns the state that results from applying action to s. The input
// is not modified.
func Apply(s State, action Action) State {
	s.Proposals = slices.Clone(s.Proposals)
	return action.apply(s)
}

// OperationStarted marks an operation in flight and clears the last notice
type OperationStarted struct{}

func (OperationStarted) apply(s State) State {
	s.Pending = true
	s.Notice = nil
	return s
}

// OperationFailed ends an operation, leaving everything but the pending flag
// and notice as it was
type OperationFailed struct {
	Err     error
	Message string
	At      time.Time
}

func (a OperationFailed) apply(s State) State {
	s.Pending = false
	s.Notice = &Notice{
		Level:   NoticeError,
		Message: a.Message,
		Err:     a.Err,
		At:      a.At,
	}
	return s
}

// Connected installs a new session. A nil Result keeps the current proposals;
// ScanErr reports why they could not be loaded.
type Connected struct {
	Result     *discovery.Result
	ScanErr    error
	Session    session.Session
	Registered bool
	At         time.Time
}

func (a Connected) apply(s State) State {
	s.Session = a.Session
	s.Registered = a.Registered
	s.LastReceipt = nil
	if a.Result != nil {
		s = withResult(s, *a.Result)
	}
	s.Pending = false
	if a.ScanErr != nil {
		s.Notice = &Notice{
			Level:   NoticeError,
			Message: fmt.Sprintf("load proposals: %s", a.ScanErr),
			Err:     a.ScanErr,
			At:      a.At,
		}
		return s
	}
	s.Notice = &Notice{
		Level:   NoticeInfo,
		Message: "connected as " + a.Session.Address.String(),
		At:      a.At,
	}
	return s
}

// Disconnected resets to the initial state
type Disconnected struct{}

func (Disconnected) apply(State) State {
	return State{}
}

// Registered records a confirmed registration
type Registered struct {
	Receipt ledger.Receipt
	At      time.Time
}

func (a Registered) apply(s State) State {
	s.Registered = true
	s = withReceipt(s, a.Receipt)
	s.Pending = false
	s.Notice = &Notice{
		Level:   NoticeInfo,
		Message: "registered as a voter",
		At:      a.At,
	}
	return s
}

// ProposalsLoaded replaces the proposal set with a fresh scan
type ProposalsLoaded struct {
	Result discovery.Result
	At     time.Time
}

func (a ProposalsLoaded) apply(s State) State {
	s = withResult(s, a.Result)
	s.Pending = false
	if a.Result.Truncated {
		s.Notice = &Notice{
			Level:   NoticeInfo,
			Message: "more proposals may exist beyond the probe bound",
			At:      a.At,
		}
	} else {
		s.Notice = nil
	}
	return s
}

// ProposalCreated records a confirmed proposal and the rescan that followed
type ProposalCreated struct {
	Receipt ledger.Receipt
	Result  discovery.Result
	At      time.Time
}

func (a ProposalCreated) apply(s State) State {
	s = withResult(s, a.Result)
	s = withReceipt(s, a.Receipt)
	s.DescriptionDraft = ""
	s.Pending = false
	s.Notice = &Notice{
		Level:   NoticeInfo,
		Message: "proposal created",
		At:      a.At,
	}
	return s
}

// VoteCast records a confirmed vote and the rescan that followed
type VoteCast struct {
	Receipt    ledger.Receipt
	Result     discovery.Result
	ProposalID uint64
	At         time.Time
}

func (a VoteCast) apply(s State) State {
	s = withResult(s, a.Result)
	s = withReceipt(s, a.Receipt)
	s.VoteDraft = ""
	s.Pending = false
	s.Notice = &Notice{
		Level:   NoticeInfo,
		Message: "vote recorded",
		At:      a.At,
	}
	return s
}

type DescriptionDraftChanged struct {
	Text string
}

func (a DescriptionDraftChanged) apply(s State) State {
	s.DescriptionDraft = a.Text
	return s
}

type VoteDraftChanged struct {
	Text string
}

func (a VoteDraftChanged) apply(s State) State {
	s.VoteDraft = a.Text
	return s
}

func withResult(s State, result discovery.Result) State {
	s.Proposals = slices.Clone(result.Proposals)
	s.Truncated = result.Truncated
	return s
}

func withReceipt(s State, receipt ledger.Receipt) State {
	s.LastReceipt = &receipt
	return s
}

// Proposal returns the proposal with the given id, if present
func (s State) Proposal(id uint64) (ledger.Proposal, bool) {
	for _, p := range s.Proposals {
		if p.ID == id {
			return p, true
		}
	}
	return ledger.Proposal{}, false
}
