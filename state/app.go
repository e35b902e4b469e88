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

package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/ballot/discovery"
	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/session"
	"github.com/blinklabs-io/ballot/wallet"
)

const DefaultProposalDuration = 10

const (
	ChangedEventType event.EventType = "state.changed"
	NoticeEventType  event.EventType = "state.notice"
)

type AppConfig struct {
	Sessions *session.Manager
	Scanner  *discovery.Scanner
	Logger   *slog.Logger
	EventBus *event.EventBus
	// ProposalDuration is the voting period in minutes for new proposals
	ProposalDuration uint64
}

// App runs user actions against the session and ledger, one at a time
type App struct {
	config AppConfig
	logger *slog.Logger
	state  State
	mu     sync.Mutex
}

func NewApp(cfg AppConfig) (*App, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("app requires a session manager")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Scanner == nil {
		cfg.Scanner = discovery.NewScanner(discovery.WithLogger(cfg.Logger))
	}
	if cfg.ProposalDuration == 0 {
		cfg.ProposalDuration = DefaultProposalDuration
	}
	return &App{
		config: cfg,
		logger: cfg.Logger.With("component", "state"),
	}, nil
}

// Snapshot returns the current state
func (a *App) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connect binds a wallet, loads its registration status and the proposal set
func (a *App) Connect(ctx context.Context, provider wallet.Provider) error {
	if _, err := a.begin(); err != nil {
		return err
	}
	sess, err := a.config.Sessions.Connect(ctx, provider)
	if err != nil {
		return a.fail("connect", err)
	}
	registered := a.config.Sessions.Registered()
	result, err := a.scan(ctx)
	if err != nil {
		// The session is live; keep the previous proposals and report the scan
		a.logger.Warn(fmt.Sprintf("load proposals: %s", err))
		s := a.dispatch(Connected{
			Session:    sess,
			Registered: registered,
			ScanErr:    err,
			At:         time.Now(),
		})
		a.publish(NoticeEventType, *s.Notice)
		return err
	}
	a.dispatch(Connected{
		Session:    sess,
		Registered: registered,
		Result:     &result,
		At:         time.Now(),
	})
	return nil
}

// Disconnect drops the session and resets the state
func (a *App) Disconnect() error {
	a.mu.Lock()
	if a.state.Pending {
		a.mu.Unlock()
		return ledger.ErrOperationPending
	}
	a.mu.Unlock()
	a.config.Sessions.Disconnect()
	a.dispatch(Disconnected{})
	return nil
}

func (a *App) Register(ctx context.Context) error {
	if _, err := a.begin(); err != nil {
		return err
	}
	client, err := a.config.Sessions.Client()
	if err != nil {
		return a.fail("register", err)
	}
	receipt, err := client.RegisterUser(ctx)
	if err != nil {
		return a.fail("register", err)
	}
	a.config.Sessions.MarkRegistered()
	a.dispatch(Registered{Receipt: receipt, At: time.Now()})
	return nil
}

// CreateProposal submits the description draft as a new proposal
func (a *App) CreateProposal(ctx context.Context) error {
	s, err := a.begin()
	if err != nil {
		return err
	}
	if strings.TrimSpace(s.DescriptionDraft) == "" {
		return a.fail("create proposal", &ledger.ValidationError{
			Field:  "description",
			Reason: "must not be empty",
		})
	}
	client, err := a.config.Sessions.Client()
	if err != nil {
		return a.fail("create proposal", err)
	}
	receipt, err := client.CreateProposal(
		ctx,
		s.DescriptionDraft,
		a.config.ProposalDuration,
	)
	if err != nil {
		return a.fail("create proposal", err)
	}
	result, err := a.scan(ctx)
	if err != nil {
		return a.fail(
			fmt.Sprintf("refresh after transaction %s", receipt.TxHash),
			err,
		)
	}
	a.dispatch(ProposalCreated{Receipt: receipt, Result: result, At: time.Now()})
	return nil
}

// Vote casts a vote for the proposal id in the vote draft
func (a *App) Vote(ctx context.Context) error {
	s, err := a.begin()
	if err != nil {
		return err
	}
	proposalID, err := parseProposalID(s.VoteDraft)
	if err != nil {
		return a.fail("vote", err)
	}
	client, err := a.config.Sessions.Client()
	if err != nil {
		return a.fail("vote", err)
	}
	receipt, err := client.Vote(ctx, proposalID)
	if err != nil {
		return a.fail("vote", err)
	}
	result, err := a.scan(ctx)
	if err != nil {
		return a.fail(
			fmt.Sprintf("refresh after transaction %s", receipt.TxHash),
			err,
		)
	}
	a.dispatch(VoteCast{
		Receipt:    receipt,
		Result:     result,
		ProposalID: proposalID,
		At:         time.Now(),
	})
	return nil
}

// Refresh rebuilds the proposal set
func (a *App) Refresh(ctx context.Context) error {
	if _, err := a.begin(); err != nil {
		return err
	}
	result, err := a.scan(ctx)
	if err != nil {
		return a.fail("refresh", err)
	}
	a.dispatch(ProposalsLoaded{Result: result, At: time.Now()})
	return nil
}

func (a *App) SetDescriptionDraft(text string) {
	a.dispatch(DescriptionDraftChanged{Text: text})
}

func (a *App) SetVoteDraft(text string) {
	a.dispatch(VoteDraftChanged{Text: text})
}

func parseProposalID(draft string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(draft), 10, 64)
	if err != nil || id == 0 {
		return 0, &ledger.ValidationError{
			Field:  "proposal id",
			Reason: fmt.Sprintf("%q is not a positive integer", draft),
		}
	}
	return id, nil
}

func (a *App) scan(ctx context.Context) (discovery.Result, error) {
	client, err := a.config.Sessions.Client()
	if err != nil {
		return discovery.Result{}, err
	}
	return a.config.Scanner.Scan(ctx, client)
}

// begin starts an operation, rejecting it if another is in flight, and
// returns the state as of the start
func (a *App) begin() (State, error) {
	a.mu.Lock()
	if a.state.Pending {
		a.mu.Unlock()
		return State{}, ledger.ErrOperationPending
	}
	a.state = Apply(a.state, OperationStarted{})
	s := a.state
	a.mu.Unlock()
	a.publish(ChangedEventType, s)
	return s, nil
}

// fail ends the current operation with an error notice and returns err
func (a *App) fail(op string, err error) error {
	msg := fmt.Sprintf("%s: %s", op, err)
	var validationErr *ledger.ValidationError
	if errors.As(err, &validationErr) {
		a.logger.Debug(msg)
	} else {
		a.logger.Warn(msg)
	}
	s := a.dispatch(OperationFailed{Err: err, Message: msg, At: time.Now()})
	a.publish(NoticeEventType, *s.Notice)
	return err
}

func (a *App) dispatch(action Action) State {
	a.mu.Lock()
	a.state = Apply(a.state, action)
	s := a.state
	a.mu.Unlock()
	a.publish(ChangedEventType, s)
	return s
}

func (a *App) publish(eventType event.EventType, data any) {
	if a.config.EventBus == nil {
		return
	}
	a.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}
