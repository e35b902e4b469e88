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

// Package session binds a wallet identity to a ledger client.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/ledger"
	"github.com/blinklabs-io/ballot/wallet"
)

const (
	ConnectedEventType    event.EventType = "session.connected"
	DisconnectedEventType event.EventType = "session.disconnected"
)

var (
	ErrNotConnected = errors.New("no wallet connected")
	ErrNoAccounts   = errors.New("wallet granted no accounts")
)

// ConnectionError reports a missing or unreachable wallet, or a ledger that
// could not be queried while connecting
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("wallet connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthError reports that the user declined access or granted no account
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("wallet authorization failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Session is a live binding to one wallet identity
type Session struct {
	ConnectedAt time.Time
	ID          string
	Address     wallet.Address
	Connected   bool
}

// Event is the payload of session events
type Event struct {
	Session    Session
	Registered bool
}

type ManagerConfig struct {
	Contract ledger.Contract
	Logger   *slog.Logger
	EventBus *event.EventBus
	// Ledger is the template for each session's ledger client. Contract and
	// Signer are filled in on connect.
	Ledger ledger.ClientConfig
}

// Manager owns at most one session at a time
type Manager struct {
	config     ManagerConfig
	logger     *slog.Logger
	client     *ledger.Client
	session    Session
	mu         sync.RWMutex
	registered bool
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Contract == nil {
		return nil, errors.New("session manager requires a contract")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Ledger.Logger == nil {
		cfg.Ledger.Logger = cfg.Logger
	}
	if cfg.Ledger.EventBus == nil {
		cfg.Ledger.EventBus = cfg.EventBus
	}
	if cfg.Ledger.Metrics == nil {
		cfg.Ledger.Metrics = ledger.NewMetrics(nil)
	}
	return &Manager{
		config: cfg,
		logger: cfg.Logger.With("component", "session"),
	}, nil
}

// Connect requests access from the provider, binds a ledger client to the
// first granted address and loads its registration status. Any existing
// session is replaced on success and kept on failure.
func (m *Manager) Connect(
	ctx context.Context,
	provider wallet.Provider,
) (Session, error) {
	if provider == nil {
		return Session{}, &ConnectionError{Err: wallet.ErrNoProvider}
	}
	addrs, err := provider.RequestAccess(ctx)
	if err != nil {
		if errors.Is(err, wallet.ErrAccessDenied) {
			return Session{}, &AuthError{Err: err}
		}
		return Session{}, &ConnectionError{Err: err}
	}
	if len(addrs) == 0 {
		return Session{}, &AuthError{Err: ErrNoAccounts}
	}
	addr := addrs[0]
	signer, err := provider.Signer(ctx, addr)
	if err != nil {
		return Session{}, &ConnectionError{Err: err}
	}
	clientConfig := m.config.Ledger
	clientConfig.Contract = m.config.Contract
	clientConfig.Signer = signer
	client, err := ledger.NewClient(clientConfig)
	if err != nil {
		return Session{}, &ConnectionError{Err: err}
	}
	registered, err := client.IsRegistered(ctx, addr)
	if err != nil {
		return Session{}, &ConnectionError{
			Err: fmt.Errorf("check registration: %w", err),
		}
	}
	sess := Session{
		ID:          uuid.NewString(),
		Address:     addr,
		Connected:   true,
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	prev := m.session
	m.session = sess
	m.client = client
	m.registered = registered
	m.mu.Unlock()

	if prev.Connected {
		m.logger.Info(
			"replaced session",
			"previous_session_id", prev.ID,
			"previous_address", prev.Address.String(),
		)
	}
	m.logger.Info(
		"wallet connected",
		"session_id", sess.ID,
		"address", addr.String(),
		"registered", registered,
	)
	m.publish(ConnectedEventType, Event{Session: sess, Registered: registered})
	return sess, nil
}

// Disconnect drops the current session, if any
func (m *Manager) Disconnect() {
	m.mu.Lock()
	sess := m.session
	m.session = Session{}
	m.client = nil
	m.registered = false
	m.mu.Unlock()
	if !sess.Connected {
		return
	}
	m.logger.Info(
		"wallet disconnected",
		"session_id", sess.ID,
		"address", sess.Address.String(),
	)
	sess.Connected = false
	m.publish(DisconnectedEventType, Event{Session: sess})
}

// Current returns the live session, if there is one
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.session.Connected
}

// Client returns the ledger client bound to the live session
func (m *Manager) Client() (*ledger.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, ErrNotConnected
	}
	return m.client, nil
}

// Registered reports the last known registration status of the session
// identity. It is false when no session is live.
func (m *Manager) Registered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// MarkRegistered records a confirmed registration without querying the ledger
func (m *Manager) MarkRegistered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Connected {
		m.registered = true
	}
}

// RefreshRegistration reloads the registration status from the ledger
func (m *Manager) RefreshRegistration(ctx context.Context) (bool, error) {
	m.mu.RLock()
	client := m.client
	sessionID := m.session.ID
	m.mu.RUnlock()
	if client == nil {
		return false, ErrNotConnected
	}
	registered, err := client.IsRegistered(ctx, client.Address())
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// The session may have changed while querying
	if m.session.ID == sessionID {
		m.registered = registered
	}
	return registered, nil
}

func (m *Manager) publish(eventType event.EventType, data Event) {
	if m.config.EventBus == nil {
		return
	}
	m.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}
