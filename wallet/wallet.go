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

// Package wallet defines the identity provider consumed by a ballot session
// and ships two implementations: a keyfile-backed provider for the CLI and a
// static in-memory provider for tests and embedding.
//
// A provider never signs anything without consulting its ApproveFunc, which
// stands in for the interactive confirmation a browser wallet would show.
package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// Common errors returned by wallet providers and signers.
var (
	ErrNoProvider       = errors.New("no wallet provider available")
	ErrAccessDenied     = errors.New("wallet access denied by user")
	ErrUserRejected     = errors.New("signature request rejected by user")
	ErrUnknownAddress   = errors.New("address is not managed by this wallet")
	ErrInsecureFileMode = errors.New("insecure file permissions")
)

// Address is an opaque identity handle. For the bundled providers it is the
// hex encoded Blake2b-224 hash of the ed25519 verification key.
type Address string

func (a Address) String() string {
	return string(a)
}

// AddressFromPublicKey derives the address for an ed25519 verification key
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	return Address(lcommon.Blake2b224Hash(pub).String())
}

// Provider is the wallet as seen by a session. RequestAccess may block on user
// interaction.
type Provider interface {
	RequestAccess(ctx context.Context) ([]Address, error)
	Signer(ctx context.Context, addr Address) (Signer, error)
}

// Signer produces signatures for a single address.
type Signer interface {
	Address() Address
	PublicKey() ed25519.PublicKey
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// RequestKind identifies what the user is being asked to approve
type RequestKind string

const (
	RequestAccess    RequestKind = "access"
	RequestSignature RequestKind = "signature"
)

// Request describes a pending approval
type Request struct {
	Kind    RequestKind
	Address Address
	Payload []byte
}

// ApproveFunc decides whether a request is allowed. Returning false maps to
// ErrAccessDenied or ErrUserRejected depending on the request kind.
type ApproveFunc func(ctx context.Context, req Request) (bool, error)

// AutoApprove approves every request
func AutoApprove(context.Context, Request) (bool, error) {
	return true, nil
}

// DenyAll rejects every request
func DenyAll(context.Context, Request) (bool, error) {
	return false, nil
}

// keySigner signs with an ed25519 key after consulting the approver
type keySigner struct {
	priv    ed25519.PrivateKey
	addr    Address
	approve ApproveFunc
}

func newKeySigner(priv ed25519.PrivateKey, approve ApproveFunc) *keySigner {
	if approve == nil {
		approve = AutoApprove
	}
	pub, _ := priv.Public().(ed25519.PublicKey)
	return &keySigner{
		priv:    priv,
		addr:    AddressFromPublicKey(pub),
		approve: approve,
	}
}

func (s *keySigner) Address() Address {
	return s.addr
}

func (s *keySigner) PublicKey() ed25519.PublicKey {
	pub, _ := s.priv.Public().(ed25519.PublicKey)
	return pub
}

func (s *keySigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ok, err := s.approve(ctx, Request{
		Kind:    RequestSignature,
		Address: s.addr,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserRejected
	}
	return ed25519.Sign(s.priv, payload), nil
}

func requestAccess(
	ctx context.Context,
	approve ApproveFunc,
	addr Address,
) ([]Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ok, err := approve(ctx, Request{Kind: RequestAccess, Address: addr})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}
	return []Address{addr}, nil
}
