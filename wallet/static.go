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

package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// StaticProvider serves a single in-memory key
type StaticProvider struct {
	signer *keySigner
}

// NewStaticProvider wraps an existing private key. A nil approve auto-approves.
func NewStaticProvider(
	priv ed25519.PrivateKey,
	approve ApproveFunc,
) *StaticProvider {
	return &StaticProvider{signer: newKeySigner(priv, approve)}
}

// NewRandomProvider generates a fresh key
func NewRandomProvider(approve ApproveFunc) (*StaticProvider, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewStaticProvider(priv, approve), nil
}

// Address returns the address of the wrapped key without asking for approval
func (p *StaticProvider) Address() Address {
	return p.signer.addr
}

func (p *StaticProvider) RequestAccess(ctx context.Context) ([]Address, error) {
	return requestAccess(ctx, p.signer.approve, p.signer.addr)
}

func (p *StaticProvider) Signer(_ context.Context, addr Address) (Signer, error) {
	if addr != p.signer.addr {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	}
	return p.signer, nil
}
