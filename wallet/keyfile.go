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
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/blinklabs-io/gouroboros/cbor"
)

const (
	// KeyTypePaymentSigning is the cardano-cli envelope type for an ed25519
	// payment signing key
	KeyTypePaymentSigning = "PaymentSigningKeyShelley_ed25519"

	// Valid key files are well under this size
	maxKeyFileSize = 1 << 20
)

// keyFileEnvelope represents the JSON structure of a cardano-cli key file.
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// KeyfileConfig holds configuration for the KeyfileProvider
type KeyfileConfig struct {
	// Path is the signing key file in cardano-cli JSON envelope format
	Path string
	// Approve is consulted for access and signature requests. Defaults to
	// AutoApprove.
	Approve ApproveFunc
	Logger  *slog.Logger
}

// KeyfileProvider is a wallet backed by a single signing key file. The key is
// loaded on the first access request.
type KeyfileProvider struct {
	config KeyfileConfig
	logger *slog.Logger
	signer *keySigner
	mu     sync.Mutex
}

// NewKeyfileProvider creates a provider for the configured key file
func NewKeyfileProvider(config KeyfileConfig) *KeyfileProvider {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if config.Approve == nil {
		config.Approve = AutoApprove
	}
	return &KeyfileProvider{
		config: config,
		logger: config.Logger.With("component", "wallet"),
	}
}

func (p *KeyfileProvider) RequestAccess(ctx context.Context) ([]Address, error) {
	signer, err := p.load()
	if err != nil {
		return nil, err
	}
	return requestAccess(ctx, p.config.Approve, signer.addr)
}

func (p *KeyfileProvider) Signer(_ context.Context, addr Address) (Signer, error) {
	signer, err := p.load()
	if err != nil {
		return nil, err
	}
	if addr != signer.addr {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	}
	return signer, nil
}

func (p *KeyfileProvider) load() (*keySigner, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signer != nil {
		return p.signer, nil
	}
	if p.config.Path == "" {
		return nil, ErrNoProvider
	}
	priv, err := loadKeyFromFile(p.config.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNoProvider, err)
		}
		return nil, err
	}
	p.signer = newKeySigner(priv, p.config.Approve)
	p.logger.Info(
		"signing key loaded",
		"address", p.signer.addr.String(),
	)
	return p.signer, nil
}

// loadKeyFromFile loads an ed25519 signing key from a cardano-cli format key
// file. Returns ErrInsecureFileMode if the file has group or other access.
//
// Permissions are checked on the open handle to avoid a TOCTOU race between
// the permission check and the read.
func loadKeyFromFile(path string) (ed25519.PrivateKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key, nil
}

// parseKeyEnvelope parses a cardano-cli format payment signing key
func parseKeyEnvelope(fileBytes []byte) (ed25519.PrivateKey, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	if env.Type != KeyTypePaymentSigning {
		return nil, fmt.Errorf("unsupported key type: %s", env.Type)
	}
	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	var keyBytes []byte
	if _, err := cbor.Decode(cborData, &keyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signing key CBOR: %w", err)
	}
	switch len(keyBytes) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(keyBytes), nil
	case ed25519.PrivateKeySize:
		// Seed + public key. Derive from the seed rather than trusting the
		// embedded public key.
		return ed25519.NewKeyFromSeed(keyBytes[:ed25519.SeedSize]), nil
	default:
		return nil, fmt.Errorf(
			"invalid signing key bytes: expected %d or %d, got %d",
			ed25519.SeedSize,
			ed25519.PrivateKeySize,
			len(keyBytes),
		)
	}
}

// GenerateKeyFile writes a new payment signing key to path with mode 0600 and
// returns its address. An existing file is never overwritten.
func GenerateKeyFile(path string) (Address, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	cborData, err := cbor.Encode(priv.Seed())
	if err != nil {
		return "", fmt.Errorf("failed to encode signing key: %w", err)
	}
	env := keyFileEnvelope{
		Type:        KeyTypePaymentSigning,
		Description: "Payment Signing Key",
		CborHex:     hex.EncodeToString(cborData),
	}
	data, err := json.MarshalIndent(env, "", "    ")
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return AddressFromPublicKey(pub), nil
}
