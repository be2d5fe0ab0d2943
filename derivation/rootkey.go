// Copyright (c) 2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/hyperledger-labs/evm-bridge
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

package derivation

import (
	"crypto/ecdsa"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
)

// Standard encryption parameters should be used for real root keys. Using these parameters will
// cause the decryption to use 256MB of RAM and takes approx 1s on a modern processor.
//
// Weak encryption parameters should be used for test keys only.
const (
	StandardScryptN = keystore.StandardScryptN
	StandardScryptP = keystore.StandardScryptP
	WeakScryptN     = 2
	WeakScryptP     = 1
)

// ScryptParams defines the parameters for scrypt encryption algorithm, used for encrypting the
// root key in the keystore file.
type ScryptParams struct {
	N, P int
}

// RootKey holds the root secret of the signer. Only the signer process holds
// it. It is passed explicitly to the components that need it and is never
// written anywhere in plain text.
type RootKey struct {
	mtx    sync.RWMutex
	key    *ecdsa.PrivateKey
	zeroed bool
}

// NewRootKey wraps the given private key.
func NewRootKey(key *ecdsa.PrivateKey) (*RootKey, error) {
	if key == nil || key.D == nil || key.D.Sign() == 0 {
		return nil, ErrNilRootKey
	}
	return &RootKey{key: key}, nil
}

// GenerateRootKey generates a new random root key.
func GenerateRootKey() (*RootKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generating root key")
	}
	return NewRootKey(key)
}

// LoadRootKey decrypts the root key from an ethereum keystore file.
func LoadRootKey(keystoreFile, password string) (*RootKey, error) {
	keyJSON, err := os.ReadFile(filepath.Clean(keystoreFile))
	if err != nil {
		return nil, errors.Wrap(err, "reading keystore file")
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting root key")
	}
	return NewRootKey(key.PrivateKey)
}

// StoreRootKey encrypts the root key with the given password and writes it as
// an ethereum keystore file.
func StoreRootKey(r *RootKey, keystoreFile, password string, params ScryptParams) error {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if r.zeroed {
		return ErrRootKeyZeroed
	}

	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(r.key.PublicKey),
		PrivateKey: r.key,
	}
	keyJSON, err := keystore.EncryptKey(key, password, params.N, params.P)
	if err != nil {
		return errors.Wrap(err, "encrypting root key")
	}
	return errors.Wrap(os.WriteFile(keystoreFile, keyJSON, 0o600), "writing keystore file")
}

// PublicKey returns the root public key.
func (r *RootKey) PublicKey() *ecdsa.PublicKey {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	pub := r.key.PublicKey
	return &pub
}

// Child derives the child key for the given context.
func (r *RootKey) Child(ctx bridge.DerivationContext) (*ecdsa.PrivateKey, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if r.zeroed {
		return nil, ErrRootKeyZeroed
	}
	return DeriveChild(r.key, ctx)
}

// Use calls fn with the root private key. The key must not be retained by fn.
func (r *RootKey) Use(fn func(*ecdsa.PrivateKey) error) error {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if r.zeroed {
		return ErrRootKeyZeroed
	}
	return fn(r.key)
}

// Zero overwrites the secret scalar. The root key cannot be used afterwards.
func (r *RootKey) Zero() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.zeroed {
		return
	}
	words := r.key.D.Bits()
	for i := range words {
		words[i] = 0
	}
	r.key.D.SetInt64(0)
	r.zeroed = true
}

// ParsePublicKey parses a hex encoded secp256k1 public key, either in
// compressed (33 bytes) or uncompressed (65 bytes) form. A 0x prefix is optional.
func ParsePublicKey(s string) (*ecdsa.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decoding public key")
	}
	switch len(b) {
	case 33:
		pub, err := crypto.DecompressPubkey(b)
		return pub, errors.Wrap(err, "parsing compressed public key")
	case 65:
		pub, err := crypto.UnmarshalPubkey(b)
		return pub, errors.Wrap(err, "parsing uncompressed public key")
	default:
		return nil, errors.Errorf("public key must be 33 or 65 bytes, got %d", len(b))
	}
}

// FormatPublicKey returns the hex encoding of the compressed public key
// without a 0x prefix.
func FormatPublicKey(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.CompressPubkey(pub))
}
