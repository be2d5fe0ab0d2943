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

// Package signing creates and verifies the two kinds of signatures made by
// the signer: recoverable signatures over transaction hashes made with a
// child key, and DER encoded outcome attestations made with the root key.
package signing

import (
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
)

// Error type is used to define error constants for this package.
type Error string

// Error implements error interface.
func (e Error) Error() string {
	return string(e)
}

// Definition of error constants for this package.
const (
	ErrSignerMismatch    Error = "recovered signer does not match expected address"
	ErrOutcomeSigInvalid Error = "outcome signature does not verify against root public key"
)

// SignTransactionHash signs the 32 byte hash with the child key. The hash is
// signed as is, without further hashing.
func SignTransactionHash(key *ecdsa.PrivateKey, hash common.Hash) (bridge.Signature, error) {
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return bridge.Signature{}, errors.Wrap(err, "signing transaction hash")
	}
	return bridge.SignatureFromBytes(sig)
}

// RecoverAddress returns the address of the key that made the signature.
func RecoverAddress(hash common.Hash, sig bridge.Signature) (common.Address, error) {
	pub, err := crypto.SigToPub(hash.Bytes(), sig.Bytes())
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recovering public key")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyTransactionSignature checks if the signature over the hash was made
// by the key of the expected address.
func VerifyTransactionSignature(hash common.Hash, sig bridge.Signature, expected common.Address) error {
	got, err := RecoverAddress(hash, sig)
	if err != nil {
		return err
	}
	if got != expected {
		return errors.WithMessagef(ErrSignerMismatch, "expected %s, got %s", expected.Hex(), got.Hex())
	}
	return nil
}

// SignOutcome signs the outcome hash with the root key and returns the DER
// encoding of (r, s).
func SignOutcome(root *ecdsa.PrivateKey, outcomeHash [32]byte) ([]byte, error) {
	if root == nil || root.D == nil || root.D.Sign() == 0 {
		return nil, errors.New("signing outcome: root key is not set")
	}
	priv, _ := btcec.PrivKeyFromBytes(crypto.FromECDSA(root))
	defer priv.Zero()
	return btcecdsa.Sign(priv, outcomeHash[:]).Serialize(), nil
}

// VerifyOutcome checks the DER encoded signature over the outcome hash
// against the root public key.
func VerifyOutcome(rootPub *ecdsa.PublicKey, outcomeHash [32]byte, derSig []byte) error {
	pub, err := btcec.ParsePubKey(crypto.CompressPubkey(rootPub))
	if err != nil {
		return errors.Wrap(err, "parsing root public key")
	}
	sig, err := btcecdsa.ParseDERSignature(derSig)
	if err != nil {
		return errors.Wrap(err, "parsing DER signature")
	}
	if !sig.Verify(outcomeHash[:], pub) {
		return ErrOutcomeSigInvalid
	}
	return nil
}
