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

package actor

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/blockchain"
	"github.com/hyperledger-labs/evm-bridge/derivation"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/log"
	"github.com/hyperledger-labs/evm-bridge/requestid"
	"github.com/hyperledger-labs/evm-bridge/signing"
	"github.com/hyperledger-labs/evm-bridge/txcodec"
)

// OutcomeConfig configures how long the signer waits for the receipt of a
// transaction before attesting a failure.
type OutcomeConfig struct {
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
}

// Signer is the only actor holding the root key. It signs the transaction of
// each anchor with the child key of the request and attests the outcome of
// the transaction with the root key.
type Signer struct {
	base

	root    *derivation.RootKey
	chain   bridge.ChainBackend
	outcome OutcomeConfig
}

// NewSigner returns a signer. The root key is used by the signer only, it is
// zeroed by the caller on shutdown.
func NewSigner(cfg Config, l Ledger, chain bridge.ChainBackend, store bridge.LifecycleStore,
	root *derivation.RootKey, outcome OutcomeConfig) *Signer {
	return &Signer{
		base:    newBase("signer", cfg, l, store),
		root:    root,
		chain:   chain,
		outcome: outcome,
	}
}

// Name implements Role.
func (s *Signer) Name() string { return "signer" }

// Handlers implements Role.
func (s *Signer) Handlers() map[Template]HandlerFunc {
	return map[Template]HandlerFunc{
		PendingRequest:    s.handleAnchor,
		SignatureEvidence: s.handleEvidence,
		OutcomeEvidence:   s.track(bridge.StateOutcomeEvidence),
		ClaimedRequest:    s.track(bridge.StateClaimed),
	}
}

// handleAnchor signs the transaction of the anchor and creates the signature
// evidence.
func (s *Signer) handleAnchor(ctx context.Context, ev ledger.CreatedEvent, id bridge.RequestID) error {
	logger := s.WithField("request-id", id)
	a, err := DecodeAnchor(ev.Payload)
	if err != nil {
		return err
	}
	if err := verifyAnchor(ev, a); err != nil {
		return err
	}

	if _, found, err := s.find(ctx, PendingRequest, id); err != nil {
		return err
	} else if !found {
		logger.Debug("Anchor no longer active, skipping")
		return nil
	}
	if evidence, found, err := s.find(ctx, SignatureEvidence, id); err != nil {
		return err
	} else if found {
		e, err := DecodeEvidence(evidence.Payload)
		if err != nil {
			return err
		}
		if err := s.verifyEvidence(evidence, e, a); err != nil {
			return err
		}
		logger.Debug("Signature evidence exists, skipping")
		return s.setState(ctx, id, bridge.StateSignatureEvidence, "")
	}

	hash, err := txcodec.SigningHash(a.Intent)
	if err != nil {
		return err
	}
	child, err := s.root.Child(a.Context)
	if err != nil {
		return bridge.NewAPIErrUnknownInternal(errors.WithMessage(err, "deriving child key"))
	}
	sig, err := signing.SignTransactionHash(child, hash)
	zeroKey(child)
	if err != nil {
		return bridge.NewAPIErrUnknownInternal(err)
	}

	payload := NewEvidencePayload(Evidence{RequestID: id, Signature: sig, Signer: s.cfg.Party})
	if err := s.create(ctx, KindSignature, id, SignatureEvidence, payload); err != nil {
		return err
	}
	logger.WithField("signer", derivation.ChildToAddress(&child.PublicKey).Hex()).Info("Signed transaction")
	return s.setState(ctx, id, bridge.StateSignatureEvidence, hash.Hex())
}

// handleEvidence waits for the outcome of the signed transaction and creates
// the outcome evidence.
func (s *Signer) handleEvidence(ctx context.Context, ev ledger.CreatedEvent, id bridge.RequestID) error {
	logger := s.WithField("request-id", id)
	e, err := DecodeEvidence(ev.Payload)
	if err != nil {
		return err
	}

	_, a, found, err := s.findAnchor(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		logger.Debug("Anchor no longer active, skipping")
		return nil
	}
	if err := s.verifyEvidence(ev, e, a); err != nil {
		return err
	}
	if err := s.setState(ctx, id, bridge.StateSignatureEvidence, ""); err != nil {
		return err
	}
	if _, found, err := s.find(ctx, OutcomeEvidence, id); err != nil {
		return err
	} else if found {
		logger.Debug("Outcome evidence exists, skipping")
		return s.setState(ctx, id, bridge.StateOutcomeEvidence, "")
	}

	raw, err := txcodec.ReconstructSigned(a.Intent, e.Signature)
	if err != nil {
		return bridge.NewAPIErrInvalidField("signature", hex.EncodeToString(e.Signature.Bytes()), err.Error())
	}
	txHash := txcodec.SignedHash(raw)
	logger.WithField("tx-hash", txHash.Hex()).Info("Waiting for outcome")
	outcome, err := blockchain.WaitForOutcome(ctx, s.chain, txHash,
		s.outcome.ReceiptTimeout, s.outcome.ReceiptPollInterval, logger)
	if err != nil {
		return err
	}

	var der []byte
	err = s.root.Use(func(root *ecdsa.PrivateKey) (err error) {
		der, err = signing.SignOutcome(root, requestid.ComputeOutcomeHash(id, outcome.Code))
		return err
	})
	if err != nil {
		return bridge.NewAPIErrUnknownInternal(errors.WithMessage(err, "signing outcome"))
	}

	payload := NewOutcomePayload(bridge.OutcomeAttestation{
		RequestID:    id,
		DERSignature: der,
		Outcome:      outcome.Code,
		TxHash:       txHash,
	})
	if err := s.create(ctx, KindOutcome, id, OutcomeEvidence, payload); err != nil {
		return err
	}
	logger.WithFields(log.Fields{"tx-hash": txHash.Hex(), "outcome": outcome.Code, "timed-out": outcome.TimedOut}).
		Info("Attested outcome")
	return s.setState(ctx, id, bridge.StateOutcomeEvidence, txHash.Hex())
}

// verifyAnchor checks that the anchor requests an ECDSA signature for an
// ethereum transaction, that it was created by its sender and that its id
// matches its content.
func verifyAnchor(ev ledger.CreatedEvent, a Anchor) error {
	if a.Algorithm != requestid.AlgorithmTag {
		return bridge.NewAPIErrUnsupported("algorithm " + a.Algorithm)
	}
	if a.Destination != requestid.DestinationTag {
		return bridge.NewAPIErrUnsupported("destination " + a.Destination)
	}
	if len(ev.Signatories) == 0 || ev.Signatories[0] != a.Sender {
		return bridge.NewAPIErrVerificationFailed(
			errors.Errorf("anchor sender %q is not its signatory", a.Sender), a.RequestID.Hex(), "sender")
	}
	computed, err := requestid.ComputeRequestID(a.Sender, a.Intent, a.Context)
	if err != nil {
		return err
	}
	if computed != a.RequestID {
		return bridge.NewAPIErrVerificationFailed(
			errors.Errorf("computed request id %s", computed), a.RequestID.Hex(), "request id")
	}
	return nil
}

// verifyEvidence checks that the signature evidence was created by this
// signer and that its signature is made by the child key of the request over
// the transaction of the anchor.
func (s *Signer) verifyEvidence(ev ledger.CreatedEvent, e Evidence, a Anchor) error {
	if e.Signer != s.cfg.Party || !containsParty(ev.Signatories, s.cfg.Party) {
		return bridge.NewAPIErrVerificationFailed(
			errors.Errorf("evidence of signer %q with signatories %v", e.Signer, ev.Signatories),
			a.RequestID.Hex(), "evidence signer")
	}
	expected, err := derivation.ChildAddress(s.root.PublicKey(), a.Context)
	if err != nil {
		return bridge.NewAPIErrUnknownInternal(errors.WithMessage(err, "deriving child address"))
	}
	hash, err := txcodec.SigningHash(a.Intent)
	if err != nil {
		return err
	}
	if err := signing.VerifyTransactionSignature(hash, e.Signature, expected); err != nil {
		return bridge.NewAPIErrVerificationFailed(err, a.RequestID.Hex(), "transaction signature")
	}
	return nil
}

func containsParty(parties []string, party string) bool {
	for _, p := range parties {
		if p == party {
			return true
		}
	}
	return false
}

func zeroKey(k *ecdsa.PrivateKey) {
	words := k.D.Bits()
	for i := range words {
		words[i] = 0
	}
	k.D.SetInt64(0)
}
