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

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/blockchain"
	"github.com/hyperledger-labs/evm-bridge/derivation"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/requestid"
	"github.com/hyperledger-labs/evm-bridge/signing"
	"github.com/hyperledger-labs/evm-bridge/txcodec"
)

// Relayer broadcasts the signed transaction of each request to the external
// chain and claims the request once its outcome is attested. It only knows
// the root public key and verifies every signature against it.
type Relayer struct {
	base

	rootPub *ecdsa.PublicKey
	chain   bridge.ChainBackend
}

// NewRelayer returns a relayer.
func NewRelayer(cfg Config, l Ledger, chain bridge.ChainBackend, store bridge.LifecycleStore,
	rootPub *ecdsa.PublicKey) *Relayer {
	return &Relayer{
		base:    newBase("relayer", cfg, l, store),
		rootPub: rootPub,
		chain:   chain,
	}
}

// Name implements Role.
func (r *Relayer) Name() string { return "relayer" }

// Handlers implements Role.
func (r *Relayer) Handlers() map[Template]HandlerFunc {
	return map[Template]HandlerFunc{
		PendingRequest:    r.track(bridge.StateAnchored),
		SignatureEvidence: r.handleEvidence,
		OutcomeEvidence:   r.handleOutcome,
		ClaimedRequest:    r.track(bridge.StateClaimed),
	}
}

// handleEvidence verifies the signature of the evidence and broadcasts the
// signed transaction.
func (r *Relayer) handleEvidence(ctx context.Context, ev ledger.CreatedEvent, id bridge.RequestID) error {
	logger := r.WithField("request-id", id)
	e, err := DecodeEvidence(ev.Payload)
	if err != nil {
		return err
	}
	state, _, err := r.store.State(ctx, id)
	if err != nil {
		return errors.WithMessage(err, "reading lifecycle state")
	}
	if state >= bridge.StateExternalSubmitted {
		logger.Debugf("Request in state %s, skipping", state)
		return nil
	}

	_, a, found, err := r.findAnchor(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		logger.Debug("Anchor no longer active, skipping")
		return nil
	}

	raw, err := r.verifiedTransaction(a, e)
	if err != nil {
		return err
	}
	txHash, err := r.chain.SendRawTransaction(ctx, raw)
	switch {
	case blockchain.IsAlreadySubmitted(err):
		txHash = txcodec.SignedHash(raw)
		logger.WithField("tx-hash", txHash.Hex()).Info("Transaction already submitted")
	case err != nil:
		return err
	default:
		logger.WithField("tx-hash", txHash.Hex()).Info("Submitted transaction")
	}
	return r.setState(ctx, id, bridge.StateExternalSubmitted, txHash.Hex())
}

// handleOutcome verifies the outcome attestation and claims the request.
func (r *Relayer) handleOutcome(ctx context.Context, ev ledger.CreatedEvent, id bridge.RequestID) error {
	logger := r.WithField("request-id", id)
	att, err := DecodeOutcome(ev.Payload)
	if err != nil {
		return err
	}

	anchor, a, found, err := r.findAnchor(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		logger.Debug("Anchor no longer active, skipping")
		return r.setState(ctx, id, bridge.StateOutcomeEvidence, "")
	}
	evidence, found, err := r.find(ctx, SignatureEvidence, id)
	if err != nil {
		return err
	}
	if !found {
		logger.Debug("Signature evidence no longer active, skipping")
		return nil
	}
	e, err := DecodeEvidence(evidence.Payload)
	if err != nil {
		return err
	}

	if err := signing.VerifyOutcome(r.rootPub, requestid.ComputeOutcomeHash(id, att.Outcome), att.DERSignature); err != nil {
		return bridge.NewAPIErrVerificationFailed(err, id.Hex(), "outcome signature")
	}
	raw, err := r.verifiedTransaction(a, e)
	if err != nil {
		return err
	}
	if txHash := txcodec.SignedHash(raw); txHash != att.TxHash {
		return bridge.NewAPIErrVerificationFailed(
			errors.Errorf("attested transaction %s, signed transaction %s", att.TxHash.Hex(), txHash.Hex()),
			id.Hex(), "transaction hash")
	}
	if err := r.setState(ctx, id, bridge.StateOutcomeEvidence, att.Outcome.String()); err != nil {
		return err
	}

	cmd, err := ledger.NewExerciseCommand(anchor.TemplateID, anchor.ContractID, ChoiceClaim, ClaimArgument{
		SignatureEvidenceCID: evidence.ContractID,
		OutcomeEvidenceCID:   ev.ContractID,
	})
	if err != nil {
		return err
	}
	if _, err := r.submit(ctx, KindClaim, id, cmd); err != nil {
		return err
	}
	logger.WithField("outcome", att.Outcome).Info("Claimed request")
	return r.setState(ctx, id, bridge.StateClaimed, att.Outcome.String())
}

// verifiedTransaction reconstructs the signed transaction of the request and
// checks that it is signed by the child key of the request.
func (r *Relayer) verifiedTransaction(a Anchor, e Evidence) ([]byte, error) {
	expected, err := derivation.ChildAddress(r.rootPub, a.Context)
	if err != nil {
		return nil, bridge.NewAPIErrUnknownInternal(errors.WithMessage(err, "deriving child address"))
	}
	hash, err := txcodec.SigningHash(a.Intent)
	if err != nil {
		return nil, err
	}
	if err := signing.VerifyTransactionSignature(hash, e.Signature, expected); err != nil {
		return nil, bridge.NewAPIErrVerificationFailed(err, a.RequestID.Hex(), "transaction signature")
	}
	return txcodec.ReconstructSigned(a.Intent, e.Signature)
}
