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
	"github.com/hyperledger-labs/evm-bridge/derivation"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/log"
	"github.com/hyperledger-labs/evm-bridge/requestid"
)

// Initiator creates the anchors of new requests and tracks their lifecycle.
type Initiator struct {
	base

	rootPub *ecdsa.PublicKey
}

// NewInitiator returns an initiator. The root public key is optional, if set
// the address of the child key of each new request is logged, so that it can
// be funded.
func NewInitiator(cfg Config, l Ledger, store bridge.LifecycleStore, rootPub *ecdsa.PublicKey) *Initiator {
	return &Initiator{
		base:    newBase("initiator", cfg, l, store),
		rootPub: rootPub,
	}
}

// Name implements Role.
func (i *Initiator) Name() string { return "initiator" }

// Handlers implements Role.
func (i *Initiator) Handlers() map[Template]HandlerFunc {
	return map[Template]HandlerFunc{
		PendingRequest:    i.track(bridge.StateAnchored),
		SignatureEvidence: i.track(bridge.StateSignatureEvidence),
		OutcomeEvidence:   i.handleOutcome,
		ClaimedRequest:    i.track(bridge.StateClaimed),
	}
}

// SubmitIntent creates the anchor of a new request for the intent. The party
// of the initiator is the sender of the request and the predecessor id of
// the derivation context, the predecessor id passed in dctx is ignored.
//
// Submitting the same intent and context again returns the same request id
// without creating a second anchor.
func (i *Initiator) SubmitIntent(ctx context.Context, intent bridge.TransactionIntent,
	dctx bridge.DerivationContext) (bridge.RequestID, error) {
	dctx.PredecessorID = i.cfg.Party
	id, err := requestid.ComputeRequestID(i.cfg.Party, intent, dctx)
	if err != nil {
		return bridge.RequestID{}, err
	}
	logger := i.WithField("request-id", id)
	if i.rootPub != nil {
		addr, err := derivation.ChildAddress(i.rootPub, dctx)
		if err != nil {
			return bridge.RequestID{}, bridge.NewAPIErrUnknownInternal(errors.WithMessage(err, "deriving child address"))
		}
		logger = logger.WithField("signer", addr.Hex())
	}

	payload := NewAnchorPayload(Anchor{
		RequestID:   id,
		Sender:      i.cfg.Party,
		Intent:      intent,
		Context:     dctx,
		Algorithm:   requestid.AlgorithmTag,
		Destination: requestid.DestinationTag,
	})
	if err := i.create(ctx, KindIntent, id, PendingRequest, payload); err != nil {
		return bridge.RequestID{}, err
	}
	logger.Info("Submitted intent")
	return id, i.setState(ctx, id, bridge.StateAnchored, "")
}

// Status returns the lifecycle state of a request as seen by the initiator.
func (i *Initiator) Status(ctx context.Context, id bridge.RequestID) (bridge.LifecycleState, string, error) {
	return i.store.State(ctx, id)
}

func (i *Initiator) handleOutcome(ctx context.Context, ev ledger.CreatedEvent, id bridge.RequestID) error {
	att, err := DecodeOutcome(ev.Payload)
	if err != nil {
		return err
	}
	i.WithFields(log.Fields{"request-id": id, "outcome": att.Outcome, "tx-hash": att.TxHash.Hex()}).
		Info("Outcome attested")
	return i.setState(ctx, id, bridge.StateOutcomeEvidence, att.Outcome.String())
}
