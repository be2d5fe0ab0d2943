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

// Package actor implements the three actors advancing the lifecycle of a
// request: the initiator creates the anchor, the signer signs the transaction
// and attests its outcome, the relayer broadcasts the transaction and claims
// the request.
//
// Each actor is a Role: a dispatch table from templates to handlers. The
// Runner feeds the events of the ledger to the handlers of a role.
package actor

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/log"
)

// Kinds of the commands submitted by the actors.
const (
	KindIntent    = "intent"
	KindSignature = "signature"
	KindOutcome   = "outcome"
	KindClaim     = "claim"
)

// ChoiceClaim is the choice exercised on the anchor to claim a request.
const ChoiceClaim = "Claim"

// commandNamespace is the namespace of the command ids.
var commandNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperledger-labs/evm-bridge/commands"))

// CommandID returns the id of the command of the given kind for a request.
// Submitting a command with the same id again is deduplicated by the ledger.
func CommandID(kind string, id bridge.RequestID) string {
	return uuid.NewSHA1(commandNamespace, []byte(kind+":"+id.Hex())).String()
}

// Ledger is the part of the ledger API used by the actors. It is implemented
// by ledger.Client.
type Ledger interface {
	Submit(ctx context.Context, req ledger.SubmitRequest) (ledger.Batch, error)
	ActiveContracts(ctx context.Context, parties []string, templateID string) ([]ledger.CreatedEvent, error)
}

// HandlerFunc handles the creation of a contract belonging to the request id.
type HandlerFunc func(ctx context.Context, ev ledger.CreatedEvent, id bridge.RequestID) error

// Role is an actor as seen by the runner.
type Role interface {
	Name() string
	// Handlers returns the dispatch table of the role. It must contain an
	// entry for every template, use Ignore for templates of no interest.
	Handlers() map[Template]HandlerFunc
}

// Ignore is the handler for templates a role does not act upon.
func Ignore(context.Context, ledger.CreatedEvent, bridge.RequestID) error {
	return nil
}

// Config is the configuration common to all actors.
type Config struct {
	// Party is the party the actor acts as.
	Party string
	// ReadAs are additional parties whose contracts the actor reads.
	ReadAs    []string
	Templates Templates
}

func (cfg Config) parties() []string {
	return append([]string{cfg.Party}, cfg.ReadAs...)
}

// base implements the interactions with the ledger shared by all actors.
type base struct {
	log.Logger

	cfg    Config
	ledger Ledger
	store  bridge.LifecycleStore
}

func newBase(role string, cfg Config, l Ledger, store bridge.LifecycleStore) base {
	return base{
		Logger: log.NewLoggerWithFields(log.Fields{"role": role, "party": cfg.Party}),
		cfg:    cfg,
		ledger: l,
		store:  store,
	}
}

// find returns the active contract of the template for the request id. It
// returns false if there is none. Contracts with invalid payloads are skipped.
func (b *base) find(ctx context.Context, t Template, id bridge.RequestID) (ledger.CreatedEvent, bool, error) {
	contracts, err := b.ledger.ActiveContracts(ctx, b.cfg.parties(), b.cfg.Templates.ID(t))
	if err != nil {
		return ledger.CreatedEvent{}, false, errors.WithMessagef(err, "querying %s contracts", t)
	}
	for _, c := range contracts {
		cid, err := DecodeRequestID(t, c.Payload)
		if err != nil {
			b.WithField("contract-id", c.ContractID).Debugf("Skipping %s contract: %v", t, err)
			continue
		}
		if cid == id {
			return c, true, nil
		}
	}
	return ledger.CreatedEvent{}, false, nil
}

// findAnchor returns the active anchor of the request.
func (b *base) findAnchor(ctx context.Context, id bridge.RequestID) (ledger.CreatedEvent, Anchor, bool, error) {
	ev, found, err := b.find(ctx, PendingRequest, id)
	if err != nil || !found {
		return ev, Anchor{}, found, err
	}
	a, err := DecodeAnchor(ev.Payload)
	return ev, a, err == nil, err
}

// submit submits the commands as one request with the id of the given kind.
func (b *base) submit(ctx context.Context, kind string, id bridge.RequestID, cmds ...ledger.Command) (
	ledger.Batch, error) {
	batch, err := b.ledger.Submit(ctx, ledger.SubmitRequest{
		CommandID: CommandID(kind, id),
		ActAs:     []string{b.cfg.Party},
		ReadAs:    b.cfg.ReadAs,
		Commands:  cmds,
	})
	if err != nil {
		return ledger.Batch{}, errors.WithMessagef(err, "submitting %s command", kind)
	}
	b.WithFields(log.Fields{"request-id": id, "offset": batch.Offset}).Infof("Submitted %s command", kind)
	return batch, nil
}

// create submits a command creating a contract of the template.
func (b *base) create(ctx context.Context, kind string, id bridge.RequestID, t Template, payload interface{}) error {
	cmd, err := ledger.NewCreateCommand(b.cfg.Templates.ID(t), payload)
	if err != nil {
		return err
	}
	_, err = b.submit(ctx, kind, id, cmd)
	return err
}

// track returns a handler that only records the state in the lifecycle store.
func (b *base) track(s bridge.LifecycleState) HandlerFunc {
	return func(ctx context.Context, _ ledger.CreatedEvent, id bridge.RequestID) error {
		return b.setState(ctx, id, s, "")
	}
}

func (b *base) setState(ctx context.Context, id bridge.RequestID, s bridge.LifecycleState, detail string) error {
	err := b.store.SetState(ctx, id, s, detail)
	return errors.WithMessage(err, "recording lifecycle state")
}
