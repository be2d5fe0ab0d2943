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

// Package ledger implements a client for the JSON API of the ledger: command
// submission, the current-state query and the polling variant of the event
// feed. The push variant of the event feed is implemented in package stream.
package ledger

import (
	"encoding/json"
	"strings"

	"github.com/hyperledger-labs/evm-bridge"
)

// TemplateID returns the identifier of the template of an entity in the given
// module, in the form "<module>:<entity>".
func TemplateID(module, entity string) string {
	return module + ":" + entity
}

// SplitTemplateID splits a template identifier into module and entity. It
// returns false if the identifier has no module part.
func SplitTemplateID(templateID string) (module, entity string, ok bool) {
	idx := strings.LastIndex(templateID, ":")
	if idx <= 0 || idx == len(templateID)-1 {
		return "", "", false
	}
	return templateID[:idx], templateID[idx+1:], true
}

// CreatedEvent is the creation of a contract on the ledger.
type CreatedEvent struct {
	ContractID  string          `json:"contractId"`
	TemplateID  string          `json:"templateId"`
	Payload     json.RawMessage `json:"payload"`
	Signatories []string        `json:"signatories,omitempty"`
	Observers   []string        `json:"observers,omitempty"`
}

// ArchivedEvent is the archival of a contract on the ledger.
type ArchivedEvent struct {
	ContractID string `json:"contractId"`
	TemplateID string `json:"templateId"`
}

// Event is either a creation or an archival. Exactly one of the fields is set.
type Event struct {
	Created  *CreatedEvent  `json:"created,omitempty"`
	Archived *ArchivedEvent `json:"archived,omitempty"`
}

// Batch is the set of events produced by one update on the ledger. Offset is
// the position of the update in the event feed.
type Batch struct {
	UpdateID string        `json:"updateId"`
	Offset   bridge.Offset `json:"offset"`
	Events   []Event       `json:"events"`
}

// CreateCommand creates a contract of the given template.
type CreateCommand struct {
	TemplateID string          `json:"templateId"`
	Payload    json.RawMessage `json:"payload"`
}

// ExerciseCommand exercises a choice on an active contract.
type ExerciseCommand struct {
	TemplateID string          `json:"templateId"`
	ContractID string          `json:"contractId"`
	Choice     string          `json:"choice"`
	Argument   json.RawMessage `json:"argument"`
}

// Command is either a create or an exercise command. Exactly one of the fields is set.
type Command struct {
	Create   *CreateCommand   `json:"create,omitempty"`
	Exercise *ExerciseCommand `json:"exercise,omitempty"`
}

// NewCreateCommand returns a create command with the JSON encoding of payload.
func NewCreateCommand(templateID string, payload interface{}) (Command, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Command{}, bridge.NewAPIErrUnknownInternal(err)
	}
	return Command{Create: &CreateCommand{TemplateID: templateID, Payload: b}}, nil
}

// NewExerciseCommand returns an exercise command with the JSON encoding of argument.
func NewExerciseCommand(templateID, contractID, choice string, argument interface{}) (Command, error) {
	b, err := json.Marshal(argument)
	if err != nil {
		return Command{}, bridge.NewAPIErrUnknownInternal(err)
	}
	return Command{Exercise: &ExerciseCommand{
		TemplateID: templateID,
		ContractID: contractID,
		Choice:     choice,
		Argument:   b,
	}}, nil
}

// SubmitRequest is a list of commands submitted atomically. The ledger
// deduplicates requests by CommandID: submitting a known command id again
// returns the result of the first submission without applying the commands.
type SubmitRequest struct {
	CommandID string    `json:"commandId"`
	ActAs     []string  `json:"actAs"`
	ReadAs    []string  `json:"readAs,omitempty"`
	Commands  []Command `json:"commands"`
}

// ActiveContractsRequest queries the active contracts of a template visible to the parties.
type ActiveContractsRequest struct {
	Parties    []string `json:"parties"`
	TemplateID string   `json:"templateId"`
}

// ActiveContractsResponse is the reply to an ActiveContractsRequest.
type ActiveContractsResponse struct {
	Contracts []CreatedEvent `json:"contracts"`
}

// UpdatesRequest polls the event feed for batches after BeginExclusive. The
// ledger replies when at least one batch is available or after the idle
// timeout with an empty list.
type UpdatesRequest struct {
	BeginExclusive bridge.Offset `json:"beginExclusive"`
	PartyFilter    []string      `json:"partyFilter"`
	IdleTimeoutMs  int64         `json:"idleTimeoutMs"`
	Limit          int           `json:"limit,omitempty"`
}

// UpdatesResponse is the reply to an UpdatesRequest.
type UpdatesResponse struct {
	Batches []Batch `json:"batches"`
}

// SubscribeRequest is the first frame sent by the client on a stream connection.
type SubscribeRequest struct {
	BeginExclusive bridge.Offset `json:"beginExclusive"`
	PartyFilter    []string      `json:"partyFilter"`
}

// LedgerEndResponse carries the offset of the last update on the ledger.
type LedgerEndResponse struct {
	Offset bridge.Offset `json:"offset"`
}

// ErrorResponse is the body of every reply with a non 2xx status.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Paths of the endpoints of the ledger API.
const (
	PathSubmit          = "/v2/commands/submit-and-wait"
	PathActiveContracts = "/v2/state/active-contracts"
	PathUpdates         = "/v2/updates"
	PathLedgerEnd       = "/v2/state/ledger-end"
	PathStream          = "/v2/updates/stream"
)

// Stakeholders returns the signatories and observers of the contract.
func (e CreatedEvent) Stakeholders() []string {
	parties := make([]string, 0, len(e.Signatories)+len(e.Observers))
	parties = append(parties, e.Signatories...)
	return append(parties, e.Observers...)
}
