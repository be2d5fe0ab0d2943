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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperledger-labs/evm-bridge"
)

// AnchorPayload is the payload of a PendingRequest contract.
type AnchorPayload struct {
	RequestID            string   `json:"requestId"`
	Sender               string   `json:"sender"`
	To                   string   `json:"to"`
	FunctionSignature    string   `json:"functionSignature"`
	Args                 []string `json:"args"`
	Value                string   `json:"value"`
	Nonce                string   `json:"nonce"`
	GasLimit             string   `json:"gasLimit"`
	MaxFeePerGas         string   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string   `json:"maxPriorityFeePerGas"`
	ChainID              string   `json:"chainId"`
	Path                 string   `json:"path"`
	ChainContext         string   `json:"chainContext"`
	KeyVersion           uint32   `json:"keyVersion"`
	Algorithm            string   `json:"algorithm"`
	Destination          string   `json:"destination"`
}

// EvidencePayload is the payload of a SignatureEvidence contract.
type EvidencePayload struct {
	RequestID string `json:"requestId"`
	R         string `json:"r"`
	S         string `json:"s"`
	V         uint8  `json:"v"`
	Signer    string `json:"signer"`
}

// OutcomePayload is the payload of an OutcomeEvidence contract.
type OutcomePayload struct {
	RequestID string `json:"requestId"`
	Outcome   uint8  `json:"outcome"`
	Signature string `json:"signature"`
	TxHash    string `json:"txHash"`
}

// ClaimArgument is the argument of the Claim choice on the anchor.
type ClaimArgument struct {
	SignatureEvidenceCID string `json:"signatureEvidenceCid"`
	OutcomeEvidenceCID   string `json:"outcomeEvidenceCid"`
}

// Anchor is the decoded payload of a PendingRequest contract.
type Anchor struct {
	RequestID   bridge.RequestID
	Sender      string
	Intent      bridge.TransactionIntent
	Context     bridge.DerivationContext
	Algorithm   string
	Destination string
}

// Evidence is the decoded payload of a SignatureEvidence contract.
type Evidence struct {
	RequestID bridge.RequestID
	Signature bridge.Signature
	Signer    string
}

// NewAnchorPayload encodes the anchor for the ledger.
func NewAnchorPayload(a Anchor) AnchorPayload {
	args := make([]string, len(a.Intent.Args))
	for i, arg := range a.Intent.Args {
		args[i] = hex.EncodeToString(arg)
	}
	return AnchorPayload{
		RequestID:            a.RequestID.Hex(),
		Sender:               a.Sender,
		To:                   hex.EncodeToString(a.Intent.To),
		FunctionSignature:    a.Intent.FunctionSignature,
		Args:                 args,
		Value:                hex.EncodeToString(a.Intent.Value),
		Nonce:                hex.EncodeToString(a.Intent.Nonce),
		GasLimit:             hex.EncodeToString(a.Intent.GasLimit),
		MaxFeePerGas:         hex.EncodeToString(a.Intent.MaxFeePerGas),
		MaxPriorityFeePerGas: hex.EncodeToString(a.Intent.MaxPriorityFeePerGas),
		ChainID:              hex.EncodeToString(a.Intent.ChainID),
		Path:                 a.Context.Path,
		ChainContext:         a.Context.ChainContext,
		KeyVersion:           a.Context.KeyVersion,
		Algorithm:            a.Algorithm,
		Destination:          a.Destination,
	}
}

// NewEvidencePayload encodes the signature evidence for the ledger.
func NewEvidencePayload(e Evidence) EvidencePayload {
	return EvidencePayload{
		RequestID: e.RequestID.Hex(),
		R:         hex.EncodeToString(e.Signature.R[:]),
		S:         hex.EncodeToString(e.Signature.S[:]),
		V:         e.Signature.V,
		Signer:    e.Signer,
	}
}

// NewOutcomePayload encodes the outcome attestation for the ledger.
func NewOutcomePayload(a bridge.OutcomeAttestation) OutcomePayload {
	return OutcomePayload{
		RequestID: a.RequestID.Hex(),
		Outcome:   uint8(a.Outcome),
		Signature: hex.EncodeToString(a.DERSignature),
		TxHash:    hex.EncodeToString(a.TxHash[:]),
	}
}

// DecodeAnchor decodes the payload of a PendingRequest contract. The
// predecessor id of the derivation context is the sender of the request.
func DecodeAnchor(payload json.RawMessage) (Anchor, error) {
	r, err := newFieldReader(PendingRequest, payload)
	if err != nil {
		return Anchor{}, err
	}
	a := Anchor{
		RequestID: r.requestID(),
		Sender:    r.readString("sender"),
		Intent: bridge.TransactionIntent{
			To:                   r.readHex("to", bridge.AddressLen),
			FunctionSignature:    r.readString("functionSignature"),
			Args:                 r.readHexList("args", bridge.WordLen),
			Value:                r.readHex("value", bridge.WordLen),
			Nonce:                r.readHex("nonce", bridge.WordLen),
			GasLimit:             r.readHex("gasLimit", bridge.WordLen),
			MaxFeePerGas:         r.readHex("maxFeePerGas", bridge.WordLen),
			MaxPriorityFeePerGas: r.readHex("maxPriorityFeePerGas", bridge.WordLen),
			ChainID:              r.readHex("chainId", bridge.WordLen),
		},
		Context: bridge.DerivationContext{
			Path:         r.readString("path"),
			ChainContext: r.readString("chainContext"),
			KeyVersion:   uint32(r.readUint("keyVersion", 32)),
		},
		Algorithm:   r.readString("algorithm"),
		Destination: r.readString("destination"),
	}
	if r.err != nil {
		return Anchor{}, r.err
	}
	a.Context.PredecessorID = a.Sender
	if err := a.Intent.Validate(); err != nil {
		return Anchor{}, err
	}
	return a, nil
}

// DecodeEvidence decodes the payload of a SignatureEvidence contract.
func DecodeEvidence(payload json.RawMessage) (Evidence, error) {
	r, err := newFieldReader(SignatureEvidence, payload)
	if err != nil {
		return Evidence{}, err
	}
	e := Evidence{RequestID: r.requestID()}
	copy(e.Signature.R[:], r.readHex("r", 32))
	copy(e.Signature.S[:], r.readHex("s", 32))
	e.Signature.V = uint8(r.readUint("v", 1))
	e.Signer = r.readString("signer")
	return e, r.err
}

// DecodeOutcome decodes the payload of an OutcomeEvidence contract.
func DecodeOutcome(payload json.RawMessage) (bridge.OutcomeAttestation, error) {
	r, err := newFieldReader(OutcomeEvidence, payload)
	if err != nil {
		return bridge.OutcomeAttestation{}, err
	}
	a := bridge.OutcomeAttestation{
		RequestID:    r.requestID(),
		Outcome:      bridge.OutcomeCode(r.readUint("outcome", 1)),
		DERSignature: r.readHex("signature", 0),
		TxHash:       common.BytesToHash(r.readHex("txHash", common.HashLength)),
	}
	return a, r.err
}

// DecodeRequestID decodes the request id, which is part of the payload of
// every template.
func DecodeRequestID(t Template, payload json.RawMessage) (bridge.RequestID, error) {
	r, err := newFieldReader(t, payload)
	if err != nil {
		return bridge.RequestID{}, err
	}
	id := r.requestID()
	return id, r.err
}

// fieldReader reads required fields from a payload. The first error is
// retained and all reads after it return zero values.
type fieldReader struct {
	template Template
	fields   map[string]json.RawMessage
	err      error
}

func newFieldReader(t Template, payload json.RawMessage) (*fieldReader, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, bridge.NewAPIErrInvalidField("payload", string(payload), "must be a JSON object")
	}
	return &fieldReader{template: t, fields: fields}, nil
}

func (r *fieldReader) decode(name string, v interface{}, requirement string) bool {
	if r.err != nil {
		return false
	}
	raw, ok := r.fields[name]
	if !ok || string(raw) == "null" {
		r.err = bridge.NewAPIErrMissingField(r.template.String(), name)
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		r.err = bridge.NewAPIErrInvalidField(name, string(raw), requirement)
		return false
	}
	return true
}

func (r *fieldReader) readString(name string) string {
	var s string
	r.decode(name, &s, "must be a string")
	return s
}

// readUint reads an unsigned integer of at most the given number of bits.
func (r *fieldReader) readUint(name string, bits uint) uint64 {
	var n uint64
	if !r.decode(name, &n, "must be an unsigned integer") {
		return 0
	}
	if bits < 64 && n >= 1<<bits {
		r.err = bridge.NewAPIErrInvalidField(name, fmt.Sprint(n), fmt.Sprintf("must fit into %d bits", bits))
		return 0
	}
	return n
}

// readHex reads a hex string of width bytes, any width if width is zero.
func (r *fieldReader) readHex(name string, width int) []byte {
	var s string
	if !r.decode(name, &s, "must be a hex string") {
		return nil
	}
	return r.parseHex(name, s, width)
}

func (r *fieldReader) readHexList(name string, width int) [][]byte {
	var list []string
	if !r.decode(name, &list, "must be a list of hex strings") {
		return nil
	}
	out := make([][]byte, len(list))
	for i, s := range list {
		if out[i] = r.parseHex(fmt.Sprintf("%s[%d]", name, i), s, width); r.err != nil {
			return nil
		}
	}
	return out
}

func (r *fieldReader) parseHex(name, s string, width int) []byte {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		r.err = bridge.NewAPIErrInvalidField(name, s, "must be a hex string")
		return nil
	}
	if width > 0 && len(b) != width {
		r.err = bridge.NewAPIErrInvalidField(name, s, fmt.Sprintf("must be %d bytes", width))
		return nil
	}
	return b
}

func (r *fieldReader) requestID() bridge.RequestID {
	var id bridge.RequestID
	copy(id[:], r.readHex("requestId", len(id)))
	return id
}
