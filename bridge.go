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

package bridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
)

// Canonical widths of the fields of a transaction intent, in bytes.
const (
	AddressLen = 20
	WordLen    = 32
)

// Offset is a position in the ordered event feed of the ledger. Offsets issued
// by the ledger are strictly increasing, zero denotes the beginning of the feed.
type Offset int64

// String implements the stringer interface for Offset.
func (o Offset) String() string {
	return fmt.Sprintf("%d", int64(o))
}

// DerivationContext identifies the child key used for signing a request. It
// is fixed when the intent is created and is never modified afterwards.
type DerivationContext struct {
	// PredecessorID is the authenticated identity of the party that created
	// the request, as attested by the ledger.
	PredecessorID string
	Path          string
	ChainContext  string
	KeyVersion    uint32
}

// AccessTuple is an entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     []byte
	StorageKeys [][]byte
}

// TransactionIntent holds the canonical fields of an EIP-1559 transaction to
// be executed on the external chain.
//
// All numeric fields are big-endian words of WordLen bytes and the
// destination is an address of AddressLen bytes. Padding the values to these
// widths is the responsibility of the code constructing the intent, use Word
// and Uint64Word for it. Args are already ABI encoded words.
type TransactionIntent struct {
	To                   []byte
	FunctionSignature    string
	Args                 [][]byte
	Value                []byte
	Nonce                []byte
	GasLimit             []byte
	MaxFeePerGas         []byte
	MaxPriorityFeePerGas []byte
	ChainID              []byte

	// AccessList is not supported. An intent with a non empty access list is
	// rejected by the transaction codec.
	AccessList []AccessTuple
}

// Validate checks if each field of the intent has its canonical width.
func (i TransactionIntent) Validate() error {
	if len(i.To) != AddressLen {
		return NewAPIErrInvalidField("to", hex.EncodeToString(i.To), "must be 20 bytes")
	}
	if i.FunctionSignature == "" {
		return NewAPIErrInvalidField("functionSignature", "", "must not be empty")
	}
	for idx, arg := range i.Args {
		if len(arg) != WordLen {
			return NewAPIErrInvalidField(fmt.Sprintf("args[%d]", idx), hex.EncodeToString(arg), "must be 32 bytes")
		}
	}
	words := []struct {
		name string
		val  []byte
	}{
		{"value", i.Value},
		{"nonce", i.Nonce},
		{"gasLimit", i.GasLimit},
		{"maxFeePerGas", i.MaxFeePerGas},
		{"maxPriorityFeePerGas", i.MaxPriorityFeePerGas},
		{"chainId", i.ChainID},
	}
	for _, w := range words {
		if len(w.val) != WordLen {
			return NewAPIErrInvalidField(w.name, hex.EncodeToString(w.val), "must be 32 bytes")
		}
	}
	return nil
}

// Word returns the value as a big-endian word of WordLen bytes.
//
// Panics if the value is negative or does not fit into 256 bits.
func Word(v *big.Int) []byte {
	if v.Sign() < 0 || v.BitLen() > 8*WordLen {
		panic(fmt.Sprintf("value %s cannot be represented as a 32 byte word", v))
	}
	return math.PaddedBigBytes(v, WordLen)
}

// Uint64Word returns the value as a big-endian word of WordLen bytes.
func Uint64Word(v uint64) []byte {
	return Word(new(big.Int).SetUint64(v))
}

// AddressWord returns the address left padded to a word of WordLen bytes, as
// required for address arguments in ABI encoded calldata.
func AddressWord(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), WordLen)
}

// RequestID identifies a lifecycle instance. It is computed once by the
// initiator and never changes.
type RequestID [32]byte

// Hex returns the hexadecimal representation of the request id without a
// 0x prefix. This form is used in ledger payloads.
func (id RequestID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements the stringer interface for RequestID.
func (id RequestID) String() string {
	return id.Hex()
}

// ParseRequestID parses the hexadecimal representation of a request id. A 0x
// prefix is optional.
func ParseRequestID(s string) (RequestID, error) {
	var id RequestID
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, errors.Wrap(err, "decoding request id")
	}
	if len(b) != len(id) {
		return id, errors.Errorf("request id must be 32 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Signature is a recoverable ECDSA signature over a transaction hash.
type Signature struct {
	R [32]byte
	S [32]byte
	V byte // Recovery bit, 0 or 1.
}

// Bytes returns the signature in the 65 byte [R || S || V] format.
func (s Signature) Bytes() []byte {
	b := make([]byte, 65)
	copy(b[:32], s.R[:])
	copy(b[32:64], s.S[:])
	b[64] = s.V
	return b
}

// SignatureFromBytes parses a signature in the 65 byte [R || S || V] format.
func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != 65 {
		return s, errors.Errorf("signature must be 65 bytes, got %d", len(b))
	}
	if b[64] > 1 {
		return s, errors.Errorf("recovery bit must be 0 or 1, got %d", b[64])
	}
	copy(s.R[:], b[:32])
	copy(s.S[:], b[32:64])
	s.V = b[64]
	return s, nil
}

// OutcomeCode encodes the result of executing a transaction on the external chain.
type OutcomeCode byte

// Enumeration of outcome codes.
const (
	OutcomeFailure OutcomeCode = 0x00
	OutcomeSuccess OutcomeCode = 0x01
)

// String implements the stringer interface for OutcomeCode.
func (c OutcomeCode) String() string {
	switch c {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// OutcomeAttestation is the signed statement of the signer about the result
// of the transaction of a request. The signature is made with the root key.
type OutcomeAttestation struct {
	RequestID    RequestID
	DERSignature []byte
	Outcome      OutcomeCode
	TxHash       common.Hash
}

// Receipt is the status of a transaction on the external chain.
type Receipt struct {
	Pending     bool
	Status      uint64 // 1 for success, 0 for reverted. Not set when pending.
	BlockNumber uint64
}

// ChainBackend is the interface to the external chain.
type ChainBackend interface {
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
	// TransactionReceipt returns a receipt with Pending set when the
	// transaction is not yet included in a block.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (Receipt, error)
}

// LifecycleState is the state of a request as observed by one actor.
type LifecycleState uint8

// Enumeration of lifecycle states, in the order they are reached.
// Halted is set when processing of a request was stopped after a verification
// failure.
const (
	StateUnknown LifecycleState = iota
	StateAnchored
	StateSignatureEvidence
	StateExternalSubmitted
	StateOutcomeEvidence
	StateClaimed
	StateHalted
)

// String implements the stringer interface for LifecycleState.
func (s LifecycleState) String() string {
	if int(s) >= len(lifecycleStateNames) {
		return fmt.Sprintf("LifecycleState(%d)", uint8(s))
	}
	return lifecycleStateNames[s]
}

var lifecycleStateNames = [...]string{
	"unknown",
	"anchored",
	"signature-evidence",
	"external-submitted",
	"outcome-evidence",
	"claimed",
	"halted",
}

// ParseLifecycleState parses the string representation of a lifecycle state.
func ParseLifecycleState(s string) (LifecycleState, error) {
	for i, name := range lifecycleStateNames {
		if name == s {
			return LifecycleState(i), nil
		}
	}
	return StateUnknown, errors.Errorf("unknown lifecycle state %q", s)
}

// Supersedes reports if a lifecycle in state "old" may move to state s.
// States only move forward, Claimed and Halted are terminal.
func (s LifecycleState) Supersedes(old LifecycleState) bool {
	if old == StateClaimed || old == StateHalted {
		return false
	}
	return s == StateHalted || s > old
}

// OffsetStore persists the offset up to which the event feed was fully
// processed.
type OffsetStore interface {
	// LoadOffset returns false if no offset was saved yet.
	LoadOffset(ctx context.Context) (_ Offset, found bool, _ error)
	// SaveOffset must be atomic: after a crash the store contains either the
	// previous or the new offset.
	SaveOffset(ctx context.Context, o Offset) error
}

// LifecycleStore persists the local view of the lifecycle of each request.
type LifecycleStore interface {
	// SetState moves the request to the given state. Moves that do not
	// supersede the current state are ignored.
	SetState(ctx context.Context, id RequestID, s LifecycleState, detail string) error
	State(ctx context.Context, id RequestID) (_ LifecycleState, detail string, _ error)
}

// Store combines the durable state of an actor.
type Store interface {
	OffsetStore
	LifecycleStore
	Close() error
}
