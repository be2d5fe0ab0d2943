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

// Package requestid computes the identifier of a request and the hash signed
// in its outcome attestation.
//
// The encodings in this package are shared with the ledger side of the
// bridge and every byte of them must be reproduced exactly.
package requestid

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hyperledger-labs/evm-bridge"
)

// Tags identifying the signature scheme and the destination chain family.
const (
	AlgorithmTag   = "ECDSA"
	DestinationTag = "ethereum"
)

// Packed returns the encode-packed representation of the intent: all fields
// concatenated at their canonical width, without delimiters or length prefixes.
func Packed(intent bridge.TransactionIntent) ([]byte, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(intent.To)
	buf.WriteString(intent.FunctionSignature)
	for _, arg := range intent.Args {
		buf.Write(arg)
	}
	buf.Write(intent.Value)
	buf.Write(intent.Nonce)
	buf.Write(intent.GasLimit)
	buf.Write(intent.MaxFeePerGas)
	buf.Write(intent.MaxPriorityFeePerGas)
	buf.Write(intent.ChainID)
	return buf.Bytes(), nil
}

// Preimage returns the bytes hashed by ComputeRequestID.
func Preimage(sender string, intent bridge.TransactionIntent, ctx bridge.DerivationContext) ([]byte, error) {
	packed, err := Packed(intent)
	if err != nil {
		return nil, err
	}

	var keyVersion [4]byte
	binary.BigEndian.PutUint32(keyVersion[:], ctx.KeyVersion)

	var buf bytes.Buffer
	buf.WriteString(sender)
	buf.Write(packed)
	buf.WriteString(ctx.ChainContext)
	buf.Write(keyVersion[:])
	buf.WriteString(ctx.Path)
	buf.WriteString(AlgorithmTag)
	buf.WriteString(DestinationTag)
	return buf.Bytes(), nil
}

// ComputeRequestID returns the identifier of the request made by sender for
// the given intent and derivation context.
//
// The intent must be well formed (see TransactionIntent.Validate). A field of
// non-canonical width results in an error of category PayloadError.
func ComputeRequestID(sender string, intent bridge.TransactionIntent, ctx bridge.DerivationContext) (
	bridge.RequestID, error) {
	var id bridge.RequestID
	preimage, err := Preimage(sender, intent, ctx)
	if err != nil {
		return id, err
	}
	copy(id[:], crypto.Keccak256(preimage))
	return id, nil
}

// ComputeOutcomeHash returns the hash of the request id followed by the
// outcome code, as signed in an outcome attestation.
func ComputeOutcomeHash(id bridge.RequestID, outcome bridge.OutcomeCode) [32]byte {
	var h [32]byte
	copy(h[:], crypto.Keccak256(id[:], []byte{byte(outcome)}))
	return h
}
