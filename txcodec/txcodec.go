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

// Package txcodec serializes transaction intents as EIP-1559 transactions of
// the external chain.
//
// Serialization is deterministic: independent processes computing the
// unsigned encoding of the same intent agree on every byte and hence on the
// hash to be signed.
package txcodec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
)

// SelectorLen is the length of a function selector in bytes.
const SelectorLen = 4

// Selector returns the first four bytes of the hash of the function signature.
func Selector(functionSignature string) []byte {
	return crypto.Keccak256([]byte(functionSignature))[:SelectorLen]
}

// BuildCalldata returns the selector of the function followed by the
// arguments. The arguments must already be ABI encoded words, they are only
// concatenated.
func BuildCalldata(functionSignature string, args [][]byte) []byte {
	var buf bytes.Buffer
	buf.Write(Selector(functionSignature))
	for _, arg := range args {
		buf.Write(arg)
	}
	return buf.Bytes()
}

// unsignedPayload is the list encoded in the unsigned EIP-1559 envelope. The
// field order is fixed by EIP-1559.
type unsignedPayload struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *common.Address
	Value      *big.Int
	Data       []byte
	AccessList types.AccessList
}

// DynamicFeeTx converts the intent into an unsigned go-ethereum transaction.
func DynamicFeeTx(intent bridge.TransactionIntent) (*types.DynamicFeeTx, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	if len(intent.AccessList) != 0 {
		return nil, bridge.NewAPIErrUnsupported("access list in transaction intent")
	}
	nonce, err := uint64Field("nonce", intent.Nonce)
	if err != nil {
		return nil, err
	}
	gas, err := uint64Field("gasLimit", intent.GasLimit)
	if err != nil {
		return nil, err
	}

	to := common.BytesToAddress(intent.To)
	return &types.DynamicFeeTx{
		ChainID:    new(big.Int).SetBytes(intent.ChainID),
		Nonce:      nonce,
		GasTipCap:  new(big.Int).SetBytes(intent.MaxPriorityFeePerGas),
		GasFeeCap:  new(big.Int).SetBytes(intent.MaxFeePerGas),
		Gas:        gas,
		To:         &to,
		Value:      new(big.Int).SetBytes(intent.Value),
		Data:       BuildCalldata(intent.FunctionSignature, intent.Args),
		AccessList: types.AccessList{},
	}, nil
}

func uint64Field(name string, word []byte) (uint64, error) {
	v := new(big.Int).SetBytes(word)
	if !v.IsUint64() {
		return 0, bridge.NewAPIErrInvalidField(name, hex.EncodeToString(word), "must fit into 64 bits")
	}
	return v.Uint64(), nil
}

// SerializeUnsigned returns the unsigned EIP-1559 encoding of the intent:
// 0x02 || rlp([chainId, nonce, maxPriorityFeePerGas, maxFeePerGas, gasLimit,
// to, value, calldata, accessList]). The access list is always empty, intents
// with an access list are rejected.
func SerializeUnsigned(intent bridge.TransactionIntent) ([]byte, error) {
	tx, err := DynamicFeeTx(intent)
	if err != nil {
		return nil, err
	}
	payload, err := rlp.EncodeToBytes(unsignedPayload{
		ChainID:    tx.ChainID,
		Nonce:      tx.Nonce,
		GasTipCap:  tx.GasTipCap,
		GasFeeCap:  tx.GasFeeCap,
		Gas:        tx.Gas,
		To:         tx.To,
		Value:      tx.Value,
		Data:       tx.Data,
		AccessList: tx.AccessList,
	})
	if err != nil {
		return nil, errors.Wrap(err, "rlp encoding unsigned transaction")
	}
	return append([]byte{types.DynamicFeeTxType}, payload...), nil
}

// SigningHash returns the hash of the unsigned encoding, which is the value
// signed by the child key.
func SigningHash(intent bridge.TransactionIntent) (common.Hash, error) {
	unsigned, err := SerializeUnsigned(intent)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(unsigned), nil
}

// ReconstructSigned returns the raw signed transaction for the intent, ready
// to be submitted to the external chain.
func ReconstructSigned(intent bridge.TransactionIntent, sig bridge.Signature) ([]byte, error) {
	dyn, err := DynamicFeeTx(intent)
	if err != nil {
		return nil, err
	}
	signer := types.NewLondonSigner(dyn.ChainID)
	tx, err := types.NewTx(dyn).WithSignature(signer, sig.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "attaching signature")
	}
	raw, err := tx.MarshalBinary()
	return raw, errors.Wrap(err, "encoding signed transaction")
}

// SignedHash returns the hash of the raw signed transaction, which identifies
// it on the external chain.
func SignedHash(rawTx []byte) common.Hash {
	return crypto.Keccak256Hash(rawTx)
}

// ParseSigned decodes a raw signed EIP-1559 transaction and recovers its sender.
func ParseSigned(rawTx []byte) (*types.Transaction, common.Address, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return nil, common.Address{}, errors.Wrap(err, "decoding signed transaction")
	}
	if tx.Type() != types.DynamicFeeTxType {
		return nil, common.Address{}, bridge.NewAPIErrUnsupported(fmt.Sprintf("transaction type %d", tx.Type()))
	}
	sender, err := types.Sender(types.NewLondonSigner(tx.ChainId()), tx)
	if err != nil {
		return nil, common.Address{}, errors.Wrap(err, "recovering sender")
	}
	return tx, sender, nil
}

// MatchIntent checks if the fields of a parsed transaction equal those of the intent.
func MatchIntent(tx *types.Transaction, intent bridge.TransactionIntent) error {
	want, err := DynamicFeeTx(intent)
	if err != nil {
		return err
	}
	mismatch := func(field string) error {
		return errors.Errorf("transaction field %s does not match intent", field)
	}
	switch {
	case tx.ChainId().Cmp(want.ChainID) != 0:
		return mismatch("chainId")
	case tx.Nonce() != want.Nonce:
		return mismatch("nonce")
	case tx.GasTipCap().Cmp(want.GasTipCap) != 0:
		return mismatch("maxPriorityFeePerGas")
	case tx.GasFeeCap().Cmp(want.GasFeeCap) != 0:
		return mismatch("maxFeePerGas")
	case tx.Gas() != want.Gas:
		return mismatch("gasLimit")
	case tx.To() == nil || *tx.To() != *want.To:
		return mismatch("to")
	case tx.Value().Cmp(want.Value) != 0:
		return mismatch("value")
	case !bytes.Equal(tx.Data(), want.Data):
		return mismatch("calldata")
	case len(tx.AccessList()) != 0:
		return mismatch("accessList")
	}
	return nil
}
