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

package bridge_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/bridgetest"
)

func validIntent() bridge.TransactionIntent {
	return bridge.TransactionIntent{
		To:                   common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238").Bytes(),
		FunctionSignature:    "transfer(address,uint256)",
		Args:                 [][]byte{bridge.Uint64Word(1), bridge.Uint64Word(100000000)},
		Value:                bridge.Uint64Word(0),
		Nonce:                bridge.Uint64Word(1),
		GasLimit:             bridge.Uint64Word(50000),
		MaxFeePerGas:         bridge.Uint64Word(50000000000),
		MaxPriorityFeePerGas: bridge.Uint64Word(1000000000),
		ChainID:              bridge.Uint64Word(11155111),
	}
}

func Test_TransactionIntent_Validate(t *testing.T) {
	t.Run("happy", func(t *testing.T) {
		require.NoError(t, validIntent().Validate())
	})

	tests := []struct {
		name   string
		field  string
		modify func(*bridge.TransactionIntent)
	}{
		{"err_short_to", "to", func(i *bridge.TransactionIntent) { i.To = i.To[1:] }},
		{"err_empty_function", "functionSignature", func(i *bridge.TransactionIntent) { i.FunctionSignature = "" }},
		{"err_short_arg", "args[1]", func(i *bridge.TransactionIntent) { i.Args[1] = []byte{0x01} }},
		{"err_long_value", "value", func(i *bridge.TransactionIntent) { i.Value = append(i.Value, 0x00) }},
		{"err_missing_nonce", "nonce", func(i *bridge.TransactionIntent) { i.Nonce = nil }},
		{"err_short_chain_id", "chainId", func(i *bridge.TransactionIntent) { i.ChainID = []byte{0xaa} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := validIntent()
			tt.modify(&intent)
			err := intent.Validate()
			apiErr := bridgetest.RequireAPIError(t, err)
			bridgetest.AssertAPIError(t, apiErr, bridge.PayloadError, bridge.ErrInvalidField)
			bridgetest.AssertErrInfoInvalidField(t, apiErr.AddInfo(), tt.field)
		})
	}
}

func Test_Word(t *testing.T) {
	w := bridge.Uint64Word(0x0102)
	require.Len(t, w, 32)
	assert.Equal(t, byte(0x01), w[30])
	assert.Equal(t, byte(0x02), w[31])

	maxWord := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Len(t, bridge.Word(maxWord), 32)

	assert.Panics(t, func() { bridge.Word(big.NewInt(-1)) })
	assert.Panics(t, func() { bridge.Word(new(big.Int).Lsh(big.NewInt(1), 256)) })
}

func Test_AddressWord(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	w := bridge.AddressWord(addr)
	require.Len(t, w, 32)
	assert.Equal(t, byte(0xff), w[31])
	assert.Equal(t, make([]byte, 31), w[:31])
}

func Test_ParseRequestID(t *testing.T) {
	var id bridge.RequestID
	id[0], id[31] = 0xab, 0xcd

	t.Run("happy_without_prefix", func(t *testing.T) {
		got, err := bridge.ParseRequestID(id.Hex())
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})
	t.Run("happy_with_prefix", func(t *testing.T) {
		got, err := bridge.ParseRequestID("0x" + id.Hex())
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})
	t.Run("err_short", func(t *testing.T) {
		_, err := bridge.ParseRequestID("abcd")
		require.Error(t, err)
	})
	t.Run("err_not_hex", func(t *testing.T) {
		_, err := bridge.ParseRequestID("zz")
		require.Error(t, err)
	})
}

func Test_Signature_Bytes(t *testing.T) {
	var sig bridge.Signature
	sig.R[0], sig.S[31], sig.V = 0x11, 0x22, 1

	b := sig.Bytes()
	require.Len(t, b, 65)
	got, err := bridge.SignatureFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	b[64] = 27
	_, err = bridge.SignatureFromBytes(b)
	require.Error(t, err)
	_, err = bridge.SignatureFromBytes(b[:64])
	require.Error(t, err)
}

func Test_LifecycleState_Supersedes(t *testing.T) {
	assert.True(t, bridge.StateSignatureEvidence.Supersedes(bridge.StateAnchored))
	assert.True(t, bridge.StateClaimed.Supersedes(bridge.StateUnknown))
	assert.True(t, bridge.StateHalted.Supersedes(bridge.StateExternalSubmitted))
	assert.False(t, bridge.StateAnchored.Supersedes(bridge.StateOutcomeEvidence))
	assert.False(t, bridge.StateAnchored.Supersedes(bridge.StateAnchored))
	assert.False(t, bridge.StateHalted.Supersedes(bridge.StateClaimed))
	assert.False(t, bridge.StateClaimed.Supersedes(bridge.StateHalted))

	assert.Equal(t, "external-submitted", bridge.StateExternalSubmitted.String())
	assert.Equal(t, "success", bridge.OutcomeSuccess.String())
	assert.Equal(t, "failure", bridge.OutcomeFailure.String())
}

func Test_ParseLifecycleState(t *testing.T) {
	for s := bridge.StateUnknown; s <= bridge.StateHalted; s++ {
		got, err := bridge.ParseLifecycleState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := bridge.ParseLifecycleState("finished")
	assert.Error(t, err)
}
