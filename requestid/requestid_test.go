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

package requestid_test

import (
	"encoding/hex"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/bridgetest"
	"github.com/hyperledger-labs/evm-bridge/requestid"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func Test_Scenario_Golden(t *testing.T) {
	intent := bridgetest.ScenarioIntent()
	ctx := bridgetest.ScenarioContext()
	g := newGoldie(t)

	packed, err := requestid.Packed(intent)
	require.NoError(t, err)
	g.Assert(t, "scenario_packed", []byte(hex.EncodeToString(packed)))

	preimage, err := requestid.Preimage(bridgetest.ScenarioSender, intent, ctx)
	require.NoError(t, err)
	g.Assert(t, "scenario_preimage", []byte(hex.EncodeToString(preimage)))

	id, err := requestid.ComputeRequestID(bridgetest.ScenarioSender, intent, ctx)
	require.NoError(t, err)
	g.Assert(t, "scenario_request_id", []byte(id.Hex()))
}

func Test_ComputeRequestID(t *testing.T) {
	sender := bridgetest.ScenarioSender
	ctx := bridgetest.ScenarioContext()
	base, err := requestid.ComputeRequestID(sender, bridgetest.ScenarioIntent(), ctx)
	require.NoError(t, err)

	t.Run("happy_deterministic", func(t *testing.T) {
		again, err := requestid.ComputeRequestID(sender, bridgetest.ScenarioIntent(), ctx)
		require.NoError(t, err)
		assert.Equal(t, base, again)
	})

	flipLast := func(b []byte) []byte {
		c := append([]byte(nil), b...)
		c[len(c)-1] ^= 0x01
		return c
	}
	intentMutations := map[string]func(*bridge.TransactionIntent){
		"to":                   func(i *bridge.TransactionIntent) { i.To = flipLast(i.To) },
		"functionSignature":    func(i *bridge.TransactionIntent) { i.FunctionSignature = "approve(address,uint256)" },
		"args":                 func(i *bridge.TransactionIntent) { i.Args[1] = flipLast(i.Args[1]) },
		"no_args":              func(i *bridge.TransactionIntent) { i.Args = nil },
		"value":                func(i *bridge.TransactionIntent) { i.Value = flipLast(i.Value) },
		"nonce":                func(i *bridge.TransactionIntent) { i.Nonce = flipLast(i.Nonce) },
		"gasLimit":             func(i *bridge.TransactionIntent) { i.GasLimit = flipLast(i.GasLimit) },
		"maxFeePerGas":         func(i *bridge.TransactionIntent) { i.MaxFeePerGas = flipLast(i.MaxFeePerGas) },
		"maxPriorityFeePerGas": func(i *bridge.TransactionIntent) { i.MaxPriorityFeePerGas = flipLast(i.MaxPriorityFeePerGas) },
		"chainId":              func(i *bridge.TransactionIntent) { i.ChainID = flipLast(i.ChainID) },
	}
	for name, mutate := range intentMutations {
		mutate := mutate
		t.Run("happy_changes_with_"+name, func(t *testing.T) {
			intent := bridgetest.ScenarioIntent()
			mutate(&intent)
			id, err := requestid.ComputeRequestID(sender, intent, ctx)
			require.NoError(t, err)
			assert.NotEqual(t, base, id)
		})
	}

	ctxMutations := map[string]func(*bridge.DerivationContext){
		"chainContext": func(c *bridge.DerivationContext) { c.ChainContext = "chain:1" },
		"keyVersion":   func(c *bridge.DerivationContext) { c.KeyVersion = 2 },
		"path":         func(c *bridge.DerivationContext) { c.Path = "m/44/60/0/1" },
	}
	for name, mutate := range ctxMutations {
		mutate := mutate
		t.Run("happy_changes_with_"+name, func(t *testing.T) {
			c := bridgetest.ScenarioContext()
			mutate(&c)
			id, err := requestid.ComputeRequestID(sender, bridgetest.ScenarioIntent(), c)
			require.NoError(t, err)
			assert.NotEqual(t, base, id)
		})
	}

	t.Run("happy_changes_with_sender", func(t *testing.T) {
		id, err := requestid.ComputeRequestID("Requester::abd", bridgetest.ScenarioIntent(), ctx)
		require.NoError(t, err)
		assert.NotEqual(t, base, id)
	})

	t.Run("err_non_canonical_width", func(t *testing.T) {
		intent := bridgetest.ScenarioIntent()
		intent.Nonce = []byte{0x01}
		_, err := requestid.ComputeRequestID(sender, intent, ctx)
		apiErr := bridgetest.RequireAPIError(t, err)
		bridgetest.AssertAPIError(t, apiErr, bridge.PayloadError, bridge.ErrInvalidField, "nonce")
		bridgetest.AssertErrInfoInvalidField(t, apiErr.AddInfo(), "nonce")
	})

	t.Run("err_short_address", func(t *testing.T) {
		intent := bridgetest.ScenarioIntent()
		intent.To = intent.To[1:]
		_, err := requestid.Packed(intent)
		apiErr := bridgetest.RequireAPIError(t, err)
		bridgetest.AssertErrInfoInvalidField(t, apiErr.AddInfo(), "to")
	})
}

func Test_ComputeOutcomeHash(t *testing.T) {
	id, err := bridge.ParseRequestID("865cfa5271cbee7c8a9c31b3b067a1bac5927c4306f266fa53a6a551eb033469")
	require.NoError(t, err)

	success := requestid.ComputeOutcomeHash(id, bridge.OutcomeSuccess)
	failure := requestid.ComputeOutcomeHash(id, bridge.OutcomeFailure)
	assert.Equal(t, "021c25ec7d415b8f7ecfc67dd274479bc7d386fbb6c005e05085d52855c72af1", hex.EncodeToString(success[:]))
	assert.Equal(t, "cc84278b84c2e8ecfd7d915927a00b4c23663c6c55b98d06da317031e9e6b291", hex.EncodeToString(failure[:]))
}
