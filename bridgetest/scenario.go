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

package bridgetest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperledger-labs/evm-bridge"
)

// Values of the reference scenario: an ERC20 transfer of 100000000 units on
// the Sepolia test network.
const (
	ScenarioSender    = "Requester::abc"
	ScenarioToken     = "0x1c7d4b196cb0c7b01d743fbc6116a902379c7238"
	ScenarioRecipient = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
	ScenarioChainID   = 11155111
)

// ScenarioIntent returns the transaction intent of the reference scenario.
func ScenarioIntent() bridge.TransactionIntent {
	return bridge.TransactionIntent{
		To:                common.HexToAddress(ScenarioToken).Bytes(),
		FunctionSignature: "transfer(address,uint256)",
		Args: [][]byte{
			bridge.AddressWord(common.HexToAddress(ScenarioRecipient)),
			bridge.Uint64Word(100000000),
		},
		Value:                bridge.Uint64Word(0),
		Nonce:                bridge.Uint64Word(1),
		GasLimit:             bridge.Uint64Word(50000),
		MaxFeePerGas:         bridge.Word(big.NewInt(50000000000)),
		MaxPriorityFeePerGas: bridge.Uint64Word(1000000000),
		ChainID:              bridge.Uint64Word(ScenarioChainID),
	}
}

// ScenarioContext returns the derivation context of the reference scenario.
func ScenarioContext() bridge.DerivationContext {
	return bridge.DerivationContext{
		PredecessorID: ScenarioSender,
		Path:          "m/44/60/0/0",
		ChainContext:  "chain:11155111",
		KeyVersion:    1,
	}
}
