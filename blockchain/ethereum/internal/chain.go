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

package internal

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
)

// ChainBackend provides access to an ethereum node over its JSON-RPC API.
type ChainBackend struct {
	// RPC is used for submitting raw transactions.
	RPC *rpc.Client
	// Eth is used for reading receipts.
	Eth *ethclient.Client
	// URL of the node, used in error messages.
	URL string
	// RPCTimeout is the max time to wait for a reply to a single request.
	RPCTimeout time.Duration
}

// NewChainBackend returns a chain backend using the given rpc client.
func NewChainBackend(c *rpc.Client, url string, rpcTimeout time.Duration) *ChainBackend {
	return &ChainBackend{RPC: c, Eth: ethclient.NewClient(c), URL: url, RPCTimeout: rpcTimeout}
}

// SendRawTransaction submits the raw signed transaction via eth_sendRawTransaction.
//
// Errors returned by the node (such as "already known") are returned wrapped,
// failures to reach the node are returned as ErrChainNotReachable.
func (cb *ChainBackend) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, cb.RPCTimeout)
	defer cancel()

	var txHash common.Hash
	err := cb.RPC.CallContext(ctx, &txHash, "eth_sendRawTransaction", hexutil.Encode(rawTx))
	if err != nil {
		return common.Hash{}, cb.classify(err, "sending raw transaction")
	}
	return txHash, nil
}

// TransactionReceipt reads the receipt of a transaction. It returns a
// pending receipt if the node does not know a receipt for the transaction.
func (cb *ChainBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (bridge.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, cb.RPCTimeout)
	defer cancel()

	r, err := cb.Eth.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return bridge.Receipt{Pending: true}, nil
	}
	if err != nil {
		return bridge.Receipt{}, cb.classify(err, "reading receipt")
	}
	receipt := bridge.Receipt{Status: r.Status}
	if r.BlockNumber != nil {
		receipt.BlockNumber = r.BlockNumber.Uint64()
	}
	return receipt, nil
}

// classify wraps errors replied by the node and converts transport failures
// into ErrChainNotReachable.
func (cb *ChainBackend) classify(err error, msg string) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return errors.Wrap(err, msg)
	}
	return bridge.NewAPIErrChainNotReachable(errors.Wrap(err, msg), cb.URL)
}
