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

package ethereumtest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
)

// SimChainID is the chain id of the simulated backend of go-ethereum.
const SimChainID = 1337

// simGasLimit is the block gas limit of the simulated chain.
const simGasLimit = 8_000_000

// SimChain is a chain backend on the simulated blockchain of go-ethereum.
// Every accepted transaction is mined immediately in its own block.
type SimChain struct {
	mtx sync.Mutex
	sb  *backends.SimulatedBackend
}

// NewSimChain returns a simulated chain where each of the given accounts is
// funded with the given balance (in wei).
func NewSimChain(funded []common.Address, balance *big.Int) *SimChain {
	alloc := make(core.GenesisAlloc, len(funded))
	for _, addr := range funded {
		alloc[addr] = core.GenesisAccount{Balance: balance}
	}
	return &SimChain{sb: backends.NewSimulatedBackend(alloc, simGasLimit)}
}

// SendRawTransaction decodes, sends and mines the transaction.
func (c *SimChain) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, errors.Wrap(err, "decoding transaction")
	}
	if r, err := c.sb.TransactionReceipt(ctx, tx.Hash()); err == nil && r != nil {
		return common.Hash{}, errors.New("already known")
	}
	if err := c.sb.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, errors.WithStack(err)
	}
	c.sb.Commit()
	return tx.Hash(), nil
}

// TransactionReceipt returns the receipt of a mined transaction.
func (c *SimChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (bridge.Receipt, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	r, err := c.sb.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return bridge.Receipt{Pending: true}, nil
	}
	if err != nil {
		return bridge.Receipt{}, errors.WithStack(err)
	}
	if r == nil {
		return bridge.Receipt{Pending: true}, nil
	}
	return bridge.Receipt{Status: r.Status, BlockNumber: r.BlockNumber.Uint64()}, nil
}

// BalanceAt returns the balance of the account at the latest block.
func (c *SimChain) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	bal, err := c.sb.BalanceAt(ctx, addr, nil)
	return bal, errors.WithStack(err)
}

// Close stops the simulated backend.
func (c *SimChain) Close() error {
	return errors.WithStack(c.sb.Close())
}
