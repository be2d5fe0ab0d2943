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
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
)

// FakeChain is an in-memory chain backend. Transactions are only decoded and
// recorded, the receipt returned for each of them is controlled by the test.
type FakeChain struct {
	mtx       sync.Mutex
	txs       map[common.Hash]*types.Transaction
	order     []common.Hash
	receipts  map[common.Hash]bridge.Receipt
	sendErr   error
	autoMine  bool
	status    uint64
	sendCalls int
}

// NewFakeChain returns a fake chain that mines every transaction immediately
// with a successful receipt. Use SetAutoMine and SetReceipt to change this.
func NewFakeChain() *FakeChain {
	return &FakeChain{
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]bridge.Receipt),
		autoMine: true,
		status:   types.ReceiptStatusSuccessful,
	}
}

// SetAutoMine configures if sent transactions are mined immediately and with
// which receipt status.
func (c *FakeChain) SetAutoMine(autoMine bool, status uint64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.autoMine = autoMine
	c.status = status
}

// SetSendError makes every following call to SendRawTransaction fail with err.
func (c *FakeChain) SetSendError(err error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.sendErr = err
}

// SetReceipt sets the receipt of a transaction.
func (c *FakeChain) SetReceipt(txHash common.Hash, r bridge.Receipt) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.receipts[txHash] = r
}

// SendRawTransaction decodes and records the transaction. A transaction that
// was already received is rejected with "already known", as an ethereum node does.
func (c *FakeChain) SendRawTransaction(_ context.Context, rawTx []byte) (common.Hash, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.sendCalls++
	if c.sendErr != nil {
		return common.Hash{}, c.sendErr
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, errors.Wrap(err, "decoding transaction")
	}
	if _, ok := c.txs[tx.Hash()]; ok {
		return common.Hash{}, errors.New("already known")
	}
	c.txs[tx.Hash()] = tx
	c.order = append(c.order, tx.Hash())
	if c.autoMine {
		c.receipts[tx.Hash()] = bridge.Receipt{Status: c.status, BlockNumber: uint64(len(c.order))}
	}
	return tx.Hash(), nil
}

// TransactionReceipt returns the receipt set for the transaction, or a
// pending receipt if none was set.
func (c *FakeChain) TransactionReceipt(_ context.Context, txHash common.Hash) (bridge.Receipt, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if r, ok := c.receipts[txHash]; ok {
		return r, nil
	}
	return bridge.Receipt{Pending: true}, nil
}

// Transactions returns the received transactions in the order of receipt.
func (c *FakeChain) Transactions() []*types.Transaction {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	txs := make([]*types.Transaction, 0, len(c.order))
	for _, h := range c.order {
		txs = append(txs, c.txs[h])
	}
	return txs
}

// SendCalls returns the number of calls to SendRawTransaction.
func (c *FakeChain) SendCalls() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.sendCalls
}
