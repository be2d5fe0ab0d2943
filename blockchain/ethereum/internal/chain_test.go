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

package internal_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/blockchain"
	"github.com/hyperledger-labs/evm-bridge/blockchain/ethereum/internal"
	"github.com/hyperledger-labs/evm-bridge/bridgetest"
)

// ethService implements the subset of the eth namespace used by the chain backend.
type ethService struct {
	mtx      sync.Mutex
	received map[common.Hash]bool
	receipts map[common.Hash]*types.Receipt
}

func (s *ethService) SendRawTransaction(_ context.Context, raw hexutil.Bytes) (common.Hash, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	hash := crypto.Keccak256Hash(raw)
	if s.received[hash] {
		return common.Hash{}, errors.New("already known")
	}
	s.received[hash] = true
	return hash, nil
}

func (s *ethService) GetTransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.receipts[hash], nil
}

func newBackend(t *testing.T) (*internal.ChainBackend, *ethService) {
	t.Helper()
	svc := &ethService{received: make(map[common.Hash]bool), receipts: make(map[common.Hash]*types.Receipt)}
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", svc))
	t.Cleanup(srv.Stop)
	return internal.NewChainBackend(rpc.DialInProc(srv), "inproc", time.Second), svc
}

func Test_ChainBackend_Interface(t *testing.T) {
	assert.Implements(t, (*bridge.ChainBackend)(nil), new(internal.ChainBackend))
}

func Test_ChainBackend_SendRawTransaction(t *testing.T) {
	cb, _ := newBackend(t)
	raw := []byte{0x02, 0x01, 0x02, 0x03}

	txHash, err := cb.SendRawTransaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash(raw), txHash)

	_, err = cb.SendRawTransaction(context.Background(), raw)
	require.Error(t, err)
	assert.True(t, blockchain.IsAlreadySubmitted(err))
	_, isAPIErr := bridge.AsAPIError(err)
	assert.False(t, isAPIErr, "errors replied by the node are not transport errors")
}

func Test_ChainBackend_TransactionReceipt(t *testing.T) {
	cb, svc := newBackend(t)
	txHash := common.HexToHash("0x01")

	t.Run("happy_pending", func(t *testing.T) {
		r, err := cb.TransactionReceipt(context.Background(), txHash)
		require.NoError(t, err)
		assert.True(t, r.Pending)
	})

	t.Run("happy_mined", func(t *testing.T) {
		svc.mtx.Lock()
		svc.receipts[txHash] = &types.Receipt{
			Status:      types.ReceiptStatusFailed,
			TxHash:      txHash,
			BlockNumber: big.NewInt(42),
			Logs:        []*types.Log{},
			GasUsed:     21000,
		}
		svc.mtx.Unlock()

		r, err := cb.TransactionReceipt(context.Background(), txHash)
		require.NoError(t, err)
		assert.Equal(t, bridge.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: 42}, r)
	})
}

func Test_ChainBackend_Unreachable(t *testing.T) {
	c, err := rpc.DialContext(context.Background(), "http://127.0.0.1:1")
	require.NoError(t, err)
	cb := internal.NewChainBackend(c, "http://127.0.0.1:1", time.Second)

	_, err = cb.SendRawTransaction(context.Background(), []byte{0x01})
	apiErr := bridgetest.RequireAPIError(t, err)
	bridgetest.AssertAPIError(t, apiErr, bridge.TransientError, bridge.ErrChainNotReachable)

	_, err = cb.TransactionReceipt(context.Background(), common.Hash{})
	assert.True(t, bridge.IsCategory(err, bridge.TransientError))
}
