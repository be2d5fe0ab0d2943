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

// Package blockchain implements the chain independent parts of the
// interaction with the external chain.
package blockchain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/log"
)

// Outcome is the result of waiting for a transaction.
type Outcome struct {
	Code     bridge.OutcomeCode
	Receipt  bridge.Receipt
	TimedOut bool
}

// WaitForOutcome polls the receipt of the transaction every interval until
// it is included in a block or the timeout expires. A reverted transaction
// yields OutcomeFailure. An expired timeout also yields OutcomeFailure, with
// TimedOut set. Errors while polling are logged and polling continues.
//
// It returns an error only if ctx is canceled.
func WaitForOutcome(ctx context.Context, backend bridge.ChainBackend, txHash common.Hash,
	timeout, interval time.Duration, logger log.Logger) (Outcome, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			logger.WithField("tx-hash", txHash.Hex()).Warnf("Reading receipt failed: %v", err)
		case !receipt.Pending:
			code := bridge.OutcomeFailure
			if receipt.Status == 1 {
				code = bridge.OutcomeSuccess
			}
			return Outcome{Code: code, Receipt: receipt}, nil
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			logger.WithField("tx-hash", txHash.Hex()).Warnf("No receipt within %s", timeout)
			return Outcome{Code: bridge.OutcomeFailure, Receipt: bridge.Receipt{Pending: true}, TimedOut: true}, nil
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
}
