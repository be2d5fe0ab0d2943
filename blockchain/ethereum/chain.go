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

package ethereum

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/blockchain/ethereum/internal"
)

// NewChainBackend connects to the ethereum node at url and returns a chain
// backend for it.
//
// The function signature uses only types defined in the root package of this
// project and types from std lib.
func NewChainBackend(url string, chainConnTimeout, rpcTimeout time.Duration) (bridge.ChainBackend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), chainConnTimeout)
	defer cancel()
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, bridge.NewAPIErrChainNotReachable(err, url)
	}
	return internal.NewChainBackend(rpcClient, url, rpcTimeout), nil
}
