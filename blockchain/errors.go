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

package blockchain

import (
	"strings"
)

// Substrings of the errors returned by ethereum nodes when a transaction
// with the same hash or nonce was already accepted.
var alreadySubmittedMsgs = []string{
	"already known",
	"known transaction",
	"nonce too low",
	"already imported",
}

// IsAlreadySubmitted reports if the error returned while broadcasting a
// transaction means that the transaction (or another one with the same
// nonce from the same sender) was already accepted by the node.
func IsAlreadySubmitted(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range alreadySubmittedMsgs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
