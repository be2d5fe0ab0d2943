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

// Package currency parses and prints amounts of the native currency of an
// ethereum chain in its common denominations.
package currency

import (
	"math/big"
)

// Symbols of the supported denominations.
const (
	ETH  = "ETH"
	GWEI = "GWEI"
	WEI  = "WEI"
)

// Decimals of each denomination, relative to wei.
const (
	ETHDecimals  uint8 = 18
	GWEIDecimals uint8 = 9
	WEIDecimals  uint8 = 0
)

// Parser converts amounts between their decimal string representation in a
// denomination and the amount in wei.
type Parser interface {
	Parse(string) (*big.Int, error)
	Print(*big.Int) string
}

var defaultRegistry = NewRegistry()

func init() {
	// Registering on a new registry does not fail.
	defaultRegistry.Register(ETH, ETHDecimals)   // nolint: errcheck, gosec
	defaultRegistry.Register(GWEI, GWEIDecimals) // nolint: errcheck, gosec
	defaultRegistry.Register(WEI, WEIDecimals)   // nolint: errcheck, gosec
}

// IsSupported checks if there is a parser for the denomination.
func IsSupported(symbol string) bool {
	return defaultRegistry.IsRegistered(symbol)
}

// NewParser returns the parser for the denomination. It returns nil if the
// denomination is not supported, so check with IsSupported before usage.
func NewParser(symbol string) Parser {
	return defaultRegistry.Parser(symbol)
}
