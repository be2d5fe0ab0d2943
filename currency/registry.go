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

package currency

import (
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// maxPlacesToPrint is the number of decimal places printed at most.
const maxPlacesToPrint = 6

// Registry holds the parsers of denominations indexed by symbol.
//
// It uses a slice to keep track of registered symbols because iterating over
// map to retrieve the symbols each time will result in different ordering of
// symbols in the list.
type Registry struct {
	mtx     sync.RWMutex
	symbols []string
	parsers map[string]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Symbols returns the registered symbols in the order of registration.
func (r *Registry) Symbols() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	symbols := make([]string, len(r.symbols))
	copy(symbols, r.symbols)
	return symbols
}

// IsRegistered checks if there is a parser registered for the symbol.
func (r *Registry) IsRegistered(symbol string) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.parsers[symbol] != nil
}

// Register registers a parser for a denomination of 10^decimals wei and
// returns it.
//
// Returns an error if a parser is already registered for the symbol.
func (r *Registry) Register(symbol string, decimals uint8) (Parser, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.parsers[symbol] != nil {
		return nil, errors.Errorf("parser already registered for %s", symbol)
	}
	places := int32(decimals)
	if places > maxPlacesToPrint {
		places = maxPlacesToPrint
	}
	p := parser{multiplier: decimal.New(1, int32(decimals)), placesToRound: places}
	r.parsers[symbol] = p
	r.symbols = append(r.symbols, symbol)
	return p, nil
}

// Parser returns the parser registered for the symbol, nil if there is none.
func (r *Registry) Parser(symbol string) Parser {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.parsers[symbol]
}

type parser struct {
	multiplier    decimal.Decimal
	placesToRound int32
}

// Parse parses the decimal string in the denomination of the parser and
// returns the amount in wei. Zero is accepted, negative amounts and non zero
// amounts smaller than one wei are rejected.
func (p parser) Parse(input string) (*big.Int, error) {
	amount, err := decimal.NewFromString(input)
	if err != nil {
		return nil, errors.Wrap(err, "invalid decimal string")
	}
	if amount.IsNegative() {
		return nil, errors.New("amount must not be negative")
	}

	wei := amount.Mul(p.multiplier)
	if !wei.IsZero() && wei.LessThan(decimal.NewFromInt(1)) {
		return nil, errors.New("amount is too small, should be at least 1 wei")
	}
	return wei.BigInt(), nil
}

// Print converts the amount in wei to the denomination of the parser. The
// returned string is rounded to at most 6 decimal places.
func (p parser) Print(wei *big.Int) string {
	amount := decimal.NewFromBigInt(wei, 0)
	return amount.Div(p.multiplier).StringFixedBank(p.placesToRound)
}
