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

package currency_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge/currency"
)

func Test_IsSupported_NewParser(t *testing.T) {
	for _, symbol := range []string{currency.ETH, currency.GWEI, currency.WEI} {
		assert.True(t, currency.IsSupported(symbol), symbol)
		assert.NotNil(t, currency.NewParser(symbol), symbol)
	}

	t.Run("err_missing", func(t *testing.T) {
		assert.False(t, currency.IsSupported("BTC"))
		assert.Nil(t, currency.NewParser("BTC"))
	})
}

func Test_Parse(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		input   string
		output  *big.Int
		wantErr bool
	}{
		{"happy_eth", currency.ETH, "0.5", big.NewInt(5e17), false},
		{"happy_eth_smallest", currency.ETH, "0.000000000000000005", big.NewInt(5), false},
		{"happy_eth_exp_form", currency.ETH, "5e-18", big.NewInt(5), false},
		{"happy_eth_exp_form_upper_case", currency.ETH, "5E-18", big.NewInt(5), false},
		{"happy_eth_zero", currency.ETH, "0", big.NewInt(0), false},
		{"happy_gwei", currency.GWEI, "50", big.NewInt(50000000000), false},
		{"happy_gwei_fraction", currency.GWEI, "1.5", big.NewInt(1500000000), false},
		{"happy_wei", currency.WEI, "21000", big.NewInt(21000), false},

		{"err_too_small_exp_form", currency.ETH, "5e-19", nil, true},
		{"err_too_small", currency.ETH, "0.0000000000000000005", nil, true},
		{"err_gwei_too_small", currency.GWEI, "0.0000000001", nil, true},
		{"err_negative", currency.GWEI, "-1", nil, true},
		{"err_invalid_string", currency.ETH, "invalid-currency-string", nil, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := currency.NewParser(tt.symbol).Parse(tt.input)
			if err != nil {
				t.Log(err)
			}
			require.Equal(t, tt.wantErr, err != nil)
			if tt.output == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, 0, tt.output.Cmp(got), "got %s", got)
		})
	}
}

func Test_Print(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		input  *big.Int
		output string
	}{
		{"happy_eth_whole_number", currency.ETH, big.NewInt(5e18), "5.000000"},
		{"happy_eth_decimal", currency.ETH, big.NewInt(5e17), "0.500000"},
		{"happy_eth_round_up", currency.ETH, big.NewInt(12345678e10), "0.123457"},
		{"happy_eth_round_down", currency.ETH, big.NewInt(87654321e10), "0.876543"},
		{"happy_eth_to_zero", currency.ETH, big.NewInt(5), "0.000000"},
		{"happy_gwei", currency.GWEI, big.NewInt(1500000000), "1.500000"},
		{"happy_wei", currency.WEI, big.NewInt(21000), "21000"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.output, currency.NewParser(tt.symbol).Print(tt.input))
		})
	}
}
