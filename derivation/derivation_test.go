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

package derivation_test

import (
	"crypto/ecdsa"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/derivation"
)

var scenarioCtx = bridge.DerivationContext{
	PredecessorID: "Requester::abc",
	Path:          "m/44/60/0/0",
	ChainContext:  "chain:11155111",
	KeyVersion:    1,
}

const rootKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func Test_Epsilon(t *testing.T) {
	want, _ := new(big.Int).SetString("6a22d04777c067c6ac22714876fb05556c4931ad98384943dd68ec1c5727ec37", 16)
	assert.Equal(t, 0, want.Cmp(derivation.Epsilon(scenarioCtx)))

	t.Run("key_version_not_part_of_tweak", func(t *testing.T) {
		ctx := scenarioCtx
		ctx.KeyVersion = 2
		assert.Equal(t, 0, derivation.Epsilon(scenarioCtx).Cmp(derivation.Epsilon(ctx)))
	})

	t.Run("each_field_changes_tweak", func(t *testing.T) {
		for _, mutate := range []func(*bridge.DerivationContext){
			func(c *bridge.DerivationContext) { c.PredecessorID = "Requester::abd" },
			func(c *bridge.DerivationContext) { c.Path = "m/44/60/0/1" },
			func(c *bridge.DerivationContext) { c.ChainContext = "chain:1" },
		} {
			ctx := scenarioCtx
			mutate(&ctx)
			assert.NotEqual(t, 0, derivation.Epsilon(scenarioCtx).Cmp(derivation.Epsilon(ctx)))
		}
	})
}

func Test_DeriveChild(t *testing.T) {
	root, err := crypto.HexToECDSA(rootKeyHex)
	require.NoError(t, err)

	t.Run("happy_known_answer", func(t *testing.T) {
		child, err := derivation.DeriveChild(root, scenarioCtx)
		require.NoError(t, err)
		assert.Equal(t, "b62b53ee08c2fb440e53b863d4b6675a6a9a5b0f08bac26ec1d1bc36965e0f4f",
			common.Bytes2Hex(crypto.FromECDSA(child)))
		assert.Equal(t, common.HexToAddress("0x96c72b04d5ae3efa34a033e65a6fb52c16e1655e"),
			derivation.ChildToAddress(&child.PublicKey))
	})

	t.Run("happy_deterministic", func(t *testing.T) {
		child1, err := derivation.DeriveChild(root, scenarioCtx)
		require.NoError(t, err)
		child2, err := derivation.DeriveChild(root, scenarioCtx)
		require.NoError(t, err)
		assert.Equal(t, crypto.FromECDSA(child1), crypto.FromECDSA(child2))
	})

	t.Run("happy_public_derivation_matches", func(t *testing.T) {
		for _, path := range []string{"m/44/60/0/0", "m/44/60/0/1", "", "custom"} {
			ctx := scenarioCtx
			ctx.Path = path
			child, err := derivation.DeriveChild(root, ctx)
			require.NoError(t, err)
			childPub, err := derivation.DeriveChildPublic(&root.PublicKey, ctx)
			require.NoError(t, err)
			assert.Equal(t, crypto.FromECDSAPub(&child.PublicKey), crypto.FromECDSAPub(childPub))

			addr, err := derivation.ChildAddress(&root.PublicKey, ctx)
			require.NoError(t, err)
			assert.Equal(t, derivation.ChildToAddress(&child.PublicKey), addr)
		}
	})

	t.Run("err_zero_child", func(t *testing.T) {
		n := crypto.S256().Params().N
		d := new(big.Int).Sub(n, new(big.Int).Mod(derivation.Epsilon(scenarioCtx), n))
		badRoot, err := crypto.ToECDSA(math.PaddedBigBytes(d, 32))
		require.NoError(t, err)

		_, err = derivation.DeriveChild(badRoot, scenarioCtx)
		assert.ErrorIs(t, err, derivation.ErrZeroChildKey)

		_, err = derivation.DeriveChildPublic(&badRoot.PublicKey, scenarioCtx)
		assert.ErrorIs(t, err, derivation.ErrInfinityPoint)
	})

	t.Run("err_nil_root", func(t *testing.T) {
		_, err := derivation.DeriveChild(nil, scenarioCtx)
		assert.ErrorIs(t, err, derivation.ErrNilRootKey)
		_, err = derivation.DeriveChildPublic(nil, scenarioCtx)
		assert.ErrorIs(t, err, derivation.ErrNotOnCurve)
	})
}

func Test_ChildToAddress(t *testing.T) {
	one, err := crypto.ToECDSA(math.PaddedBigBytes(big.NewInt(1), 32))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"),
		derivation.ChildToAddress(&one.PublicKey))
}

func Test_RootKey(t *testing.T) {
	key, err := crypto.HexToECDSA(rootKeyHex)
	require.NoError(t, err)

	t.Run("happy_child_and_zero", func(t *testing.T) {
		rk, err := derivation.NewRootKey(key)
		require.NoError(t, err)
		child, err := rk.Child(scenarioCtx)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0x96c72b04d5ae3efa34a033e65a6fb52c16e1655e"),
			derivation.ChildToAddress(&child.PublicKey))

		rk.Zero()
		rk.Zero()
		_, err = rk.Child(scenarioCtx)
		assert.ErrorIs(t, err, derivation.ErrRootKeyZeroed)
		err = rk.Use(func(*ecdsa.PrivateKey) error { return nil })
		assert.ErrorIs(t, err, derivation.ErrRootKeyZeroed)
	})

	t.Run("happy_store_and_load", func(t *testing.T) {
		rk, err := derivation.GenerateRootKey()
		require.NoError(t, err)
		file := filepath.Join(t.TempDir(), "root.json")
		params := derivation.ScryptParams{N: derivation.WeakScryptN, P: derivation.WeakScryptP}
		require.NoError(t, derivation.StoreRootKey(rk, file, "secret", params))

		loaded, err := derivation.LoadRootKey(file, "secret")
		require.NoError(t, err)
		assert.Equal(t, crypto.FromECDSAPub(rk.PublicKey()), crypto.FromECDSAPub(loaded.PublicKey()))
	})

	t.Run("err_wrong_password", func(t *testing.T) {
		rk, err := derivation.GenerateRootKey()
		require.NoError(t, err)
		file := filepath.Join(t.TempDir(), "root.json")
		params := derivation.ScryptParams{N: derivation.WeakScryptN, P: derivation.WeakScryptP}
		require.NoError(t, derivation.StoreRootKey(rk, file, "secret", params))

		_, err = derivation.LoadRootKey(file, "wrong")
		require.Error(t, err)
		t.Log(err)
	})

	t.Run("err_missing_file", func(t *testing.T) {
		_, err := derivation.LoadRootKey(filepath.Join(t.TempDir(), "missing.json"), "secret")
		require.Error(t, err)
	})

	t.Run("err_nil_key", func(t *testing.T) {
		_, err := derivation.NewRootKey(nil)
		assert.ErrorIs(t, err, derivation.ErrNilRootKey)
	})
}

func Test_ParsePublicKey(t *testing.T) {
	key, err := crypto.HexToECDSA(rootKeyHex)
	require.NoError(t, err)

	t.Run("happy_compressed", func(t *testing.T) {
		pub, err := derivation.ParsePublicKey(derivation.FormatPublicKey(&key.PublicKey))
		require.NoError(t, err)
		assert.Equal(t, crypto.FromECDSAPub(&key.PublicKey), crypto.FromECDSAPub(pub))
	})

	t.Run("happy_uncompressed_with_prefix", func(t *testing.T) {
		pub, err := derivation.ParsePublicKey("0x" + common.Bytes2Hex(crypto.FromECDSAPub(&key.PublicKey)))
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(*pub))
	})

	t.Run("err_invalid", func(t *testing.T) {
		for _, s := range []string{"zz", "0102", ""} {
			_, err := derivation.ParsePublicKey(s)
			assert.Error(t, err, s)
		}
	})
}
