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

package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/bridgetest"
	"github.com/hyperledger-labs/evm-bridge/store"
	"github.com/hyperledger-labs/evm-bridge/store/storetest"
)

func Test_Memory(t *testing.T) {
	storetest.RunStoreTests(t, func(t *testing.T) storetest.Opener {
		return func() bridge.Store { return store.NewMemory() }
	}, false)
}

func Test_New(t *testing.T) {
	dir := t.TempDir()
	for _, cfg := range []store.Config{
		{Type: store.TypeYAML, Path: filepath.Join(dir, "state.yaml")},
		{Type: store.TypeSQLite, Path: filepath.Join(dir, "state.db")},
		{Type: store.TypeMemory},
	} {
		s, err := store.New(cfg)
		require.NoError(t, err, cfg.Type)
		require.NoError(t, s.Close())
	}

	_, err := store.New(store.Config{Type: "etcd"})
	apiErr := bridgetest.RequireAPIError(t, err)
	bridgetest.AssertErrInfoInvalidConfig(t, apiErr.AddInfo(), "store.type", "etcd")
}
