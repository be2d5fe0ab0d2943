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

// Package storetest provides tests shared by all store implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
)

// Opener opens a store. Calling it again must open the same store, unless it
// does not persist its state.
type Opener func() bridge.Store

// NewOpener returns an opener for a new, empty store. The store must be
// removed when the test finishes.
type NewOpener func(t *testing.T) Opener

// RunStoreTests runs the tests common to all stores. If persistent is true,
// the tests also check that the state survives closing and reopening.
func RunStoreTests(t *testing.T, newOpener NewOpener, persistent bool) {
	ctx := context.Background()
	id1 := bridge.RequestID{0x01}
	id2 := bridge.RequestID{0x02}

	t.Run("offset", func(t *testing.T) {
		open := newOpener(t)
		s := open()
		_, found, err := s.LoadOffset(ctx)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, s.SaveOffset(ctx, 7))
		require.NoError(t, s.SaveOffset(ctx, 12))
		o, found, err := s.LoadOffset(ctx)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, bridge.Offset(12), o)
		require.NoError(t, s.Close())

		if persistent {
			reopened := open()
			defer reopened.Close() // nolint: errcheck
			o, found, err := reopened.LoadOffset(ctx)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, bridge.Offset(12), o)
		}
	})

	t.Run("lifecycle", func(t *testing.T) {
		open := newOpener(t)
		s := open()
		state, _, err := s.State(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, bridge.StateUnknown, state)

		require.NoError(t, s.SetState(ctx, id1, bridge.StateSignatureEvidence, ""))
		require.NoError(t, s.SetState(ctx, id1, bridge.StateExternalSubmitted, "0xabcd"))
		// Moves backwards are ignored.
		require.NoError(t, s.SetState(ctx, id1, bridge.StateAnchored, ""))
		state, detail, err := s.State(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, bridge.StateExternalSubmitted, state)
		assert.Equal(t, "0xabcd", detail)

		require.NoError(t, s.SetState(ctx, id2, bridge.StateHalted, "signature mismatch"))
		require.NoError(t, s.SetState(ctx, id2, bridge.StateClaimed, ""))
		state, detail, err = s.State(ctx, id2)
		require.NoError(t, err)
		assert.Equal(t, bridge.StateHalted, state)
		assert.Equal(t, "signature mismatch", detail)
		require.NoError(t, s.Close())

		if persistent {
			reopened := open()
			defer reopened.Close() // nolint: errcheck
			state, detail, err := reopened.State(ctx, id1)
			require.NoError(t, err)
			assert.Equal(t, bridge.StateExternalSubmitted, state)
			assert.Equal(t, "0xabcd", detail)
			state, _, err = reopened.State(ctx, id2)
			require.NoError(t, err)
			assert.Equal(t, bridge.StateHalted, state)
		}
	})

	t.Run("err_closed", func(t *testing.T) {
		open := newOpener(t)
		s := open()
		require.NoError(t, s.Close())
		assert.Error(t, s.SaveOffset(ctx, 1))
		assert.Error(t, s.SetState(ctx, id1, bridge.StateClaimed, ""))
	})
}
