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

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/bridgetest"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/ledger/ledgertest"
)

const (
	alice    = "Alice::1220"
	operator = "Operator::1220"
	template = "Bridge.Request:PendingRequest"
)

var fastRetry = ledger.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

type payload struct {
	RequestID string `json:"requestId"`
}

func newClient(t *testing.T, l *ledgertest.Ledger) *ledger.Client {
	t.Helper()
	return ledger.NewClient(l.URL(), ledger.WithRetry(fastRetry), ledger.WithToken("token"))
}

func createRequest(t *testing.T, commandID, requestID string) ledger.SubmitRequest {
	t.Helper()
	cmd, err := ledger.NewCreateCommand(template, payload{RequestID: requestID})
	require.NoError(t, err)
	return ledger.SubmitRequest{CommandID: commandID, ActAs: []string{alice}, Commands: []ledger.Command{cmd}}
}

func Test_Client_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("happy_deduplicated", func(t *testing.T) {
		l := ledgertest.New(operator)
		defer l.Close()
		c := newClient(t, l)

		first, err := c.Submit(ctx, createRequest(t, "cmd-1", "01"))
		require.NoError(t, err)
		require.Len(t, first.Events, 1)
		require.NotNil(t, first.Events[0].Created)
		assert.Equal(t, template, first.Events[0].Created.TemplateID)
		assert.Equal(t, bridge.Offset(1), first.Offset)

		second, err := c.Submit(ctx, createRequest(t, "cmd-1", "01"))
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Len(t, l.ActiveContracts(nil, template), 1)
	})

	t.Run("happy_retry_unavailable", func(t *testing.T) {
		l := ledgertest.New(operator)
		defer l.Close()
		c := newClient(t, l)
		l.FailNextSubmits(2)

		_, err := c.Submit(ctx, createRequest(t, "cmd-1", "01"))
		require.NoError(t, err)
		assert.Equal(t, 3, l.SubmitCalls())
	})

	t.Run("err_retries_exhausted", func(t *testing.T) {
		l := ledgertest.New(operator)
		defer l.Close()
		c := newClient(t, l)
		l.FailNextSubmits(3)

		_, err := c.Submit(ctx, createRequest(t, "cmd-1", "01"))
		apiErr := bridgetest.RequireAPIError(t, err)
		bridgetest.AssertAPIError(t, apiErr, bridge.TransientError, bridge.ErrTransport)
		assert.True(t, bridge.IsCategory(err, bridge.TransientError))
	})

	t.Run("err_exercise_inactive_contract", func(t *testing.T) {
		l := ledgertest.New(operator)
		defer l.Close()
		c := newClient(t, l)

		cmd, err := ledger.NewExerciseCommand(template, "#99:0", "Claim", struct{}{})
		require.NoError(t, err)
		_, err = c.Submit(ctx, ledger.SubmitRequest{CommandID: "cmd-2", ActAs: []string{alice}, Commands: []ledger.Command{cmd}})
		apiErr := bridgetest.RequireAPIError(t, err)
		bridgetest.AssertAPIError(t, apiErr, bridge.PayloadError, bridge.ErrInvalidArgument)
		assert.Equal(t, 1, l.SubmitCalls())
	})

	t.Run("err_ledger_unreachable", func(t *testing.T) {
		l := ledgertest.New(operator)
		url := l.URL()
		l.Close()
		c := ledger.NewClient(url, ledger.WithRetry(fastRetry))

		_, err := c.Submit(ctx, createRequest(t, "cmd-1", "01"))
		apiErr := bridgetest.RequireAPIError(t, err)
		assert.Equal(t, bridge.ErrTransport, apiErr.Code())
	})
}

func Test_Client_ActiveContracts(t *testing.T) {
	ctx := context.Background()
	l := ledgertest.New()
	defer l.Close()
	c := newClient(t, l)

	_, err := c.Submit(ctx, createRequest(t, "cmd-1", "01"))
	require.NoError(t, err)
	l.Create(template, payload{RequestID: "02"}, "Bob::1220")

	all, err := c.ActiveContracts(ctx, nil, template)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	aliceOnly, err := c.ActiveContracts(ctx, []string{alice}, template)
	require.NoError(t, err)
	require.Len(t, aliceOnly, 1)
	assert.JSONEq(t, `{"requestId":"01"}`, string(aliceOnly[0].Payload))

	_, err = l.Archive(aliceOnly[0].ContractID)
	require.NoError(t, err)
	aliceOnly, err = c.ActiveContracts(ctx, []string{alice}, template)
	require.NoError(t, err)
	assert.Empty(t, aliceOnly)
}

func Test_Client_Updates(t *testing.T) {
	ctx := context.Background()
	l := ledgertest.New()
	defer l.Close()
	c := newClient(t, l)

	t.Run("happy_idle_timeout", func(t *testing.T) {
		start := time.Now()
		batches, err := c.Updates(ctx, ledger.UpdatesRequest{IdleTimeoutMs: 50})
		require.NoError(t, err)
		assert.Empty(t, batches)
		assert.GreaterOrEqual(t, int64(time.Since(start)), int64(50*time.Millisecond))
	})

	t.Run("happy_wakes_on_new_batch", func(t *testing.T) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			l.Create(template, payload{RequestID: "01"}, alice)
		}()
		batches, err := c.Updates(ctx, ledger.UpdatesRequest{IdleTimeoutMs: 5000})
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Equal(t, bridge.Offset(1), batches[0].Offset)
	})

	t.Run("happy_begin_exclusive_and_limit", func(t *testing.T) {
		for _, id := range []string{"02", "03", "04"} {
			l.Create(template, payload{RequestID: id}, alice)
		}
		batches, err := c.Updates(ctx, ledger.UpdatesRequest{BeginExclusive: 1, IdleTimeoutMs: 10, Limit: 2})
		require.NoError(t, err)
		require.Len(t, batches, 2)
		assert.Equal(t, bridge.Offset(2), batches[0].Offset)
		assert.Equal(t, bridge.Offset(3), batches[1].Offset)

		end, err := c.LedgerEnd(ctx)
		require.NoError(t, err)
		assert.Equal(t, bridge.Offset(4), end)
	})

	t.Run("happy_party_filter", func(t *testing.T) {
		batches, err := c.Updates(ctx, ledger.UpdatesRequest{PartyFilter: []string{"Carol::1220"}, IdleTimeoutMs: 10})
		require.NoError(t, err)
		assert.Empty(t, batches)
	})
}

func Test_RetryConfig_Delay(t *testing.T) {
	cfg := ledger.RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{60, time.Second},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, cfg.Delay(tc.attempt), "attempt %d", tc.attempt)
	}
}

func Test_SplitTemplateID(t *testing.T) {
	module, entity, ok := ledger.SplitTemplateID(ledger.TemplateID("Bridge.Request", "PendingRequest"))
	require.True(t, ok)
	assert.Equal(t, "Bridge.Request", module)
	assert.Equal(t, "PendingRequest", entity)

	for _, invalid := range []string{"PendingRequest", ":PendingRequest", "Bridge.Request:"} {
		_, _, ok := ledger.SplitTemplateID(invalid)
		assert.False(t, ok, invalid)
	}
}
