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

package actor_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/actor"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/store"
)

var testTemplates = actor.Templates{Module: "Bridge.Request"}

// recordingRole records the contracts passed to its handlers. Results holds
// the errors returned for a contract, one per call, nil once exhausted.
type recordingRole struct {
	mtx     sync.Mutex
	calls   []string
	results map[string][]error
	omit    actor.Template
}

func newRecordingRole() *recordingRole {
	return &recordingRole{results: make(map[string][]error)}
}

func (r *recordingRole) Name() string { return "recorder" }

func (r *recordingRole) Handlers() map[actor.Template]actor.HandlerFunc {
	table := make(map[actor.Template]actor.HandlerFunc)
	for _, t := range actor.AllTemplates() {
		if t != r.omit {
			table[t] = r.handle
		}
	}
	return table
}

func (r *recordingRole) handle(_ context.Context, ev ledger.CreatedEvent, _ bridge.RequestID) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.calls = append(r.calls, ev.ContractID)
	if results := r.results[ev.ContractID]; len(results) > 0 {
		r.results[ev.ContractID] = results[1:]
		return results[0]
	}
	return nil
}

func (r *recordingRole) setResults(contractID string, errs ...error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.results[contractID] = errs
}

func (r *recordingRole) callsFor(contractID string) int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == contractID {
			n++
		}
	}
	return n
}

func created(t actor.Template, contractID string, id bridge.RequestID) ledger.Event {
	payload, _ := json.Marshal(map[string]string{"requestId": id.Hex()}) // nolint: errcheck
	return ledger.Event{Created: &ledger.CreatedEvent{
		ContractID: contractID,
		TemplateID: testTemplates.ID(t),
		Payload:    payload,
	}}
}

func batch(offset bridge.Offset, events ...ledger.Event) ledger.Batch {
	return ledger.Batch{UpdateID: fmt.Sprintf("u%d", offset), Offset: offset, Events: events}
}

func testRunnerConfig() actor.RunnerConfig {
	return actor.RunnerConfig{
		Workers:        4,
		QueueSize:      8,
		DedupCacheSize: 64,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
}

func newTestRunner(t *testing.T, role actor.Role, s bridge.Store) *actor.Runner {
	t.Helper()
	r, err := actor.NewRunner(role, testTemplates, s, 0, testRunnerConfig())
	require.NoError(t, err)
	r.Start()
	return r
}

func Test_NewRunner(t *testing.T) {
	t.Run("err_not_exhaustive", func(t *testing.T) {
		role := newRecordingRole()
		role.omit = actor.ClaimedRequest
		_, err := actor.NewRunner(role, testTemplates, store.NewMemory(), 0, testRunnerConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ClaimedRequest")
	})

	t.Run("err_no_workers", func(t *testing.T) {
		cfg := testRunnerConfig()
		cfg.Workers = 0
		_, err := actor.NewRunner(newRecordingRole(), testTemplates, store.NewMemory(), 0, cfg)
		assert.True(t, bridge.IsCategory(err, bridge.PayloadError))
	})

	t.Run("err_no_dedup_cache", func(t *testing.T) {
		cfg := testRunnerConfig()
		cfg.DedupCacheSize = 0
		_, err := actor.NewRunner(newRecordingRole(), testTemplates, store.NewMemory(), 0, cfg)
		assert.True(t, bridge.IsCategory(err, bridge.PayloadError))
	})
}

func Test_Runner(t *testing.T) {
	ctx := context.Background()
	id1, id2 := bridge.RequestID{1}, bridge.RequestID{2}

	t.Run("happy_dispatch_and_checkpoint", func(t *testing.T) {
		role, s := newRecordingRole(), store.NewMemory()
		r := newTestRunner(t, role, s)
		r.HandleBatch(ctx, batch(1, created(actor.PendingRequest, "#1:0", id1)))
		r.HandleBatch(ctx, batch(2, created(actor.PendingRequest, "#2:1", id2),
			ledger.Event{Archived: &ledger.ArchivedEvent{ContractID: "#1:0"}}))
		r.HandleBatch(ctx, batch(3, created(actor.SignatureEvidence, "#3:2", id1)))
		r.Stop(ctx)

		assert.Equal(t, 1, role.callsFor("#1:0"))
		assert.Equal(t, 1, role.callsFor("#2:1"))
		assert.Equal(t, 1, role.callsFor("#3:2"))
		assert.Equal(t, bridge.Offset(3), r.Checkpoint())
		o, found, err := s.LoadOffset(ctx)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, bridge.Offset(3), o)
	})

	t.Run("happy_unknown_template_and_empty_batch", func(t *testing.T) {
		role, s := newRecordingRole(), store.NewMemory()
		r := newTestRunner(t, role, s)
		other := ledger.Event{Created: &ledger.CreatedEvent{
			ContractID: "#1:0", TemplateID: "Other:Thing", Payload: json.RawMessage(`{}`),
		}}
		r.HandleBatch(ctx, batch(1, other))
		r.HandleBatch(ctx, batch(2))
		r.Stop(ctx)

		assert.Empty(t, role.calls)
		assert.Equal(t, bridge.Offset(2), r.Checkpoint())
	})

	t.Run("happy_redelivery_dropped", func(t *testing.T) {
		role := newRecordingRole()
		r := newTestRunner(t, role, store.NewMemory())
		ev := created(actor.PendingRequest, "#1:0", id1)
		r.HandleBatch(ctx, batch(1, ev))
		r.HandleBatch(ctx, batch(2, ev))
		r.Stop(ctx)

		assert.Equal(t, 1, role.callsFor("#1:0"))
		assert.Equal(t, bridge.Offset(2), r.Checkpoint())
	})

	t.Run("happy_transient_retried", func(t *testing.T) {
		role := newRecordingRole()
		role.setResults("#1:0",
			bridge.NewAPIErrTransport(errors.New("connection refused"), "ledger"),
			bridge.NewAPIErrChainNotReachable(errors.New("timeout"), "chain"))
		r := newTestRunner(t, role, store.NewMemory())
		r.HandleBatch(ctx, batch(1, created(actor.PendingRequest, "#1:0", id1)))
		r.Stop(ctx)

		assert.Equal(t, 3, role.callsFor("#1:0"))
		assert.Equal(t, bridge.Offset(1), r.Checkpoint())
	})

	t.Run("happy_payload_error_skipped", func(t *testing.T) {
		role := newRecordingRole()
		role.setResults("#1:0", bridge.NewAPIErrMissingField("PendingRequest", "to"))
		role.setResults("#2:1", errors.New("unexpected"))
		r := newTestRunner(t, role, store.NewMemory())
		r.HandleBatch(ctx, batch(1, created(actor.PendingRequest, "#1:0", id1)))
		r.HandleBatch(ctx, batch(2, created(actor.PendingRequest, "#2:1", id2)))
		r.Stop(ctx)

		assert.Equal(t, 1, role.callsFor("#1:0"))
		assert.Equal(t, 1, role.callsFor("#2:1"))
		assert.Equal(t, bridge.Offset(2), r.Checkpoint())
	})

	t.Run("happy_invalid_request_id_skipped", func(t *testing.T) {
		role := newRecordingRole()
		r := newTestRunner(t, role, store.NewMemory())
		ev := ledger.Event{Created: &ledger.CreatedEvent{
			ContractID: "#1:0", TemplateID: testTemplates.ID(actor.PendingRequest), Payload: json.RawMessage(`{}`),
		}}
		r.HandleBatch(ctx, batch(1, ev))
		r.Stop(ctx)

		assert.Empty(t, role.calls)
		assert.Equal(t, bridge.Offset(1), r.Checkpoint())
	})

	t.Run("verification_error_halts_request", func(t *testing.T) {
		role, s := newRecordingRole(), store.NewMemory()
		role.setResults("#1:0", bridge.NewAPIErrVerificationFailed(errors.New("bad signature"), id1.Hex(), "signature"))
		r := newTestRunner(t, role, s)
		r.HandleBatch(ctx, batch(1, created(actor.SignatureEvidence, "#1:0", id1)))
		require.Eventually(t, func() bool { return r.Checkpoint() == 1 }, time.Second, time.Millisecond)
		r.HandleBatch(ctx, batch(2, created(actor.OutcomeEvidence, "#2:1", id1)))
		r.Stop(ctx)

		state, detail, err := s.State(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, bridge.StateHalted, state)
		assert.Contains(t, detail, "bad signature")
		assert.Equal(t, 0, role.callsFor("#2:1"), "halted request must not be handled")
		assert.Equal(t, bridge.Offset(2), r.Checkpoint())
	})

	t.Run("stop_drops_pending", func(t *testing.T) {
		role := newRecordingRole()
		transient := bridge.NewAPIErrTransport(errors.New("down"), "ledger")
		errs := make([]error, 1000)
		for i := range errs {
			errs[i] = transient
		}
		role.setResults("#1:0", errs...)
		r := newTestRunner(t, role, store.NewMemory())
		r.HandleBatch(ctx, batch(1, created(actor.PendingRequest, "#1:0", id1)))

		stopCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		r.Stop(stopCtx)
		assert.Equal(t, bridge.Offset(0), r.Checkpoint())
	})
}

func Test_Runner_SameRequestSerialized(t *testing.T) {
	ctx := context.Background()
	id := bridge.RequestID{1}
	var mtx sync.Mutex
	inside, maxInside := 0, 0
	role := &funcRole{fn: func(context.Context, ledger.CreatedEvent, bridge.RequestID) error {
		mtx.Lock()
		inside++
		if inside > maxInside {
			maxInside = inside
		}
		mtx.Unlock()
		time.Sleep(2 * time.Millisecond)
		mtx.Lock()
		inside--
		mtx.Unlock()
		return nil
	}}
	r := newTestRunner(t, role, store.NewMemory())
	for i := 1; i <= 8; i++ {
		r.HandleBatch(ctx, batch(bridge.Offset(i), created(actor.SignatureEvidence, fmt.Sprintf("#%d:0", i), id)))
	}
	r.Stop(ctx)
	assert.Equal(t, 1, maxInside)
	assert.Equal(t, bridge.Offset(8), r.Checkpoint())
}

type funcRole struct {
	fn actor.HandlerFunc
}

func (r *funcRole) Name() string { return "func" }

func (r *funcRole) Handlers() map[actor.Template]actor.HandlerFunc {
	table := make(map[actor.Template]actor.HandlerFunc)
	for _, t := range actor.AllTemplates() {
		table[t] = r.fn
	}
	return table
}

func Test_ResumeOffset(t *testing.T) {
	ctx := context.Background()
	end := func(context.Context) (bridge.Offset, error) { return 42, nil }
	failingEnd := func(context.Context) (bridge.Offset, error) { return 0, errors.New("unreachable") }

	t.Run("happy_checkpoint", func(t *testing.T) {
		s := store.NewMemory()
		require.NoError(t, s.SaveOffset(ctx, 7))
		o, err := actor.ResumeOffset(ctx, s, 3, true, failingEnd)
		require.NoError(t, err)
		assert.Equal(t, bridge.Offset(7), o)
	})

	t.Run("happy_start", func(t *testing.T) {
		o, err := actor.ResumeOffset(ctx, store.NewMemory(), 3, false, failingEnd)
		require.NoError(t, err)
		assert.Equal(t, bridge.Offset(3), o)
	})

	t.Run("happy_ledger_end", func(t *testing.T) {
		o, err := actor.ResumeOffset(ctx, store.NewMemory(), 3, true, end)
		require.NoError(t, err)
		assert.Equal(t, bridge.Offset(42), o)
	})

	t.Run("err_ledger_end", func(t *testing.T) {
		_, err := actor.ResumeOffset(ctx, store.NewMemory(), 3, true, failingEnd)
		assert.Error(t, err)
	})
}
