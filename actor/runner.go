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

package actor

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/log"
)

// RunnerConfig configures the runner.
type RunnerConfig struct {
	// Workers is the number of events handled concurrently.
	Workers int
	// QueueSize is the number of events waiting for a worker. When the queue
	// is full, the delivery of further batches blocks.
	QueueSize int
	// DedupCacheSize is the number of handled contracts remembered to drop
	// re-deliveries.
	DedupCacheSize int

	// Delays between attempts for transient errors.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Runner dispatches the contracts created on the ledger to the handlers of a
// role.
//
// Batches are passed to HandleBatch in offset order. Each created contract of
// a known template is queued as one task and handled by a pool of workers.
// Tasks for the same request are handled one at a time. The offset of a batch
// is saved as checkpoint once the batch and all batches before it are
// handled.
type Runner struct {
	log.Logger

	role      Role
	templates Templates
	table     map[Template]HandlerFunc
	store     bridge.Store
	cfg       RunnerConfig

	tasks    chan task
	locks    *keyedMutex
	handled  *lru.Cache
	wm       *watermark
	inflight sync.WaitGroup

	saveMtx sync.Mutex
	saved   bridge.Offset

	ctx       context.Context
	cancel    context.CancelFunc
	workers   sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type task struct {
	template Template
	event    ledger.CreatedEvent
	batch    *pendingBatch
}

// NewRunner returns a runner for the role. Start is the offset the event feed
// is resumed from.
//
// It returns an error if the dispatch table of the role is not exhaustive.
func NewRunner(role Role, templates Templates, store bridge.Store, start bridge.Offset, cfg RunnerConfig) (
	*Runner, error) {
	table := role.Handlers()
	for _, t := range AllTemplates() {
		if table[t] == nil {
			return nil, bridge.NewAPIErrUnknownInternal(
				errors.Errorf("role %s has no handler for template %s", role.Name(), t))
		}
	}
	if cfg.Workers < 1 {
		return nil, bridge.NewAPIErrInvalidConfig(errors.New("must be at least 1"), "workers.count", "")
	}
	if cfg.QueueSize < 0 {
		return nil, bridge.NewAPIErrInvalidConfig(errors.New("must not be negative"), "workers.queuesize", "")
	}
	handled, err := lru.New(cfg.DedupCacheSize)
	if err != nil {
		return nil, bridge.NewAPIErrInvalidConfig(err, "workers.dedupcachesize", "")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		Logger:    log.NewLoggerWithField("role", role.Name()),
		role:      role,
		templates: templates,
		table:     table,
		store:     store,
		cfg:       cfg,
		tasks:     make(chan task, cfg.QueueSize),
		locks:     newKeyedMutex(),
		handled:   handled,
		wm:        newWatermark(start),
		saved:     start,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start starts the workers. Subsequent calls have no effect.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		r.workers.Add(r.cfg.Workers)
		for i := 0; i < r.cfg.Workers; i++ {
			go r.work()
		}
	})
}

// Stop waits until the queued tasks are handled or ctx is done and stops the
// workers. Tasks still queued are dropped and their batches are not saved as
// checkpoint. HandleBatch must not be called after Stop.
func (r *Runner) Stop(ctx context.Context) {
	r.stopOnce.Do(func() {
		idle := make(chan struct{})
		go func() {
			r.inflight.Wait()
			close(idle)
		}()
		select {
		case <-idle:
		case <-ctx.Done():
			r.Warn("Stopping with tasks in flight")
		}
		r.cancel()
		r.workers.Wait()
		for {
			select {
			case <-r.tasks:
				r.inflight.Done()
			default:
				return
			}
		}
	})
}

// Checkpoint returns the last saved offset.
func (r *Runner) Checkpoint() bridge.Offset {
	r.saveMtx.Lock()
	defer r.saveMtx.Unlock()
	return r.saved
}

// HandleBatch queues the created contracts of the batch. It blocks while the
// queue is full. It implements stream.Handler.
func (r *Runner) HandleBatch(ctx context.Context, b ledger.Batch) {
	var tasks []task
	for _, ev := range b.Events {
		if ev.Created == nil {
			continue
		}
		t, ok := r.templates.Parse(ev.Created.TemplateID)
		if !ok {
			r.WithFields(log.Fields{"offset": b.Offset, "template": ev.Created.TemplateID}).
				Debug("Ignoring contract of unknown template")
			continue
		}
		tasks = append(tasks, task{template: t, event: *ev.Created})
	}

	pending := r.wm.add(b.Offset, len(tasks))
	if len(tasks) == 0 {
		r.checkpoint(r.wm.flush())
		return
	}
	for _, t := range tasks {
		t.batch = pending
		r.inflight.Add(1)
		select {
		case r.tasks <- t:
		case <-ctx.Done():
			r.inflight.Done()
			return
		case <-r.ctx.Done():
			r.inflight.Done()
			return
		}
	}
}

func (r *Runner) work() {
	defer r.workers.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case t := <-r.tasks:
			if r.process(t) {
				r.checkpoint(r.wm.done(t.batch))
			}
			r.inflight.Done()
		}
	}
}

// process handles the task, retrying on transient errors. It returns false if
// the runner was stopped before the task was handled.
func (r *Runner) process(t task) bool {
	logger := r.WithFields(log.Fields{"template": t.template, "contract-id": t.event.ContractID})
	id, err := DecodeRequestID(t.template, t.event.Payload)
	if err != nil {
		logger.Warnf("Skipping contract with invalid payload: %v", err)
		return true
	}
	logger = logger.WithField("request-id", id)

	unlock := r.locks.lock(id)
	defer unlock()

	key := t.template.String() + "/" + t.event.ContractID
	if r.handled.Contains(key) {
		logger.Debug("Skipping contract, already handled")
		return true
	}

	for attempt := 1; ; attempt++ {
		err := r.attempt(t, id, logger)
		if r.ctx.Err() != nil {
			return false
		}
		if bridge.IsCategory(err, bridge.TransientError) {
			delay := ledger.RetryConfig{BaseDelay: r.cfg.RetryBaseDelay, MaxDelay: r.cfg.RetryMaxDelay}.Delay(attempt)
			logger.WithField("attempt", attempt).Warnf("Handling failed, retrying in %s: %v", delay, err)
			if !r.wait(delay) {
				return false
			}
			continue
		}
		r.classify(err, t, id, logger)
		r.handled.Add(key, struct{}{})
		return true
	}
}

func (r *Runner) attempt(t task, id bridge.RequestID, logger log.Logger) error {
	state, _, err := r.store.State(r.ctx, id)
	if err != nil {
		return bridge.NewAPIErrTransport(err, "lifecycle store")
	}
	if state == bridge.StateHalted {
		logger.Debug("Skipping contract of halted request")
		return nil
	}
	return r.table[t.template](r.ctx, t.event, id)
}

// classify logs the error of a handler. A verification error halts the request.
func (r *Runner) classify(err error, t task, id bridge.RequestID, logger log.Logger) {
	if err == nil {
		return
	}
	apiErr, ok := bridge.AsAPIError(err)
	if !ok {
		logger.Errorf("Handling failed, skipping contract: %+v", err)
		return
	}
	switch apiErr.Category() {
	case bridge.VerificationError:
		logger.WithFields(bridge.APIErrAsMap(t.template.String(), apiErr)).Error("Verification failed, halting request")
		if err := r.store.SetState(r.ctx, id, bridge.StateHalted, apiErr.Message()); err != nil {
			logger.Errorf("Recording halted state failed: %v", err)
		}
	case bridge.PayloadError:
		logger.WithFields(bridge.APIErrAsMap(t.template.String(), apiErr)).Warn("Skipping contract with invalid payload")
	default:
		logger.WithFields(bridge.APIErrAsMap(t.template.String(), apiErr)).Error("Handling failed, skipping contract")
	}
}

// checkpoint saves the offset if the watermark advanced.
func (r *Runner) checkpoint(o bridge.Offset, advanced bool) {
	if !advanced {
		return
	}
	r.saveMtx.Lock()
	defer r.saveMtx.Unlock()
	if o <= r.saved {
		return
	}
	if err := r.store.SaveOffset(r.ctx, o); err != nil {
		r.WithField("offset", o).Errorf("Saving checkpoint failed: %v", err)
		return
	}
	r.saved = o
}

// wait returns false if the runner was stopped before d elapsed.
func (r *Runner) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// ResumeOffset returns the offset to resume the event feed from: the saved
// checkpoint if there is one, else the end of the ledger if fromEnd is set,
// else start.
func ResumeOffset(ctx context.Context, store bridge.OffsetStore, start bridge.Offset, fromEnd bool,
	ledgerEnd func(context.Context) (bridge.Offset, error)) (bridge.Offset, error) {
	saved, found, err := store.LoadOffset(ctx)
	if err != nil {
		return 0, errors.WithMessage(err, "loading checkpoint")
	}
	if found {
		return saved, nil
	}
	if !fromEnd {
		return start, nil
	}
	end, err := ledgerEnd(ctx)
	return end, errors.WithMessage(err, "reading ledger end")
}
