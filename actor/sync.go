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
	"sync"

	"github.com/hyperledger-labs/evm-bridge"
)

// keyedMutex serializes the holders of the same key. Entries are removed when
// the last holder releases them.
type keyedMutex struct {
	mtx   sync.Mutex
	locks map[bridge.RequestID]*keyedEntry
}

type keyedEntry struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[bridge.RequestID]*keyedEntry)}
}

// lock locks the key and returns the function to unlock it.
func (k *keyedMutex) lock(key bridge.RequestID) (unlock func()) {
	k.mtx.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mtx.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		k.mtx.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mtx.Unlock()
	}
}

// watermark tracks the batches in flight. The watermark is the highest offset
// up to which all batches are complete.
type watermark struct {
	mtx     sync.Mutex
	pending []*pendingBatch
	mark    bridge.Offset
}

type pendingBatch struct {
	offset    bridge.Offset
	remaining int
}

func newWatermark(start bridge.Offset) *watermark {
	return &watermark{mark: start}
}

// add registers a batch with n tasks. Batches must be added in offset order.
func (w *watermark) add(offset bridge.Offset, n int) *pendingBatch {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	b := &pendingBatch{offset: offset, remaining: n}
	w.pending = append(w.pending, b)
	return b
}

// done marks one task of the batch as complete. It returns the new watermark
// and true if the watermark advanced.
func (w *watermark) done(b *pendingBatch) (bridge.Offset, bool) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if b.remaining > 0 {
		b.remaining--
	}
	return w.advance()
}

// advance pops the complete batches at the head. Must be called with the lock held.
func (w *watermark) advance() (bridge.Offset, bool) {
	advanced := false
	for len(w.pending) > 0 && w.pending[0].remaining == 0 {
		w.mark = w.pending[0].offset
		w.pending = w.pending[1:]
		advanced = true
	}
	return w.mark, advanced
}

// flush is like done for a batch without tasks.
func (w *watermark) flush() (bridge.Offset, bool) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.advance()
}
