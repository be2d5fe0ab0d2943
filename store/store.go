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

// Package store provides the durable state of an actor: the offset up to
// which the event feed was processed and the local view of the lifecycle of
// each request.
package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/store/sqlite"
	"github.com/hyperledger-labs/evm-bridge/store/yamlfile"
)

// Enumeration of store types.
const (
	TypeYAML   = "yaml"
	TypeSQLite = "sqlite"
	TypeMemory = "memory"
)

// Config configures the store.
type Config struct {
	Type string
	Path string
}

// New opens the store of the configured type.
func New(cfg Config) (bridge.Store, error) {
	switch cfg.Type {
	case TypeYAML:
		return yamlfile.Open(cfg.Path)
	case TypeSQLite:
		return sqlite.Open(cfg.Path)
	case TypeMemory:
		return NewMemory(), nil
	default:
		return nil, bridge.NewAPIErrInvalidConfig(errors.New("unknown store type"), "store.type", cfg.Type)
	}
}

// Memory is a store that keeps the state in memory only. It does not survive
// a restart and is meant for tests.
type Memory struct {
	mtx    sync.Mutex
	offset bridge.Offset
	found  bool
	states map[bridge.RequestID]memoryEntry
	closed bool
}

type memoryEntry struct {
	state  bridge.LifecycleState
	detail string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{states: make(map[bridge.RequestID]memoryEntry)}
}

// LoadOffset implements bridge.OffsetStore.
func (m *Memory) LoadOffset(context.Context) (bridge.Offset, bool, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.offset, m.found, nil
}

// SaveOffset implements bridge.OffsetStore.
func (m *Memory) SaveOffset(_ context.Context, o bridge.Offset) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return errors.New("store closed")
	}
	m.offset, m.found = o, true
	return nil
}

// SetState implements bridge.LifecycleStore.
func (m *Memory) SetState(_ context.Context, id bridge.RequestID, s bridge.LifecycleState, detail string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return errors.New("store closed")
	}
	if cur, ok := m.states[id]; ok && !s.Supersedes(cur.state) {
		return nil
	}
	m.states[id] = memoryEntry{state: s, detail: detail}
	return nil
}

// State implements bridge.LifecycleStore.
func (m *Memory) State(_ context.Context, id bridge.RequestID) (bridge.LifecycleState, string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	e := m.states[id]
	return e.state, e.detail, nil
}

// Close implements bridge.Store.
func (m *Memory) Close() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.closed = true
	return nil
}
