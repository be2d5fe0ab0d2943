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

// Package yamlfile implements a store that keeps the state of an actor in a
// YAML file. Every change rewrites the file atomically: the new content is
// written to a temporary file in the same directory, synced and renamed over
// the previous file.
package yamlfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hyperledger-labs/evm-bridge"
)

// fileContent is the format of the state file.
type fileContent struct {
	Offset   *int64                  `yaml:"offset,omitempty"`
	Requests map[string]requestEntry `yaml:"requests,omitempty"`
}

type requestEntry struct {
	State  string `yaml:"state"`
	Detail string `yaml:"detail,omitempty"`
}

// Store keeps the state in a YAML file.
type Store struct {
	mtx     sync.Mutex
	path    string
	content fileContent
	closed  bool
}

// Open opens the state file at path. The file is created on the first change
// if it does not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: filepath.Clean(path), content: fileContent{Requests: map[string]requestEntry{}}}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading state file")
	}
	if err := yaml.Unmarshal(data, &s.content); err != nil {
		return nil, errors.Wrap(err, "parsing state file")
	}
	if s.content.Requests == nil {
		s.content.Requests = map[string]requestEntry{}
	}
	for id, e := range s.content.Requests {
		if _, err := bridge.ParseLifecycleState(e.State); err != nil {
			return nil, errors.WithMessage(err, "parsing state file: request "+id)
		}
	}
	return s, nil
}

// LoadOffset implements bridge.OffsetStore.
func (s *Store) LoadOffset(context.Context) (bridge.Offset, bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.content.Offset == nil {
		return 0, false, nil
	}
	return bridge.Offset(*s.content.Offset), true, nil
}

// SaveOffset implements bridge.OffsetStore.
func (s *Store) SaveOffset(_ context.Context, o bridge.Offset) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return errors.New("store closed")
	}
	prev := s.content.Offset
	v := int64(o)
	s.content.Offset = &v
	if err := s.persist(); err != nil {
		s.content.Offset = prev
		return err
	}
	return nil
}

// SetState implements bridge.LifecycleStore.
func (s *Store) SetState(_ context.Context, id bridge.RequestID, state bridge.LifecycleState, detail string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return errors.New("store closed")
	}
	prev, found := s.content.Requests[id.Hex()]
	if found {
		cur, _ := bridge.ParseLifecycleState(prev.State) // nolint: errcheck	// validated in Open.
		if !state.Supersedes(cur) {
			return nil
		}
	}
	s.content.Requests[id.Hex()] = requestEntry{State: state.String(), Detail: detail}
	if err := s.persist(); err != nil {
		if found {
			s.content.Requests[id.Hex()] = prev
		} else {
			delete(s.content.Requests, id.Hex())
		}
		return err
	}
	return nil
}

// State implements bridge.LifecycleStore.
func (s *Store) State(_ context.Context, id bridge.RequestID) (bridge.LifecycleState, string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e, ok := s.content.Requests[id.Hex()]
	if !ok {
		return bridge.StateUnknown, "", nil
	}
	state, err := bridge.ParseLifecycleState(e.State)
	return state, e.Detail, err
}

// Close implements bridge.Store.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.closed = true
	return nil
}

// persist writes the content atomically. Must be called with the lock held.
func (s *Store) persist() error {
	data, err := yaml.Marshal(s.content)
	if err != nil {
		return errors.Wrap(err, "encoding state file")
	}
	return WriteFileAtomic(s.path, data, 0o600)
}

// WriteFileAtomic writes data to a temporary file in the directory of path,
// syncs it and renames it to path. After a crash, path contains either the
// previous or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name()) // nolint: errcheck, gosec
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close() // nolint: errcheck, gosec
		return errors.Wrap(err, "writing temp file")
	}
	if err = tmp.Chmod(perm); err != nil {
		tmp.Close() // nolint: errcheck, gosec
		return errors.Wrap(err, "setting permissions of temp file")
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close() // nolint: errcheck, gosec
		return errors.Wrap(err, "syncing temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return errors.Wrap(err, "opening directory")
	}
	defer d.Close() // nolint: errcheck
	// Some platforms do not support syncing directories, the error is ignored.
	d.Sync() // nolint: errcheck, gosec
	return nil
}
