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

// Package sqlite implements a store that keeps the state of an actor in a
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed" // for the schema.
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // sql driver.
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 1 - checkpoint and lifecycle tables.
const currentSchemaVersion = 1

// Store keeps the state in a SQLite database.
type Store struct {
	mtx    sync.Mutex
	db     *sql.DB
	closed bool
}

// Open creates or opens the database at path and applies the schema.
//
// The database is used in WAL mode with full synchronisation and a single
// connection, so that each change is a single durable transaction.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := db.Ping(); err != nil {
		db.Close() // nolint: errcheck, gosec
		return nil, errors.Wrap(err, "connecting to database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close() // nolint: errcheck, gosec
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close() // nolint: errcheck, gosec
		return nil, err
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return errors.Wrapf(err, "executing %q", p)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "reading schema version")
	}
	if version > currentSchemaVersion {
		return errors.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "applying schema")
	}
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion))
	return errors.Wrap(err, "setting schema version")
}

// LoadOffset implements bridge.OffsetStore.
func (s *Store) LoadOffset(ctx context.Context) (bridge.Offset, bool, error) {
	var o int64
	err := s.db.QueryRowContext(ctx, "SELECT ledger_offset FROM checkpoint WHERE id = 1").Scan(&o)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "loading offset")
	}
	return bridge.Offset(o), true, nil
}

// SaveOffset implements bridge.OffsetStore.
func (s *Store) SaveOffset(ctx context.Context, o bridge.Offset) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return errors.New("store closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, ledger_offset, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET ledger_offset = excluded.ledger_offset, updated_at = excluded.updated_at`,
		int64(o), now())
	return errors.Wrap(err, "saving offset")
}

// SetState implements bridge.LifecycleStore.
func (s *Store) SetState(ctx context.Context, id bridge.RequestID, state bridge.LifecycleState, detail string) (err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return errors.New("store closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback() // nolint: errcheck, gosec
		}
	}()

	cur, _, err := queryState(ctx, tx, id)
	if err != nil {
		return err
	}
	if cur != bridge.StateUnknown && !state.Supersedes(cur) {
		return tx.Commit()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO lifecycle (request_id, state, detail, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (request_id) DO UPDATE SET state = excluded.state, detail = excluded.detail,
			updated_at = excluded.updated_at`,
		id.Hex(), state.String(), detail, now())
	if err != nil {
		return errors.Wrap(err, "updating lifecycle state")
	}
	return errors.Wrap(tx.Commit(), "committing lifecycle state")
}

// State implements bridge.LifecycleStore.
func (s *Store) State(ctx context.Context, id bridge.RequestID) (bridge.LifecycleState, string, error) {
	return queryState(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func queryState(ctx context.Context, q queryRower, id bridge.RequestID) (bridge.LifecycleState, string, error) {
	var state, detail string
	err := q.QueryRowContext(ctx, "SELECT state, detail FROM lifecycle WHERE request_id = ?", id.Hex()).
		Scan(&state, &detail)
	if errors.Is(err, sql.ErrNoRows) {
		return bridge.StateUnknown, "", nil
	}
	if err != nil {
		return bridge.StateUnknown, "", errors.Wrap(err, "loading lifecycle state")
	}
	parsed, err := bridge.ParseLifecycleState(state)
	return parsed, detail, err
}

// Close implements bridge.Store.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
