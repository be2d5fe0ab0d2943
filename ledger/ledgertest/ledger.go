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

// Package ledgertest provides an in-memory ledger that serves the JSON API and
// the event stream of the ledger over http, for use in tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/ledger"
)

// ChoiceFunc implements a choice. It is called with the (already archived)
// target contract and returns the contracts created by the choice.
type ChoiceFunc func(target ledger.CreatedEvent, argument json.RawMessage) ([]ledger.CreateCommand, error)

type commandError struct {
	status int
	err    error
}

func (e commandError) Error() string { return e.err.Error() }

// Ledger is an in-memory ledger. Every party listed as observer sees every
// contract, other parties see the contracts they are signatory of.
type Ledger struct {
	mtx       sync.Mutex
	batches   []ledger.Batch
	contracts map[string]ledger.CreatedEvent
	active    map[string]bool
	order     []string
	commands  map[string]ledger.Batch
	observers []string
	choices   map[string]ChoiceFunc
	changed   chan struct{}

	conns         map[*websocket.Conn]struct{}
	refuseStreams bool
	failSubmits   int
	submitCalls   int

	srv *httptest.Server
}

// New starts an in-memory ledger served by an httptest server. Call Close
// when done.
func New(observers ...string) *Ledger {
	l := &Ledger{
		contracts: make(map[string]ledger.CreatedEvent),
		active:    make(map[string]bool),
		commands:  make(map[string]ledger.Batch),
		observers: observers,
		choices:   make(map[string]ChoiceFunc),
		changed:   make(chan struct{}),
		conns:     make(map[*websocket.Conn]struct{}),
	}
	l.srv = httptest.NewServer(l.Router())
	return l
}

// URL returns the base url of the JSON API.
func (l *Ledger) URL() string {
	return l.srv.URL
}

// StreamURL returns the base url of the event stream.
func (l *Ledger) StreamURL() string {
	return "ws" + strings.TrimPrefix(l.srv.URL, "http")
}

// Close drops all stream connections and stops the server.
func (l *Ledger) Close() {
	l.DropConnections()
	l.srv.Close()
}

// Router returns the http handler serving the ledger API.
func (l *Ledger) Router() http.Handler {
	r := chi.NewRouter()
	r.Post(ledger.PathSubmit, l.handleSubmit)
	r.Post(ledger.PathActiveContracts, l.handleActiveContracts)
	r.Post(ledger.PathUpdates, l.handleUpdates)
	r.Get(ledger.PathLedgerEnd, l.handleLedgerEnd)
	r.Get(ledger.PathStream, l.handleStream)
	return r
}

// RegisterChoice registers the implementation of a choice. Choices without an
// implementation only archive the target contract.
func (l *Ledger) RegisterChoice(choice string, fn ChoiceFunc) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.choices[choice] = fn
}

// RefuseStreams makes the ledger reject (or again accept) new stream connections.
func (l *Ledger) RefuseStreams(refuse bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.refuseStreams = refuse
}

// FailNextSubmits makes the next n submissions fail with 503.
func (l *Ledger) FailNextSubmits(n int) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.failSubmits = n
}

// DropConnections closes all stream connections.
func (l *Ledger) DropConnections() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	for conn := range l.conns {
		conn.Close() // nolint: errcheck, gosec
		delete(l.conns, conn)
	}
}

// StreamConnections returns the number of open stream connections.
func (l *Ledger) StreamConnections() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.conns)
}

// SubmitCalls returns the number of submissions received, including
// deduplicated and failed ones.
func (l *Ledger) SubmitCalls() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.submitCalls
}

// CommandIDs returns the ids of the applied commands.
func (l *Ledger) CommandIDs() []string {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	ids := make([]string, 0, len(l.commands))
	for id := range l.commands {
		ids = append(ids, id)
	}
	return ids
}

// End returns the offset of the last batch.
func (l *Ledger) End() bridge.Offset {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return bridge.Offset(len(l.batches))
}

// Create creates a contract directly, without a command. It returns the
// created event and the batch containing it.
func (l *Ledger) Create(templateID string, payload interface{}, signatories ...string) (
	ledger.CreatedEvent, ledger.Batch) {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	ev := l.newContract(templateID, b, signatories)
	batch := l.appendBatch([]ledger.Event{{Created: &ev}})
	return ev, batch
}

// Archive archives a contract directly, without a command.
func (l *Ledger) Archive(contractID string) (ledger.Batch, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	ev, ok := l.contracts[contractID]
	if !ok || !l.active[contractID] {
		return ledger.Batch{}, errors.Errorf("contract %s is not active", contractID)
	}
	l.active[contractID] = false
	return l.appendBatch([]ledger.Event{{Archived: &ledger.ArchivedEvent{
		ContractID: contractID, TemplateID: ev.TemplateID,
	}}}), nil
}

// Submit applies the commands of the request atomically. A request with a
// known command id is not applied again, the batch of the first submission
// is returned.
func (l *Ledger) Submit(req ledger.SubmitRequest) (ledger.Batch, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.submitCalls++
	if l.failSubmits > 0 {
		l.failSubmits--
		return ledger.Batch{}, commandError{http.StatusServiceUnavailable, errors.New("ledger unavailable")}
	}
	if req.CommandID == "" {
		return ledger.Batch{}, commandError{http.StatusBadRequest, errors.New("command id is required")}
	}
	if batch, ok := l.commands[req.CommandID]; ok {
		return batch, nil
	}

	// Validate all commands and run the choices before applying any.
	choiceCreates := make([][]ledger.CreateCommand, len(req.Commands))
	for i, cmd := range req.Commands {
		if cmd.Create == nil && cmd.Exercise == nil {
			return ledger.Batch{}, commandError{http.StatusBadRequest, errors.New("empty command")}
		}
		if cmd.Exercise == nil {
			continue
		}
		target, ok := l.contracts[cmd.Exercise.ContractID]
		if !ok || !l.active[cmd.Exercise.ContractID] {
			return ledger.Batch{}, commandError{http.StatusNotFound,
				errors.Errorf("contract %s is not active", cmd.Exercise.ContractID)}
		}
		if target.TemplateID != cmd.Exercise.TemplateID {
			return ledger.Batch{}, commandError{http.StatusBadRequest,
				errors.Errorf("contract %s is not of template %s", target.ContractID, cmd.Exercise.TemplateID)}
		}
		if fn, ok := l.choices[cmd.Exercise.Choice]; ok {
			creates, err := fn(target, cmd.Exercise.Argument)
			if err != nil {
				return ledger.Batch{}, commandError{http.StatusBadRequest, err}
			}
			choiceCreates[i] = creates
		}
	}

	var events []ledger.Event
	for i, cmd := range req.Commands {
		if cmd.Create != nil {
			ev := l.newContract(cmd.Create.TemplateID, cmd.Create.Payload, req.ActAs)
			events = append(events, ledger.Event{Created: &ev})
			continue
		}
		target := l.contracts[cmd.Exercise.ContractID]
		l.active[target.ContractID] = false
		events = append(events, ledger.Event{Archived: &ledger.ArchivedEvent{
			ContractID: target.ContractID, TemplateID: target.TemplateID,
		}})
		signatories := append(append([]string{}, target.Signatories...), req.ActAs...)
		for _, c := range choiceCreates[i] {
			ev := l.newContract(c.TemplateID, c.Payload, signatories)
			events = append(events, ledger.Event{Created: &ev})
		}
	}
	batch := l.appendBatch(events)
	l.commands[req.CommandID] = batch
	return batch, nil
}

// ActiveContracts returns the active contracts of the template visible to the parties.
func (l *Ledger) ActiveContracts(parties []string, templateID string) []ledger.CreatedEvent {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	var out []ledger.CreatedEvent
	for _, cid := range l.order {
		ev := l.contracts[cid]
		if l.active[cid] && ev.TemplateID == templateID && l.visible(ev, parties) {
			out = append(out, ev)
		}
	}
	return out
}

// Updates returns the batches after begin visible to the parties, at most limit if limit > 0.
func (l *Ledger) Updates(begin bridge.Offset, parties []string, limit int) []ledger.Batch {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	batches, _ := l.updates(begin, parties, limit)
	return batches
}

func (l *Ledger) updates(begin bridge.Offset, parties []string, limit int) ([]ledger.Batch, <-chan struct{}) {
	var out []ledger.Batch
	start := int(begin)
	if start < 0 {
		start = 0
	}
	for i := start; i < len(l.batches); i++ {
		filtered := l.filter(l.batches[i], parties)
		if len(filtered.Events) == 0 {
			continue
		}
		out = append(out, filtered)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, l.changed
}

func (l *Ledger) newContract(templateID string, payload json.RawMessage, signatories []string) ledger.CreatedEvent {
	cid := fmt.Sprintf("#%d:%d", len(l.batches)+1, len(l.order))
	ev := ledger.CreatedEvent{
		ContractID:  cid,
		TemplateID:  templateID,
		Payload:     payload,
		Signatories: append([]string{}, signatories...),
		Observers:   append([]string{}, l.observers...),
	}
	l.contracts[cid] = ev
	l.active[cid] = true
	l.order = append(l.order, cid)
	return ev
}

func (l *Ledger) appendBatch(events []ledger.Event) ledger.Batch {
	offset := bridge.Offset(len(l.batches) + 1)
	batch := ledger.Batch{
		UpdateID: fmt.Sprintf("update-%d", offset),
		Offset:   offset,
		Events:   events,
	}
	l.batches = append(l.batches, batch)
	close(l.changed)
	l.changed = make(chan struct{})
	return batch
}

func (l *Ledger) filter(b ledger.Batch, parties []string) ledger.Batch {
	out := ledger.Batch{UpdateID: b.UpdateID, Offset: b.Offset}
	for _, ev := range b.Events {
		cid := ""
		if ev.Created != nil {
			cid = ev.Created.ContractID
		} else if ev.Archived != nil {
			cid = ev.Archived.ContractID
		}
		if l.visible(l.contracts[cid], parties) {
			out.Events = append(out.Events, ev)
		}
	}
	return out
}

func (l *Ledger) visible(ev ledger.CreatedEvent, parties []string) bool {
	if len(parties) == 0 {
		return true
	}
	for _, p := range parties {
		for _, s := range ev.Stakeholders() {
			if p == s {
				return true
			}
		}
	}
	return false
}

func (l *Ledger) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req ledger.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	batch, err := l.Submit(req)
	if err != nil {
		var cmdErr commandError
		if errors.As(err, &cmdErr) {
			writeError(w, cmdErr.status, cmdErr.err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, batch)
}

func (l *Ledger) handleActiveContracts(w http.ResponseWriter, r *http.Request) {
	var req ledger.ActiveContractsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, ledger.ActiveContractsResponse{Contracts: l.ActiveContracts(req.Parties, req.TemplateID)})
}

func (l *Ledger) handleUpdates(w http.ResponseWriter, r *http.Request) {
	var req ledger.UpdatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	idle := time.NewTimer(time.Duration(req.IdleTimeoutMs) * time.Millisecond)
	defer idle.Stop()
	for {
		l.mtx.Lock()
		batches, changed := l.updates(req.BeginExclusive, req.PartyFilter, req.Limit)
		l.mtx.Unlock()
		if len(batches) > 0 {
			writeJSON(w, ledger.UpdatesResponse{Batches: batches})
			return
		}
		select {
		case <-changed:
		case <-idle.C:
			writeJSON(w, ledger.UpdatesResponse{Batches: []ledger.Batch{}})
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (l *Ledger) handleLedgerEnd(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ledger.LedgerEndResponse{Offset: l.End()})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (l *Ledger) handleStream(w http.ResponseWriter, r *http.Request) {
	l.mtx.Lock()
	refuse := l.refuseStreams
	l.mtx.Unlock()
	if refuse {
		writeError(w, http.StatusServiceUnavailable, errors.New("streams are refused"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close() // nolint: errcheck

	var sub ledger.SubscribeRequest
	if err := conn.ReadJSON(&sub); err != nil {
		return
	}
	l.mtx.Lock()
	l.conns[conn] = struct{}{}
	l.mtx.Unlock()
	defer func() {
		l.mtx.Lock()
		delete(l.conns, conn)
		l.mtx.Unlock()
	}()

	// Detect the client closing the connection.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	cursor := sub.BeginExclusive
	for {
		l.mtx.Lock()
		batches, changed := l.updates(cursor, sub.PartyFilter, 0)
		l.mtx.Unlock()
		for _, b := range batches {
			if err := conn.WriteJSON(b); err != nil {
				return
			}
			cursor = b.Offset
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) // nolint: errcheck, gosec
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ledger.ErrorResponse{Message: err.Error()}) // nolint: errcheck, gosec
}
