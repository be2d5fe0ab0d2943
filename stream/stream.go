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

// Package stream implements the client of the event feed of the ledger.
//
// The client receives batches over a push transport (a websocket connection).
// When the connection fails it reconnects with exponential backoff. After a
// bounded number of failed attempts it permanently switches to polling the
// feed, which retries on error and never stops until the client is closed.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/log"
)

// State of the stream client.
type State int

// Enumeration of the states of the stream client.
const (
	Connecting State = iota
	Streaming
	Disconnected
	Reconnecting
	ReconnectExhausted
	Polling
	Closed
)

// String implements the stringer interface for State.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Disconnected:
		return "disconnected"
	case Reconnecting:
		return "reconnecting"
	case ReconnectExhausted:
		return "reconnect-exhausted"
	case Polling:
		return "polling"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Conn is a connection of the push transport.
type Conn interface {
	// Receive blocks until the next batch is received or the connection fails.
	Receive() (ledger.Batch, error)
	Close() error
}

// Dialer opens connections of the push transport. The subscription starts
// after the given offset.
type Dialer interface {
	Dial(ctx context.Context, beginExclusive bridge.Offset, partyFilter []string) (Conn, error)
}

// Poller polls the event feed. It is implemented by ledger.Client.
type Poller interface {
	Updates(ctx context.Context, req ledger.UpdatesRequest) ([]ledger.Batch, error)
}

// Handler processes a batch. It is called from the loop of the client, one
// batch at a time, in offset order. The context is canceled when the client
// is closed.
type Handler func(ctx context.Context, b ledger.Batch)

// Config configures the stream client.
type Config struct {
	PartyFilter []string

	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
	// StableAfter is how long a connection must stay up, without delivering
	// a batch, to reset the count of failed attempts. A connection delivering
	// a batch resets it at once. Zero means ReconnectMaxDelay.
	StableAfter time.Duration

	PollIdleTimeout time.Duration
	PollRetryDelay  time.Duration
	PollLimit       int
}

// Client is a client of the event feed.
type Client struct {
	log.Logger

	cfg     Config
	dialer  Dialer
	poller  Poller
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mtx       sync.Mutex
	state     State
	cursor    bridge.Offset
	conn      Conn
	started   bool
	closeOnce sync.Once
	listeners []func(State)
}

// New returns a stream client that delivers the batches after begin to the
// handler. Call Start to start receiving.
func New(dialer Dialer, poller Poller, cfg Config, begin bridge.Offset, h Handler) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		Logger:  log.NewLoggerWithField("component", "stream"),
		cfg:     cfg,
		dialer:  dialer,
		poller:  poller,
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   Connecting,
		cursor:  begin,
	}
}

// OnStateChange registers a function called on every state change. It must
// be registered before Start and must not block.
func (c *Client) OnStateChange(fn func(State)) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start starts the loop of the client in a new go-routine. Subsequent calls
// have no effect.
func (c *Client) Start() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.started || c.state == Closed {
		return
	}
	c.started = true
	go c.run()
}

// State returns the current state.
func (c *Client) State() State {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

// Offset returns the offset of the last batch passed to the handler, or the
// begin offset if no batch was received yet.
func (c *Client) Offset() bridge.Offset {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.cursor
}

// Close stops the client: it cancels a pending reconnect, aborts a pending
// poll and closes the active connection. It waits for the loop to exit, so no
// handler is invoked after Close returns. Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mtx.Lock()
		started := c.started
		conn := c.conn
		c.conn = nil
		c.mtx.Unlock()

		c.cancel()
		if conn != nil {
			conn.Close() // nolint: errcheck, gosec
		}
		if started {
			<-c.done
		}
		c.setState(Closed)
	})
	return nil
}

func (c *Client) setState(s State) {
	c.mtx.Lock()
	if c.state == s || c.state == Closed {
		c.mtx.Unlock()
		return
	}
	c.state = s
	listeners := append([]func(State){}, c.listeners...)
	cursor := c.cursor
	c.mtx.Unlock()

	c.WithField("offset", cursor).Debugf("Stream state: %s", s)
	for _, fn := range listeners {
		fn(s)
	}
}

func (c *Client) run() {
	defer close(c.done)

	failures := 0
	for {
		if c.ctx.Err() != nil {
			return
		}
		conn, err := c.dialer.Dial(c.ctx, c.Offset(), c.cfg.PartyFilter)
		if err == nil {
			var stable bool
			stable, err = c.consume(conn)
			if c.ctx.Err() != nil {
				return
			}
			if stable {
				failures = 0
			}
			c.setState(Disconnected)
		}
		failures++
		c.WithField("attempt", failures).Warnf("Stream transport failed: %v", err)

		if failures > c.cfg.MaxReconnectAttempts {
			c.setState(ReconnectExhausted)
			c.Errorf("Giving up reconnecting after %d attempts, switching to polling", c.cfg.MaxReconnectAttempts)
			c.poll()
			return
		}
		c.setState(Reconnecting)
		if !c.wait(c.reconnectDelay(failures)) {
			return
		}
	}
}

func (c *Client) reconnectDelay(attempt int) time.Duration {
	return ledger.RetryConfig{BaseDelay: c.cfg.ReconnectBaseDelay, MaxDelay: c.cfg.ReconnectMaxDelay}.Delay(attempt)
}

// consume delivers the batches received on the connection until it fails. It
// reports whether the connection was stable: it delivered a batch or stayed
// up for the configured duration.
func (c *Client) consume(conn Conn) (stable bool, err error) {
	c.mtx.Lock()
	if c.ctx.Err() != nil {
		c.mtx.Unlock()
		conn.Close() // nolint: errcheck, gosec
		return false, c.ctx.Err()
	}
	c.conn = conn
	c.mtx.Unlock()
	defer func() {
		c.mtx.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mtx.Unlock()
		conn.Close() // nolint: errcheck, gosec
	}()

	stableAfter := c.cfg.StableAfter
	if stableAfter <= 0 {
		stableAfter = c.cfg.ReconnectMaxDelay
	}
	connected := time.Now()
	received := false
	c.setState(Streaming)
	for {
		b, err := conn.Receive()
		if err != nil {
			return received || time.Since(connected) >= stableAfter, err
		}
		received = true
		c.deliver(b)
	}
}

// poll polls the feed until the client is closed.
func (c *Client) poll() {
	c.setState(Polling)
	for {
		if c.ctx.Err() != nil {
			return
		}
		batches, err := c.poller.Updates(c.ctx, ledger.UpdatesRequest{
			BeginExclusive: c.Offset(),
			PartyFilter:    c.cfg.PartyFilter,
			IdleTimeoutMs:  c.cfg.PollIdleTimeout.Milliseconds(),
			Limit:          c.cfg.PollLimit,
		})
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.Warnf("Polling updates failed, retrying in %s: %v", c.cfg.PollRetryDelay, err)
			if !c.wait(c.cfg.PollRetryDelay) {
				return
			}
			continue
		}
		for _, b := range batches {
			c.deliver(b)
		}
	}
}

// deliver advances the cursor and passes the batch to the handler. Batches at
// or before the cursor were already delivered and are dropped.
func (c *Client) deliver(b ledger.Batch) {
	c.mtx.Lock()
	if c.ctx.Err() != nil || b.Offset <= c.cursor {
		c.mtx.Unlock()
		return
	}
	c.cursor = b.Offset
	c.mtx.Unlock()

	c.handler(c.ctx, b)
}

// wait returns false if the client was closed before d elapsed.
func (c *Client) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// ErrClosed is returned by connections closed by the client.
var ErrClosed = errors.New("stream client closed")
