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

package stream

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/ledger"
)

// Default liveness settings of websocket connections.
const (
	DefaultPongWait  = 60 * time.Second
	DefaultWriteWait = 10 * time.Second
)

// WSDialer opens websocket connections to the event stream of the ledger.
//
// The connection is considered dead when nothing, neither a batch nor a pong,
// was read within PongWait. Pings are sent every PingPeriod, which must be
// less than PongWait. A zero PongWait disables the liveness check.
type WSDialer struct {
	URL       string // Base url of the stream endpoint, ws:// or wss://.
	Token     string
	Dialer    *websocket.Dialer
	ReadLimit int64

	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// NewWSDialer returns a dialer for the stream endpoint at url.
func NewWSDialer(url, token string, handshakeTimeout time.Duration) *WSDialer {
	return &WSDialer{
		URL:   strings.TrimRight(url, "/"),
		Token: token,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		ReadLimit:  16 << 20,
		PongWait:   DefaultPongWait,
		PingPeriod: (DefaultPongWait * 9) / 10,
		WriteWait:  DefaultWriteWait,
	}
}

// Dial connects to the stream and sends the subscription request.
func (d *WSDialer) Dial(ctx context.Context, beginExclusive bridge.Offset, partyFilter []string) (Conn, error) {
	endpoint := d.URL + ledger.PathStream
	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}
	conn, resp, err := d.Dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() // nolint: errcheck, gosec
	}
	if err != nil {
		return nil, bridge.NewAPIErrTransport(errors.Wrap(err, "dialing stream"), endpoint)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}

	sub := ledger.SubscribeRequest{BeginExclusive: beginExclusive, PartyFilter: partyFilter}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close() // nolint: errcheck, gosec
		return nil, bridge.NewAPIErrTransport(errors.Wrap(err, "sending subscription"), endpoint)
	}

	c := &wsConn{
		conn:      conn,
		endpoint:  endpoint,
		pongWait:  d.PongWait,
		writeWait: d.WriteWait,
		closed:    make(chan struct{}),
	}
	if c.writeWait <= 0 {
		c.writeWait = DefaultWriteWait
	}
	if d.PongWait > 0 {
		if err := c.extendDeadline(); err != nil {
			conn.Close() // nolint: errcheck, gosec
			return nil, bridge.NewAPIErrTransport(errors.Wrap(err, "setting read deadline"), endpoint)
		}
		conn.SetPongHandler(func(string) error {
			return c.extendDeadline()
		})
		if d.PingPeriod > 0 {
			go c.ping(d.PingPeriod)
		}
	}
	return c, nil
}

type wsConn struct {
	conn      *websocket.Conn
	endpoint  string
	pongWait  time.Duration
	writeWait time.Duration
	closeOnce sync.Once
	closed    chan struct{}
}

func (c *wsConn) extendDeadline() error {
	return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
}

// ping sends a ping every period until the connection is closed. A failed
// ping is not reported, the read deadline expires instead.
func (c *wsConn) ping(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				return
			}
		}
	}
}

// Receive reads the next batch frame. It fails when the peer stays silent for
// longer than the pong wait.
func (c *wsConn) Receive() (ledger.Batch, error) {
	var b ledger.Batch
	if err := c.conn.ReadJSON(&b); err != nil {
		select {
		case <-c.closed:
			return b, ErrClosed
		default:
		}
		return b, bridge.NewAPIErrTransport(errors.Wrap(err, "receiving batch"), c.endpoint)
	}
	if c.pongWait > 0 {
		if err := c.extendDeadline(); err != nil {
			return b, bridge.NewAPIErrTransport(errors.Wrap(err, "setting read deadline"), c.endpoint)
		}
	}
	return b, nil
}

// Close sends a close frame and closes the connection.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) // nolint: errcheck, gosec
		err = c.conn.Close()
	})
	return errors.WithStack(err)
}
