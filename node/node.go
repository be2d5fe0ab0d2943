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

// Package node wires the components of a bridge node for one role: the
// ledger client, the event stream, the worker pool of the role, the
// checkpoint store, the external chain and the health server.
package node

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/actor"
	"github.com/hyperledger-labs/evm-bridge/api/health"
	"github.com/hyperledger-labs/evm-bridge/blockchain/ethereum"
	"github.com/hyperledger-labs/evm-bridge/derivation"
	"github.com/hyperledger-labs/evm-bridge/ledger"
	"github.com/hyperledger-labs/evm-bridge/log"
	"github.com/hyperledger-labs/evm-bridge/store"
	"github.com/hyperledger-labs/evm-bridge/stream"
)

// Node runs one role of the bridge.
type Node struct {
	log.Logger

	cfg       Config
	templates actor.Templates
	store     bridge.Store
	client    *ledger.Client
	role      actor.Role
	initiator *actor.Initiator
	root      *derivation.RootKey

	closeOnce sync.Once
}

// Option configures optional collaborators of the node.
type Option func(*options)

type options struct {
	chain bridge.ChainBackend
	root  *derivation.RootKey
}

// WithChainBackend sets the backend of the external chain instead of
// connecting to chain.url.
func WithChainBackend(chain bridge.ChainBackend) Option {
	return func(o *options) { o.chain = chain }
}

// WithRootKey sets the root key of the signer instead of loading it from
// signer.keystorefile.
func WithRootKey(root *derivation.RootKey) Option {
	return func(o *options) { o.root = root }
}

// New returns a node for the configured role. It opens the checkpoint store
// and, depending on the role, connects to the external chain and loads the
// root key. The logger is initialized by the caller.
//
// If there is an error, it will be one of the following codes:
// - ErrInvalidConfig when any of the configuration is invalid.
// - ErrChainNotReachable when the external chain cannot be reached.
// - ErrUnknownInternal.
func New(cfg Config, opts ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s, err := store.New(cfg.Store)
	if err != nil {
		if _, ok := bridge.AsAPIError(err); ok {
			return nil, err
		}
		return nil, bridge.NewAPIErrInvalidConfig(err, "store.path", cfg.Store.Path)
	}

	n := &Node{
		Logger:    log.NewLoggerWithFields(log.Fields{"role": cfg.Role, "party": cfg.Ledger.Party}),
		cfg:       cfg,
		templates: actor.Templates{Module: cfg.Ledger.TemplateModule},
		store:     s,
		client: ledger.NewClient(cfg.Ledger.URL,
			ledger.WithToken(cfg.Ledger.Token),
			ledger.WithHTTPClient(&http.Client{Timeout: cfg.Ledger.RequestTimeout})),
	}
	if err := n.initRole(o); err != nil {
		s.Close() // nolint: errcheck, gosec
		return nil, err
	}
	return n, nil
}

func (n *Node) initRole(o options) error {
	actorCfg := actor.Config{Party: n.cfg.Ledger.Party, ReadAs: n.cfg.Ledger.ReadAs, Templates: n.templates}
	rootPub, err := n.rootPublicKey()
	if err != nil {
		return err
	}

	switch n.cfg.Role {
	case RoleInitiator:
		n.initiator = actor.NewInitiator(actorCfg, n.client, n.store, rootPub)
		n.role = n.initiator
		return nil
	case RoleRelayer:
		chain, err := n.chain(o)
		if err != nil {
			return err
		}
		n.role = actor.NewRelayer(actorCfg, n.client, chain, n.store, rootPub)
		return nil
	default:
		chain, err := n.chain(o)
		if err != nil {
			return err
		}
		n.root = o.root
		if n.root == nil {
			if n.root, err = derivation.LoadRootKey(n.cfg.Signer.KeystoreFile, n.cfg.Signer.Password); err != nil {
				return bridge.NewAPIErrInvalidConfig(err, "signer.keystorefile", n.cfg.Signer.KeystoreFile)
			}
		}
		n.WithField("root-public-key", derivation.FormatPublicKey(n.root.PublicKey())).Info("Loaded root key")
		n.role = actor.NewSigner(actorCfg, n.client, chain, n.store, n.root, actor.OutcomeConfig{
			ReceiptTimeout:      n.cfg.Chain.ReceiptTimeout,
			ReceiptPollInterval: n.cfg.Chain.ReceiptPollInterval,
		})
		return nil
	}
}

func (n *Node) rootPublicKey() (*ecdsa.PublicKey, error) {
	if n.cfg.Relayer.RootPublicKey == "" {
		return nil, nil
	}
	pub, err := derivation.ParsePublicKey(n.cfg.Relayer.RootPublicKey)
	if err != nil {
		return nil, bridge.NewAPIErrInvalidConfig(err, "relayer.rootpublickey", n.cfg.Relayer.RootPublicKey)
	}
	return pub, nil
}

func (n *Node) chain(o options) (bridge.ChainBackend, error) {
	if o.chain != nil {
		return o.chain, nil
	}
	return ethereum.NewChainBackend(n.cfg.Chain.URL, n.cfg.Chain.ConnTimeout, n.cfg.Ledger.RequestTimeout)
}

// Config returns the configuration of the node.
func (n *Node) Config() Config {
	return n.cfg
}

// Run handles the events of the ledger until ctx is done. It resumes from the
// saved checkpoint. On return, the queued events are handled or dropped and
// the health server is stopped.
func (n *Node) Run(ctx context.Context) error {
	start, err := actor.ResumeOffset(ctx, n.store, bridge.Offset(n.cfg.Ledger.StartOffset),
		n.cfg.Ledger.StartFromLedgerEnd, n.client.LedgerEnd)
	if err != nil {
		return err
	}
	runner, err := actor.NewRunner(n.role, n.templates, n.store, start, actor.RunnerConfig{
		Workers:        n.cfg.Workers.Count,
		QueueSize:      n.cfg.Workers.QueueSize,
		DedupCacheSize: n.cfg.Workers.DedupCacheSize,
		RetryBaseDelay: n.cfg.Workers.RetryBaseDelay,
		RetryMaxDelay:  n.cfg.Workers.RetryMaxDelay,
	})
	if err != nil {
		return err
	}

	sc := stream.New(
		stream.NewWSDialer(n.cfg.Ledger.streamURL(), n.cfg.Ledger.Token, n.cfg.Ledger.RequestTimeout),
		n.client,
		stream.Config{
			PartyFilter:          actorParties(n.cfg.Ledger),
			ReconnectBaseDelay:   n.cfg.Ledger.ReconnectBaseDelay,
			ReconnectMaxDelay:    n.cfg.Ledger.ReconnectMaxDelay,
			MaxReconnectAttempts: n.cfg.Ledger.MaxReconnectAttempts,
			PollIdleTimeout:      n.cfg.Ledger.PollIdleTimeout,
			PollRetryDelay:       n.cfg.Ledger.PollRetryDelay,
		},
		start, runner.HandleBatch)
	sc.OnStateChange(func(s stream.State) { n.WithField("stream-state", s).Info("Stream state changed") })

	var hs *health.Server
	if n.cfg.Health.Address != "" {
		hs = health.NewServer()
		if err := hs.Listen(n.cfg.Health.Address); err != nil {
			return bridge.NewAPIErrInvalidConfig(err, "health.address", n.cfg.Health.Address)
		}
		sc.OnStateChange(hs.SetStreamState)
		go func() {
			if err := hs.Serve(); err != nil {
				n.Errorf("Health server returned with error: %v", err)
			}
		}()
	}

	runner.Start()
	sc.Start()
	n.WithField("offset", start).Info("Started handling events")

	<-ctx.Done()
	n.Info("Shutting down")
	if err := sc.Close(); err != nil {
		n.Errorf("Closing stream: %v", err)
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), n.cfg.Ledger.RequestTimeout)
	defer cancel()
	runner.Stop(stopCtx)
	if hs != nil {
		hs.Stop()
	}
	n.WithField("offset", runner.Checkpoint()).Info("Stopped handling events")
	return nil
}

func actorParties(cfg LedgerConfig) []string {
	return append([]string{cfg.Party}, cfg.ReadAs...)
}

// SubmitIntent creates the anchor of a new request. It is available on
// initiator nodes only.
func (n *Node) SubmitIntent(ctx context.Context, intent bridge.TransactionIntent, dctx bridge.DerivationContext) (
	bridge.RequestID, error) {
	if n.initiator == nil {
		return bridge.RequestID{}, bridge.NewAPIErrUnsupported("intent submission on role " + n.cfg.Role)
	}
	return n.initiator.SubmitIntent(ctx, intent, dctx)
}

// Status returns the lifecycle state of the request as last recorded by this
// node.
func (n *Node) Status(ctx context.Context, id bridge.RequestID) (bridge.LifecycleState, string, error) {
	state, detail, err := n.store.State(ctx, id)
	return state, detail, errors.WithMessage(err, "reading lifecycle state")
}

// Close closes the checkpoint store and zeroes the root key. Subsequent calls
// have no effect.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		if n.root != nil {
			n.root.Zero()
		}
		err = n.store.Close()
	})
	return errors.WithMessage(err, "closing store")
}
