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

package node

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/derivation"
	"github.com/hyperledger-labs/evm-bridge/log"
	"github.com/hyperledger-labs/evm-bridge/store"
)

// Roles a node can run as.
const (
	RoleInitiator = "initiator"
	RoleSigner    = "signer"
	RoleRelayer   = "relayer"
)

type (
	// Config defines the parameters required to configure a node.
	Config struct {
		Role      string // One of initiator, signer, relayer.
		LogLevel  string // Log level for the node and all derived loggers.
		LogFile   string // File to write logs. Empty string represents stdout.
		LogFormat string // text or json.

		Ledger  LedgerConfig
		Chain   ChainConfig
		Store   store.Config
		Signer  SignerConfig
		Relayer RelayerConfig
		Workers WorkersConfig
		Health  HealthConfig
	}

	// LedgerConfig defines the parameters for connecting to the ledger.
	LedgerConfig struct {
		URL            string   // Base URL of the JSON API.
		StreamURL      string   // Base URL of the event stream. Derived from URL when empty.
		Token          string   // Bearer token, optional.
		Party          string   // Party the node acts as.
		ReadAs         []string // Additional parties whose contracts are read.
		TemplateModule string   // Module of the bridge templates.
		RequestTimeout time.Duration

		ReconnectBaseDelay   time.Duration
		ReconnectMaxDelay    time.Duration
		MaxReconnectAttempts int
		PollIdleTimeout      time.Duration
		PollRetryDelay       time.Duration

		// Offset to start from when no checkpoint was saved yet.
		StartOffset int64
		// Start from the current end of the ledger when no checkpoint was saved
		// yet. Takes precedence over StartOffset.
		StartFromLedgerEnd bool
	}

	// ChainConfig defines the parameters for connecting to the external chain.
	ChainConfig struct {
		URL                 string
		ChainID             uint64
		ConnTimeout         time.Duration
		ReceiptTimeout      time.Duration // Max duration to wait for a broadcast tx to be mined.
		ReceiptPollInterval time.Duration
	}

	// SignerConfig defines the root key of the signer.
	SignerConfig struct {
		KeystoreFile string
		Password     string
	}

	// RelayerConfig defines the published root public key, used by the
	// relayer and optionally by the initiator.
	RelayerConfig struct {
		RootPublicKey string
	}

	// WorkersConfig defines the worker pool handling the events.
	WorkersConfig struct {
		Count          int
		QueueSize      int
		DedupCacheSize int
		RetryBaseDelay time.Duration
		RetryMaxDelay  time.Duration
	}

	// HealthConfig defines the grpc health server. It is disabled when the
	// address is empty.
	HealthConfig struct {
		Address string
	}
)

// SetDefaults sets the default values of the config keys on the viper
// instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "info")
	v.SetDefault("logformat", log.FormatText)
	v.SetDefault("ledger.templatemodule", "Bridge.Request")
	v.SetDefault("ledger.requesttimeout", 10*time.Second)
	v.SetDefault("ledger.reconnectbasedelay", 500*time.Millisecond)
	v.SetDefault("ledger.reconnectmaxdelay", 30*time.Second)
	v.SetDefault("ledger.maxreconnectattempts", 5)
	v.SetDefault("ledger.pollidletimeout", 10*time.Second)
	v.SetDefault("ledger.pollretrydelay", time.Second)
	v.SetDefault("chain.conntimeout", 10*time.Second)
	v.SetDefault("chain.receipttimeout", 5*time.Minute)
	v.SetDefault("chain.receiptpollinterval", 2*time.Second)
	v.SetDefault("store.type", store.TypeYAML)
	v.SetDefault("store.path", "checkpoint.yaml")
	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.queuesize", 64)
	v.SetDefault("workers.dedupcachesize", 4096)
	v.SetDefault("workers.retrybasedelay", 200*time.Millisecond)
	v.SetDefault("workers.retrymaxdelay", 10*time.Second)
}

// ParseConfig parses the node configuration from a file. Keys missing in the
// file take their default values.
func ParseConfig(configFile string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(filepath.Clean(configFile))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "reading from source")
	}
	return Unmarshal(v)
}

// Unmarshal copies the configuration from the viper instance.
func Unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg)
	return cfg, errors.Wrap(err, "unmarshalling")
}

// Validate checks the parameters required by the configured role. The
// returned error is an InvalidConfig API error naming the key.
func (cfg Config) Validate() error {
	switch cfg.Role {
	case RoleInitiator, RoleSigner, RoleRelayer:
	default:
		return invalidConfig("one of initiator, signer, relayer", "role", cfg.Role)
	}
	if cfg.LogFormat != "" && cfg.LogFormat != log.FormatText && cfg.LogFormat != log.FormatJSON {
		return invalidConfig("one of text, json", "logformat", cfg.LogFormat)
	}
	if _, err := url.ParseRequestURI(cfg.Ledger.URL); err != nil {
		return bridge.NewAPIErrInvalidConfig(err, "ledger.url", cfg.Ledger.URL)
	}
	if cfg.Ledger.Party == "" {
		return invalidConfig("required", "ledger.party", "")
	}
	if cfg.Ledger.TemplateModule == "" {
		return invalidConfig("required", "ledger.templatemodule", "")
	}
	if cfg.Ledger.RequestTimeout <= 0 {
		return invalidConfig("must be positive", "ledger.requesttimeout", cfg.Ledger.RequestTimeout.String())
	}
	if cfg.Ledger.StartOffset < 0 {
		return invalidConfig("must not be negative", "ledger.startoffset", "")
	}

	if cfg.Role == RoleSigner || cfg.Role == RoleRelayer {
		if cfg.Chain.URL == "" {
			return invalidConfig("required", "chain.url", "")
		}
		if cfg.Chain.ReceiptTimeout <= 0 {
			return invalidConfig("must be positive", "chain.receipttimeout", cfg.Chain.ReceiptTimeout.String())
		}
		if cfg.Chain.ReceiptPollInterval <= 0 {
			return invalidConfig("must be positive", "chain.receiptpollinterval",
				cfg.Chain.ReceiptPollInterval.String())
		}
	}
	if cfg.Role == RoleSigner && cfg.Signer.KeystoreFile == "" {
		return invalidConfig("required", "signer.keystorefile", "")
	}
	if cfg.Role == RoleRelayer && cfg.Relayer.RootPublicKey == "" {
		return invalidConfig("required", "relayer.rootpublickey", "")
	}
	if cfg.Relayer.RootPublicKey != "" {
		if _, err := derivation.ParsePublicKey(cfg.Relayer.RootPublicKey); err != nil {
			return bridge.NewAPIErrInvalidConfig(err, "relayer.rootpublickey", cfg.Relayer.RootPublicKey)
		}
	}
	return nil
}

// streamURL returns the configured stream URL or the URL of the JSON API with
// the websocket scheme.
func (cfg LedgerConfig) streamURL() string {
	if cfg.StreamURL != "" {
		return cfg.StreamURL
	}
	return "ws" + strings.TrimPrefix(cfg.URL, "http")
}

// LogConfig returns the logger configuration.
func (cfg Config) LogConfig() log.Config {
	return log.Config{Level: cfg.LogLevel, File: cfg.LogFile, Format: cfg.LogFormat}
}

func invalidConfig(requirement, name, value string) error {
	return bridge.NewAPIErrInvalidConfig(errors.New(requirement), name, value)
}
