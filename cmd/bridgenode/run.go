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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hyperledger-labs/evm-bridge/log"
	"github.com/hyperledger-labs/evm-bridge/node"
)

const (
	// flag names for run command. Each is named after the config key it overrides.
	roleF                 = "role"
	loglevelF             = "loglevel"
	logfileF              = "logfile"
	logformatF            = "logformat"
	ledgerURLF            = "ledger.url"
	ledgerStreamURLF      = "ledger.streamurl"
	ledgerTokenF          = "ledger.token"
	ledgerPartyF          = "ledger.party"
	ledgerReadAsF         = "ledger.readas"
	ledgerTemplateModuleF = "ledger.templatemodule"
	ledgerRequestTimeoutF = "ledger.requesttimeout"
	ledgerStartOffsetF    = "ledger.startoffset"
	ledgerFromEndF        = "ledger.startfromledgerend"
	chainURLF             = "chain.url"
	chainIDF              = "chain.chainid"
	chainReceiptTimeoutF  = "chain.receipttimeout"
	storeTypeF            = "store.type"
	storePathF            = "store.path"
	signerKeystoreFileF   = "signer.keystorefile"
	signerPasswordF       = "signer.password"
	relayerRootPubF       = "relayer.rootpublickey"
	workersCountF         = "workers.count"
	healthAddressF        = "health.address"
	configfileF           = "configfile" // can only be specified in flag, not via config file.

	// default values for flags in run command.
	defaultConfigFile = "node.yaml"
)

var (
	// Viper instance for parsing node configuration file. Each flag in the nodeCfgFlags list (that are defined
	// on the run command) will also be attached to the viper instance, so that the values from flags (when
	// specified), override the values defined in the configuration files.
	nodeCfgViper *viper.Viper

	// Flags corresponding to node configuration parameters. Each of this flag can individually override the
	// value in config file. When all of these flags are specified, no config file is read.
	nodeCfgFlags = []string{
		roleF,
		loglevelF,
		logfileF,
		logformatF,
		ledgerURLF,
		ledgerStreamURLF,
		ledgerTokenF,
		ledgerPartyF,
		ledgerReadAsF,
		ledgerTemplateModuleF,
		ledgerRequestTimeoutF,
		ledgerStartOffsetF,
		ledgerFromEndF,
		chainURLF,
		chainIDF,
		chainReceiptTimeoutF,
		storeTypeF,
		storePathF,
		signerKeystoreFileF,
		signerPasswordF,
		relayerRootPubF,
		workersCountF,
		healthAddressF,
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
	defineFlags(runCmd.Flags())
	nodeCfgViper = newNodeCfgViper(runCmd.Flags())
}

// newNodeCfgViper returns a viper instance with the defaults of the node
// config, bound to the config flags in fs.
func newNodeCfgViper(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	node.SetDefaults(v)

	// Bind the configuration flags to viper instance,
	// values in flags (when specified), takes precedence over those in config file.
	for i := range nodeCfgFlags {
		if err := v.BindPFlag(nodeCfgFlags[i], fs.Lookup(nodeCfgFlags[i])); err != nil {
			panic(err)
		}
	}
	return v
}

func defineFlags(fs *pflag.FlagSet) {
	fs.String(configfileF, defaultConfigFile, "node config file")

	// All these flags should have zero values for defaults, as their only purpose is allow the user to
	// explicitly specify the configuration.
	fs.String(roleF, "", "Role of the node. Supported roles: initiator, signer, relayer")
	fs.String(loglevelF, "", "Log level. Supported levels: debug, info, error")
	fs.String(logfileF, "", "Log file path. Use empty string for stdout")
	fs.String(logformatF, "", "Log format. Supported formats: text, json")
	fs.String(ledgerURLF, "", "Base URL of the ledger JSON API")
	fs.String(ledgerStreamURLF, "", "Base URL of the ledger event stream, derived from the API URL when empty")
	fs.String(ledgerTokenF, "", "Bearer token for the ledger")
	fs.String(ledgerPartyF, "", "Party the node acts as")
	fs.StringSlice(ledgerReadAsF, nil, "Additional parties whose contracts are read")
	fs.String(ledgerTemplateModuleF, "", "Module of the bridge templates")
	fs.Duration(ledgerRequestTimeoutF, time.Duration(0), "Timeout for requests to the ledger")
	fs.Int64(ledgerStartOffsetF, 0, "Offset to start from when no checkpoint was saved yet")
	fs.Bool(ledgerFromEndF, false, "Start from the ledger end when no checkpoint was saved yet")
	fs.String(chainURLF, "", "URL of the ethereum node")
	fs.Uint64(chainIDF, 0, "Chain id of the ethereum network")
	fs.Duration(chainReceiptTimeoutF, time.Duration(0), "Max duration to wait for a broadcast tx to be mined")
	fs.String(storeTypeF, "", "Type of the checkpoint store. Supported types: yaml, sqlite")
	fs.String(storePathF, "", "Path of the checkpoint store")
	fs.String(signerKeystoreFileF, "", "Keystore file of the root key (signer only)")
	fs.String(signerPasswordF, "", "Password of the keystore file (signer only)")
	fs.String(relayerRootPubF, "", "Hex encoded root public key")
	fs.Int(workersCountF, 0, "Number of events handled concurrently")
	fs.String(healthAddressF, "", "Address of the grpc health server, disabled when empty")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bridge node",
	Long: `Start the bridge node in the configured role. The node handles the events
of the ledger until it is interrupted.

Configuration can be specified in the config file or via flags. Values in the
flags override that in the config file.

If no flags are specified, default path for config file is used. However, if
all the config flags are specified, config file is ignored.`,
	RunE: run,
}

func run(cmd *cobra.Command, _ []string) error {
	nodeCfg, err := parseNodeConfig(cmd.Flags(), nodeCfgViper)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error parsing node config: %v", err))
		return err
	}
	if err = log.InitLogger(nodeCfg.LogConfig()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error initializing logger: %v", err))
		return err
	}

	n, err := node.New(nodeCfg)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error initializing node: %v", err))
		return err
	}
	defer n.Close() // nolint: errcheck

	fmt.Fprintf(cmd.OutOrStdout(), "Running bridge node with the below config:\n%s\n\n", prettify(redacted(nodeCfg)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := n.Run(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Node returned with error: %v", err))
		return err
	}
	return nil
}

// parseNodeConfig reads the config file, unless all config flags are
// specified, and copies the configuration with the flag values applied.
func parseNodeConfig(fs *pflag.FlagSet, v *viper.Viper) (node.Config, error) {
	// Ignore config file, if all config flags are specified.
	if !areAllFlagsSpecified(fs, nodeCfgFlags...) {
		nodeCfgFile, err := fs.GetString(configfileF)
		if err != nil {
			panic("unknown flag configfile\n")
		}

		// Read config from file.
		v.SetConfigFile(filepath.Clean(nodeCfgFile))
		v.SetConfigType("yaml")
		if err = v.ReadInConfig(); err != nil {
			return node.Config{}, errors.Wrap(err, "reading node config file")
		}
	}
	return node.Unmarshal(v)
}
