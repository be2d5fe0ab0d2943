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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hyperledger-labs/evm-bridge/derivation"
	"github.com/hyperledger-labs/evm-bridge/node"
	"github.com/hyperledger-labs/evm-bridge/store"
)

const (
	rootKeyFile      = "root-key.json"
	generatedChainID = 1337

	dirF      = "dir"
	passwordF = "password"
	ledgerF   = "ledger"
	chainF    = "chain"
	weakKeyF  = "weak-key"
)

// generated parties, one per role.
var generatedParties = map[string]string{
	node.RoleInitiator: "Requester::1",
	node.RoleSigner:    "Signer::1",
	node.RoleRelayer:   "Relayer::1",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate demo artifacts",
	Long: `
Generate demo artifacts for running the three roles of the bridge.

- A root key in an encrypted keystore file (root-key.json).
- A config file for each role (initiator.yaml, signer.yaml, relayer.yaml),
  with the root public key set for the initiator and the relayer.

Use "bridgenode derive" to print the address that has to be funded for a
derivation context.
`,
	RunE: generate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	fs := generateCmd.Flags()
	fs.String(dirF, ".", "directory for the artifacts")
	fs.String(passwordF, "", "password of the keystore file")
	fs.String(ledgerF, "http://127.0.0.1:7575", "base url of the ledger JSON API")
	fs.String(chainF, "ws://127.0.0.1:8545", "url of the ethereum node")
	fs.Bool(weakKeyF, false, "use weak encryption parameters for the keystore, for tests only")
}

func generate(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	dir, _ := fs.GetString(dirF)
	password, _ := fs.GetString(passwordF)
	ledgerURL, _ := fs.GetString(ledgerF)
	chainURL, _ := fs.GetString(chainF)
	weak, _ := fs.GetBool(weakKeyF)

	params := derivation.ScryptParams{N: derivation.StandardScryptN, P: derivation.StandardScryptP}
	if weak {
		params = derivation.ScryptParams{N: derivation.WeakScryptN, P: derivation.WeakScryptP}
	}
	rootPub, err := generateArtifacts(dir, password, params, ledgerURL, chainURL)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error generating artifacts: %v", err))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), greenf("Generated root key with public key %s and config files in %s", rootPub, dir))
	return nil
}

// generateArtifacts writes a new root key and the config files for all roles
// to dir. It returns the root public key.
func generateArtifacts(dir, password string, params derivation.ScryptParams, ledgerURL, chainURL string) (
	string, error) {
	files := []string{rootKeyFile}
	for _, role := range []string{node.RoleInitiator, node.RoleSigner, node.RoleRelayer} {
		files = append(files, role+".yaml")
	}
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f)); !os.IsNotExist(err) {
			return "", errors.New("file exists - " + filepath.Join(dir, f))
		}
	}

	root, err := derivation.GenerateRootKey()
	if err != nil {
		return "", err
	}
	defer root.Zero()
	keystoreFile := filepath.Join(dir, rootKeyFile)
	if err = derivation.StoreRootKey(root, keystoreFile, password, params); err != nil {
		return "", err
	}
	rootPub := derivation.FormatPublicKey(root.PublicKey())

	for role, party := range generatedParties {
		cfg, err := defaultConfig()
		if err != nil {
			return "", err
		}
		cfg.Role = role
		cfg.Ledger.URL = ledgerURL
		cfg.Ledger.Party = party
		cfg.Chain.ChainID = generatedChainID
		cfg.Store = store.Config{Type: store.TypeSQLite, Path: filepath.Join(dir, role+".db")}
		switch role {
		case node.RoleInitiator:
			cfg.Store = store.Config{Type: store.TypeYAML, Path: filepath.Join(dir, role+"-checkpoint.yaml")}
			cfg.Relayer.RootPublicKey = rootPub
		case node.RoleSigner:
			cfg.Chain.URL = chainURL
			cfg.Signer = node.SignerConfig{KeystoreFile: keystoreFile, Password: password}
		case node.RoleRelayer:
			cfg.Chain.URL = chainURL
			cfg.Relayer.RootPublicKey = rootPub
		}
		if err = writeConfigFile(filepath.Join(dir, role+".yaml"), cfg); err != nil {
			return "", err
		}
	}
	return rootPub, nil
}

func defaultConfig() (node.Config, error) {
	v := viper.New()
	node.SetDefaults(v)
	return node.Unmarshal(v)
}

func writeConfigFile(path string, cfg node.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o600), "writing config file")
}
