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

	"github.com/spf13/cobra"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/derivation"
)

const (
	rootPublicKeyF = "rootpublickey"
	predecessorF   = "predecessor"
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Print the derived address for a derivation context",
	Long: `Print the address of the child key derived from the root public key for a
derivation context. This is the sender of the transactions signed for requests
with this context, it must be funded on the external chain.`,
	RunE: derive,
}

func init() {
	rootCmd.AddCommand(deriveCmd)
	fs := deriveCmd.Flags()
	fs.String(rootPublicKeyF, "", "Hex encoded root public key")
	fs.String(predecessorF, "", "Party that initiates the requests")
	fs.String(pathF, "", "Derivation path")
	fs.String(chainContextF, "", "Chain context of the derivation")
	fs.Uint32(keyVersionF, 1, "Key version")
	for _, f := range []string{rootPublicKeyF, predecessorF, chainContextF} {
		if err := deriveCmd.MarkFlagRequired(f); err != nil {
			panic(err)
		}
	}
}

func derive(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	rootPub, _ := fs.GetString(rootPublicKeyF)
	dctx := bridge.DerivationContext{}
	dctx.PredecessorID, _ = fs.GetString(predecessorF)
	dctx.Path, _ = fs.GetString(pathF)
	dctx.ChainContext, _ = fs.GetString(chainContextF)
	dctx.KeyVersion, _ = fs.GetUint32(keyVersionF)

	addr, err := deriveAddress(rootPub, dctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error deriving address: %v", err))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), addr)
	return nil
}

func deriveAddress(rootPub string, dctx bridge.DerivationContext) (string, error) {
	pub, err := derivation.ParsePublicKey(rootPub)
	if err != nil {
		return "", err
	}
	addr, err := derivation.ChildAddress(pub, dctx)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}
