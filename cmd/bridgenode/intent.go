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
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/currency"
	"github.com/hyperledger-labs/evm-bridge/log"
	"github.com/hyperledger-labs/evm-bridge/node"
)

const (
	toF             = "to"
	functionF       = "function"
	argF            = "arg"
	valueF          = "value"
	nonceF          = "nonce"
	gasLimitF       = "gaslimit"
	maxFeeF         = "maxfee"
	maxPriorityFeeF = "maxpriorityfee"
	intentChainIDF  = "chainid"
	pathF           = "path"
	chainContextF   = "chaincontext"
	keyVersionF     = "keyversion"
	waitF           = "wait"
)

// intentParams are the parameters of the intent command as given by the user.
type intentParams struct {
	To             string
	Function       string
	Args           []string
	Value          string // in ETH
	Nonce          uint64
	GasLimit       uint64
	MaxFee         string // in GWEI
	MaxPriorityFee string // in GWEI
	ChainID        uint64
}

var intentCmd = &cobra.Command{
	Use:   "intent",
	Short: "Submit a transaction intent",
	Long: `Submit a transaction intent as initiator. The anchor of the request is
created on the ledger and the request id is printed.

Each argument is either an address (0x followed by 40 hex digits), a word
(0x followed by 64 hex digits) or an unsigned decimal number. The value is
specified in ETH and the fees in GWEI.

With --wait, the node handles the events of the ledger until the outcome of the
request is attested or the duration elapses.`,
	RunE: intent,
}

func init() {
	rootCmd.AddCommand(intentCmd)
	fs := intentCmd.Flags()
	fs.String(configfileF, "initiator.yaml", "node config file of the initiator")
	fs.String(toF, "", "Destination address")
	fs.String(functionF, "", "Function signature, e.g. transfer(address,uint256)")
	fs.StringArray(argF, nil, "Function argument, can be repeated")
	fs.String(valueF, "0", "Value in ETH")
	fs.Uint64(nonceF, 0, "Nonce of the derived account")
	fs.Uint64(gasLimitF, 21000, "Gas limit")
	fs.String(maxFeeF, "", "Max fee per gas in GWEI")
	fs.String(maxPriorityFeeF, "", "Max priority fee per gas in GWEI")
	fs.Uint64(intentChainIDF, 0, "Chain id, defaults to chain.chainid of the config")
	fs.String(pathF, "", "Derivation path")
	fs.String(chainContextF, "", "Chain context of the derivation, defaults to chain:<chainid>")
	fs.Uint32(keyVersionF, 1, "Key version")
	fs.Duration(waitF, 0, "Duration to wait for the outcome")
	for _, f := range []string{toF, functionF, maxFeeF, maxPriorityFeeF} {
		if err := intentCmd.MarkFlagRequired(f); err != nil {
			panic(err)
		}
	}
}

func intent(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	configFile, _ := fs.GetString(configfileF)
	cfg, err := node.ParseConfig(configFile)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error parsing node config: %v", err))
		return err
	}

	p := intentParams{}
	p.To, _ = fs.GetString(toF)
	p.Function, _ = fs.GetString(functionF)
	p.Args, _ = fs.GetStringArray(argF)
	p.Value, _ = fs.GetString(valueF)
	p.Nonce, _ = fs.GetUint64(nonceF)
	p.GasLimit, _ = fs.GetUint64(gasLimitF)
	p.MaxFee, _ = fs.GetString(maxFeeF)
	p.MaxPriorityFee, _ = fs.GetString(maxPriorityFeeF)
	p.ChainID, _ = fs.GetUint64(intentChainIDF)
	if p.ChainID == 0 {
		p.ChainID = cfg.Chain.ChainID
	}
	txIntent, err := buildIntent(p)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error in intent: %v", err))
		return err
	}

	dctx := bridge.DerivationContext{}
	dctx.Path, _ = fs.GetString(pathF)
	dctx.ChainContext, _ = fs.GetString(chainContextF)
	dctx.KeyVersion, _ = fs.GetUint32(keyVersionF)
	if dctx.ChainContext == "" {
		dctx.ChainContext = fmt.Sprintf("chain:%d", p.ChainID)
	}
	wait, _ := fs.GetDuration(waitF)

	if err = log.InitLogger(cfg.LogConfig()); err != nil {
		return err
	}
	cfg.Role = node.RoleInitiator
	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error initializing node: %v", err))
		return err
	}
	defer n.Close() // nolint: errcheck

	id, err := n.SubmitIntent(context.Background(), txIntent, dctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), redf("Error submitting intent: %v", err))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), greenf("Submitted request %s", id))
	if wait <= 0 {
		return nil
	}
	return waitForOutcome(cmd, n, id, wait)
}

// waitForOutcome runs the node until the outcome of the request is known or
// the duration elapses.
func waitForOutcome(cmd *cobra.Command, n *node.Node, id bridge.RequestID, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			fmt.Fprintln(cmd.ErrOrStderr(), redf("No outcome for request %s within %s", id, wait))
			return errors.New("waiting for outcome timed out")
		case err := <-done:
			return err
		case <-ticker.C:
			state, detail, err := n.Status(ctx, id)
			if err != nil || !state.Supersedes(bridge.StateExternalSubmitted) {
				continue
			}
			cancel()
			<-done
			fmt.Fprintln(cmd.OutOrStdout(), greenf("Request %s: %s (%s)", id, state, detail))
			return nil
		}
	}
}

// buildIntent returns the transaction intent for the parameters. The value is
// parsed in ETH and the fees in GWEI.
func buildIntent(p intentParams) (bridge.TransactionIntent, error) {
	to, err := parseAddress(p.To)
	if err != nil {
		return bridge.TransactionIntent{}, errors.WithMessage(err, toF)
	}
	args := make([][]byte, len(p.Args))
	for i := range p.Args {
		if args[i], err = parseArg(p.Args[i]); err != nil {
			return bridge.TransactionIntent{}, errors.WithMessagef(err, "%s %d", argF, i)
		}
	}
	value, err := parseAmount(currency.ETH, p.Value)
	if err != nil {
		return bridge.TransactionIntent{}, errors.WithMessage(err, valueF)
	}
	maxFee, err := parseAmount(currency.GWEI, p.MaxFee)
	if err != nil {
		return bridge.TransactionIntent{}, errors.WithMessage(err, maxFeeF)
	}
	maxPriorityFee, err := parseAmount(currency.GWEI, p.MaxPriorityFee)
	if err != nil {
		return bridge.TransactionIntent{}, errors.WithMessage(err, maxPriorityFeeF)
	}
	if maxPriorityFee.Cmp(maxFee) > 0 {
		return bridge.TransactionIntent{}, errors.New("max priority fee exceeds max fee")
	}
	if p.ChainID == 0 {
		return bridge.TransactionIntent{}, errors.New("chain id must not be zero")
	}

	txIntent := bridge.TransactionIntent{
		To:                   to.Bytes(),
		FunctionSignature:    p.Function,
		Args:                 args,
		Value:                bridge.Word(value),
		Nonce:                bridge.Uint64Word(p.Nonce),
		GasLimit:             bridge.Uint64Word(p.GasLimit),
		MaxFeePerGas:         bridge.Word(maxFee),
		MaxPriorityFeePerGas: bridge.Word(maxPriorityFee),
		ChainID:              bridge.Uint64Word(p.ChainID),
	}
	return txIntent, txIntent.Validate()
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseArg returns the ABI word for an address, a hex word or an unsigned
// decimal number.
func parseArg(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 || v.BitLen() > 8*bridge.WordLen {
			return nil, errors.Errorf("invalid unsigned number %q", s)
		}
		return bridge.Word(v), nil
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %q", s)
	}
	switch len(b) {
	case bridge.AddressLen:
		return bridge.AddressWord(common.BytesToAddress(b)), nil
	case bridge.WordLen:
		return b, nil
	default:
		return nil, errors.Errorf("hex argument must be %d or %d bytes, got %d", bridge.AddressLen, bridge.WordLen, len(b))
	}
}

func parseAmount(symbol, s string) (*big.Int, error) {
	v, err := currency.NewParser(symbol).Parse(s)
	if err != nil {
		return nil, err
	}
	if v.BitLen() > 8*bridge.WordLen {
		return nil, errors.New("amount does not fit into a word")
	}
	return v, nil
}
