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
	"reflect"
	"time"

	"github.com/kylelemons/godebug/pretty"
	"github.com/spf13/pflag"

	"github.com/hyperledger-labs/evm-bridge/node"
)

var prettyFormatterOverrides = map[reflect.Type]interface{}{
	reflect.TypeOf(time.Duration(0)): fmt.Sprint,
}

var prettyFormatterConfig = &pretty.Config{
	Formatter: prettyFormatterOverrides,
}

// prettify returns a prettified string version of the input data.
// Formatting of time strings is preserved.
func prettify(vals ...interface{}) string {
	return prettyFormatterConfig.Sprint(vals...)
}

// redacted returns a copy of the config with the secrets masked.
func redacted(cfg node.Config) node.Config {
	if cfg.Signer.Password != "" {
		cfg.Signer.Password = "******"
	}
	if cfg.Ledger.Token != "" {
		cfg.Ledger.Token = "******"
	}
	return cfg
}

// areAllFlagsSpecified returns true if all of the flags were specified
// invoking the command to which the passed flagset was attached to.
func areAllFlagsSpecified(fs *pflag.FlagSet, flags ...string) bool {
	for i := range flags {
		if !fs.Changed(flags[i]) {
			return false
		}
	}
	return true
}
