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

package actor

import (
	"fmt"

	"github.com/hyperledger-labs/evm-bridge/ledger"
)

// Template identifies the kind of a contract on the ledger that takes part in
// the lifecycle of a request.
type Template int

// Enumeration of templates, in the order they are created during the
// lifecycle.
const (
	TemplateUnknown Template = iota
	PendingRequest
	SignatureEvidence
	OutcomeEvidence
	ClaimedRequest

	numTemplates
)

var templateEntities = [numTemplates]string{
	"",
	"PendingRequest",
	"SignatureEvidence",
	"OutcomeEvidence",
	"ClaimedRequest",
}

// AllTemplates returns all known templates. Every dispatch table of a role
// must contain an entry for each of them.
func AllTemplates() []Template {
	all := make([]Template, 0, numTemplates-1)
	for t := PendingRequest; t < numTemplates; t++ {
		all = append(all, t)
	}
	return all
}

// String implements the stringer interface for Template.
func (t Template) String() string {
	if t <= TemplateUnknown || t >= numTemplates {
		return fmt.Sprintf("Template(%d)", int(t))
	}
	return templateEntities[t]
}

// Templates maps templates to the template ids of a ledger module and back.
type Templates struct {
	Module string
}

// ID returns the template id of t in the module.
func (ts Templates) ID(t Template) string {
	return ledger.TemplateID(ts.Module, t.String())
}

// Parse returns the template for a template id. It returns false for ids of
// other modules and unknown entities.
func (ts Templates) Parse(templateID string) (Template, bool) {
	module, entity, ok := ledger.SplitTemplateID(templateID)
	if !ok || module != ts.Module {
		return TemplateUnknown, false
	}
	for t := PendingRequest; t < numTemplates; t++ {
		if templateEntities[t] == entity {
			return t, true
		}
	}
	return TemplateUnknown, false
}
