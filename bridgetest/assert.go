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

package bridgetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/evm-bridge"
)

// AssertAPIError tests if the passed error contains expected category, code
// and phrases in the message.
func AssertAPIError(t *testing.T, e bridge.APIError, categ bridge.ErrorCategory, code bridge.ErrorCode,
	msgs ...string) {
	t.Helper()

	require.Error(t, e)
	assert.Equal(t, categ, e.Category())
	assert.Equal(t, code, e.Code())
	for _, msg := range msgs {
		assert.Contains(t, e.Message(), msg)
	}
}

// RequireAPIError tests if the chain of err contains an API Error and
// returns it.
func RequireAPIError(t *testing.T, err error) bridge.APIError {
	t.Helper()

	require.Error(t, err)
	apiErr, ok := bridge.AsAPIError(err)
	require.Truef(t, ok, "error %v is not an API error", err)
	return apiErr
}

// AssertErrInfoMissingField tests if additional info field is of
// correct type and has expected values.
func AssertErrInfoMissingField(t *testing.T, info interface{}, template, field string) {
	t.Helper()

	addInfo, ok := info.(bridge.ErrInfoMissingField)
	require.True(t, ok)
	assert.Equal(t, template, addInfo.Template)
	assert.Equal(t, field, addInfo.Field)
}

// AssertErrInfoInvalidField tests if additional info field is of
// correct type and has expected values.
func AssertErrInfoInvalidField(t *testing.T, info interface{}, name string) {
	t.Helper()

	addInfo, ok := info.(bridge.ErrInfoInvalidField)
	require.True(t, ok)
	assert.Equal(t, name, addInfo.Name)
}

// AssertErrInfoVerificationFailed tests if additional info field is of
// correct type and has expected values.
func AssertErrInfoVerificationFailed(t *testing.T, info interface{}, requestID, subject string) {
	t.Helper()

	addInfo, ok := info.(bridge.ErrInfoVerificationFailed)
	require.True(t, ok)
	assert.Equal(t, requestID, addInfo.RequestID)
	assert.Equal(t, subject, addInfo.Subject)
}

// AssertErrInfoInvalidConfig tests if additional info field is of
// correct type and has expected values.
func AssertErrInfoInvalidConfig(t *testing.T, info interface{}, name, value string) {
	t.Helper()

	addInfo, ok := info.(bridge.ErrInfoInvalidConfig)
	require.True(t, ok)
	assert.Equal(t, name, addInfo.Name)
	assert.Equal(t, value, addInfo.Value)
}
