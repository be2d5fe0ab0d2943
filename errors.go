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

package bridge

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// APIError represents the errors returned by the components of the bridge.
//
// Along with the error message, this error type assigns to each error
// an error category that describes how the error should be handled,
// an error code that identifies specific types of error and
// additional info that contains data related to the error.
type APIError interface {
	Category() ErrorCategory
	Code() ErrorCode
	Message() string
	AddInfo() interface{}
	Error() string
}

// ErrorCategory represents the category of the error, which describes how the
// error should be handled by the event processing loop.
type ErrorCategory int

const (
	// TransientError is caused by failures in the transport to the ledger or
	// the external chain.
	//
	// The operation is retried with backoff, it is never treated as fatal.
	TransientError ErrorCategory = iota

	// PayloadError is caused by malformed input: a missing or wrongly typed
	// field in an event payload, an invalid argument or invalid configuration.
	//
	// The event is logged and skipped. It is not retried, because re-delivery
	// of the same event would fail identically.
	PayloadError

	// VerificationError is caused when a signature does not verify against
	// the expected key or when a stored identifier does not match its
	// recomputed value.
	//
	// Further processing of the affected request is halted.
	VerificationError

	// InternalError is caused due to unintended behavior in the bridge.
	//
	// To resolve this, user should manually inspect the error message and
	// handle it.
	InternalError
)

// String implements the stringer interface for ErrorCategory.
func (c ErrorCategory) String() string {
	return [...]string{
		"Transient",
		"Payload",
		"Verification",
		"Internal",
	}[c]
}

// ErrorCode is a numeric code assigned to identify the specific type of error.
// The type of the additional info is fixed for each error code.
type ErrorCode int

// Error code definitions.
const (
	ErrTransport          ErrorCode = 101
	ErrChainNotReachable  ErrorCode = 102
	ErrTxTimedOut         ErrorCode = 103
	ErrMissingField       ErrorCode = 201
	ErrInvalidField       ErrorCode = 202
	ErrInvalidArgument    ErrorCode = 203
	ErrUnsupported        ErrorCode = 204
	ErrInvalidConfig      ErrorCode = 205
	ErrVerificationFailed ErrorCode = 301
	ErrUnknownInternal    ErrorCode = 401
)

type (
	// ErrInfoTransport represents the fields in the additional info for
	// ErrTransport.
	ErrInfoTransport struct {
		Endpoint string
	}

	// ErrInfoChainNotReachable represents the fields in the additional info
	// for ErrChainNotReachable.
	ErrInfoChainNotReachable struct {
		ChainURL string
	}

	// ErrInfoTxTimedOut represents the fields in the additional info
	// for ErrTxTimedOut.
	ErrInfoTxTimedOut struct {
		TxHash    string
		TxTimeout string
	}

	// ErrInfoMissingField represents the fields in the additional info for
	// ErrMissingField.
	ErrInfoMissingField struct {
		Template string
		Field    string
	}

	// ErrInfoInvalidField represents the fields in the additional info for
	// ErrInvalidField.
	ErrInfoInvalidField struct {
		Name        string
		Value       string
		Requirement string
	}

	// ErrInfoInvalidArgument represents the fields in the additional info for
	// ErrInvalidArgument.
	ErrInfoInvalidArgument struct {
		Name  string
		Value string
	}

	// ErrInfoUnsupported represents the fields in the additional info for
	// ErrUnsupported.
	ErrInfoUnsupported struct {
		Feature string
	}

	// ErrInfoInvalidConfig represents the fields in the additional info for
	// ErrInvalidConfig.
	ErrInfoInvalidConfig struct {
		Name  string
		Value string
	}

	// ErrInfoVerificationFailed represents the fields in the additional info
	// for ErrVerificationFailed.
	ErrInfoVerificationFailed struct {
		RequestID string
		Subject   string
	}
)

// apiError implements APIError.
//
// It implements Cause() and Unwrap() methods that return the underlying
// error, which can further be unwrapped, inspected.
//
// It also implements a custom Formatter, so that the stack trace of
// underlying error is printed when using "%+v" verb.
type apiError struct {
	category ErrorCategory
	code     ErrorCode
	err      error
	addInfo  interface{}
}

// Category returns the error category for this API Error.
func (e apiError) Category() ErrorCategory { return e.category }

// Code returns the error code for this API Error.
func (e apiError) Code() ErrorCode { return e.code }

// Message returns the error message for this API Error.
func (e apiError) Message() string { return e.err.Error() }

// AddInfo returns the additional info for this API Error.
func (e apiError) AddInfo() interface{} {
	return e.addInfo
}

// Error implement the error interface for API error.
func (e apiError) Error() string {
	return fmt.Sprintf("%s %d:%v", e.Category(), e.Code(), e.Message())
}

func (e apiError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s %d:%+v", e.Category(), e.Code(), e.err)
			return
		}
		fallthrough
	case 's':
		//nolint: errcheck,gosec	// Error of ioString need not be checked.
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

func (e apiError) Cause() error { return e.err }

func (e apiError) Unwrap() error { return e.err }

// NewAPIErr returns an APIErr with given parameters.
//
// For most use cases, call the error code specific constructor functions.
func NewAPIErr(category ErrorCategory, code ErrorCode, err error, addInfo interface{}) APIError {
	return apiError{
		category: category,
		code:     code,
		err:      err,
		addInfo:  addInfo,
	}
}

// NewAPIErrTransport returns an ErrTransport API Error for a failure in
// communicating with the given endpoint.
func NewAPIErrTransport(err error, endpoint string) APIError {
	message := fmt.Sprintf("transport failure at %s", endpoint)
	return NewAPIErr(
		TransientError,
		ErrTransport,
		errors.WithMessage(err, message),
		ErrInfoTransport{
			Endpoint: endpoint,
		},
	)
}

// NewAPIErrChainNotReachable returns an ErrChainNotReachable API Error
// with the given error message.
func NewAPIErrChainNotReachable(err error, chainURL string) APIError {
	message := fmt.Sprintf("chain not reachable at URL %s", chainURL)
	return NewAPIErr(
		TransientError,
		ErrChainNotReachable,
		errors.WithMessage(err, message),
		ErrInfoChainNotReachable{
			ChainURL: chainURL,
		},
	)
}

// NewAPIErrTxTimedOut returns an ErrTxTimedOut API Error for a transaction
// whose receipt was not available within the given timeout.
func NewAPIErrTxTimedOut(err error, txHash, txTimeout string) APIError {
	message := fmt.Sprintf("timed out waiting for tx %s to be mined in %s", txHash, txTimeout)
	return NewAPIErr(
		TransientError,
		ErrTxTimedOut,
		errors.WithMessage(err, message),
		ErrInfoTxTimedOut{
			TxHash:    txHash,
			TxTimeout: txTimeout,
		},
	)
}

// NewAPIErrMissingField returns an ErrMissingField API Error for a required
// field absent in the payload of an event of the given template.
func NewAPIErrMissingField(template, field string) APIError {
	message := fmt.Sprintf("required field %s missing in %s payload", field, template)
	return NewAPIErr(
		PayloadError,
		ErrMissingField,
		errors.New(message),
		ErrInfoMissingField{
			Template: template,
			Field:    field,
		},
	)
}

// NewAPIErrInvalidField returns an ErrInvalidField API Error with the given
// field name, value and requirement for the field.
func NewAPIErrInvalidField(name, value, requirement string) APIError {
	message := fmt.Sprintf("invalid value for %s: %s (%s)", name, value, requirement)
	return NewAPIErr(
		PayloadError,
		ErrInvalidField,
		errors.New(message),
		ErrInfoInvalidField{
			Name:        name,
			Value:       value,
			Requirement: requirement,
		},
	)
}

// ArgumentName type is used enumerate valid argument names for use
// InvalidArgument error.
//
// The enumeration of valid constants should be defined in the package using
// the error constructors.
type ArgumentName string

// NewAPIErrInvalidArgument returns an ErrInvalidArgument API Error with the given
// argument name and value.
func NewAPIErrInvalidArgument(err error, name ArgumentName, value string) APIError {
	message := fmt.Sprintf("invalid value for %s: %s", name, value)
	return NewAPIErr(
		PayloadError,
		ErrInvalidArgument,
		errors.WithMessage(err, message),
		ErrInfoInvalidArgument{
			Name:  string(name),
			Value: value,
		},
	)
}

// NewAPIErrUnsupported returns an ErrUnsupported API Error for an input that
// uses a feature not supported by the bridge.
func NewAPIErrUnsupported(feature string) APIError {
	message := fmt.Sprintf("%s is not supported", feature)
	return NewAPIErr(
		PayloadError,
		ErrUnsupported,
		errors.New(message),
		ErrInfoUnsupported{
			Feature: feature,
		},
	)
}

// NewAPIErrInvalidConfig returns an ErrInvalidConfig, API Error with the given
// config name and value.
func NewAPIErrInvalidConfig(err error, name, value string) APIError {
	message := fmt.Sprintf("invalid value for %s: %s", name, value)
	return NewAPIErr(
		PayloadError,
		ErrInvalidConfig,
		errors.WithMessage(err, message),
		ErrInfoInvalidConfig{
			Name:  name,
			Value: value,
		},
	)
}

// NewAPIErrVerificationFailed returns an ErrVerificationFailed API Error for
// the given request. Subject describes what failed to verify.
func NewAPIErrVerificationFailed(err error, requestID, subject string) APIError {
	message := fmt.Sprintf("verification of %s failed for request %s", subject, requestID)
	return NewAPIErr(
		VerificationError,
		ErrVerificationFailed,
		errors.WithMessage(err, message),
		ErrInfoVerificationFailed{
			RequestID: requestID,
			Subject:   subject,
		},
	)
}

// NewAPIErrUnknownInternal returns an ErrUnknownInternal API Error with the given
// error message.
func NewAPIErrUnknownInternal(err error) APIError {
	message := "unknown internal error"
	return NewAPIErr(
		InternalError,
		ErrUnknownInternal,
		errors.WithMessage(err, message),
		nil,
	)
}

// AsAPIError returns the first API Error in the chain of err.
func AsAPIError(err error) (APIError, bool) {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsCategory reports if the chain of err contains an API Error of the given category.
func IsCategory(err error, c ErrorCategory) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Category() == c
}

// APIErrAsMap returns a map containing entries for the method and each of
// the fields in the api error (except message). The map can be directly passed
// to the logger for logging the data in a structured format.
func APIErrAsMap(method string, err APIError) map[string]interface{} {
	return map[string]interface{}{
		"method":   method,
		"category": err.Category().String(),
		"code":     err.Code(),
		"add info": fmt.Sprintf("%+v", err.AddInfo()),
	}
}
