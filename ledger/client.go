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

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/evm-bridge"
	"github.com/hyperledger-labs/evm-bridge/log"
)

// RetryConfig configures the retries of requests that failed with a
// transport error or a retryable status.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns the wait time before the given retry attempt (starting at 1):
// the base delay doubled for each previous attempt, capped at the max delay.
func (r RetryConfig) Delay(attempt int) time.Duration {
	d := r.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.MaxDelay || d <= 0 {
			return r.MaxDelay
		}
	}
	if d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// DefaultRetryConfig is used when no retry config is passed to the client.
var DefaultRetryConfig = RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}

// StatusError is returned when the ledger replies with a non 2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements error interface.
func (e StatusError) Error() string {
	return fmt.Sprintf("ledger replied with status %d: %s", e.StatusCode, e.Message)
}

// Client is a client of the JSON API of the ledger.
type Client struct {
	log.Logger

	baseURL    string
	token      string
	httpClient *http.Client
	retry      RetryConfig
}

// Option configures a client.
type Option func(*Client)

// WithHTTPClient sets the http client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRetry sets the retry config.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient returns a client for the ledger at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		Logger:     log.NewLoggerWithField("component", "ledger-client"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryConfig,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	if c.retry.BaseDelay <= 0 {
		c.retry.BaseDelay = DefaultRetryConfig.BaseDelay
	}
	if c.retry.MaxDelay <= 0 {
		c.retry.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	return c
}

// Submit submits the commands and waits for the resulting events. Retries are
// safe because the ledger deduplicates by command id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (Batch, error) {
	var resp Batch
	err := c.do(ctx, http.MethodPost, PathSubmit, req, &resp, true)
	return resp, errors.WithMessage(err, "submitting command "+req.CommandID)
}

// ActiveContracts returns the active contracts of the template visible to the parties.
func (c *Client) ActiveContracts(ctx context.Context, parties []string, templateID string) ([]CreatedEvent, error) {
	var resp ActiveContractsResponse
	err := c.do(ctx, http.MethodPost, PathActiveContracts,
		ActiveContractsRequest{Parties: parties, TemplateID: templateID}, &resp, true)
	return resp.Contracts, errors.WithMessage(err, "querying active contracts of "+templateID)
}

// Updates polls the event feed. It blocks at most for the idle timeout of the
// request, plus the transport latency.
func (c *Client) Updates(ctx context.Context, req UpdatesRequest) ([]Batch, error) {
	var resp UpdatesResponse
	err := c.do(ctx, http.MethodPost, PathUpdates, req, &resp, false)
	return resp.Batches, errors.WithMessage(err, "polling updates")
}

// LedgerEnd returns the offset of the last update on the ledger.
func (c *Client) LedgerEnd(ctx context.Context) (bridge.Offset, error) {
	var resp LedgerEndResponse
	err := c.do(ctx, http.MethodGet, PathLedgerEnd, nil, &resp, true)
	return resp.Offset, errors.WithMessage(err, "reading ledger end")
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, retryable bool) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		if bodyBytes, err = json.Marshal(body); err != nil {
			return bridge.NewAPIErrUnknownInternal(errors.Wrap(err, "encoding request"))
		}
	}
	attempts := 1
	if retryable {
		attempts = c.retry.MaxAttempts
	}

	endpoint := c.baseURL + path
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.retry.Delay(attempt-1)); err != nil {
				return bridge.NewAPIErrTransport(errors.Wrap(lastErr, "retry canceled"), endpoint)
			}
		}

		respBody, status, err := c.roundTrip(ctx, method, endpoint, bodyBytes)
		if err != nil {
			lastErr = err
			c.WithField("attempt", attempt).Debugf("Request to %s failed: %v", path, err)
			continue
		}
		if status >= 200 && status < 300 {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return bridge.NewAPIErrTransport(errors.Wrap(err, "decoding response"), endpoint)
			}
			return nil
		}

		var errResp ErrorResponse
		_ = json.Unmarshal(respBody, &errResp) // nolint: errcheck
		statusErr := StatusError{StatusCode: status, Message: errResp.Message}
		if !shouldRetryStatus(status) {
			if status >= 400 && status < 500 {
				return bridge.NewAPIErrInvalidArgument(statusErr, bridge.ArgumentName(path), "")
			}
			return bridge.NewAPIErrTransport(statusErr, endpoint)
		}
		lastErr = statusErr
	}
	return bridge.NewAPIErrTransport(lastErr, endpoint)
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	defer resp.Body.Close() // nolint: errcheck
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading response")
	}
	return respBody, resp.StatusCode, nil
}

func shouldRetryStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
