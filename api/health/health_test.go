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

package health_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hyperledger-labs/evm-bridge/api/health"
	"github.com/hyperledger-labs/evm-bridge/stream"
)

func Test_StatusFor(t *testing.T) {
	tests := []struct {
		state stream.State
		want  healthpb.HealthCheckResponse_ServingStatus
	}{
		{stream.Connecting, healthpb.HealthCheckResponse_NOT_SERVING},
		{stream.Streaming, healthpb.HealthCheckResponse_SERVING},
		{stream.Disconnected, healthpb.HealthCheckResponse_NOT_SERVING},
		{stream.Reconnecting, healthpb.HealthCheckResponse_NOT_SERVING},
		{stream.ReconnectExhausted, healthpb.HealthCheckResponse_NOT_SERVING},
		{stream.Polling, healthpb.HealthCheckResponse_SERVING},
		{stream.Closed, healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, health.StatusFor(tt.state))
		})
	}
}

func Test_Server(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	s := health.NewServer()
	require.NoError(t, s.Listen(addr))
	go s.Serve() // nolint: errcheck
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpclib.DialContext(ctx, addr, grpclib.WithInsecure(), grpclib.WithBlock())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() }) // nolint: errcheck
	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.Status
	}

	t.Run("happy_not_serving_initially", func(t *testing.T) {
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(""))
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(health.Service))
	})
	t.Run("happy_streaming", func(t *testing.T) {
		s.SetStreamState(stream.Streaming)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(health.Service))
	})
	t.Run("happy_reconnecting", func(t *testing.T) {
		s.SetStreamState(stream.Reconnecting)
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(health.Service))
	})
	t.Run("err_unknown_service", func(t *testing.T) {
		_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
		require.Error(t, err)
	})
}

func Test_Server_ServeWithoutListen(t *testing.T) {
	s := health.NewServer()
	assert.Nil(t, s.Addr())
	require.Error(t, s.Serve())
}
