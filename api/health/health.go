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

// Package health serves the grpc health checking protocol for the bridge
// node. The reported status follows the state of the event stream.
package health

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	grpclib "google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hyperledger-labs/evm-bridge/log"
	"github.com/hyperledger-labs/evm-bridge/stream"
)

// Service is the name under which the status of the bridge is reported. The
// overall status of the server (empty service name) is reported as well.
const Service = "evmbridge.Node"

// Server is a grpc health server.
type Server struct {
	log.Logger

	health *grpchealth.Server
	srv    *grpclib.Server

	mtx      sync.Mutex
	listener net.Listener
}

// NewServer returns a health server that reports NOT_SERVING until the
// stream state is updated.
func NewServer() *Server {
	s := &Server{
		Logger: log.NewLoggerWithField("component", "health"),
		health: grpchealth.NewServer(),
		srv:    grpclib.NewServer(),
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// StatusFor returns the health status for the state of the event stream. The
// node serves while events are received, either streamed or polled.
func StatusFor(state stream.State) healthpb.HealthCheckResponse_ServingStatus {
	switch state {
	case stream.Streaming, stream.Polling:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// SetStreamState updates the reported status. It can be registered with
// stream.Client.OnStateChange.
func (s *Server) SetStreamState(state stream.State) {
	status := StatusFor(state)
	s.WithField("stream-state", state).Debugf("Health status %s", status)
	s.setStatus(status)
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(Service, status)
}

// Listen opens the listener at addr. Use ":0" to listen on a random port.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "starting listener")
	}
	s.mtx.Lock()
	s.listener = listener
	s.mtx.Unlock()
	return nil
}

// Addr returns the address of the listener, nil if Listen was not called.
func (s *Server) Addr() net.Addr {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve serves requests on the listener opened by Listen. It blocks until
// Stop is called.
func (s *Server) Serve() error {
	s.mtx.Lock()
	listener := s.listener
	s.mtx.Unlock()
	if listener == nil {
		return errors.New("listener not open")
	}
	s.Infof("Serving health checks at %s", listener.Addr())
	return s.srv.Serve(listener)
}

// Stop reports NOT_SERVING to all watchers and stops the server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
