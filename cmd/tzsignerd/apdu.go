// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/aplane-algo/tzsigner/internal/engine"
	"github.com/aplane-algo/tzsigner/internal/transport"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// APDUServer feeds framed commands from a Unix socket into the engine. Hosts
// are served one at a time, like a device on a single USB port.
type APDUServer struct {
	listener net.Listener
	path     string
	engine   *engine.Engine

	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	connLock sync.Mutex
	conn     net.Conn
}

// NewAPDUServer creates a server for eng listening on path.
func NewAPDUServer(path string, eng *engine.Engine) *APDUServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &APDUServer{
		path:   path,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// SessionState reports the engine state as last seen by the serve loop.
func (s *APDUServer) SessionState() string {
	return engine.State(s.state.Load()).String()
}

// Start listens on the socket and serves connections in the background.
func (s *APDUServer) Start() error {
	listener, err := listenUnix(s.path, "APDU")
	if err != nil {
		return err
	}
	s.listener = listener
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and the current host connection, cancels any
// approval in progress and waits for the serve loop to exit.
func (s *APDUServer) Stop() {
	s.cancel()
	if s.listener == nil {
		return
	}
	_ = s.listener.Close()
	s.connLock.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.connLock.Unlock()
	<-s.done
	_ = os.Remove(s.path)
}

func (s *APDUServer) acceptLoop() {
	defer close(s.done)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.connLock.Lock()
		s.conn = conn
		s.connLock.Unlock()

		s.serve(conn)

		s.connLock.Lock()
		s.conn = nil
		s.connLock.Unlock()
		_ = conn.Close()
	}
}

// serve runs one host connection to completion. The engine session never
// survives a reconnect.
func (s *APDUServer) serve(conn net.Conn) {
	s.engine.Reset()
	defer func() {
		s.engine.Reset()
		s.state.Store(int32(engine.StateIdle))
	}()
	util.Debug("host connected")

	for {
		cmd, err := transport.ReadAPDU(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				util.Warn("reading command", "error", err)
			}
			return
		}

		resp, err := s.engine.Exchange(s.ctx, cmd)
		s.state.Store(int32(s.engine.State()))
		if errors.Is(err, engine.ErrExit) {
			util.Debug("host requested exit")
			return
		}

		if err := transport.WriteAPDU(conn, resp); err != nil {
			util.Warn("writing response", "error", err)
			return
		}
	}
}
