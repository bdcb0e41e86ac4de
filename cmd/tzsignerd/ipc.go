// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/protocol"
	"github.com/aplane-algo/tzsigner/internal/util"
)

var (
	// authFailureDelay slows down passphrase guessing.
	authFailureDelay = time.Second

	// handshakeTimeout bounds an unauthenticated connection.
	handshakeTimeout = 30 * time.Second
)

// sessionStater reports the APDU session state for status messages.
type sessionStater interface {
	SessionState() string
}

// IPCServer accepts tzapprover connections on a Unix socket. One approver is
// active at a time and one connection may be authenticating at a time; a
// newly authenticated approver displaces the active one.
type IPCServer struct {
	path     string
	listener net.Listener
	hub      *Hub

	passphrase *crypto.Secret
	session    sessionStater
	curve      string
	version    string

	mu             sync.Mutex
	active         *protocol.Conn
	authenticating bool
}

// NewIPCServer creates a server together with the hub that routes approval
// requests through it. Clients authenticate with passphrase.
func NewIPCServer(path string, passphrase *crypto.Secret, timeout time.Duration) *IPCServer {
	s := &IPCServer{path: path, passphrase: passphrase}
	s.hub = NewHub(s, timeout)
	return s
}

// Hub returns the approval hub backed by this server.
func (s *IPCServer) Hub() *Hub { return s.hub }

// Start listens on the socket and accepts approvers in the background.
func (s *IPCServer) Start() error {
	ln, err := listenUnix(s.path, "IPC")
	if err != nil {
		return err
	}
	s.listener = ln
	go s.acceptLoop()
	return nil
}

// Stop closes the socket and the active approver and rejects whatever is
// still pending.
func (s *IPCServer) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	if s.active != nil {
		_ = s.active.Close()
	}
	s.mu.Unlock()
	s.hub.rejectAll("signer shutting down")
	_ = os.Remove(s.path)
}

func (s *IPCServer) acceptLoop() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			return
		}
		pc := protocol.NewConn(nc)

		s.mu.Lock()
		busy := s.authenticating
		s.authenticating = true
		s.mu.Unlock()
		if busy {
			_ = pc.Send(errorMessage("", "another tzapprover client is currently authenticating"))
			_ = pc.Close()
			continue
		}

		util.Debug("approver connected")
		go s.serve(pc)
	}
}

// serve authenticates pc, installs it as the active approver and handles
// its messages until it goes away.
func (s *IPCServer) serve(pc *protocol.Conn) {
	defer pc.Close()

	if !s.authenticate(pc) {
		fmt.Println("✗ tzapprover authentication failed")
		return
	}
	s.install(pc)
	defer s.uninstall(pc)

	_ = pc.Send(s.status())
	for {
		env, err := pc.Recv()
		switch {
		case errors.Is(err, protocol.ErrMalformed):
			_ = pc.Send(errorMessage("", "invalid message format"))
			continue
		case err != nil:
			return
		}
		s.dispatch(pc, env)
	}
}

func (s *IPCServer) dispatch(pc *protocol.Conn, env protocol.Envelope) {
	switch env.Type {
	case protocol.MsgTypeSignResponse:
		var msg protocol.SignResponseMessage
		if err := env.Decode(&msg); err != nil {
			_ = pc.Send(errorMessage(env.ID, "invalid sign response message"))
			return
		}
		if !s.hub.resolve(msg.ID, verdict{approved: msg.Approved, reason: msg.Reason}) {
			util.Debug("response for unknown request", "id", msg.ID)
		}
	case protocol.MsgTypeStatus:
		_ = pc.Send(s.status())
	default:
		_ = pc.Send(errorMessage(env.ID, "unsupported message type: "+env.Type))
	}
}

// authenticate runs the passphrase handshake. It always gives up the
// authentication slot on failure; on success install takes it over.
func (s *IPCServer) authenticate(pc *protocol.Conn) bool {
	pc.SetReadTimeout(handshakeTimeout)
	defer pc.SetReadTimeout(0)

	if err := pc.Send(protocol.AuthRequiredMessage{Header: protocol.Header{Type: protocol.MsgTypeAuthRequired}}); err != nil {
		s.releaseSlot()
		return false
	}

	var auth protocol.AuthMessage
	if err := pc.Expect(protocol.MsgTypeAuth, &auth); err != nil {
		s.releaseSlot()
		_ = pc.Send(authResult(false, "expected auth message"))
		return false
	}

	given := []byte(auth.Passphrase)
	ok := s.passphrase != nil && s.passphrase.Equal(given)
	crypto.ZeroBytes(given)
	if !ok {
		time.Sleep(authFailureDelay)
		// Free the slot first so an immediate retry is not turned away
		s.releaseSlot()
		_ = pc.Send(authResult(false, "invalid passphrase"))
		return false
	}
	if err := pc.Send(authResult(true, "")); err != nil {
		s.releaseSlot()
		return false
	}
	return true
}

// releaseSlot lets the next connection authenticate.
func (s *IPCServer) releaseSlot() {
	s.mu.Lock()
	s.authenticating = false
	s.mu.Unlock()
}

// install makes pc the active approver. Requests shown to a displaced
// approver are rejected, since its successor never saw them.
func (s *IPCServer) install(pc *protocol.Conn) {
	s.mu.Lock()
	old := s.active
	s.active = pc
	s.authenticating = false
	s.mu.Unlock()

	if old != nil {
		s.hub.rejectAll("tzapprover displaced")
		_ = old.Send(protocol.DisplacedMessage{
			Header: protocol.Header{Type: protocol.MsgTypeDisplaced},
			Reason: "Displaced by another tzapprover client",
		})
		_ = old.Close()
		fmt.Println("⚠ Existing tzapprover client displaced by new connection")
	}
	fmt.Println("✓ tzapprover authenticated")
}

// uninstall clears pc if it is still the active approver and rejects its
// pending requests.
func (s *IPCServer) uninstall(pc *protocol.Conn) {
	s.mu.Lock()
	current := s.active == pc
	if current {
		s.active = nil
	}
	s.mu.Unlock()

	if current {
		s.hub.rejectAll("tzapprover disconnected")
		fmt.Println("⚠ tzapprover disconnected - requests will be rejected until it returns")
	}
}

func (s *IPCServer) status() protocol.StatusMessage {
	state := "idle"
	if s.session != nil {
		state = s.session.SessionState()
	}
	return protocol.StatusMessage{
		Header:  protocol.Header{Type: protocol.MsgTypeStatus},
		State:   state,
		Curve:   s.curve,
		Version: s.version,
		Pending: s.hub.Pending(),
	}
}

func (s *IPCServer) activeConn() *protocol.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// HasClient returns true if an authenticated approver is connected.
func (s *IPCServer) HasClient() bool {
	return s.activeConn() != nil
}

// SendSignRequest sends a signing request to the active approver.
func (s *IPCServer) SendSignRequest(req *protocol.SignRequestMessage) bool {
	pc := s.activeConn()
	return pc != nil && pc.Send(req) == nil
}

// SendCancelled withdraws a request the approver may still be showing.
func (s *IPCServer) SendCancelled(requestID, reason string) {
	if pc := s.activeConn(); pc != nil {
		_ = pc.Send(protocol.CancelledMessage{
			Header: protocol.Header{Type: protocol.MsgTypeCancelled, ID: requestID},
			Reason: reason,
		})
	}
}

func authResult(ok bool, msg string) protocol.AuthResultMessage {
	return protocol.AuthResultMessage{
		Header:  protocol.Header{Type: protocol.MsgTypeAuthResult},
		Success: ok,
		Error:   msg,
	}
}

func errorMessage(id, msg string) protocol.ErrorMessage {
	return protocol.ErrorMessage{
		Header: protocol.Header{Type: protocol.MsgTypeError, ID: id},
		Error:  msg,
	}
}
