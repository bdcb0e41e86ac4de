// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package transport

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/tzsigner/internal/protocol"
)

// pipeApprover wires an Approver to an in-memory signer end.
func pipeApprover(t *testing.T) (*Approver, *protocol.Conn) {
	t.Helper()
	a, b := net.Pipe()
	signer := protocol.NewConn(b)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return &Approver{conn: protocol.NewConn(a)}, signer
}

// fakeSigner plays the signer side of a handshake that accepts pass.
func fakeSigner(t *testing.T, signer *protocol.Conn, pass string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, signer.Send(protocol.AuthRequiredMessage{Header: protocol.Header{Type: protocol.MsgTypeAuthRequired}}))
		var auth protocol.AuthMessage
		if !assert.NoError(t, signer.Expect(protocol.MsgTypeAuth, &auth)) {
			return
		}
		ok := auth.Passphrase == pass
		assert.NoError(t, signer.Send(protocol.AuthResultMessage{
			Header:  protocol.Header{Type: protocol.MsgTypeAuthResult},
			Success: ok,
			Error:   "invalid passphrase",
		}))
		if ok {
			assert.NoError(t, signer.Send(protocol.StatusMessage{
				Header:  protocol.Header{Type: protocol.MsgTypeStatus},
				State:   "idle",
				Curve:   "p256",
				Pending: 1,
			}))
		}
	}()
	return done
}

func TestHandshake(t *testing.T) {
	a, signer := pipeApprover(t)
	done := fakeSigner(t, signer, "hunter2")

	status, err := a.Handshake("hunter2", time.Second)
	<-done
	require.NoError(t, err)
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, "p256", status.Curve)
	assert.Equal(t, 1, status.Pending)
}

func TestHandshakeWrongPassphrase(t *testing.T) {
	a, signer := pipeApprover(t)
	done := fakeSigner(t, signer, "hunter2")

	_, err := a.Handshake("letmein", time.Second)
	<-done
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHandshakeBusySigner(t *testing.T) {
	a, signer := pipeApprover(t)
	go func() {
		_ = signer.Send(protocol.ErrorMessage{
			Header: protocol.Header{Type: protocol.MsgTypeError},
			Error:  "another tzapprover client is currently authenticating",
		})
	}()
	_, err := a.Handshake("x", time.Second)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestHandshakeTimeout(t *testing.T) {
	a, _ := pipeApprover(t)
	start := time.Now()
	_, err := a.Handshake("x", 50*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRespondAndNext(t *testing.T) {
	a, signer := pipeApprover(t)

	go func() {
		_ = signer.Send(protocol.CancelledMessage{
			Header: protocol.Header{Type: protocol.MsgTypeCancelled, ID: "req-0"},
			Reason: "timeout",
		})
	}()
	env, err := a.NextWithin(time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgTypeCancelled, env.Type)
	assert.Equal(t, "req-0", env.ID)

	got := make(chan protocol.SignResponseMessage, 1)
	go func() {
		var resp protocol.SignResponseMessage
		_ = signer.Expect(protocol.MsgTypeSignResponse, &resp)
		got <- resp
	}()
	require.NoError(t, a.Respond("req-1", false, "fee too high"))

	resp := <-got
	assert.Equal(t, "req-1", resp.ID)
	assert.False(t, resp.Approved)
	assert.Equal(t, "fee too high", resp.Reason)
}

func TestDialApproverMissingSocket(t *testing.T) {
	_, err := DialApprover(context.Background(), filepath.Join(t.TempDir(), "none.sock"))
	assert.ErrorContains(t, err, "failed to connect")
}
