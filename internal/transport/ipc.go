// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aplane-algo/tzsigner/internal/protocol"
)

// Approver is the tzapprover end of the signer's IPC socket.
type Approver struct {
	conn *protocol.Conn
}

// DialApprover connects to the signer at socketPath.
func DialApprover(ctx context.Context, socketPath string) (*Approver, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IPC socket: %w", err)
	}
	return &Approver{conn: protocol.NewConn(nc)}, nil
}

// Handshake authenticates with the seed passphrase and returns the status
// the signer sends on success. The whole exchange must finish within
// timeout; afterwards reads block indefinitely.
func (a *Approver) Handshake(passphrase string, timeout time.Duration) (*protocol.StatusMessage, error) {
	a.conn.SetReadTimeout(timeout)
	defer a.conn.SetReadTimeout(0)

	env, err := a.conn.Recv()
	if err != nil {
		return nil, fmt.Errorf("waiting for auth_required: %w", err)
	}
	switch env.Type {
	case protocol.MsgTypeAuthRequired:
	case protocol.MsgTypeError:
		var e protocol.ErrorMessage
		_ = env.Decode(&e)
		return nil, fmt.Errorf("%w: %s", ErrAlreadyConnected, e.Error)
	default:
		return nil, fmt.Errorf("%w: want %s, got %q", protocol.ErrUnexpected, protocol.MsgTypeAuthRequired, env.Type)
	}

	err = a.conn.Send(protocol.AuthMessage{
		Header:     protocol.Header{Type: protocol.MsgTypeAuth},
		Passphrase: passphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("sending auth: %w", err)
	}

	var result protocol.AuthResultMessage
	if err := a.conn.Expect(protocol.MsgTypeAuthResult, &result); err != nil {
		return nil, fmt.Errorf("waiting for auth_result: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, result.Error)
	}

	var status protocol.StatusMessage
	if err := a.conn.Expect(protocol.MsgTypeStatus, &status); err != nil {
		return nil, fmt.Errorf("waiting for status: %w", err)
	}
	return &status, nil
}

// Next blocks for the next message pushed by the signer.
func (a *Approver) Next() (protocol.Envelope, error) {
	return a.conn.Recv()
}

// NextWithin is Next with a deadline.
func (a *Approver) NextWithin(d time.Duration) (protocol.Envelope, error) {
	a.conn.SetReadTimeout(d)
	defer a.conn.SetReadTimeout(0)
	return a.conn.Recv()
}

// Respond answers a pending sign request. Safe to call while another
// goroutine is blocked in Next.
func (a *Approver) Respond(requestID string, approved bool, reason string) error {
	return a.conn.Send(protocol.SignResponseMessage{
		Header:   protocol.Header{Type: protocol.MsgTypeSignResponse, ID: requestID},
		Approved: approved,
		Reason:   reason,
	})
}

// RequestStatus asks the signer to push a fresh status message.
func (a *Approver) RequestStatus() error {
	return a.conn.Send(protocol.Header{Type: protocol.MsgTypeStatus})
}

// Close drops the connection. The signer rejects whatever was pending.
func (a *Approver) Close() error {
	if err := a.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
