// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/protocol"
	"github.com/aplane-algo/tzsigner/internal/transport"
)

const testPassphrase = "correct horse"

// shortSocketDir keeps socket paths under the sun_path limit.
func shortSocketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tzs")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func startIPC(t *testing.T, timeout time.Duration) (*IPCServer, string) {
	t.Helper()
	authFailureDelay = 0
	path := filepath.Join(shortSocketDir(t), "ipc.sock")
	s := NewIPCServer(path, crypto.NewSecret([]byte(testPassphrase)), timeout)
	s.curve = "ed25519"
	s.version = "1.2.3"
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s, path
}

func connectApprover(t *testing.T, path, passphrase string) (*transport.Approver, *protocol.StatusMessage, error) {
	t.Helper()
	c, err := transport.DialApprover(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	status, err := c.Handshake(passphrase, 2*time.Second)
	return c, status, err
}

// next reads one pushed message into v and returns its type.
func next(t *testing.T, c *transport.Approver, v any) string {
	t.Helper()
	env, err := c.NextWithin(2 * time.Second)
	require.NoError(t, err)
	if v != nil {
		require.NoError(t, env.Decode(v))
	}
	return env.Type
}

func waitForClient(t *testing.T, s *IPCServer) {
	t.Helper()
	require.Eventually(t, s.HasClient, 2*time.Second, 5*time.Millisecond)
}

func TestIPCSocketPermissions(t *testing.T) {
	_, path := startIPC(t, time.Second)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestIPCRejectsSymlink(t *testing.T) {
	dir := shortSocketDir(t)
	target := filepath.Join(dir, "target")
	require.NoError(t, os.WriteFile(target, nil, 0600))
	link := filepath.Join(dir, "ipc.sock")
	require.NoError(t, os.Symlink(target, link))

	assert.ErrorContains(t, validateSocketPath(link), "symlink")
}

func TestIPCAuthentication(t *testing.T) {
	s, path := startIPC(t, time.Second)

	_, _, err := connectApprover(t, path, "wrong")
	assert.ErrorIs(t, err, transport.ErrUnauthorized)
	assert.False(t, s.HasClient())

	_, status, err := connectApprover(t, path, testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, "ed25519", status.Curve)
	assert.Equal(t, "1.2.3", status.Version)
	waitForClient(t, s)
}

func TestIPCApprovalRoundTrip(t *testing.T) {
	s, path := startIPC(t, 2*time.Second)
	c, _, err := connectApprover(t, path, testPassphrase)
	require.NoError(t, err)
	waitForClient(t, s)

	for _, approved := range []bool{true, false} {
		result := make(chan bool, 1)
		go func() {
			ok, err := s.Hub().Approve(context.Background(), endorseRequest(t))
			assert.NoError(t, err)
			result <- ok
		}()

		var req protocol.SignRequestMessage
		assert.Equal(t, protocol.MsgTypeSignRequest, next(t, c, &req))
		assert.Equal(t, "endorsement", req.Kind)
		assert.Equal(t, uint32(42), req.Level)

		require.NoError(t, c.Respond(req.ID, approved, ""))
		select {
		case ok := <-result:
			assert.Equal(t, approved, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("approval did not complete")
		}
	}
}

func TestIPCTimeoutSendsCancelled(t *testing.T) {
	s, path := startIPC(t, 50*time.Millisecond)
	c, _, err := connectApprover(t, path, testPassphrase)
	require.NoError(t, err)
	waitForClient(t, s)

	ok, err := s.Hub().Approve(context.Background(), endorseRequest(t))
	assert.False(t, ok)
	assert.ErrorIs(t, err, errApprovalTimeout)

	assert.Equal(t, protocol.MsgTypeSignRequest, next(t, c, nil))
	var cancelled protocol.CancelledMessage
	assert.Equal(t, protocol.MsgTypeCancelled, next(t, c, &cancelled))
	assert.Equal(t, "timeout", cancelled.Reason)
}

func TestIPCDisplacement(t *testing.T) {
	s, path := startIPC(t, time.Second)
	first, _, err := connectApprover(t, path, testPassphrase)
	require.NoError(t, err)
	waitForClient(t, s)

	_, _, err = connectApprover(t, path, testPassphrase)
	require.NoError(t, err)

	var msg protocol.DisplacedMessage
	assert.Equal(t, protocol.MsgTypeDisplaced, next(t, first, &msg))
	assert.NotEmpty(t, msg.Reason)
	assert.True(t, s.HasClient())
}

func TestIPCDisconnectRejectsPending(t *testing.T) {
	s, path := startIPC(t, 5*time.Second)
	c, _, err := connectApprover(t, path, testPassphrase)
	require.NoError(t, err)
	waitForClient(t, s)

	result := make(chan error, 1)
	go func() {
		ok, err := s.Hub().Approve(context.Background(), endorseRequest(t))
		if err == nil && ok {
			err = assert.AnError
		}
		result <- err
	}()

	assert.Equal(t, protocol.MsgTypeSignRequest, next(t, c, nil))
	require.NoError(t, c.Close())

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was not rejected on disconnect")
	}
}

func TestIPCSingleHandshakeSlot(t *testing.T) {
	_, path := startIPC(t, time.Second)

	// Holds the slot by never answering auth_required
	idle, err := transport.DialApprover(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idle.Close() })
	env, err := idle.NextWithin(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, protocol.MsgTypeAuthRequired, env.Type)

	_, _, err = connectApprover(t, path, testPassphrase)
	assert.ErrorIs(t, err, transport.ErrAlreadyConnected)
}

func TestIPCStatusOnRequest(t *testing.T) {
	s, path := startIPC(t, time.Second)
	c, _, err := connectApprover(t, path, testPassphrase)
	require.NoError(t, err)
	waitForClient(t, s)

	require.NoError(t, c.RequestStatus())
	var status protocol.StatusMessage
	assert.Equal(t, protocol.MsgTypeStatus, next(t, c, &status))
	assert.Equal(t, "1.2.3", status.Version)
	assert.Zero(t, status.Pending)
}
