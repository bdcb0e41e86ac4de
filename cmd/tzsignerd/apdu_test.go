// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/tzsigner/internal/apdu"
	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/client"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/engine"
	"github.com/aplane-algo/tzsigner/internal/operation"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

func startAPDU(t *testing.T, a approval.Approver) (*APDUServer, string) {
	t.Helper()
	oracle, err := derivation.NewSeedOracle(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	eng := engine.New(derivation.NewDeriver(oracle), a,
		engine.WithCurve(tezos.CurveEd25519),
		engine.WithVersion(2, 0, 1),
	)
	path := filepath.Join(shortSocketDir(t), "apdu.sock")
	s := NewAPDUServer(path, eng)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s, path
}

func dial(t *testing.T, path string) *client.Client {
	t.Helper()
	c, err := client.Dial(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestAPDUServerVersionAndKey(t *testing.T) {
	_, path := startAPDU(t, approval.Static(true))
	c := dial(t, path)

	v, err := c.Version()
	require.NoError(t, err)
	assert.Equal(t, "2.0.1", v.String())

	p, err := client.ParsePath(client.DefaultPath)
	require.NoError(t, err)
	pub, err := c.PublicKey(p)
	require.NoError(t, err)
	assert.Len(t, pub, 32)
}

func TestAPDUServerExitAndReconnect(t *testing.T) {
	s, path := startAPDU(t, approval.Static(true))

	first := dial(t, path)
	// Leave a session half-open, then exit
	payload, status, err := first.Raw([]byte{apdu.Class, apdu.InsSign, apdu.P1First, 0, 5, 1, 0x80, 0, 0, 44})
	require.NoError(t, err)
	assert.Equal(t, apdu.StatusOK, status)
	assert.Empty(t, payload)
	require.Eventually(t, func() bool { return s.SessionState() == "accumulating" }, time.Second, 5*time.Millisecond)
	require.NoError(t, first.Exit())

	require.Eventually(t, func() bool { return s.SessionState() == "idle" }, time.Second, 5*time.Millisecond)

	second := dial(t, path)
	_, status, err = second.Raw([]byte{apdu.Class, apdu.InsSign, apdu.P1Next | apdu.P1Last, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, apdu.StatusConditionsNotMet, status, "session must not survive a reconnect")
}

func TestAPDUServerStopCancelsApproval(t *testing.T) {
	started := make(chan struct{})
	blocking := approval.Func(func(ctx context.Context, _ *approval.Request) (bool, error) {
		close(started)
		<-ctx.Done()
		return false, ctx.Err()
	})
	s, path := startAPDU(t, blocking)
	c := dial(t, path)

	p, err := client.ParsePath(client.DefaultPath)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		_, err := c.Sign(p, endorsement(7))
		done <- err
	}()

	<-started
	s.Stop()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not unblock the approval")
	}
}

func endorsement(level uint32) []byte {
	b := []byte{operation.MagicEndorsement, 0, 0, 0, 1}
	b = append(b, make([]byte, 32)...)
	b = append(b, 0)
	return append(b, byte(level>>24), byte(level>>16), byte(level>>8), byte(level))
}
