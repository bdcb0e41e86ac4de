// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/operation"
	"github.com/aplane-algo/tzsigner/internal/protocol"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

// fakeSender stands in for the IPC server.
type fakeSender struct {
	connected bool
	fail      bool
	sent      chan *protocol.SignRequestMessage

	mu        sync.Mutex
	cancelled map[string]string
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		connected: true,
		sent:      make(chan *protocol.SignRequestMessage, 4),
		cancelled: make(map[string]string),
	}
}

func (f *fakeSender) HasClient() bool { return f.connected }

func (f *fakeSender) SendSignRequest(req *protocol.SignRequestMessage) bool {
	if f.fail {
		return false
	}
	f.sent <- req
	return true
}

func (f *fakeSender) SendCancelled(id, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled[id] = reason
}

func (f *fakeSender) cancelReason(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[id]
}

func endorseRequest(t *testing.T) *approval.Request {
	t.Helper()
	path, err := derivation.NewPath(44|derivation.Hardened, 1729|derivation.Hardened)
	require.NoError(t, err)
	return &approval.Request{
		Kind:   approval.KindEndorsement,
		Curve:  tezos.CurveEd25519,
		Path:   path,
		Baking: operation.BakingData{IsEndorsement: true, Level: 42},
	}
}

// answer responds to the next request the hub sends.
func answer(t *testing.T, hub *Hub, sender *fakeSender, approved bool) {
	t.Helper()
	go func() {
		req := <-sender.sent
		hub.resolve(req.ID, verdict{approved: approved})
	}()
}

func TestHubNoClient(t *testing.T) {
	sender := newFakeSender()
	sender.connected = false
	hub := NewHub(sender, time.Second)

	ok, err := hub.Approve(context.Background(), endorseRequest(t))
	assert.False(t, ok)
	assert.ErrorIs(t, err, errNoApprover)
}

func TestHubSendFailure(t *testing.T) {
	sender := newFakeSender()
	sender.fail = true
	hub := NewHub(sender, time.Second)

	ok, err := hub.Approve(context.Background(), endorseRequest(t))
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Zero(t, hub.Pending())
}

func TestHubDecisions(t *testing.T) {
	for _, approved := range []bool{true, false} {
		sender := newFakeSender()
		hub := NewHub(sender, time.Second)
		answer(t, hub, sender, approved)

		ok, err := hub.Approve(context.Background(), endorseRequest(t))
		require.NoError(t, err)
		assert.Equal(t, approved, ok)
		assert.Zero(t, hub.Pending())
	}
}

func TestHubTimeout(t *testing.T) {
	sender := newFakeSender()
	hub := NewHub(sender, 20*time.Millisecond)

	ok, err := hub.Approve(context.Background(), endorseRequest(t))
	assert.False(t, ok)
	assert.ErrorIs(t, err, errApprovalTimeout)

	req := <-sender.sent
	assert.NotZero(t, req.Deadline)
	assert.Equal(t, "timeout", sender.cancelReason(req.ID))
	assert.Zero(t, hub.Pending())
}

func TestHubContextCancel(t *testing.T) {
	sender := newFakeSender()
	hub := NewHub(sender, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-sender.sent
		cancel()
	}()
	ok, err := hub.Approve(ctx, endorseRequest(t))
	assert.False(t, ok)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHubRejectAll(t *testing.T) {
	sender := newFakeSender()
	hub := NewHub(sender, time.Minute)

	go func() {
		<-sender.sent
		hub.rejectAll("tzapprover disconnected")
	}()
	ok, err := hub.Approve(context.Background(), endorseRequest(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHubIgnoresUnknownResponse(t *testing.T) {
	hub := NewHub(newFakeSender(), time.Second)
	// Must not panic or block
	assert.False(t, hub.resolve("nope", verdict{approved: true}))
}

func TestSignRequestFields(t *testing.T) {
	req := endorseRequest(t)
	msg := signRequest("id-1", req)

	assert.Equal(t, protocol.MsgTypeSignRequest, msg.Type)
	assert.Equal(t, "id-1", msg.ID)
	assert.Equal(t, "endorsement", msg.Kind)
	assert.Equal(t, "ed25519", msg.Curve)
	assert.Equal(t, "44'/1729'", msg.Path)
	assert.Equal(t, uint32(42), msg.Level)
	assert.Contains(t, msg.Description, "Endorse block at level 42")

	group := &operation.Group{TotalFee: 1420}
	req = &approval.Request{Kind: approval.KindOperations, Curve: tezos.CurveP256, Group: group}
	msg = signRequest("id-2", req)
	assert.Equal(t, uint64(1420), msg.TotalFee)
	assert.Equal(t, 0, msg.Operations)
	assert.Zero(t, msg.Level)
}
