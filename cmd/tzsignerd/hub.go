// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/protocol"
	"github.com/aplane-algo/tzsigner/internal/util"
)

var (
	errNoApprover      = errors.New("no tzapprover client connected")
	errApprovalTimeout = errors.New("approval timeout")
)

// requestSender is the part of the IPC server the hub talks to.
type requestSender interface {
	HasClient() bool
	SendSignRequest(req *protocol.SignRequestMessage) bool
	SendCancelled(requestID, reason string)
}

type verdict struct {
	approved bool
	reason   string
}

// Hub forwards approval requests to the connected tzapprover and waits for
// the answer. It is the last approver in the chain behind the policies.
type Hub struct {
	sender  requestSender
	timeout time.Duration
	seq     atomic.Uint64

	mu      sync.Mutex
	waiting map[string]chan verdict
}

// NewHub creates a hub. A zero timeout waits for the context only.
func NewHub(sender requestSender, timeout time.Duration) *Hub {
	return &Hub{
		sender:  sender,
		timeout: timeout,
		waiting: make(map[string]chan verdict),
	}
}

// HasClient returns true if an approver is connected.
func (h *Hub) HasClient() bool {
	return h.sender != nil && h.sender.HasClient()
}

// Pending returns the number of requests waiting for a decision.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiting)
}

// Approve implements approval.Approver. Timeouts and cancellation are errors,
// which the engine treats as a rejection.
func (h *Hub) Approve(ctx context.Context, req *approval.Request) (bool, error) {
	if !h.HasClient() {
		return false, errNoApprover
	}

	id := fmt.Sprintf("%s-%d", req.Kind, h.seq.Add(1))
	ch := make(chan verdict, 1)
	h.mu.Lock()
	h.waiting[id] = ch
	h.mu.Unlock()
	defer h.forget(id)

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	msg := signRequest(id, req)
	if deadline, ok := ctx.Deadline(); ok {
		msg.Deadline = deadline.Unix()
	}
	if !h.sender.SendSignRequest(msg) {
		return false, fmt.Errorf("failed to send signing request via IPC")
	}
	util.Debug("approval requested", "id", id, "kind", req.Kind)

	select {
	case v := <-ch:
		if !v.approved {
			util.Debug("approval denied", "id", id, "reason", v.reason)
		}
		return v.approved, nil
	case <-ctx.Done():
		reason, err := "cancelled", ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
			err = fmt.Errorf("%w: no response within %v", errApprovalTimeout, h.timeout)
		}
		h.sender.SendCancelled(id, reason)
		return false, err
	}
}

func (h *Hub) forget(id string) {
	h.mu.Lock()
	delete(h.waiting, id)
	h.mu.Unlock()
}

// resolve delivers an approver answer. Unknown or stale ids are ignored.
func (h *Hub) resolve(id string, v verdict) bool {
	h.mu.Lock()
	ch, ok := h.waiting[id]
	delete(h.waiting, id)
	h.mu.Unlock()
	if ok {
		ch <- v
	}
	return ok
}

// rejectAll answers every waiting request with a rejection.
func (h *Hub) rejectAll(reason string) {
	h.mu.Lock()
	waiting := h.waiting
	h.waiting = make(map[string]chan verdict)
	h.mu.Unlock()
	for _, ch := range waiting {
		ch <- verdict{reason: reason}
	}
}

func signRequest(id string, req *approval.Request) *protocol.SignRequestMessage {
	msg := &protocol.SignRequestMessage{
		Header:      protocol.Header{Type: protocol.MsgTypeSignRequest, ID: id},
		Kind:        string(req.Kind),
		Address:     req.Signer.String(),
		Path:        req.Path.String(),
		Curve:       req.Curve.String(),
		Description: approval.Describe(req),
		Timestamp:   time.Now().Unix(),
	}
	switch req.Kind {
	case approval.KindOperations:
		if req.Group != nil {
			msg.TotalFee = req.Group.TotalFee
			msg.Operations = req.Group.Len()
		}
	case approval.KindBlock, approval.KindEndorsement:
		msg.Level = req.Baking.Level
	}
	return msg
}
