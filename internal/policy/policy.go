// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package policy

import (
	"context"
	"sync"

	"github.com/aplane-algo/tzsigner/internal/approval"
)

// Static approves every signing request when AutoApproveSign is set and
// defers everything else. Public key exports are never auto-approved.
type Static struct {
	AutoApproveSign bool
}

// Decide implements approval.Policy.
func (s Static) Decide(_ context.Context, req *approval.Request) (approval.Decision, error) {
	if s.AutoApproveSign && req.Kind != approval.KindPublicKey {
		return approval.Approve, nil
	}
	return approval.Ask, nil
}

// First returns the first decision other than Ask.
type First []approval.Policy

// Decide implements approval.Policy.
func (f First) Decide(ctx context.Context, req *approval.Request) (approval.Decision, error) {
	for _, p := range f {
		if p == nil {
			continue
		}
		d, err := p.Decide(ctx, req)
		if err != nil || d != approval.Ask {
			return d, err
		}
	}
	return approval.Ask, nil
}

// Swappable holds the current policy so it can be replaced on reload.
type Swappable struct {
	mu  sync.RWMutex
	cur approval.Policy
}

// NewSwappable returns a holder for p.
func NewSwappable(p approval.Policy) *Swappable {
	return &Swappable{cur: p}
}

// Store replaces the current policy.
func (s *Swappable) Store(p approval.Policy) {
	s.mu.Lock()
	s.cur = p
	s.mu.Unlock()
}

// Decide implements approval.Policy.
func (s *Swappable) Decide(ctx context.Context, req *approval.Request) (approval.Decision, error) {
	s.mu.RLock()
	p := s.cur
	s.mu.RUnlock()
	if p == nil {
		return approval.Ask, nil
	}
	return p.Decide(ctx, req)
}
