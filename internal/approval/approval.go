// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package approval models the confirm/reject step in front of every signature
// and, optionally, every public key export.
package approval

import (
	"context"
	"fmt"

	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/operation"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

// Kind says what is being approved.
type Kind string

const (
	KindPublicKey   Kind = "public_key"
	KindOperations  Kind = "operations"
	KindBlock       Kind = "block"
	KindEndorsement Kind = "endorsement"
)

// Request is everything an approver gets to see. Group is set for
// KindOperations, Baking for KindBlock and KindEndorsement.
type Request struct {
	Kind      Kind
	Curve     tezos.Curve
	Path      derivation.Path
	Signer    tezos.AccountRef
	PublicKey []byte
	Group     *operation.Group
	Baking    operation.BakingData
}

// Approver decides a request. (false, nil) is a rejection; an error is
// treated as a rejection by the caller.
type Approver interface {
	Approve(ctx context.Context, req *Request) (bool, error)
}

// Func adapts a function to Approver.
type Func func(ctx context.Context, req *Request) (bool, error)

// Approve implements Approver.
func (f Func) Approve(ctx context.Context, req *Request) (bool, error) {
	return f(ctx, req)
}

// Static answers every request the same way.
type Static bool

// Approve implements Approver.
func (s Static) Approve(context.Context, *Request) (bool, error) {
	return bool(s), nil
}

// Decision is a policy verdict.
type Decision int

const (
	// Ask defers to the next approver.
	Ask Decision = iota
	Approve
	Reject
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	default:
		return "ask"
	}
}

// ParseDecision reads "approve", "reject" or "ask".
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "approve":
		return Approve, nil
	case "reject":
		return Reject, nil
	case "ask", "":
		return Ask, nil
	default:
		return Ask, fmt.Errorf("unknown decision %q", s)
	}
}

// Policy makes an automatic decision, or defers with Ask.
type Policy interface {
	Decide(ctx context.Context, req *Request) (Decision, error)
}

// Chain asks policy first and falls through to next on Ask. A policy error
// rejects.
func Chain(policy Policy, next Approver) Approver {
	return Func(func(ctx context.Context, req *Request) (bool, error) {
		d, err := policy.Decide(ctx, req)
		if err != nil {
			return false, fmt.Errorf("approval policy: %w", err)
		}
		switch d {
		case Approve:
			return true, nil
		case Reject:
			return false, nil
		}
		if next == nil {
			return false, nil
		}
		return next.Approve(ctx, req)
	})
}
