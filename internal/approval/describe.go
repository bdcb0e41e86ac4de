// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package approval

import (
	"fmt"
	"strings"

	"github.com/aplane-algo/tzsigner/internal/operation"
	"github.com/aplane-algo/tzsigner/internal/tezos"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// tez has six decimals (mutez)
const tezDecimals = 6

// FormatTez renders a mutez amount in tez.
func FormatTez(mutez uint64) string {
	return util.FormatAmountWithDecimals(mutez, tezDecimals) + " tez"
}

func formatAccount(r tezos.AccountRef) string {
	if r.IsZero() {
		return "(none)"
	}
	addr, err := r.Address()
	if err != nil {
		if curve, h, ok := r.AsImplicit(); ok {
			return fmt.Sprintf("implicit %x (unknown curve %d)", h[:], uint8(curve))
		}
		return "(invalid)"
	}
	return addr
}

// Describe renders req for a human approver.
func Describe(req *Request) string {
	var desc strings.Builder
	switch req.Kind {
	case KindPublicKey:
		desc.WriteString("Export public key")
	case KindBlock:
		desc.WriteString(fmt.Sprintf("Bake block at level %d", req.Baking.Level))
	case KindEndorsement:
		desc.WriteString(fmt.Sprintf("Endorse block at level %d", req.Baking.Level))
	case KindOperations:
		if req.Group == nil {
			desc.WriteString("Sign operations")
			break
		}
		desc.WriteString(fmt.Sprintf("Sign %d operation(s), total fee %s", req.Group.Len(), FormatTez(req.Group.TotalFee)))
	default:
		desc.WriteString(fmt.Sprintf("Unknown request %q", req.Kind))
	}
	desc.WriteString(fmt.Sprintf("\n  Key:  %s (%s)", formatAccount(req.Signer), req.Curve))
	desc.WriteString(fmt.Sprintf("\n  Path: %s", req.Path))

	if req.Kind == KindOperations && req.Group != nil {
		for i, op := range req.Group.Ops() {
			desc.WriteString(fmt.Sprintf("\n  [%d] %s", i+1, describeOperation(op)))
		}
	}
	return desc.String()
}

func describeOperation(op operation.Operation) string {
	var desc strings.Builder
	switch op.Tag {
	case operation.TagReveal:
		desc.WriteString("Reveal public key")
	case operation.TagTransaction:
		desc.WriteString(fmt.Sprintf("Transfer %s", FormatTez(op.Amount)))
		desc.WriteString(fmt.Sprintf("\n      To:   %s", formatAccount(op.Destination)))
	case operation.TagDelegation:
		if op.Destination.IsZero() {
			desc.WriteString("Withdraw delegation")
		} else {
			desc.WriteString(fmt.Sprintf("Delegate to %s", formatAccount(op.Destination)))
		}
	default:
		desc.WriteString(op.Tag.String())
	}
	desc.WriteString(fmt.Sprintf("\n      From: %s", formatAccount(op.Source)))
	desc.WriteString(fmt.Sprintf("\n      Fee:  %s", FormatTez(op.Fee)))
	if op.Source.Kind() == tezos.AccountOriginated {
		desc.WriteString("\n      ⚠️  source is a contract")
	}
	return desc.String()
}
