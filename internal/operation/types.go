// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package operation decodes signable payloads: operation groups, block
// headers and endorsements. Decoding writes into caller-owned fixed-size
// values and never allocates per record.
package operation

import (
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

// MaxOperations is the capacity of a Group.
const MaxOperations = 16

// Leading byte of every signable payload.
const (
	MagicInvalid     byte = 0x00
	MagicBlock       byte = 0x01
	MagicEndorsement byte = 0x02
	MagicGroup       byte = 0x03
)

// Tag is the operation kind.
type Tag uint8

const (
	TagNone        Tag = 0
	TagReveal      Tag = 7
	TagTransaction Tag = 8
	TagDelegation  Tag = 10
)

func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagReveal:
		return "reveal"
	case TagTransaction:
		return "transaction"
	case TagDelegation:
		return "delegation"
	default:
		return "unknown"
	}
}

// Operation is one decoded record. Destination is the zero AccountRef when
// the operation has none; Amount is only set on transactions.
type Operation struct {
	Tag         Tag
	Source      tezos.AccountRef
	Destination tezos.AccountRef
	Amount      uint64
	Fee         uint64
}

// Group is a decoded operation group. Signer and PublicKey identify the key
// the group is being signed with.
type Group struct {
	Signer    tezos.AccountRef
	Curve     tezos.Curve
	PublicKey []byte
	TotalFee  uint64

	ops [MaxOperations]Operation
	n   int
}

// Ops returns the decoded operations in order. The slice aliases g.
func (g *Group) Ops() []Operation { return g.ops[:g.n] }

// Len returns the number of decoded operations.
func (g *Group) Len() int { return g.n }

// Reset clears g for reuse.
func (g *Group) Reset() {
	*g = Group{}
}

// BakingData classifies a block header or an endorsement.
type BakingData struct {
	IsEndorsement bool
	Level         uint32
}

// KeyDeriver re-derives the signing key while decoding.
type KeyDeriver interface {
	Derive(curve tezos.Curve, path derivation.Path) (derivation.Key, error)
}

// MagicByte returns the leading byte of data, or MagicInvalid when data is
// empty.
func MagicByte(data []byte) byte {
	if len(data) == 0 {
		return MagicInvalid
	}
	return data[0]
}
