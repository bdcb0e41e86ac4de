// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package tezos holds the account primitives shared by the decoder, the key
// deriver and the approval flow: curve codes, public key hashes, account
// references and their base58check addresses.
package tezos

import (
	"fmt"
	"strings"
)

// Curve identifies the elliptic curve of a key. The numeric value is the
// curve code carried on the wire.
type Curve uint8

const (
	CurveEd25519   Curve = 0x00
	CurveSecp256k1 Curve = 0x01
	CurveP256      Curve = 0x02

	// NoCurve marks account references that carry no curve (originated).
	NoCurve Curve = 0xFF
)

// String returns the configuration name of the curve.
func (c Curve) String() string {
	switch c {
	case CurveEd25519:
		return "ed25519"
	case CurveSecp256k1:
		return "secp256k1"
	case CurveP256:
		return "p256"
	case NoCurve:
		return "none"
	default:
		return fmt.Sprintf("curve(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the supported signing curves.
func (c Curve) Valid() bool {
	return c == CurveEd25519 || c == CurveSecp256k1 || c == CurveP256
}

// ParseCurve resolves a configuration name ("ed25519", "secp256k1", "p256").
// A few common aliases are accepted.
func ParseCurve(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ed25519":
		return CurveEd25519, nil
	case "secp256k1", "k1":
		return CurveSecp256k1, nil
	case "p256", "p-256", "secp256r1", "nist256p1", "prime256v1":
		return CurveP256, nil
	default:
		return NoCurve, fmt.Errorf("unsupported curve: %q", name)
	}
}
