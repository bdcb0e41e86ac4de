// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tezos

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Base58check prefixes for 20-byte hashes.
var (
	prefixTZ1 = []byte{6, 161, 159}
	prefixTZ2 = []byte{6, 161, 161}
	prefixTZ3 = []byte{6, 161, 164}
	prefixKT1 = []byte{2, 90, 121}
)

// ErrInvalidAddress is returned when an address fails to decode.
var ErrInvalidAddress = errors.New("invalid address")

func implicitPrefix(c Curve) ([]byte, error) {
	switch c {
	case CurveEd25519:
		return prefixTZ1, nil
	case CurveSecp256k1:
		return prefixTZ2, nil
	case CurveP256:
		return prefixTZ3, nil
	default:
		return nil, fmt.Errorf("no address prefix for %s", c)
	}
}

// Address encodes the reference as tz1/tz2/tz3 (implicit) or KT1 (originated).
func (r AccountRef) Address() (string, error) {
	switch r.kind {
	case AccountImplicit:
		prefix, err := implicitPrefix(r.curve)
		if err != nil {
			return "", err
		}
		return encodeCheck(prefix, r.hash[:]), nil
	case AccountOriginated:
		return encodeCheck(prefixKT1, r.hash[:]), nil
	default:
		return "", errors.New("empty account reference")
	}
}

// ParseAddress decodes a tz1/tz2/tz3/KT1 address.
func ParseAddress(s string) (AccountRef, error) {
	raw := base58.Decode(s)
	if len(raw) != 3+HashSize+4 {
		return AccountRef{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	payload, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(checksum(payload), sum) {
		return AccountRef{}, fmt.Errorf("%w: bad checksum", ErrInvalidAddress)
	}
	var h Hash
	copy(h[:], payload[3:])
	switch prefix := payload[:3]; {
	case bytes.Equal(prefix, prefixTZ1):
		return Implicit(CurveEd25519, h), nil
	case bytes.Equal(prefix, prefixTZ2):
		return Implicit(CurveSecp256k1, h), nil
	case bytes.Equal(prefix, prefixTZ3):
		return Implicit(CurveP256, h), nil
	case bytes.Equal(prefix, prefixKT1):
		return Originated(h), nil
	default:
		return AccountRef{}, fmt.Errorf("%w: unknown prefix", ErrInvalidAddress)
	}
}

func encodeCheck(prefix, payload []byte) string {
	buf := make([]byte, 0, len(prefix)+len(payload)+4)
	buf = append(buf, prefix...)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf)...)
	return base58.Encode(buf)
}

func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:4]
}
