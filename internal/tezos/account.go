// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tezos

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of a public key hash and of a contract hash.
const HashSize = 20

// Hash is a public key hash (implicit accounts) or a contract hash
// (originated accounts).
type Hash [HashSize]byte

// PublicKeyHash hashes a compressed public key with blake2b-160.
func PublicKeyHash(compressed []byte) (Hash, error) {
	var out Hash
	h, err := blake2b.New(HashSize, nil)
	if err != nil {
		return out, fmt.Errorf("failed to create blake2b-160: %w", err)
	}
	h.Write(compressed)
	copy(out[:], h.Sum(nil))
	return out, nil
}

// AccountKind discriminates the two account reference variants.
type AccountKind uint8

const (
	AccountNone AccountKind = iota
	AccountImplicit
	AccountOriginated
)

// AccountRef is either an implicit account (curve + public key hash) or an
// originated account (contract hash). The zero value is "no account".
// Fields are private so that a curve can only be attached to the implicit
// variant.
type AccountRef struct {
	kind  AccountKind
	curve Curve
	hash  Hash
}

// Implicit builds an implicit account reference.
func Implicit(curve Curve, hash Hash) AccountRef {
	return AccountRef{kind: AccountImplicit, curve: curve, hash: hash}
}

// Originated builds an originated account reference.
func Originated(hash Hash) AccountRef {
	return AccountRef{kind: AccountOriginated, curve: NoCurve, hash: hash}
}

// Kind returns the variant.
func (r AccountRef) Kind() AccountKind { return r.kind }

// IsZero reports whether r holds no account.
func (r AccountRef) IsZero() bool { return r.kind == AccountNone }

// AsImplicit returns the curve and key hash of an implicit account.
func (r AccountRef) AsImplicit() (Curve, Hash, bool) {
	if r.kind != AccountImplicit {
		return NoCurve, Hash{}, false
	}
	return r.curve, r.hash, true
}

// AsOriginated returns the contract hash of an originated account.
func (r AccountRef) AsOriginated() (Hash, bool) {
	if r.kind != AccountOriginated {
		return Hash{}, false
	}
	return r.hash, true
}

// Equal compares two references variant-wise.
func (r AccountRef) Equal(o AccountRef) bool {
	return r.kind == o.kind && r.curve == o.curve && r.hash == o.hash
}

// String returns the base58check address, or "" for the zero value.
func (r AccountRef) String() string {
	addr, err := r.Address()
	if err != nil {
		return ""
	}
	return addr
}
