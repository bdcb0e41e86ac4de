// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package derivation

import (
	"fmt"

	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

// Key is a derived public key and its implicit account.
type Key struct {
	Curve     tezos.Curve
	PublicKey []byte
	Account   tezos.AccountRef
}

// Deriver materializes private keys from an Oracle into a scratch buffer it
// owns, and zeroes that buffer before every return. A Deriver is not safe for
// concurrent use; each session owns one.
type Deriver struct {
	oracle  Oracle
	scratch [PrivateKeySize]byte
}

// NewDeriver returns a deriver backed by oracle.
func NewDeriver(oracle Oracle) *Deriver {
	return &Deriver{oracle: oracle}
}

// Derive returns the public key and account for (curve, path).
func (d *Deriver) Derive(curve tezos.Curve, path Path) (Key, error) {
	defer crypto.ZeroBytes(d.scratch[:])

	ops, err := d.load(curve, path)
	if err != nil {
		return Key{}, err
	}
	pub, err := ops.publicKey(d.scratch[:])
	if err != nil {
		return Key{}, err
	}
	compressed, err := ops.compress(pub)
	if err != nil {
		return Key{}, err
	}
	hash, err := tezos.PublicKeyHash(compressed)
	if err != nil {
		return Key{}, err
	}
	return Key{Curve: curve, PublicKey: pub, Account: tezos.Implicit(curve, hash)}, nil
}

// Sign signs digest with the key at (curve, path). ed25519 signatures are 64
// bytes; secp256k1 and P-256 signatures are DER encoded.
func (d *Deriver) Sign(curve tezos.Curve, path Path, digest []byte) ([]byte, error) {
	defer crypto.ZeroBytes(d.scratch[:])

	ops, err := d.load(curve, path)
	if err != nil {
		return nil, err
	}
	sig, err := ops.sign(d.scratch[:], digest)
	if err != nil {
		return nil, fmt.Errorf("sign with %s key: %w", curve, err)
	}
	return sig, nil
}

func (d *Deriver) load(curve tezos.Curve, path Path) (curveOps, error) {
	if path.Len() == 0 || path.Len() > MaxPathLength {
		return nil, ErrPathLength
	}
	ops, err := opsFor(curve)
	if err != nil {
		return nil, err
	}
	if err := d.oracle.PrivateKey(curve, path, d.scratch[:]); err != nil {
		return nil, fmt.Errorf("derive %s key at %s: %w", curve, path, err)
	}
	return ops, nil
}
