// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package derivation

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

// Oracle produces raw private keys. Implementations write into out, which
// the caller owns and zeroes.
type Oracle interface {
	PrivateKey(curve tezos.Curve, path Path, out []byte) error
}

var (
	// ErrKeyBuffer is returned when out is not PrivateKeySize bytes.
	ErrKeyBuffer = errors.New("private key buffer must be 32 bytes")
	// ErrSeedDestroyed is returned after SeedOracle.Destroy.
	ErrSeedDestroyed = errors.New("seed has been destroyed")
)

// SeedOracle derives keys from a BIP39 seed with SLIP-10. On ed25519 every
// index is derived hardened.
type SeedOracle struct {
	mu   sync.RWMutex
	seed []byte
}

// NewSeedOracle copies seed; the caller may zero its own copy.
func NewSeedOracle(seed []byte) (*SeedOracle, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("seed must be 16 to 64 bytes, got %d", len(seed))
	}
	s := make([]byte, len(seed))
	copy(s, seed)
	return &SeedOracle{seed: s}, nil
}

// Destroy zeroes the seed. Subsequent calls fail with ErrSeedDestroyed.
func (o *SeedOracle) Destroy() {
	o.mu.Lock()
	defer o.mu.Unlock()
	crypto.ZeroBytes(o.seed)
	o.seed = nil
}

// PrivateKey implements Oracle.
func (o *SeedOracle) PrivateKey(curve tezos.Curve, path Path, out []byte) error {
	if len(out) != PrivateKeySize {
		return ErrKeyBuffer
	}
	ops, err := opsFor(curve)
	if err != nil {
		return err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.seed == nil {
		return ErrSeedDestroyed
	}

	// node = key || chain code
	var node [64]byte
	defer crypto.ZeroBytes(node[:])

	mac := hmac.New(sha512.New, []byte(ops.seedKey()))
	mac.Write(o.seed)
	mac.Sum(node[:0])
	for ops.weierstrass() && !ops.validScalar(node[:32]) {
		mac = hmac.New(sha512.New, []byte(ops.seedKey()))
		mac.Write(node[:])
		mac.Sum(node[:0])
	}

	for i := 0; i < path.Len(); i++ {
		index := path.Index(i)
		if !ops.weierstrass() {
			index |= Hardened
		}
		if err := childKey(ops, &node, index); err != nil {
			return fmt.Errorf("derive index %d: %w", i, err)
		}
	}
	copy(out, node[:32])
	return nil
}

// childKey replaces node with its child at index.
func childKey(ops curveOps, node *[64]byte, index uint32) error {
	var data [37]byte
	defer crypto.ZeroBytes(data[:])
	if index&Hardened != 0 {
		data[0] = 0
		copy(data[1:33], node[:32])
	} else {
		pub, err := ops.publicKey(node[:32])
		if err != nil {
			return err
		}
		compressed, err := ops.compress(pub)
		if err != nil {
			return err
		}
		copy(data[:33], compressed)
	}
	binary.BigEndian.PutUint32(data[33:], index)

	var digest [64]byte
	defer crypto.ZeroBytes(digest[:])
	for {
		mac := hmac.New(sha512.New, node[32:])
		mac.Write(data[:])
		mac.Sum(digest[:0])

		if ops.addScalar(node[:32], digest[:32], node[:32]) {
			copy(node[32:], digest[32:])
			return nil
		}
		// out of range: retry with 0x01 || IR || index
		data[0] = 1
		copy(data[1:33], digest[32:])
	}
}
