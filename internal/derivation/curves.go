// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package derivation

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"math/big"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

// PrivateKeySize is the size of a raw private key on every supported curve.
const PrivateKeySize = 32

// ErrUnsupportedCurve is returned for curve codes with no key operations.
var ErrUnsupportedCurve = errors.New("unsupported curve")

// curveOps is the per-curve half of SLIP-10 plus key usage.
type curveOps interface {
	// seedKey is the HMAC key for the master node.
	seedKey() string
	// weierstrass curves reject out-of-range scalars and allow
	// non-hardened children; ed25519 does neither.
	weierstrass() bool
	// validScalar reports 0 < k < n.
	validScalar(k []byte) bool
	// addScalar writes (il + parent) mod n into dst; false if il >= n or
	// the sum is zero.
	addScalar(dst, il, parent []byte) bool
	// publicKey returns the wire form: 65-byte uncompressed point for
	// weierstrass curves, 32 bytes for ed25519.
	publicKey(priv []byte) ([]byte, error)
	// compress returns the form hashed into an account identifier.
	compress(pub []byte) ([]byte, error)
	sign(priv, digest []byte) ([]byte, error)
	verify(pub, digest, sig []byte) bool
}

func opsFor(c tezos.Curve) (curveOps, error) {
	switch c {
	case tezos.CurveEd25519:
		return ed25519Ops{}, nil
	case tezos.CurveSecp256k1:
		return secp256k1Ops{}, nil
	case tezos.CurveP256:
		return p256Ops{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, c)
	}
}

// Verify checks a signature produced by Deriver.Sign against a wire-form
// public key.
func Verify(c tezos.Curve, pub, digest, sig []byte) (bool, error) {
	ops, err := opsFor(c)
	if err != nil {
		return false, err
	}
	return ops.verify(pub, digest, sig), nil
}

// CompressPublicKey converts a wire-form public key into the form hashed into
// account identifiers.
func CompressPublicKey(c tezos.Curve, pub []byte) ([]byte, error) {
	ops, err := opsFor(c)
	if err != nil {
		return nil, err
	}
	return ops.compress(pub)
}

// --- ed25519 ---

type ed25519Ops struct{}

func (ed25519Ops) seedKey() string { return "ed25519 seed" }
func (ed25519Ops) weierstrass() bool { return false }
func (ed25519Ops) validScalar([]byte) bool { return true }

func (ed25519Ops) addScalar(dst, il, _ []byte) bool {
	copy(dst, il)
	return true
}

func (ed25519Ops) publicKey(priv []byte) ([]byte, error) {
	h := sha512.Sum512(priv)
	defer crypto.ZeroBytes(h[:])
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, fmt.Errorf("ed25519 scalar: %w", err)
	}
	return new(edwards25519.Point).ScalarBaseMult(s).Bytes(), nil
}

func (ed25519Ops) compress(pub []byte) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return pub, nil
}

func (ed25519Ops) sign(priv, digest []byte) ([]byte, error) {
	key := ed25519.NewKeyFromSeed(priv)
	defer crypto.ZeroBytes(key)
	return ed25519.Sign(key, digest), nil
}

func (ed25519Ops) verify(pub, digest, sig []byte) bool {
	return len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, digest, sig)
}

// --- secp256k1 ---

type secp256k1Ops struct{}

func (secp256k1Ops) seedKey() string { return "Bitcoin seed" }
func (secp256k1Ops) weierstrass() bool { return true }

func (secp256k1Ops) validScalar(k []byte) bool {
	var s btcec.ModNScalar
	defer s.Zero()
	overflow := s.SetByteSlice(k)
	return !overflow && !s.IsZero()
}

func (secp256k1Ops) addScalar(dst, il, parent []byte) bool {
	var a, b btcec.ModNScalar
	defer a.Zero()
	defer b.Zero()
	if a.SetByteSlice(il) {
		return false
	}
	b.SetByteSlice(parent)
	b.Add(&a)
	if b.IsZero() {
		return false
	}
	b.PutBytesUnchecked(dst)
	return true
}

func (secp256k1Ops) publicKey(priv []byte) ([]byte, error) {
	key, pub := btcec.PrivKeyFromBytes(priv)
	defer key.Zero()
	return pub.SerializeUncompressed(), nil
}

func (secp256k1Ops) compress(pub []byte) ([]byte, error) {
	pk, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("secp256k1 public key: %w", err)
	}
	return pk.SerializeCompressed(), nil
}

func (secp256k1Ops) sign(priv, digest []byte) ([]byte, error) {
	key, _ := btcec.PrivKeyFromBytes(priv)
	defer key.Zero()
	return btcecdsa.Sign(key, digest).Serialize(), nil
}

func (secp256k1Ops) verify(pub, digest, sig []byte) bool {
	pk, err := btcec.ParsePubKey(pub)
	if err != nil {
		return false
	}
	s, err := btcecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return s.Verify(digest, pk)
}

// --- P-256 ---

type p256Ops struct{}

func (p256Ops) seedKey() string { return "Nist256p1 seed" }
func (p256Ops) weierstrass() bool { return true }

func p256Order() *big.Int { return elliptic.P256().Params().N }

func (p256Ops) validScalar(k []byte) bool {
	s := new(big.Int).SetBytes(k)
	defer wipeInt(s)
	return s.Sign() > 0 && s.Cmp(p256Order()) < 0
}

func (p256Ops) addScalar(dst, il, parent []byte) bool {
	n := p256Order()
	a := new(big.Int).SetBytes(il)
	defer wipeInt(a)
	if a.Cmp(n) >= 0 {
		return false
	}
	b := new(big.Int).SetBytes(parent)
	defer wipeInt(b)
	b.Add(b, a)
	b.Mod(b, n)
	if b.Sign() == 0 {
		return false
	}
	b.FillBytes(dst)
	return true
}

func (p256Ops) publicKey(priv []byte) ([]byte, error) {
	key, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("p256 private key: %w", err)
	}
	return key.PublicKey().Bytes(), nil
}

func (p256Ops) compress(pub []byte) ([]byte, error) {
	if len(pub) != 65 || pub[0] != 0x04 {
		return nil, fmt.Errorf("p256 public key must be 65 bytes uncompressed, got %d", len(pub))
	}
	out := make([]byte, 33)
	out[0] = 0x02 | (pub[64] & 1)
	copy(out[1:], pub[1:33])
	return out, nil
}

func (p256Ops) sign(priv, digest []byte) ([]byte, error) {
	key, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), priv)
	if err != nil {
		return nil, fmt.Errorf("p256 private key: %w", err)
	}
	defer wipeInt(key.D)
	return ecdsa.SignASN1(rand.Reader, key, digest)
}

func (p256Ops) verify(pub, digest, sig []byte) bool {
	pk, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), pub)
	if err != nil {
		return false
	}
	return ecdsa.VerifyASN1(pk, digest, sig)
}

// wipeInt clears the limbs backing x.
func wipeInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}
