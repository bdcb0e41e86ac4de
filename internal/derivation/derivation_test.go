// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package derivation

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/tzsigner/internal/codec"
	"github.com/aplane-algo/tzsigner/internal/digest"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

var testSeed = mustHex("000102030405060708090a0b0c0d0e0f")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func newTestDeriver(t *testing.T) *Deriver {
	t.Helper()
	o, err := NewSeedOracle(testSeed)
	require.NoError(t, err)
	return NewDeriver(o)
}

func mustPath(t *testing.T, idx ...uint32) Path {
	t.Helper()
	p, err := NewPath(idx...)
	require.NoError(t, err)
	return p
}

var allCurves = []tezos.Curve{tezos.CurveEd25519, tezos.CurveSecp256k1, tezos.CurveP256}

func TestPathWireRoundTrip(t *testing.T) {
	p := mustPath(t, 44|Hardened, 1729|Hardened, 0|Hardened, 7)
	assert.Equal(t, "44'/1729'/0'/7", p.String())

	wire := p.AppendBinary(nil)
	assert.Equal(t, 1+4*4, len(wire))

	c := codec.NewCursor(wire)
	back, err := ReadPath(c)
	require.NoError(t, err)
	assert.True(t, back.Equal(p))
	assert.True(t, c.Done())
	assert.Equal(t, []uint32{44 | Hardened, 1729 | Hardened, Hardened, 7}, back.Indices())
}

func TestReadPathLengthBounds(t *testing.T) {
	_, err := ReadPath(codec.NewCursor([]byte{0}))
	assert.ErrorIs(t, err, ErrPathLength)

	_, err = ReadPath(codec.NewCursor(append([]byte{MaxPathLength + 1}, make([]byte, 44)...)))
	assert.ErrorIs(t, err, ErrPathLength)

	full := append([]byte{MaxPathLength}, make([]byte, 4*MaxPathLength)...)
	p, err := ReadPath(codec.NewCursor(full))
	require.NoError(t, err)
	assert.Equal(t, MaxPathLength, p.Len())

	// two entries declared, one and a half present
	_, err = ReadPath(codec.NewCursor([]byte{2, 0x80, 0, 0, 0, 0x80, 0}))
	var de *codec.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, codec.KindShort, de.Kind)
	assert.Equal(t, uint16(2), de.Code)

	_, err = NewPath()
	assert.ErrorIs(t, err, ErrPathLength)
}

func TestDeriveDeterministicAndScratchZeroed(t *testing.T) {
	d := newTestDeriver(t)
	path := mustPath(t, 44|Hardened, 1729|Hardened, 0|Hardened, 0|Hardened)
	zero := make([]byte, PrivateKeySize)

	for _, curve := range allCurves {
		t.Run(curve.String(), func(t *testing.T) {
			a, err := d.Derive(curve, path)
			require.NoError(t, err)
			assert.Equal(t, zero, d.scratch[:])

			b, err := d.Derive(curve, path)
			require.NoError(t, err)
			assert.Equal(t, zero, d.scratch[:])

			assert.Equal(t, a.PublicKey, b.PublicKey)
			assert.True(t, a.Account.Equal(b.Account))

			gotCurve, _, ok := a.Account.AsImplicit()
			require.True(t, ok)
			assert.Equal(t, curve, gotCurve)

			if curve == tezos.CurveEd25519 {
				assert.Len(t, a.PublicKey, 32)
			} else {
				assert.Len(t, a.PublicKey, 65)
				assert.Equal(t, byte(0x04), a.PublicKey[0])
			}

			other, err := d.Derive(curve, mustPath(t, 44|Hardened, 1729|Hardened, 1|Hardened))
			require.NoError(t, err)
			assert.NotEqual(t, a.PublicKey, other.PublicKey)
		})
	}
}

type failingOracle struct{}

func (failingOracle) PrivateKey(_ tezos.Curve, _ Path, out []byte) error {
	for i := range out {
		out[i] = 0xAA
	}
	return errors.New("secure element unavailable")
}

func TestScratchZeroedOnError(t *testing.T) {
	d := NewDeriver(failingOracle{})
	path := mustPath(t, Hardened)

	_, err := d.Derive(tezos.CurveP256, path)
	require.Error(t, err)
	assert.Equal(t, make([]byte, PrivateKeySize), d.scratch[:])

	_, err = d.Sign(tezos.CurveSecp256k1, path, make([]byte, 32))
	require.Error(t, err)
	assert.Equal(t, make([]byte, PrivateKeySize), d.scratch[:])

	_, err = d.Derive(tezos.NoCurve, path)
	assert.ErrorIs(t, err, ErrUnsupportedCurve)
}

func TestSignVerify(t *testing.T) {
	d := newTestDeriver(t)
	path := mustPath(t, 44|Hardened, 1729|Hardened)
	msg := digest.Sum([]byte("operation group"))

	for _, curve := range allCurves {
		t.Run(curve.String(), func(t *testing.T) {
			key, err := d.Derive(curve, path)
			require.NoError(t, err)
			sig, err := d.Sign(curve, path, msg[:])
			require.NoError(t, err)
			assert.Equal(t, make([]byte, PrivateKeySize), d.scratch[:])

			ok, err := Verify(curve, key.PublicKey, msg[:], sig)
			require.NoError(t, err)
			assert.True(t, ok)

			tampered := msg
			tampered[0] ^= 1
			ok, err = Verify(curve, key.PublicKey, tampered[:], sig)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

// SLIP-10 on secp256k1 is BIP32, so hdkeychain must agree on every path,
// including non-hardened indices.
func TestSecp256k1MatchesBIP32(t *testing.T) {
	d := newTestDeriver(t)
	indices := []uint32{44 | Hardened, 1729 | Hardened, 0 | Hardened, 1, 5}

	master, err := hdkeychain.NewMaster(testSeed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	node := master
	for _, idx := range indices {
		node, err = node.Derive(idx)
		require.NoError(t, err)
	}
	want, err := node.ECPubKey()
	require.NoError(t, err)

	got, err := d.Derive(tezos.CurveSecp256k1, mustPath(t, indices...))
	require.NoError(t, err)
	assert.Equal(t, want.SerializeUncompressed(), got.PublicKey)
}

// SLIP-10 test vector 1, chain m/0H.
func TestEd25519Slip10Vector(t *testing.T) {
	o, err := NewSeedOracle(testSeed)
	require.NoError(t, err)

	priv := make([]byte, PrivateKeySize)
	require.NoError(t, o.PrivateKey(tezos.CurveEd25519, mustPath(t, 0|Hardened), priv))
	assert.Equal(t, "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3", hex.EncodeToString(priv))

	// non-hardened indices are hardened on ed25519
	soft := make([]byte, PrivateKeySize)
	require.NoError(t, o.PrivateKey(tezos.CurveEd25519, mustPath(t, 0), soft))
	assert.Equal(t, priv, soft)

	d := NewDeriver(o)
	key, err := d.Derive(tezos.CurveEd25519, mustPath(t, 0|Hardened))
	require.NoError(t, err)
	want := ed25519.NewKeyFromSeed(priv).Public().(ed25519.PublicKey)
	assert.Equal(t, []byte(want), key.PublicKey)
}

func TestSeedOracleDestroy(t *testing.T) {
	o, err := NewSeedOracle(testSeed)
	require.NoError(t, err)
	o.Destroy()

	err = o.PrivateKey(tezos.CurveP256, mustPath(t, Hardened), make([]byte, PrivateKeySize))
	assert.ErrorIs(t, err, ErrSeedDestroyed)

	_, err = NewSeedOracle(make([]byte, 8))
	assert.Error(t, err)

	err = (&SeedOracle{seed: testSeed}).PrivateKey(tezos.CurveP256, mustPath(t, Hardened), make([]byte, 16))
	assert.ErrorIs(t, err, ErrKeyBuffer)
}

func TestCompressPublicKey(t *testing.T) {
	d := newTestDeriver(t)
	for _, curve := range allCurves {
		key, err := d.Derive(curve, mustPath(t, Hardened))
		require.NoError(t, err)
		c, err := CompressPublicKey(curve, key.PublicKey)
		require.NoError(t, err)
		want, err := tezos.PublicKeyHash(c)
		require.NoError(t, err)
		_, h, _ := key.Account.AsImplicit()
		assert.Equal(t, want, h, curve.String())
	}
}
