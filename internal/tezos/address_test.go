// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tezos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHash(seed byte) Hash {
	var h Hash
	for i := range h {
		h[i] = seed + byte(i)
	}
	return h
}

func TestAddressPrefixes(t *testing.T) {
	tests := []struct {
		ref    AccountRef
		prefix string
	}{
		{Implicit(CurveEd25519, sampleHash(1)), "tz1"},
		{Implicit(CurveSecp256k1, sampleHash(2)), "tz2"},
		{Implicit(CurveP256, sampleHash(3)), "tz3"},
		{Originated(sampleHash(4)), "KT1"},
		{Implicit(CurveEd25519, Hash{}), "tz1"},
		{Originated(Hash{0xFF, 0xFF, 0xFF}), "KT1"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			addr, err := tt.ref.Address()
			require.NoError(t, err)
			assert.Len(t, addr, 36)
			assert.True(t, strings.HasPrefix(addr, tt.prefix), "address %s", addr)

			back, err := ParseAddress(addr)
			require.NoError(t, err)
			assert.True(t, back.Equal(tt.ref))
		})
	}
}

func TestParseAddressRejectsCorruption(t *testing.T) {
	addr, err := Implicit(CurveSecp256k1, sampleHash(9)).Address()
	require.NoError(t, err)

	// flip one character in the body
	b := []byte(addr)
	if b[10] == 'a' {
		b[10] = 'b'
	} else {
		b[10] = 'a'
	}
	_, err = ParseAddress(string(b))
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseAddress("tz1short")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestZeroAccountHasNoAddress(t *testing.T) {
	var r AccountRef
	assert.True(t, r.IsZero())
	_, err := r.Address()
	assert.Error(t, err)
	assert.Equal(t, "", r.String())
}

func TestAccountVariants(t *testing.T) {
	h := sampleHash(7)

	imp := Implicit(CurveP256, h)
	curve, got, ok := imp.AsImplicit()
	require.True(t, ok)
	assert.Equal(t, CurveP256, curve)
	assert.Equal(t, h, got)
	_, ok = imp.AsOriginated()
	assert.False(t, ok)

	orig := Originated(h)
	got, ok = orig.AsOriginated()
	require.True(t, ok)
	assert.Equal(t, h, got)
	_, _, ok = orig.AsImplicit()
	assert.False(t, ok)

	assert.False(t, imp.Equal(orig))
}

func TestPublicKeyHashDeterministic(t *testing.T) {
	key := append([]byte{0x02}, make([]byte, 32)...)
	a, err := PublicKeyHash(key)
	require.NoError(t, err)
	b, err := PublicKeyHash(key)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	key[1] = 1
	c, err := PublicKeyHash(key)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestParseCurve(t *testing.T) {
	for name, want := range map[string]Curve{
		"ed25519":    CurveEd25519,
		"secp256k1":  CurveSecp256k1,
		" P256 ":     CurveP256,
		"prime256v1": CurveP256,
	} {
		got, err := ParseCurve(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
		assert.True(t, got.Valid())
	}
	_, err := ParseCurve("bls12-381")
	assert.Error(t, err)
	assert.False(t, NoCurve.Valid())
}
