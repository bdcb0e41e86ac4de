// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeUvarint is the reference encoder used to build test vectors.
func encodeUvarint(v uint64) []byte {
	var out []byte
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}
	return append(out, byte(v))
}

func TestCursorFixedReads(t *testing.T) {
	c := NewCursor([]byte{0x07, 0x00, 0x00, 0x01, 0x02, 0xAA, 0xBB})

	b, err := c.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), b)

	v, err := c.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00000102), v)
	assert.Equal(t, 5, c.Pos())

	rest, err := c.Bytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, rest)
	assert.True(t, c.Done())
}

func TestCursorShortReadDoesNotAdvance(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03})
	require.NoError(t, c.Skip(1))

	_, err := c.Uint32()
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, KindShort, de.Kind)
	assert.Equal(t, uint16(2), de.Code, "two more bytes would complete the read")
	assert.True(t, errors.Is(err, ErrShortBuffer))
	assert.Equal(t, 1, c.Pos(), "cursor must stay put on failure")

	var dst [4]byte
	err = c.Fixed(dst[:])
	require.Error(t, err)
	assert.Equal(t, [4]byte{}, dst, "destination untouched on failure")
}

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 0x7F, 0x80, 300, 0x3FFF, 0x4000, 1_000_000,
		1<<35 + 12345, 1<<56 - 1, 1<<63 - 1,
	}
	for _, v := range values {
		enc := encodeUvarint(v)
		require.LessOrEqual(t, len(enc), MaxVarintLen)

		c := NewCursor(enc)
		got, err := c.Uvarint()
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
		assert.True(t, c.Done())
	}
}

func TestUvarintTruncated(t *testing.T) {
	for n := 0; n <= MaxVarintLen; n++ {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = 0xFF
		}
		c := NewCursor(buf)
		v, err := c.Uvarint()
		require.Error(t, err, "length %d", n)
		assert.Zero(t, v)
		assert.True(t, errors.Is(err, ErrVarintTruncated))

		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, KindShort, de.Kind)
		assert.Equal(t, uint16(0x6C01), de.Status())
		assert.Equal(t, 0, c.Pos())
	}
}

func TestUvarintOverflow(t *testing.T) {
	buf := append([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}, 0x01)
	c := NewCursor(buf)
	_, err := c.Uvarint()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVarintOverflow))

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, KindMalformed, de.Kind)
	assert.Equal(t, uint16(0x6800|CodeVarintOverflow), de.Status())
}

func TestDecodeErrorStatus(t *testing.T) {
	assert.Equal(t, uint16(0x6C05), Short(0, 5, nil).Status())
	assert.Equal(t, uint16(0x6CFF), Short(0, 1000, nil).Status())
	assert.Equal(t, uint16(0x680F), Malformed(0, CodeBadMagic, ErrBadMagic).Status())
	assert.Equal(t, uint16(0x6865), Malformed(0, CodeParametersUnsupported, ErrParametersUnsupported).Status())
}

func TestInRecordMarksOnlyShortfalls(t *testing.T) {
	short := InRecord(Short(3, 4, nil))
	assert.True(t, errors.Is(short, ErrTrailingData))
	assert.True(t, errors.Is(short, ErrShortBuffer))

	bad := InRecord(Malformed(3, CodeBadMagic, ErrBadMagic))
	assert.False(t, errors.Is(bad, ErrTrailingData))
}
