// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package codec provides bounds-checked reads over a fixed byte buffer.
//
// Every read either returns its value and advances the cursor, or returns a
// *DecodeError and leaves the cursor untouched. Reads never allocate.
package codec

import "encoding/binary"

// MaxVarintLen is the longest accepted varint encoding. Nine groups of seven
// bits cover 63 bits; longer encodings are rejected rather than wrapped.
const MaxVarintLen = 9

// Cursor reads sequentially from buf.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Done reports whether every byte has been consumed.
func (c *Cursor) Done() bool { return c.pos >= len(c.buf) }

// take returns the next n bytes without copying, or a short error.
func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, Malformed(c.pos, CodeUnexpectedLength, ErrUnexpectedLength)
	}
	if rem := c.Remaining(); n > rem {
		return nil, Short(c.pos, n-rem, nil)
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Uint8 reads one byte.
func (c *Cursor) Uint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 reads a big-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Int32 reads a big-endian int32.
func (c *Cursor) Int32() (int32, error) {
	v, err := c.Uint32()
	return int32(v), err
}

// Bytes returns the next n bytes. The slice aliases the underlying buffer.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	return c.take(n)
}

// Fixed copies len(dst) bytes into dst.
func (c *Cursor) Fixed(dst []byte) error {
	b, err := c.take(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// Skip advances past n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.take(n)
	return err
}

// Uvarint reads an unsigned base-128 varint (low groups first, high bit set
// on every byte but the last). The cursor only moves on success.
func (c *Cursor) Uvarint() (uint64, error) {
	var (
		acc   uint64
		shift uint
	)
	for i := 0; ; i++ {
		if c.pos+i >= len(c.buf) {
			return 0, Short(c.pos+i, 1, ErrVarintTruncated)
		}
		if i == MaxVarintLen {
			return 0, Malformed(c.pos, CodeVarintOverflow, ErrVarintOverflow)
		}
		b := c.buf[c.pos+i]
		acc |= uint64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			c.pos += i + 1
			return acc, nil
		}
	}
}
