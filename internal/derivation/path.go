// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package derivation turns a curve and a hierarchical path into key material.
// Private keys only ever exist in buffers this package zeroes before returning.
package derivation

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aplane-algo/tzsigner/internal/codec"
)

const (
	// MaxPathLength is the maximum number of indices in a path.
	MaxPathLength = 10

	// Hardened marks a hardened index.
	Hardened uint32 = 0x80000000
)

// ErrPathLength is returned for paths with no indices or more than
// MaxPathLength indices.
var ErrPathLength = errors.New("invalid derivation path length")

// Path is a fixed-capacity derivation path. The zero value is the empty path,
// which no operation accepts.
type Path struct {
	n   uint8
	idx [MaxPathLength]uint32
}

// NewPath builds a path from indices.
func NewPath(indices ...uint32) (Path, error) {
	var p Path
	if len(indices) == 0 || len(indices) > MaxPathLength {
		return p, fmt.Errorf("%w: %d", ErrPathLength, len(indices))
	}
	p.n = uint8(len(indices))
	copy(p.idx[:], indices)
	return p, nil
}

// ReadPath reads `[len][len x 4-byte big-endian index]` from c. On a length
// violation the cursor has consumed only the length byte.
func ReadPath(c *codec.Cursor) (Path, error) {
	var p Path
	n, err := c.Uint8()
	if err != nil {
		return p, err
	}
	if n == 0 || n > MaxPathLength {
		return p, fmt.Errorf("%w: %d", ErrPathLength, n)
	}
	for i := 0; i < int(n); i++ {
		v, err := c.Uint32()
		if err != nil {
			return Path{}, err
		}
		p.idx[i] = v
	}
	p.n = n
	return p, nil
}

// Len returns the number of indices.
func (p Path) Len() int { return int(p.n) }

// Index returns the i-th index.
func (p Path) Index(i int) uint32 { return p.idx[i] }

// Indices returns a copy of the indices.
func (p Path) Indices() []uint32 {
	out := make([]uint32, p.n)
	copy(out, p.idx[:p.n])
	return out
}

// Equal reports whether both paths hold the same indices.
func (p Path) Equal(o Path) bool {
	return p.n == o.n && p.idx == o.idx
}

// AppendBinary appends the wire encoding of p to b.
func (p Path) AppendBinary(b []byte) []byte {
	b = append(b, p.n)
	for _, v := range p.idx[:p.n] {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return b
}

// String renders the path as 44'/1729'/0'.
func (p Path) String() string {
	var sb strings.Builder
	for i, v := range p.idx[:p.n] {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.FormatUint(uint64(v&^Hardened), 10))
		if v&Hardened != 0 {
			sb.WriteByte('\'')
		}
	}
	return sb.String()
}
