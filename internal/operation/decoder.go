// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package operation

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/aplane-algo/tzsigner/internal/codec"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

const (
	branchSize = 32
	// [magic][branch]
	groupHeaderSize = 1 + branchSize
	// [originated][curve][hash] or [originated][hash][padding]
	contractSize = 1 + 1 + tezos.HashSize
	// [tag][contract]
	operationHeaderSize = 1 + contractSize
	// [present][curve][hash]
	delegationSize = 1 + 1 + tezos.HashSize
)

// Decoder decodes operation groups against the key they are signed with.
type Decoder struct {
	keys KeyDeriver
}

// NewDecoder returns a decoder that derives signing keys with keys.
func NewDecoder(keys KeyDeriver) *Decoder {
	return &Decoder{keys: keys}
}

// Decode fills out from data, an operation group to be signed by the key at
// (curve, path). Errors are *codec.DecodeError except for key derivation
// failures.
func (d *Decoder) Decode(data []byte, curve tezos.Curve, path derivation.Path, out *Group) error {
	out.Reset()

	key, err := d.keys.Derive(curve, path)
	if err != nil {
		return fmt.Errorf("derive signing key: %w", err)
	}
	out.Signer = key.Account
	out.Curve = curve
	out.PublicKey = key.PublicKey

	c := codec.NewCursor(data)
	hdr, err := c.Bytes(groupHeaderSize)
	if err != nil {
		return err
	}
	// the branch is not checked against the chain
	if hdr[0] != MagicGroup {
		return codec.Malformed(0, codec.CodeBadMagic, codec.ErrBadMagic)
	}

	for !c.Done() {
		if out.n >= MaxOperations {
			return codec.Malformed(c.Pos(), codec.CodeTooManyOperations, codec.ErrTooManyOperations)
		}
		op := &out.ops[out.n]
		if err := d.decodeOperation(c, out, op); err != nil {
			*op = Operation{}
			return codec.InRecord(err)
		}
		out.n++
	}
	return nil
}

func (d *Decoder) decodeOperation(c *codec.Cursor, g *Group, op *Operation) error {
	start := c.Pos()
	hdr, err := c.Bytes(operationHeaderSize)
	if err != nil {
		return err
	}
	op.Tag = Tag(hdr[0])
	op.Source = contractRef(hdr[1:])

	fee, err := c.Uvarint()
	if err != nil {
		return err
	}
	total, carry := bits.Add64(g.TotalFee, fee, 0)
	if carry != 0 {
		return codec.Malformed(start, codec.CodeFeeOverflow, codec.ErrFeeOverflow)
	}
	g.TotalFee = total
	op.Fee = fee

	// counter, gas limit, storage limit
	for i := 0; i < 3; i++ {
		if _, err := c.Uvarint(); err != nil {
			return err
		}
	}

	switch op.Tag {
	case TagReveal:
		return decodeReveal(c, g)
	case TagDelegation:
		return decodeDelegation(c, op)
	case TagTransaction:
		return decodeTransaction(c, op)
	default:
		return codec.Malformed(start, codec.CodeUnsupportedOperation,
			fmt.Errorf("%w: tag %d", codec.ErrUnsupportedOperation, hdr[0]))
	}
}

// A reveal must publish the signing key itself.
func decodeReveal(c *codec.Cursor, g *Group) error {
	pos := c.Pos()
	curve, err := c.Uint8()
	if err != nil {
		return err
	}
	if tezos.Curve(curve) != g.Curve {
		return codec.Malformed(pos, codec.CodeRevealCurveMismatch, codec.ErrRevealCurveMismatch)
	}
	pos = c.Pos()
	key, err := c.Bytes(len(g.PublicKey))
	if err != nil {
		return err
	}
	if !bytes.Equal(key, g.PublicKey) {
		return codec.Malformed(pos, codec.CodeRevealKeyMismatch, codec.ErrRevealKeyMismatch)
	}
	return nil
}

func decodeDelegation(c *codec.Cursor, op *Operation) error {
	raw, err := c.Bytes(delegationSize)
	if err != nil {
		return err
	}
	// a zero presence flag withdraws the delegation
	if raw[0] != 0 {
		var h tezos.Hash
		copy(h[:], raw[2:])
		op.Destination = tezos.Implicit(tezos.Curve(raw[1]), h)
	}
	return nil
}

func decodeTransaction(c *codec.Cursor, op *Operation) error {
	amount, err := c.Uvarint()
	if err != nil {
		return err
	}
	op.Amount = amount

	raw, err := c.Bytes(contractSize)
	if err != nil {
		return err
	}
	op.Destination = contractRef(raw)

	pos := c.Pos()
	params, err := c.Uint8()
	if err != nil {
		return err
	}
	if params != 0 {
		return codec.Malformed(pos, codec.CodeParametersUnsupported, codec.ErrParametersUnsupported)
	}
	return nil
}

// contractRef interprets a contractSize-byte contract record. Curve codes
// are carried as-is; unknown ones surface when the address is rendered.
func contractRef(raw []byte) tezos.AccountRef {
	var h tezos.Hash
	if raw[0] == 0 {
		copy(h[:], raw[2:2+tezos.HashSize])
		return tezos.Implicit(tezos.Curve(raw[1]), h)
	}
	copy(h[:], raw[1:1+tezos.HashSize])
	return tezos.Originated(h)
}
