// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package codec

import (
	"errors"
	"fmt"
)

// Kind separates "need more bytes" failures from malformed input.
type Kind uint8

const (
	KindShort Kind = iota + 1
	KindMalformed
)

// Reason codes for malformed input. Short failures carry the number of
// missing bytes instead.
const (
	CodeRevealKeyMismatch     uint16 = 4
	CodeUnsupportedOperation  uint16 = 8
	CodeBadMagic              uint16 = 15
	CodeVarintOverflow        uint16 = 24
	CodeFeeOverflow           uint16 = 25
	CodeUnexpectedLength      uint16 = 26
	CodeTooManyOperations     uint16 = 55
	CodeRevealCurveMismatch   uint16 = 64
	CodeParametersUnsupported uint16 = 101
)

// Sentinel errors matched with errors.Is.
var (
	ErrShortBuffer           = errors.New("short buffer")
	ErrVarintTruncated       = errors.New("varint truncated")
	ErrVarintOverflow        = errors.New("varint exceeds 63 bits")
	ErrTrailingData          = errors.New("trailing partial record")
	ErrBadMagic              = errors.New("unexpected magic byte")
	ErrUnexpectedLength      = errors.New("unexpected payload length")
	ErrRevealCurveMismatch   = errors.New("reveal curve does not match signing key")
	ErrRevealKeyMismatch     = errors.New("reveal key does not match signing key")
	ErrUnsupportedOperation  = errors.New("unsupported operation kind")
	ErrTooManyOperations     = errors.New("too many operations in group")
	ErrParametersUnsupported = errors.New("transaction parameters are not supported")
	ErrFeeOverflow           = errors.New("total fee overflows")
)

// DecodeError reports a decoding failure. For KindShort, Code is the exact
// number of additional bytes the failed read needed; for KindMalformed it is
// one of the Code* reason codes.
type DecodeError struct {
	Kind   Kind
	Code   uint16
	Offset int
	Err    error

	// trailing marks shortfalls that happened inside a record
	trailing bool
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindShort:
		if e.trailing {
			return fmt.Sprintf("%v at offset %d: %v, %d more byte(s) needed", ErrTrailingData, e.Offset, e.Err, e.Code)
		}
		return fmt.Sprintf("%v at offset %d: %d more byte(s) needed", e.Err, e.Offset, e.Code)
	default:
		return fmt.Sprintf("%v at offset %d (code %d)", e.Err, e.Offset, e.Code)
	}
}

// Unwrap exposes the sentinel, and ErrTrailingData for in-record shortfalls.
func (e *DecodeError) Unwrap() []error {
	if e.trailing {
		return []error{e.Err, ErrTrailingData}
	}
	return []error{e.Err}
}

// Status maps the error onto a two-byte status word. The high byte tells the
// two classes apart: 0x6C for short input (low byte = bytes needed, capped at
// 0xFF), 0x68 for malformed input (low byte = reason code).
func (e *DecodeError) Status() uint16 {
	if e.Kind == KindShort {
		n := e.Code
		if n > 0xFF {
			n = 0xFF
		}
		return 0x6C00 | n
	}
	return 0x6800 | (e.Code & 0xFF)
}

// Short builds a KindShort error.
func Short(offset, needed int, err error) *DecodeError {
	if err == nil {
		err = ErrShortBuffer
	}
	return &DecodeError{Kind: KindShort, Code: uint16(needed), Offset: offset, Err: err}
}

// Malformed builds a KindMalformed error.
func Malformed(offset int, code uint16, err error) *DecodeError {
	return &DecodeError{Kind: KindMalformed, Code: code, Offset: offset, Err: err}
}

// InRecord marks err, if it is a shortfall, as a trailing partial record.
// Other errors are returned unchanged.
func InRecord(err error) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Kind == KindShort {
		de.trailing = true
	}
	return err
}
