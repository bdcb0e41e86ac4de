// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package apdu holds the command layout and status words shared by the
// device engine and the host client.
package apdu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aplane-algo/tzsigner/internal/codec"
)

// Status is a two-byte status word.
type Status uint16

const (
	StatusOK               Status = 0x9000
	StatusWrongLength      Status = 0x6700
	StatusPathLength       Status = 0x6A80
	StatusEmptyCommand     Status = 0x6982
	StatusRejected         Status = 0x6985
	StatusConditionsNotMet Status = 0x6986
	StatusWrongParams      Status = 0x6B00
	StatusUnsupportedINS   Status = 0x6D00
	StatusWrongClass       Status = 0x6E00
	StatusInternal         Status = 0x6F00
	StatusCapacity         Status = 0x9200

	statusShortPrefix     Status = 0x6C00
	statusMalformedPrefix Status = 0x6800
)

var statusText = map[Status]string{
	StatusOK:               "ok",
	StatusWrongLength:      "wrong length",
	StatusPathLength:       "invalid path length",
	StatusEmptyCommand:     "empty command",
	StatusRejected:         "rejected by user",
	StatusConditionsNotMet: "no signing request in progress",
	StatusWrongParams:      "wrong parameters",
	StatusUnsupportedINS:   "instruction not supported",
	StatusWrongClass:       "class not supported",
	StatusInternal:         "internal error",
	StatusCapacity:         "payload too large",
}

func (s Status) String() string {
	if t, ok := statusText[s]; ok {
		return fmt.Sprintf("%04X (%s)", uint16(s), t)
	}
	switch s & 0xFF00 {
	case statusShortPrefix:
		return fmt.Sprintf("%04X (payload %d byte(s) short)", uint16(s), uint16(s&0xFF))
	case statusMalformedPrefix:
		return fmt.Sprintf("%04X (malformed payload, code %d)", uint16(s), uint16(s&0xFF))
	}
	return fmt.Sprintf("%04X", uint16(s))
}

// Bytes returns the big-endian encoding.
func (s Status) Bytes() []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(s))
}

// Error is an error answered with a specific status word.
type Error struct {
	Status Status
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Status.String()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted cause.
func Errorf(status Status, format string, args ...any) error {
	return &Error{Status: status, Err: fmt.Errorf(format, args...)}
}

// Sentinel errors for the command layer.
var (
	ErrRejected = &Error{Status: StatusRejected, Err: errors.New("rejected")}
)

// StatusOf maps any error to the status word it is answered with. Decoder
// failures keep their own status; unknown errors are internal.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	var de *codec.DecodeError
	if errors.As(err, &de) {
		return Status(de.Status())
	}
	return StatusInternal
}
