// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package apdu

import (
	"fmt"
)

// Class is the only accepted CLA byte.
const Class byte = 0x80

// Instructions.
const (
	InsVersion   byte = 0x00
	InsPublicKey byte = 0x02
	InsSign      byte = 0x04
	InsExit      byte = 0xFF
)

// Sign chunk flags carried in P1.
const (
	P1First byte = 0x00
	P1Next  byte = 0x01
	P1Last  byte = 0x80

	p1ChunkMask byte = 0x7F
)

// HeaderSize is CLA INS P1 P2 Lc.
const HeaderSize = 5

// MaxData is the largest data field a single command can carry.
const MaxData = 0xFF

// Command is a parsed command. Data aliases the raw input.
type Command struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
}

// ParseCommand splits raw into header and data, checking Lc against the data
// actually present.
func ParseCommand(raw []byte) (Command, error) {
	if len(raw) == 0 {
		return Command{}, &Error{Status: StatusEmptyCommand}
	}
	if len(raw) < HeaderSize {
		return Command{}, Errorf(StatusWrongLength, "command is %d bytes, header needs %d", len(raw), HeaderSize)
	}
	lc := int(raw[4])
	if len(raw)-HeaderSize != lc {
		return Command{}, Errorf(StatusWrongLength, "Lc is %d but %d data bytes follow", lc, len(raw)-HeaderSize)
	}
	return Command{CLA: raw[0], INS: raw[1], P1: raw[2], P2: raw[3], Data: raw[HeaderSize:]}, nil
}

// Encode serializes c, rejecting data longer than MaxData.
func (c Command) Encode() ([]byte, error) {
	if len(c.Data) > MaxData {
		return nil, fmt.Errorf("command data is %d bytes, max %d", len(c.Data), MaxData)
	}
	out := make([]byte, 0, HeaderSize+len(c.Data))
	out = append(out, c.CLA, c.INS, c.P1, c.P2, byte(len(c.Data)))
	return append(out, c.Data...), nil
}

// IsLast reports whether a sign chunk carries the last-chunk flag.
func (c Command) IsLast() bool { return c.P1&P1Last != 0 }

// Chunk returns P1First or P1Next for a sign chunk; other values are
// returned as-is for the caller to reject.
func (c Command) Chunk() byte { return c.P1 & p1ChunkMask }

// Response appends the status word to payload.
func Response(payload []byte, s Status) []byte {
	return append(payload, byte(s>>8), byte(s))
}

// SplitResponse separates a response into payload and status word.
func SplitResponse(resp []byte) ([]byte, Status, error) {
	if len(resp) < 2 {
		return nil, 0, fmt.Errorf("response is %d bytes, needs a status word", len(resp))
	}
	n := len(resp) - 2
	return resp[:n], Status(uint16(resp[n])<<8 | uint16(resp[n+1])), nil
}
