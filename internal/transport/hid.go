// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// HID-style framing used on the APDU socket. Every message is split into
// 64-byte frames:
//
//	[channel 2][tag 1][sequence 2][payload...]
//
// The first frame's payload starts with the 2-byte message length. The last
// frame is zero padded.
const (
	FrameSize  = 64
	Channel    = 0x0101
	TagAPDU    = 0x05
	frameHead  = 5
	MaxMessage = 0xFFFF
)

var (
	// ErrFrameHeader is returned when a frame carries the wrong channel or tag.
	ErrFrameHeader = errors.New("invalid frame header")

	// ErrFrameSequence is returned when frames arrive out of order.
	ErrFrameSequence = errors.New("frame out of sequence")

	// ErrMessageTooLong is returned for messages that do not fit the length prefix.
	ErrMessageTooLong = errors.New("message too long for framing")
)

// WriteAPDU streams msg to w in 64-byte frames.
func WriteAPDU(w io.Writer, msg []byte) error {
	if len(msg) > MaxMessage {
		return ErrMessageTooLong
	}
	body := make([]byte, 2, 2+len(msg))
	binary.BigEndian.PutUint16(body, uint16(len(msg)))
	body = append(body, msg...)

	var frame [FrameSize]byte
	space := FrameSize - frameHead
	for seq := 0; len(body) > 0; seq++ {
		clear(frame[:])
		binary.BigEndian.PutUint16(frame[0:], Channel)
		frame[2] = TagAPDU
		binary.BigEndian.PutUint16(frame[3:], uint16(seq))

		n := copy(frame[frameHead:], body[:min(space, len(body))])
		body = body[n:]
		if _, err := w.Write(frame[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadAPDU reassembles one message from r.
func ReadAPDU(r io.Reader) ([]byte, error) {
	var frame [FrameSize]byte
	var msg []byte
	for seq := 0; ; seq++ {
		if _, err := io.ReadFull(r, frame[:]); err != nil {
			if seq > 0 && errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if binary.BigEndian.Uint16(frame[0:]) != Channel || frame[2] != TagAPDU {
			return nil, ErrFrameHeader
		}
		if got := binary.BigEndian.Uint16(frame[3:]); int(got) != seq {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrFrameSequence, got, seq)
		}

		payload := frame[frameHead:]
		if seq == 0 {
			msg = make([]byte, 0, int(binary.BigEndian.Uint16(payload)))
			payload = payload[2:]
		}
		left := cap(msg) - len(msg)
		if left <= len(payload) {
			return append(msg, payload[:left]...), nil
		}
		msg = append(msg, payload...)
	}
}

// FrameConn exchanges framed APDUs over a stream, one round trip at a time.
type FrameConn struct {
	mu sync.Mutex
	rw io.ReadWriter
}

// NewFrameConn wraps rw.
func NewFrameConn(rw io.ReadWriter) *FrameConn {
	return &FrameConn{rw: rw}
}

// Exchange writes cmd and reads the response.
func (c *FrameConn) Exchange(cmd []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := WriteAPDU(c.rw, cmd); err != nil {
		return nil, fmt.Errorf("failed to send APDU: %w", err)
	}
	resp, err := ReadAPDU(c.rw)
	if err != nil {
		return nil, fmt.Errorf("failed to read APDU response: %w", err)
	}
	return resp, nil
}
