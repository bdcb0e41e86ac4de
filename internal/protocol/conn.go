// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// MaxMessageSize bounds one line on the wire.
const MaxMessageSize = 64 * 1024

var (
	// ErrUnexpected is wrapped by Expect when the peer sends the wrong type.
	ErrUnexpected = errors.New("unexpected message")

	// ErrMalformed marks a line that is not a JSON message. The stream
	// itself is still usable.
	ErrMalformed = errors.New("malformed message")
)

// Envelope is a received message: its header plus the raw line for a typed
// decode.
type Envelope struct {
	Header
	Raw []byte
}

// Parse reads the header of one raw line. raw is retained.
func Parse(raw []byte) (Envelope, error) {
	env := Envelope{Raw: raw}
	if err := json.Unmarshal(raw, &env.Header); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}

// Decode unmarshals the full message into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// Conn frames messages over a stream socket. Send may be called from any
// goroutine; Recv belongs to a single reader.
type Conn struct {
	nc  net.Conn
	sc  *bufio.Scanner
	wmu sync.Mutex
}

// NewConn wraps nc.
func NewConn(nc net.Conn) *Conn {
	sc := bufio.NewScanner(nc)
	sc.Buffer(make([]byte, 0, 4096), MaxMessageSize)
	return &Conn{nc: nc, sc: sc}
}

// Send writes v as one line.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.nc.Write(append(data, '\n'))
	return err
}

// Recv reads the next message. A clean close yields io.EOF.
func (c *Conn) Recv() (Envelope, error) {
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return Envelope{}, err
		}
		return Envelope{}, io.EOF
	}
	return Parse(bytes.Clone(c.sc.Bytes()))
}

// Expect receives one message, requires its type to be typ and decodes it
// into v. An error message from the peer is returned as its text.
func (c *Conn) Expect(typ string, v any) error {
	env, err := c.Recv()
	if err != nil {
		return err
	}
	if env.Type == MsgTypeError && typ != MsgTypeError {
		var e ErrorMessage
		_ = env.Decode(&e)
		return fmt.Errorf("%w: peer error: %s", ErrUnexpected, e.Error)
	}
	if env.Type != typ {
		return fmt.Errorf("%w: want %s, got %q", ErrUnexpected, typ, env.Type)
	}
	return env.Decode(v)
}

// SetReadTimeout bounds the next reads; zero clears the deadline.
func (c *Conn) SetReadTimeout(d time.Duration) {
	var t time.Time
	if d > 0 {
		t = time.Now().Add(d)
	}
	_ = c.nc.SetReadDeadline(t)
}

func (c *Conn) Close() error {
	return c.nc.Close()
}
