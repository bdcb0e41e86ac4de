// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package client drives the signer's APDU interface from the host side:
// it builds commands, chunks signing payloads and decodes responses.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/aplane-algo/tzsigner/internal/apdu"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/transport"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// Exchanger performs one APDU round trip.
type Exchanger interface {
	Exchange(cmd []byte) ([]byte, error)
}

// Version is the reply to the version command.
type Version struct {
	Class byte
	Major byte
	Minor byte
	Patch byte
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Client talks to a signer through an Exchanger.
type Client struct {
	ex   Exchanger
	conn net.Conn
}

// New returns a client over ex.
func New(ex Exchanger) *Client {
	return &Client{ex: ex}
}

// Dial connects to a signer's APDU socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to APDU socket: %w", err)
	}
	return &Client{ex: transport.NewFrameConn(conn), conn: conn}, nil
}

// Close closes the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Raw sends a pre-built command and returns the response data and status
// without interpreting the status.
func (c *Client) Raw(cmd []byte) ([]byte, apdu.Status, error) {
	resp, err := c.ex.Exchange(cmd)
	if err != nil {
		return nil, 0, err
	}
	return apdu.SplitResponse(resp)
}

// send transmits one command and fails on any status other than 0x9000.
func (c *Client) send(cmd apdu.Command) ([]byte, error) {
	raw, err := cmd.Encode()
	if err != nil {
		return nil, err
	}
	util.Debug("apdu send", "ins", fmt.Sprintf("0x%02X", cmd.INS), "p1", fmt.Sprintf("0x%02X", cmd.P1), "lc", len(cmd.Data))
	data, status, err := c.Raw(raw)
	if err != nil {
		return nil, err
	}
	if status != apdu.StatusOK {
		return nil, &StatusError{Ins: cmd.INS, Status: status}
	}
	return data, nil
}

// Version queries the signer version.
func (c *Client) Version() (Version, error) {
	data, err := c.send(apdu.Command{CLA: apdu.Class, INS: apdu.InsVersion})
	if err != nil {
		return Version{}, err
	}
	if len(data) != 4 {
		return Version{}, fmt.Errorf("unexpected version reply length %d", len(data))
	}
	return Version{Class: data[0], Major: data[1], Minor: data[2], Patch: data[3]}, nil
}

// PublicKey returns the public key at path on the signer's configured curve.
func (c *Client) PublicKey(path derivation.Path) ([]byte, error) {
	data, err := c.send(apdu.Command{
		CLA:  apdu.Class,
		INS:  apdu.InsPublicKey,
		Data: path.AppendBinary(nil),
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || int(data[0]) != len(data)-1 {
		return nil, fmt.Errorf("malformed public key reply")
	}
	return data[1:], nil
}

// Sign streams payload to the signer in chunks of at most apdu.MaxData
// bytes and returns the signature. The first chunk carries the path.
func (c *Client) Sign(path derivation.Path, payload []byte) ([]byte, error) {
	first := path.AppendBinary(nil)
	n := min(apdu.MaxData-len(first), len(payload))
	first = append(first, payload[:n]...)
	payload = payload[n:]

	p1 := apdu.P1First
	chunk := first
	for {
		last := len(payload) == 0
		if last {
			p1 |= apdu.P1Last
		}
		data, err := c.send(apdu.Command{CLA: apdu.Class, INS: apdu.InsSign, P1: p1, Data: chunk})
		if err != nil {
			return nil, err
		}
		if last {
			return data, nil
		}
		n := min(apdu.MaxData, len(payload))
		chunk, payload = payload[:n], payload[n:]
		p1 = apdu.P1Next
	}
}

// Exit asks the signer to end the session. The signer does not answer; it
// closes the connection, which is reported as success.
func (c *Client) Exit() error {
	raw, err := apdu.Command{CLA: apdu.Class, INS: apdu.InsExit}.Encode()
	if err != nil {
		return err
	}
	_, err = c.ex.Exchange(raw)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
