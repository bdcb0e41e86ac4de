// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package engine is the device side of the APDU protocol: it owns the session
// state, routes commands to the deriver and the decoders, asks for approval
// and formats responses.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aplane-algo/tzsigner/internal/apdu"
	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/codec"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/operation"
	"github.com/aplane-algo/tzsigner/internal/tezos"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// ErrExit is returned by Exchange for the exit command. No response is sent.
var ErrExit = errors.New("exit requested")

// AppClass is the first byte of the version reply.
const AppClass byte = 0x00

// Engine processes one command at a time. It is not safe for concurrent use.
type Engine struct {
	curve            tezos.Curve
	confirmPublicKey bool
	version          [3]byte

	deriver  *derivation.Deriver
	decoder  *operation.Decoder
	approver approval.Approver

	sess  *session
	group operation.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithCurve selects the signing curve (default P-256).
func WithCurve(c tezos.Curve) Option {
	return func(e *Engine) { e.curve = c }
}

// WithPublicKeyConfirmation routes public key requests through the approver.
func WithPublicKeyConfirmation(on bool) Option {
	return func(e *Engine) { e.confirmPublicKey = on }
}

// WithVersion sets the version reported by the version command.
func WithVersion(major, minor, patch uint8) Option {
	return func(e *Engine) { e.version = [3]byte{major, minor, patch} }
}

// New returns an idle engine. A nil approver rejects everything.
func New(deriver *derivation.Deriver, approver approval.Approver, opts ...Option) *Engine {
	e := &Engine{
		curve:    tezos.CurveP256,
		deriver:  deriver,
		decoder:  operation.NewDecoder(deriver),
		approver: approver,
		sess:     newSession(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current session state.
func (e *Engine) State() State { return e.sess.state }

// Curve returns the signing curve.
func (e *Engine) Curve() tezos.Curve { return e.curve }

// Reset drops any partial session. Call it when the host connection changes.
func (e *Engine) Reset() {
	e.sess.reset()
	e.group.Reset()
}

// Exchange processes one command and returns the response, which always ends
// with a status word. The only error is ErrExit. Any failure resets the
// session before the status is returned.
func (e *Engine) Exchange(ctx context.Context, raw []byte) ([]byte, error) {
	resp, err := e.handle(ctx, raw)
	if err == nil {
		return resp, nil
	}
	e.Reset()
	if errors.Is(err, ErrExit) {
		util.Debug("apdu exit")
		return nil, ErrExit
	}
	status := apdu.StatusOf(err)
	if status == apdu.StatusRejected {
		util.Logger.Info("request rejected", "reason", err)
	} else {
		util.Debug("apdu failed", "status", status, "error", err)
	}
	return apdu.Response(nil, status), nil
}

func (e *Engine) handle(ctx context.Context, raw []byte) ([]byte, error) {
	cmd, err := apdu.ParseCommand(raw)
	if err != nil {
		return nil, err
	}
	util.Debug("apdu", "ins", fmt.Sprintf("%02X", cmd.INS), "p1", fmt.Sprintf("%02X", cmd.P1), "lc", len(cmd.Data), "state", e.sess.state)

	if cmd.CLA != apdu.Class {
		return nil, apdu.Errorf(apdu.StatusWrongClass, "class %02X", cmd.CLA)
	}
	switch cmd.INS {
	case apdu.InsVersion:
		return e.handleVersion(cmd)
	case apdu.InsPublicKey:
		return e.handlePublicKey(ctx, cmd)
	case apdu.InsSign:
		return e.handleSign(ctx, cmd)
	case apdu.InsExit:
		return nil, ErrExit
	default:
		return nil, apdu.Errorf(apdu.StatusUnsupportedINS, "instruction %02X", cmd.INS)
	}
}

func (e *Engine) handleVersion(cmd apdu.Command) ([]byte, error) {
	e.sess.reset()
	if cmd.P1 != 0 || cmd.P2 != 0 {
		return nil, apdu.Errorf(apdu.StatusWrongParams, "P1/P2 must be zero")
	}
	resp := []byte{AppClass, e.version[0], e.version[1], e.version[2]}
	return apdu.Response(resp, apdu.StatusOK), nil
}

func (e *Engine) handlePublicKey(ctx context.Context, cmd apdu.Command) ([]byte, error) {
	e.sess.reset()
	if cmd.P1 != 0 || cmd.P2 != 0 {
		return nil, apdu.Errorf(apdu.StatusWrongParams, "P1/P2 must be zero")
	}
	c := codec.NewCursor(cmd.Data)
	path, err := readPath(c)
	if err != nil {
		return nil, err
	}
	if !c.Done() {
		return nil, apdu.Errorf(apdu.StatusWrongLength, "%d byte(s) after path", c.Remaining())
	}

	key, err := e.deriver.Derive(e.curve, path)
	if err != nil {
		return nil, err
	}
	if e.confirmPublicKey {
		req := &approval.Request{
			Kind:      approval.KindPublicKey,
			Curve:     e.curve,
			Path:      path,
			Signer:    key.Account,
			PublicKey: key.PublicKey,
		}
		if err := e.confirm(ctx, req); err != nil {
			return nil, err
		}
	}

	resp := make([]byte, 0, 1+len(key.PublicKey)+2)
	resp = append(resp, byte(len(key.PublicKey)))
	resp = append(resp, key.PublicKey...)
	return apdu.Response(resp, apdu.StatusOK), nil
}

func (e *Engine) handleSign(ctx context.Context, cmd apdu.Command) ([]byte, error) {
	if cmd.P2 != 0 {
		return nil, apdu.Errorf(apdu.StatusWrongParams, "P2 must be zero")
	}
	switch cmd.Chunk() {
	case apdu.P1First:
		e.sess.reset()
		c := codec.NewCursor(cmd.Data)
		path, err := readPath(c)
		if err != nil {
			return nil, err
		}
		rest, _ := c.Bytes(c.Remaining())
		e.sess.begin(path)
		if err := e.sess.append(rest); err != nil {
			return nil, err
		}
	case apdu.P1Next:
		if e.sess.state != StateAccumulating {
			return nil, apdu.Errorf(apdu.StatusConditionsNotMet, "continuation chunk while %s", e.sess.state)
		}
		if err := e.sess.append(cmd.Data); err != nil {
			return nil, err
		}
	default:
		return nil, apdu.Errorf(apdu.StatusWrongParams, "P1 %02X", cmd.P1)
	}

	if !cmd.IsLast() {
		return apdu.Response(nil, apdu.StatusOK), nil
	}
	return e.finishSign(ctx)
}

// finishSign decodes the accumulated payload, asks for approval and signs.
func (e *Engine) finishSign(ctx context.Context) ([]byte, error) {
	payload := e.sess.payload()
	req := &approval.Request{Curve: e.curve, Path: e.sess.path}

	switch operation.MagicByte(payload) {
	case operation.MagicGroup:
		if err := e.decoder.Decode(payload, e.curve, e.sess.path, &e.group); err != nil {
			return nil, err
		}
		req.Kind = approval.KindOperations
		req.Group = &e.group
		req.Signer = e.group.Signer
		req.PublicKey = e.group.PublicKey
	case operation.MagicBlock, operation.MagicEndorsement:
		bd, err := operation.ParseBakingData(payload)
		if err != nil {
			return nil, err
		}
		key, err := e.deriver.Derive(e.curve, e.sess.path)
		if err != nil {
			return nil, err
		}
		req.Kind = approval.KindBlock
		if bd.IsEndorsement {
			req.Kind = approval.KindEndorsement
		}
		req.Baking = bd
		req.Signer = key.Account
		req.PublicKey = key.PublicKey
	default:
		return nil, codec.Malformed(0, codec.CodeBadMagic, fmt.Errorf("%w: %02X", codec.ErrBadMagic, operation.MagicByte(payload)))
	}

	if err := e.confirm(ctx, req); err != nil {
		return nil, err
	}

	sum, err := e.sess.hash.Finalize()
	if err != nil {
		return nil, err
	}
	sig, err := e.deriver.Sign(e.curve, e.sess.path, sum[:])
	if err != nil {
		return nil, err
	}
	util.Logger.Info("signed", "kind", req.Kind, "path", e.sess.path.String(), "signer", req.Signer.String())
	e.sess.reset()
	return apdu.Response(sig, apdu.StatusOK), nil
}

// confirm blocks on the approver. Anything but an explicit approval is a
// rejection.
func (e *Engine) confirm(ctx context.Context, req *approval.Request) error {
	if e.approver == nil {
		return apdu.ErrRejected
	}
	ok, err := e.approver.Approve(ctx, req)
	if err != nil {
		return &apdu.Error{Status: apdu.StatusRejected, Err: fmt.Errorf("approval failed: %w", err)}
	}
	if !ok {
		return apdu.ErrRejected
	}
	return nil
}

// readPath maps path failures onto their status words.
func readPath(c *codec.Cursor) (derivation.Path, error) {
	path, err := derivation.ReadPath(c)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, derivation.ErrPathLength) {
		return path, &apdu.Error{Status: apdu.StatusPathLength, Err: err}
	}
	return path, &apdu.Error{Status: apdu.StatusWrongLength, Err: fmt.Errorf("truncated path: %w", err)}
}
