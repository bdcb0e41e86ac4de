// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import (
	"github.com/aplane-algo/tzsigner/internal/apdu"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/digest"
)

// MaxPayloadSize is the largest signable payload accumulated across chunks.
const MaxPayloadSize = 2048

// State is the session state.
type State int

const (
	StateIdle State = iota
	StateAccumulating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// session is the per-device mutable state. Only the engine touches it.
type session struct {
	state State
	path  derivation.Path
	hash  *digest.Stream
	buf   [MaxPayloadSize]byte
	n     int
}

func newSession() *session {
	return &session{hash: digest.New()}
}

// reset returns to Idle: no path, fresh hash, empty buffer.
func (s *session) reset() {
	s.state = StateIdle
	s.path = derivation.Path{}
	s.hash.Reset()
	clear(s.buf[:s.n])
	s.n = 0
}

// begin starts accumulating a new signing request for path.
func (s *session) begin(path derivation.Path) {
	s.reset()
	s.path = path
	s.state = StateAccumulating
}

// append adds a chunk to the buffer and the hash. Nothing is written when the
// chunk does not fit.
func (s *session) append(p []byte) error {
	if s.n+len(p) > MaxPayloadSize {
		return apdu.Errorf(apdu.StatusCapacity, "payload would be %d bytes, max %d", s.n+len(p), MaxPayloadSize)
	}
	if err := s.hash.Update(p); err != nil {
		return err
	}
	s.n += copy(s.buf[s.n:], p)
	return nil
}

func (s *session) payload() []byte { return s.buf[:s.n] }
