// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package digest folds streamed payload chunks into one blake2b-256 digest.
package digest

import (
	"errors"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length in bytes.
const Size = blake2b.Size256

// ErrFinalized is returned by Update and Finalize once the digest has been
// produced. Reset starts a new digest.
var ErrFinalized = errors.New("digest already finalized")

// Stream accumulates chunks. The zero value is not usable; call New.
type Stream struct {
	h         hash.Hash
	finalized bool
	written   int
}

// New returns an initialized stream.
func New() *Stream {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic("blake2b: " + err.Error())
	}
	return &Stream{h: h}
}

// Reset re-initializes the stream, discarding any absorbed data.
func (s *Stream) Reset() {
	s.h.Reset()
	s.finalized = false
	s.written = 0
}

// Update absorbs p. Any length, any number of times, until Finalize.
func (s *Stream) Update(p []byte) error {
	if s.finalized {
		return ErrFinalized
	}
	s.h.Write(p)
	s.written += len(p)
	return nil
}

// Written returns the number of bytes absorbed since the last Reset.
func (s *Stream) Written() int { return s.written }

// Finalize returns the digest. It may be called once per Reset.
func (s *Stream) Finalize() ([Size]byte, error) {
	var out [Size]byte
	if s.finalized {
		return out, ErrFinalized
	}
	s.finalized = true
	s.h.Sum(out[:0])
	return out, nil
}

// Sum hashes p in one shot.
func Sum(p []byte) [Size]byte {
	return blake2b.Sum256(p)
}
